package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// optionFlags collects repeatable -option key=value flags.
type optionFlags []string

func (o *optionFlags) String() string { return strings.Join(*o, ",") }

func (o *optionFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("want key=value, got %q", v)
	}
	*o = append(*o, v)
	return nil
}

func main() {
	var opts optionFlags
	hardwarePath := flag.String("hardware-config", "", "platform description JSON (falls back to "+envHardware+")")
	gatemapPath := flag.String("gatemap", "", "gate table JSON (falls back to "+envGateMap+")")
	inputPath := flag.String("input", "", "program to stream; stdin when omitted")
	epsilon := flag.Float64("epsilon", defaultEpsilon, "matrix comparison tolerance")
	seed := flag.Int64("seed", 1, "randomness seed; a run with the same seed repeats exactly")
	routerName := flag.String("router", "greedy", "routing pass: identity or greedy")
	useTUI := flag.Bool("tui", false, "open the interactive inspector")
	verbose := flag.Bool("v", false, "debug logging, including mapping tables per flush")
	flag.Var(&opts, "option", "router option as key=value (repeatable)")
	flag.Parse()

	log, err := buildLogger(*verbose, *useTUI)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qremap:", err)
		os.Exit(1)
	}
	defer log.Sync()

	cmds := initCommands(*hardwarePath, *gatemapPath, *epsilon, opts)

	router, err := pickRouter(*routerName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qremap:", err)
		os.Exit(1)
	}

	program, err := readProgram(*inputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qremap:", err)
		os.Exit(1)
	}

	newSession := func() (*Plugin, *SimBackend, error) {
		backend := NewSimBackend(rand.New(rand.NewSource(*seed)), log)
		plugin := NewPlugin(router, backend, *seed, log)
		if err := plugin.Initialize(cmds); err != nil {
			return nil, nil, err
		}
		return plugin, backend, nil
	}

	if *useTUI {
		m, err := newInspector(program, newSession)
		if err != nil {
			fmt.Fprintln(os.Stderr, "qremap:", err)
			os.Exit(1)
		}
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			fmt.Fprintln(os.Stderr, "qremap:", err)
			os.Exit(1)
		}
		return
	}

	plugin, backend, err := newSession()
	if err != nil {
		fmt.Fprintln(os.Stderr, "qremap:", err)
		os.Exit(1)
	}
	results, err := Play(plugin, program)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qremap:", err)
		os.Exit(1)
	}

	for _, g := range backend.History {
		fmt.Println(gateText(g))
	}
	for _, meas := range results {
		fmt.Printf("result q%d = %d\n", meas.Qubit, meas.Value)
	}
	if *verbose && plugin.Controller() != nil {
		fmt.Print(mappingTableString(plugin.Controller().MappingRows()))
	}
}

// buildLogger configures zap. The inspector owns the terminal, so logging
// is suppressed there unless -v redirects it to a file.
func buildLogger(verbose, tui bool) (*zap.Logger, error) {
	if tui && !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if tui {
		cfg.OutputPaths = []string{"qremap.log"}
		cfg.ErrorOutputPaths = []string{"qremap.log"}
	}
	return cfg.Build()
}

// initCommands rebuilds the namespaced initialization command stream the
// plugin expects from the parsed flags.
func initCommands(hardware, gatemap string, epsilon float64, opts optionFlags) []Command {
	var cmds []Command
	if hardware != "" {
		cmds = append(cmds, Command{Iface: cmdIface, Oper: "hardware-config", Args: []string{hardware}})
	}
	if gatemap != "" {
		cmds = append(cmds, Command{Iface: cmdIface, Oper: "gatemap", Args: []string{gatemap}})
	}
	if epsilon != defaultEpsilon {
		cmds = append(cmds, Command{Iface: cmdIface, Oper: "option",
			Args: []string{"epsilon", fmt.Sprintf("%g", epsilon)}})
	}
	for _, kv := range opts {
		k, v, _ := strings.Cut(kv, "=")
		cmds = append(cmds, Command{Iface: cmdIface, Oper: "option", Args: []string{k, v}})
	}
	return cmds
}

func pickRouter(name string) (Router, error) {
	switch name {
	case "identity":
		return IdentityRouter{}, nil
	case "greedy":
		return GreedyRouter{}, nil
	default:
		return nil, fmt.Errorf("unknown router %q", name)
	}
}

func readProgram(path string) (*Program, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return ParseProgram(string(data))
}
