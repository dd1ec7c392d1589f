package main

import (
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Command namespace and environment fallbacks for the initialization
// protocol.
const (
	cmdIface       = "qremap"
	envHardware    = "QREMAP_HARDWARE_CONFIG"
	envGateMap     = "QREMAP_GATEMAP"
	defaultEpsilon = 1.0e-6
)

// Command is one entry of the namespaced initialization command stream.
type Command struct {
	Iface string
	Oper  string
	Args  []string
}

// Plugin is the boundary adapter: it translates the host's lifecycle
// callbacks (initialize, allocate, free, gate, advance, drop) into
// controller operations. One instance serves one logical stream; callbacks
// are processed to completion before the next is accepted.
type Plugin struct {
	log     *zap.Logger
	router  Router
	down    Downstream
	epsilon float64
	rng     *rand.Rand

	gatemap   *GateMap
	ctl       *Controller
	numQubits int

	warnedAllocData bool
	warnedAdvance   bool
}

// NewPlugin builds an uninitialized plugin. The seed makes a run
// reproducible: it feeds the rng handed to the router and the downstream
// backend.
func NewPlugin(router Router, down Downstream, seed int64, log *zap.Logger) *Plugin {
	return &Plugin{
		log:     log,
		router:  router,
		down:    down,
		epsilon: defaultEpsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Rand exposes the plugin's deterministic randomness source so the harness
// can share it with the downstream backend.
func (p *Plugin) Rand() *rand.Rand { return p.rng }

// Initialize consumes the initialization command stream, loads the platform
// description and the gate table, seeds the identity virtual-to-physical
// translator, and reports the physical qubit count downstream. Recognized
// commands in the qremap namespace:
//
//	hardware-config <path>  platform description JSON
//	gatemap <path>          gate table JSON
//	option <key> <value>    forwarded verbatim to the router
//
// Paths fall back to QREMAP_HARDWARE_CONFIG and QREMAP_GATEMAP; missing
// either is fatal before any gate is processed.
func (p *Plugin) Initialize(cmds []Command) error {
	hardwarePath := os.Getenv(envHardware)
	gatemapPath := os.Getenv(envGateMap)
	options := make(map[string]string)

	for _, cmd := range cmds {
		if cmd.Iface != cmdIface {
			continue
		}
		switch cmd.Oper {
		case "hardware-config":
			if len(cmd.Args) != 1 {
				return errors.Wrapf(ErrConfiguration, "expected one argument for %s.hardware-config", cmdIface)
			}
			hardwarePath = cmd.Args[0]
		case "gatemap":
			if len(cmd.Args) != 1 {
				return errors.Wrapf(ErrConfiguration, "expected one argument for %s.gatemap", cmdIface)
			}
			gatemapPath = cmd.Args[0]
		case "option":
			if len(cmd.Args) != 2 {
				return errors.Wrapf(ErrConfiguration, "expected two arguments for %s.option", cmdIface)
			}
			options[cmd.Args[0]] = cmd.Args[1]
		default:
			return errors.Wrapf(ErrConfiguration, "unknown command %s.%s", cmdIface, cmd.Oper)
		}
	}

	if hardwarePath == "" {
		return errors.Wrapf(ErrConfiguration,
			"missing %s.hardware-config cmd/%s env", cmdIface, envHardware)
	}
	if gatemapPath == "" {
		return errors.Wrapf(ErrConfiguration,
			"missing %s.gatemap cmd/%s env", cmdIface, envGateMap)
	}
	if eps, ok := options["epsilon"]; ok {
		v, parseOK := parseParamExpr(eps)
		if !parseOK || v <= 0 {
			return errors.Wrapf(ErrConfiguration, "invalid epsilon option %q", eps)
		}
		p.epsilon = v
	}

	numQubits, err := loadPlatform(hardwarePath)
	if err != nil {
		return err
	}
	p.numQubits = numQubits

	gm, err := loadGateMapFile(gatemapPath, p.epsilon, p.log)
	if err != nil {
		return err
	}
	p.gatemap = gm

	if err := p.down.Allocate(numQubits); err != nil {
		return err
	}
	p.ctl = NewController(gm, numQubits, p.router, p.down, p.rng, options, p.log)
	p.log.Info("platform loaded",
		zap.Int("qubits", numQubits),
		zap.Int("gateRecords", gm.Len()),
		zap.String("hardwareConfig", hardwarePath),
		zap.String("gatemap", gatemapPath))
	return nil
}

// loadPlatform reads the platform description and returns its physical
// qubit count.
func loadPlatform(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(ErrConfiguration, "reading hardware config %s: %v", path, err)
	}
	if !gjson.ValidBytes(data) {
		return 0, errors.Wrapf(ErrConfiguration, "hardware config %s is not valid JSON", path)
	}
	n := gjson.ParseBytes(data).Get("qubit_number")
	if !n.Exists() || n.Int() <= 0 {
		return 0, errors.Wrapf(ErrConfiguration,
			"hardware config %s has no positive \"qubit_number\"", path)
	}
	return int(n.Int()), nil
}

// loadGateMapFile reads and parses a gate table file.
func loadGateMapFile(path string, epsilon float64, log *zap.Logger) (*GateMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "reading gatemap %s: %v", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrapf(ErrGateTable, "gatemap %s is not valid JSON", path)
	}
	return LoadGateMap(gjson.ParseBytes(data), epsilon, log)
}

// NumQubits returns the physical qubit count of the loaded platform.
func (p *Plugin) NumQubits() int { return p.numQubits }

// Controller exposes the controller for inspection.
func (p *Plugin) Controller() *Controller { return p.ctl }

// AllocateQubits claims virtual indices for a set of upstream references.
// Extra data attached to an allocation is discarded with a single warning,
// matching the upstream protocol's permissive stance.
func (p *Plugin) AllocateQubits(refs []int, hasData bool) error {
	if hasData && !p.warnedAllocData {
		p.log.Warn("found data attached to qubit allocation; this adapter discards such data")
		p.warnedAllocData = true
	}
	for _, ref := range refs {
		if err := p.ctl.Allocate(ref); err != nil {
			return err
		}
	}
	return nil
}

// FreeQubits releases the virtual indices of a set of upstream references.
func (p *Plugin) FreeQubits(refs []int) {
	for _, ref := range refs {
		p.ctl.Free(ref)
	}
}

// HandleGate feeds one upstream gate through the controller and returns any
// measurement results, already translated back to upstream references.
func (p *Plugin) HandleGate(g Gate) ([]Measurement, error) {
	return p.ctl.Submit(g)
}

// Advance acknowledges a time-advance signal without acting on it: the
// schedule only exists after mapping, so there is nothing to advance here.
func (p *Plugin) Advance(cycles uint64) {
	if !p.warnedAdvance {
		p.log.Warn("received request to advance time; discarded, scheduling happens after mapping",
			zap.Uint64("cycles", cycles))
		p.warnedAdvance = true
	}
}

// Drop flushes whatever accumulated after the last measurement. It is the
// end-of-stream signal.
func (p *Plugin) Drop() error {
	return p.ctl.Flush()
}
