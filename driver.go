package main

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Pre-compiled regexps for the QASM-subset the demo driver accepts.
var (
	qregRegex            = regexp.MustCompile(`^qreg\s+(\w+)\[(\d+)\];?$`)
	cregRegex            = regexp.MustCompile(`^creg\s+(\w+)\[(\d+)\];?$`)
	singleGateRegex      = regexp.MustCompile(`^(\w+)\s+q\[(\d+)\];?$`)
	singleGateParamRegex = regexp.MustCompile(`^(\w+)\s*\(\s*(` + paramPattern + `(?:\s*,\s*` + paramPattern + `)*)\s*\)\s+q\[(\d+)\];?$`)
	twoQubitRegex        = regexp.MustCompile(`^(\w+)\s+q\[(\d+)\],\s*q\[(\d+)\];?$`)
	twoQubitParamRegex   = regexp.MustCompile(`^(\w+)\s*\(\s*(` + paramPattern + `)\s*\)\s+q\[(\d+)\],\s*q\[(\d+)\];?$`)
	threeQubitRegex      = regexp.MustCompile(`^(\w+)\s+q\[(\d+)\],\s*q\[(\d+)\],\s*q\[(\d+)\];?$`)
	measureRegex         = regexp.MustCompile(`^measure\s+q\[(\d+)\]\s*->\s*(\w+)\[(\d+)\];?$`)
	resetRegex           = regexp.MustCompile(`^reset\s+q\[(\d+)\];?$`)
	freeRegex            = regexp.MustCompile(`^free\s+q\[(\d+)\];?$`)
	barrierRegex         = regexp.MustCompile(`^barrier\s+`)
)

// EventKind classifies one upstream stream event.
type EventKind int

const (
	EventAlloc EventKind = iota
	EventFree
	EventGate
)

// StreamEvent is one step of a parsed upstream program.
type StreamEvent struct {
	Kind EventKind
	Text string // source line, for display
	Refs []int  // upstream references for alloc/free
	Gate Gate   // wire gate for EventGate
}

// Program is a parsed upstream program, played against the plugin one event
// at a time. QASM q[i] registers map to 1-based upstream references i+1.
// Beyond the QASM subset the driver accepts a "free q[i];" extension so the
// allocate/free path can be exercised from a text program.
type Program struct {
	Source string
	Events []StreamEvent
}

// ParseProgram parses the QASM-like source into a stream of events.
// Unsupported but harmless lines (version header, includes, cregs,
// barriers, comments) are skipped; anything else fails.
func ParseProgram(src string) (*Program, error) {
	prog := &Program{Source: src}
	for lineNo, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" ||
			strings.HasPrefix(line, "OPENQASM") ||
			strings.HasPrefix(line, "include") ||
			cregRegex.MatchString(line) ||
			barrierRegex.MatchString(line) {
			continue
		}

		ev, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo+1)
		}
		prog.Events = append(prog.Events, ev)
	}
	return prog, nil
}

func parseLine(line string) (StreamEvent, error) {
	if m := qregRegex.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[2])
		refs := make([]int, n)
		for i := range refs {
			refs[i] = i + 1
		}
		return StreamEvent{Kind: EventAlloc, Text: line, Refs: refs}, nil
	}
	if m := freeRegex.FindStringSubmatch(line); m != nil {
		q, _ := strconv.Atoi(m[1])
		return StreamEvent{Kind: EventFree, Text: line, Refs: []int{q + 1}}, nil
	}
	if m := measureRegex.FindStringSubmatch(line); m != nil {
		q, _ := strconv.Atoi(m[1])
		g := Gate{Class: ClassMeasure, Measures: []int{q + 1}, Matrix: basisZ}
		return StreamEvent{Kind: EventGate, Text: line, Gate: g}, nil
	}
	if m := resetRegex.FindStringSubmatch(line); m != nil {
		q, _ := strconv.Atoi(m[1])
		g := Gate{Class: ClassPrep, Targets: []int{q + 1}, Matrix: basisZ}
		return StreamEvent{Kind: EventGate, Text: line, Gate: g}, nil
	}
	if m := singleGateParamRegex.FindStringSubmatch(line); m != nil {
		q, _ := strconv.Atoi(m[3])
		params := parseParams(m[2])
		if params == nil {
			return StreamEvent{}, errors.Errorf("bad parameter list %q", m[2])
		}
		return wireGateEvent(line, m[1], params, q+1)
	}
	if m := singleGateRegex.FindStringSubmatch(line); m != nil {
		q, _ := strconv.Atoi(m[2])
		return wireGateEvent(line, m[1], nil, q+1)
	}
	if m := twoQubitParamRegex.FindStringSubmatch(line); m != nil {
		q0, _ := strconv.Atoi(m[3])
		q1, _ := strconv.Atoi(m[4])
		params := parseParams(m[2])
		if params == nil {
			return StreamEvent{}, errors.Errorf("bad parameter list %q", m[2])
		}
		return wireGateEvent(line, m[1], params, q0+1, q1+1)
	}
	if m := twoQubitRegex.FindStringSubmatch(line); m != nil {
		q0, _ := strconv.Atoi(m[2])
		q1, _ := strconv.Atoi(m[3])
		return wireGateEvent(line, m[1], nil, q0+1, q1+1)
	}
	if m := threeQubitRegex.FindStringSubmatch(line); m != nil {
		q0, _ := strconv.Atoi(m[2])
		q1, _ := strconv.Atoi(m[3])
		q2, _ := strconv.Atoi(m[4])
		return wireGateEvent(line, m[1], nil, q0+1, q1+1, q2+1)
	}
	return StreamEvent{}, errors.Errorf("unrecognized statement %q", line)
}

// wireGateEvent builds the matrix-based wire gate for a named statement.
// The named form exists only here, on the producer side of the stream; the
// adapter itself sees nothing but the matrix.
func wireGateEvent(line, name string, params []float64, qubits ...int) (StreamEvent, error) {
	g, err := buildWireGate(name, params, qubits)
	if err != nil {
		return StreamEvent{}, err
	}
	return StreamEvent{Kind: EventGate, Text: line, Gate: g}, nil
}

func buildWireGate(name string, params []float64, qubits []int) (Gate, error) {
	angle := func() (float64, error) {
		if len(params) != 1 {
			return 0, errors.Errorf("gate %q wants one parameter, got %d", name, len(params))
		}
		return params[0], nil
	}
	unitary := func(m Matrix, controls int) (Gate, error) {
		if len(qubits) != controls+m.NumQubits() {
			return Gate{}, errors.Errorf("gate %q wants %d operand(s), got %d",
				name, controls+m.NumQubits(), len(qubits))
		}
		return Gate{
			Class:    ClassUnitary,
			Controls: append([]int(nil), qubits[:controls]...),
			Targets:  append([]int(nil), qubits[controls:]...),
			Matrix:   m,
		}, nil
	}

	switch strings.ToLower(name) {
	case "id", "i":
		return unitary(matIdentity, 0)
	case "x":
		return unitary(matX, 0)
	case "y":
		return unitary(matY, 0)
	case "z":
		return unitary(matZ, 0)
	case "h":
		return unitary(matH, 0)
	case "s":
		return unitary(matS, 0)
	case "sdg":
		return unitary(matSDag, 0)
	case "t":
		return unitary(matT, 0)
	case "tdg":
		return unitary(matTDag, 0)
	case "sx":
		return unitary(rxMatrix(math.Pi/2), 0)
	case "rx":
		theta, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(rxMatrix(theta), 0)
	case "ry":
		theta, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(ryMatrix(theta), 0)
	case "rz":
		theta, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(rzMatrix(theta), 0)
	case "p", "u1":
		lambda, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(phaseMatrix(lambda), 0)
	case "cx", "cnot":
		return unitary(matX, 1)
	case "cz":
		return unitary(matZ, 1)
	case "ch":
		return unitary(matH, 1)
	case "crx":
		theta, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(rxMatrix(theta), 1)
	case "cry":
		theta, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(ryMatrix(theta), 1)
	case "crz":
		theta, err := angle()
		if err != nil {
			return Gate{}, err
		}
		return unitary(rzMatrix(theta), 1)
	case "swap":
		return unitary(matSwap, 0)
	case "sqswap":
		return unitary(matSqSwap, 0)
	case "ccx":
		return unitary(matX, 2)
	default:
		return Gate{}, errors.Errorf("unsupported gate %q", name)
	}
}

// Play streams the whole program through the plugin: allocations, gates,
// frees, then the end-of-stream drop. It returns every measurement result
// in stream order, keyed by upstream reference.
func Play(p *Plugin, prog *Program) ([]Measurement, error) {
	var results []Measurement
	for _, ev := range prog.Events {
		switch ev.Kind {
		case EventAlloc:
			if err := p.AllocateQubits(ev.Refs, false); err != nil {
				return results, err
			}
		case EventFree:
			p.FreeQubits(ev.Refs)
		case EventGate:
			ms, err := p.HandleGate(ev.Gate)
			if err != nil {
				return results, err
			}
			results = append(results, ms...)
		}
	}
	if err := p.Drop(); err != nil {
		return results, err
	}
	return results, nil
}
