package main

import (
	"fmt"
	"strings"
)

// GateClass distinguishes the three kinds of wire gates a producer can send.
type GateClass int

const (
	// ClassUnitary gates carry a unitary matrix over their target qubits,
	// plus zero or more explicit control qubits.
	ClassUnitary GateClass = iota
	// ClassMeasure gates measure their qubits in the basis given by the
	// attached 2x2 matrix.
	ClassMeasure
	// ClassPrep gates prepare their qubits in the basis given by the
	// attached 2x2 matrix.
	ClassPrep
)

func (c GateClass) String() string {
	switch c {
	case ClassUnitary:
		return "unitary"
	case ClassMeasure:
		return "measure"
	case ClassPrep:
		return "prep"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Gate is the matrix/structure-based wire representation used on both sides
// of the adapter. Upstream gates arrive with upstream qubit references;
// downstream gates leave with 1-based physical references.
type Gate struct {
	Class    GateClass
	Targets  []int
	Controls []int
	Measures []int
	Matrix   Matrix
}

// Qubits returns all operand references in control-then-target order, which
// is the operand convention of the internal representation.
func (g Gate) Qubits() []int {
	out := make([]int, 0, len(g.Controls)+len(g.Targets))
	out = append(out, g.Controls...)
	out = append(out, g.Targets...)
	return out
}

// HasMeasures reports whether the gate carries a measurement.
func (g Gate) HasMeasures() bool { return len(g.Measures) > 0 }

// InternalGate is the name/parameter-based representation handed to the
// router: a table name, operand qubits, and an angle for parametrized
// records.
type InternalGate struct {
	Name   string
	Qubits []int
	Angle  float64

	// PerQubit marks gates that expand to one single-qubit gate per
	// operand when submitted (measurement and prep).
	PerQubit bool
}

func (ig InternalGate) String() string {
	var sb strings.Builder
	sb.WriteString(ig.Name)
	sb.WriteByte(' ')
	for i, q := range ig.Qubits {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "q%d", q)
	}
	if ig.Angle != 0 {
		fmt.Fprintf(&sb, " (%s)", formatParam(ig.Angle))
	}
	return sb.String()
}

// Measurement is a single measurement outcome keyed by a qubit reference.
type Measurement struct {
	Qubit int
	Value int
}
