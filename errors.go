package main

import "github.com/pkg/errors"

// Every failure in this component is fatal: it reflects either a malformed
// static table or a protocol violation by a collaborator, and retrying the
// same operation cannot change the outcome. Callers classify with errors.Is
// and then terminate.
var (
	// ErrConfiguration: required configuration missing or malformed,
	// raised before any gate is processed.
	ErrConfiguration = errors.New("configuration error")

	// ErrGateTable: the declarative gate table failed validation
	// (duplicate name, unknown kind, malformed or non-unitary matrix).
	ErrGateTable = errors.New("gate table error")

	// ErrUnknownGate: an incoming gate, or a name passed to Construct,
	// has no match in the table.
	ErrUnknownGate = errors.New("unknown gate format")

	// ErrMappingInconsistency: an operand has no translator entry, i.e.
	// the producer used a qubit it never allocated.
	ErrMappingInconsistency = errors.New("qubit mapping inconsistency")

	// ErrCapacity: more live qubits requested than the platform has
	// physical qubits.
	ErrCapacity = errors.New("physical qubit capacity exceeded")
)
