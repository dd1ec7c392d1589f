package main

import "math/rand"

// IdentityRouter maps every batch onto itself: the placement never moves.
// It is the reference implementation of the Router contract and the default
// when no routing is wanted.
type IdentityRouter struct{}

func (IdentityRouter) Route(batch []InternalGate, mode RouteMode, _ *rand.Rand) ([]InternalGate, []int, error) {
	assign := make([]int, assignmentSize(batch, mode))
	for i := range assign {
		assign[i] = i
	}
	return batch, assign, nil
}

// GreedyRouter demonstrates a placement-choosing pass. In free-placement
// mode it relabels qubits in order of first interaction, derived from the
// batch's dependency DAG, which packs the active qubits into the low
// indices. In locked mode it behaves like IdentityRouter, as the contract
// demands. Routing quality is out of scope; this exists to exercise the
// hand-off protocol with a non-trivial permutation.
type GreedyRouter struct{}

func (GreedyRouter) Route(batch []InternalGate, mode RouteMode, _ *rand.Rand) ([]InternalGate, []int, error) {
	n := assignmentSize(batch, mode)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = i
	}
	if !mode.FreePlacement {
		return batch, assign, nil
	}

	next := 0
	placed := make(map[int]bool)
	for _, q := range NewBatchDAG(batch).FirstUse() {
		assign[q] = next
		placed[next] = true
		next++
	}
	// Fill the untouched qubits into the remaining slots, low to high, so
	// the assignment stays a permutation.
	for old := 0; old < n; old++ {
		if _, used := firstUseIndex(batch, old); used {
			continue
		}
		for placed[next] {
			next++
		}
		assign[old] = next
		placed[next] = true
		next++
	}

	mapped := make([]InternalGate, len(batch))
	for i, g := range batch {
		out := InternalGate{Name: g.Name, Qubits: make([]int, len(g.Qubits)), Angle: g.Angle}
		for j, q := range g.Qubits {
			out.Qubits[j] = assign[q]
		}
		mapped[i] = out
	}
	return mapped, assign, nil
}

// assignmentSize returns the number of physical indices an assignment must
// cover: the whole platform, or the batch's span when it reaches further.
func assignmentSize(batch []InternalGate, mode RouteMode) int {
	n := mode.NumQubits
	if span := physicalSpan(batch); span > n {
		n = span
	}
	return n
}

// physicalSpan returns one past the highest qubit index the batch touches.
func physicalSpan(batch []InternalGate) int {
	span := 0
	for _, g := range batch {
		for _, q := range g.Qubits {
			if q+1 > span {
				span = q + 1
			}
		}
	}
	return span
}

// firstUseIndex returns the position of the first gate touching q.
func firstUseIndex(batch []InternalGate, q int) (int, bool) {
	for i, g := range batch {
		for _, o := range g.Qubits {
			if o == q {
				return i, true
			}
		}
	}
	return 0, false
}
