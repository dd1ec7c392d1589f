package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRouter(t *testing.T) {
	batch := []InternalGate{
		{Name: "h", Qubits: []int{2}},
		{Name: "cnot", Qubits: []int{2, 0}},
	}
	mapped, assign, err := IdentityRouter{}.Route(batch, RouteMode{FreePlacement: true, NumQubits: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, batch, mapped)
	assert.Equal(t, []int{0, 1, 2, 3}, assign)
}

func TestGreedyRouterFreePlacement(t *testing.T) {
	batch := []InternalGate{
		{Name: "h", Qubits: []int{2}},
		{Name: "cnot", Qubits: []int{2, 0}},
	}
	mapped, assign, err := GreedyRouter{}.Route(batch, RouteMode{FreePlacement: true, NumQubits: 4}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	// First-use order is 2, 0; the untouched qubits fill the rest low to
	// high.
	assert.Equal(t, []int{1, 2, 0, 3}, assign)
	assert.Equal(t, []int{0}, mapped[0].Qubits)
	assert.Equal(t, []int{0, 1}, mapped[1].Qubits)

	seen := map[int]bool{}
	for _, p := range assign {
		assert.False(t, seen[p], "assignment must be a permutation")
		seen[p] = true
	}
}

func TestGreedyRouterLockedMode(t *testing.T) {
	batch := []InternalGate{{Name: "h", Qubits: []int{2}}}
	mapped, assign, err := GreedyRouter{}.Route(batch, RouteMode{NumQubits: 3}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, batch, mapped)
	assert.Equal(t, []int{0, 1, 2}, assign)
}

func TestBatchDAGLayers(t *testing.T) {
	batch := []InternalGate{
		{Name: "h", Qubits: []int{0}},
		{Name: "h", Qubits: []int{1}},
		{Name: "cnot", Qubits: []int{0, 1}},
		{Name: "x", Qubits: []int{2}},
		{Name: "cnot", Qubits: []int{1, 2}},
	}
	dag := NewBatchDAG(batch)

	require.Len(t, dag.Nodes, 5)
	assert.Empty(t, dag.Nodes[0].Deps)
	assert.Empty(t, dag.Nodes[1].Deps)
	assert.ElementsMatch(t, []int{0, 1}, dag.Nodes[2].Deps)
	assert.Empty(t, dag.Nodes[3].Deps)
	assert.ElementsMatch(t, []int{2, 3}, dag.Nodes[4].Deps)

	layers := dag.Layers()
	require.Len(t, layers, 3)
	assert.ElementsMatch(t, []int{0, 1, 3}, layers[0])
	assert.Equal(t, []int{2}, layers[1])
	assert.Equal(t, []int{4}, layers[2])

	assert.Equal(t, []int{0, 1, 2}, dag.FirstUse())
}
