package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingDownstream captures the gates it receives and serves canned
// measurement results.
type recordingDownstream struct {
	allocated int
	gates     []Gate
	results   map[int]Measurement
}

func (d *recordingDownstream) Allocate(numQubits int) error {
	d.allocated = numQubits
	return nil
}

func (d *recordingDownstream) Gate(g Gate) error {
	d.gates = append(d.gates, g)
	return nil
}

func (d *recordingDownstream) GetMeasurement(qubit int) (Measurement, error) {
	if m, ok := d.results[qubit]; ok {
		return m, nil
	}
	return Measurement{Qubit: qubit, Value: 0}, nil
}

// modeRecorder wraps a router and records the placement mode of every call.
type modeRecorder struct {
	inner Router
	modes []bool
}

func (r *modeRecorder) Route(batch []InternalGate, mode RouteMode, rng *rand.Rand) ([]InternalGate, []int, error) {
	r.modes = append(r.modes, mode.FreePlacement)
	return r.inner.Route(batch, mode, rng)
}

func newTestController(t *testing.T, numQubits int, router Router, down Downstream) *Controller {
	t.Helper()
	gm := newTestGateMap(t)
	return NewController(gm, numQubits, router, down, rand.New(rand.NewSource(1)), nil, zap.NewNop())
}

func TestAllocateCapacity(t *testing.T) {
	c := newTestController(t, 3, IdentityRouter{}, &recordingDownstream{})

	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))
	require.NoError(t, c.Allocate(3))

	err := c.Allocate(4)
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestFreeReusesLowestIndex(t *testing.T) {
	c := newTestController(t, 3, IdentityRouter{}, &recordingDownstream{})

	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))
	c.Free(1)
	require.NoError(t, c.Allocate(7))

	phys, err := c.translate(7)
	require.NoError(t, err)
	assert.Equal(t, 0, phys, "freed virtual index 0 is reused")

	// Freeing an unmapped reference is a no-op.
	c.Free(99)
}

func TestSubmitUnknownUpstream(t *testing.T) {
	c := newTestController(t, 3, IdentityRouter{}, &recordingDownstream{})

	_, err := c.Submit(Gate{Class: ClassUnitary, Targets: []int{1}, Matrix: matH})
	assert.ErrorIs(t, err, ErrMappingInconsistency)
	assert.Equal(t, 0, c.BatchLen(), "a failed submit leaves the batch untouched")
}

func TestSubmitBatches(t *testing.T) {
	c := newTestController(t, 3, IdentityRouter{}, &recordingDownstream{})
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))

	ms, err := c.Submit(Gate{Class: ClassUnitary, Targets: []int{1}, Matrix: matH})
	require.NoError(t, err)
	assert.Empty(t, ms)

	ms, err = c.Submit(Gate{Class: ClassUnitary, Controls: []int{1}, Targets: []int{2}, Matrix: matX})
	require.NoError(t, err)
	assert.Empty(t, ms)

	assert.Equal(t, 2, c.BatchLen())
	assert.Equal(t, 0, c.Generation(), "nothing flushed yet")

	batch := c.Batch()
	assert.Equal(t, "h", batch[0].Name)
	assert.Equal(t, []int{0}, batch[0].Qubits, "batch holds physical indices")
	assert.Equal(t, "cnot", batch[1].Name)
	assert.Equal(t, []int{0, 1}, batch[1].Qubits)
}

func TestMeasureFlushesAndTranslatesBack(t *testing.T) {
	down := &recordingDownstream{results: map[int]Measurement{
		2: {Qubit: 2, Value: 1},
	}}
	c := newTestController(t, 3, IdentityRouter{}, down)
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))

	_, err := c.Submit(Gate{Class: ClassUnitary, Targets: []int{1}, Matrix: matH})
	require.NoError(t, err)
	_, err = c.Submit(Gate{Class: ClassUnitary, Controls: []int{1}, Targets: []int{2}, Matrix: matX})
	require.NoError(t, err)

	ms, err := c.Submit(Gate{Class: ClassMeasure, Measures: []int{2}, Matrix: basisZ})
	require.NoError(t, err)

	// The measurement forced a flush of the whole batch.
	assert.Equal(t, 0, c.BatchLen())
	assert.Equal(t, 1, c.Generation())
	require.Len(t, down.gates, 3)

	// Upstream 1 sits on physical 0, downstream 1; upstream 2 on
	// physical 1, downstream 2.
	assert.Equal(t, []int{1}, down.gates[0].Targets)
	assert.Equal(t, []int{1}, down.gates[1].Controls)
	assert.Equal(t, []int{2}, down.gates[1].Targets)
	assert.Equal(t, []int{2}, down.gates[2].Measures)

	// The result comes back keyed by the upstream reference.
	require.Len(t, ms, 1)
	assert.Equal(t, 2, ms[0].Qubit)
	assert.Equal(t, 1, ms[0].Value)
}

func TestMeasureExpandsPerQubit(t *testing.T) {
	down := &recordingDownstream{}
	c := newTestController(t, 3, IdentityRouter{}, down)
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))

	ms, err := c.Submit(Gate{Class: ClassMeasure, Measures: []int{1, 2}, Matrix: basisZ})
	require.NoError(t, err)
	require.Len(t, ms, 2)

	// One single-qubit measurement per operand, in operand order.
	require.Len(t, down.gates, 2)
	assert.Equal(t, []int{1}, down.gates[0].Measures)
	assert.Equal(t, []int{2}, down.gates[1].Measures)
}

func TestGenerationPolicy(t *testing.T) {
	rec := &modeRecorder{inner: IdentityRouter{}}
	c := newTestController(t, 3, rec, &recordingDownstream{})
	require.NoError(t, c.Allocate(1))

	// First flush may place freely; every later one is locked.
	_, err := c.Submit(Gate{Class: ClassMeasure, Measures: []int{1}, Matrix: basisZ})
	require.NoError(t, err)
	_, err = c.Submit(Gate{Class: ClassMeasure, Measures: []int{1}, Matrix: basisZ})
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false}, rec.modes)
	assert.Equal(t, 2, c.Generation())
}

func TestFlushEmptyIsNoop(t *testing.T) {
	down := &recordingDownstream{}
	c := newTestController(t, 3, IdentityRouter{}, down)

	require.NoError(t, c.Flush())
	assert.Equal(t, 0, c.Generation())
	assert.Empty(t, down.gates)
}

func TestFlushAppliesAssignment(t *testing.T) {
	down := &recordingDownstream{}
	c := newTestController(t, 4, GreedyRouter{}, down)
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))
	require.NoError(t, c.Allocate(3))

	// Touch only upstream 3 (physical 2): the greedy first-use relabel
	// pulls it onto physical 0.
	_, err := c.Submit(Gate{Class: ClassUnitary, Targets: []int{3}, Matrix: matH})
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	phys, err := c.translate(3)
	require.NoError(t, err)
	assert.Equal(t, 0, phys)

	require.Len(t, down.gates, 1)
	assert.Equal(t, []int{1}, down.gates[0].Targets, "downstream references are 1-based")

	// The translator chain stays a bijection across the rewrite.
	seen := map[int]bool{}
	for up := 1; up <= 3; up++ {
		p, err := c.translate(up)
		require.NoError(t, err)
		assert.False(t, seen[p], "physical %d assigned twice", p)
		seen[p] = true
	}
}

func TestIdleQubitKeepsPlacementAcrossFlush(t *testing.T) {
	// A flush whose batch touches only some of the allocated qubits must
	// not strand the idle ones: their virtual-to-physical entries survive
	// even though the assignment never mentions them.
	down := &recordingDownstream{}
	c := newTestController(t, 3, IdentityRouter{}, down)
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))

	// Only upstream 1 (physical 0) is in the flushed batch.
	_, err := c.Submit(Gate{Class: ClassMeasure, Measures: []int{1}, Matrix: basisZ})
	require.NoError(t, err)
	require.Equal(t, 1, c.Generation())

	phys, err := c.translate(2)
	require.NoError(t, err)
	assert.Equal(t, 1, phys, "idle qubit stays where it was")

	_, err = c.Submit(Gate{Class: ClassUnitary, Targets: []int{2}, Matrix: matH})
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	require.Len(t, down.gates, 2)
	assert.Equal(t, []int{2}, down.gates[1].Targets)
}

func TestRotationSurvivesFlush(t *testing.T) {
	down := &recordingDownstream{}
	c := newTestController(t, 2, IdentityRouter{}, down)
	require.NoError(t, c.Allocate(1))

	_, err := c.Submit(Gate{Class: ClassUnitary, Targets: []int{1}, Matrix: rxMatrix(1.234)})
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	require.Len(t, down.gates, 1)
	assert.True(t, down.gates[0].Matrix.ApproxEqual(rxMatrix(1.234), 1e-6),
		"the re-constructed gate carries the decoded angle")
}

func TestMappingRows(t *testing.T) {
	c := newTestController(t, 3, IdentityRouter{}, &recordingDownstream{})
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))
	c.Free(1)

	rows := c.MappingRows()
	require.Len(t, rows, 4, "two upstream rows plus two uncovered physicals")

	assert.Equal(t, MappingRow{Upstream: 1, Virtual: Unmapped, Physical: Unmapped, Downstream: Unmapped}, rows[0])
	assert.Equal(t, MappingRow{Upstream: 2, Virtual: 1, Physical: 1, Downstream: 2}, rows[1])

	// Uncovered physicals follow, carrying their virtual mapping if any.
	assert.Equal(t, Unmapped, rows[2].Upstream)
	assert.Equal(t, 0, rows[2].Physical)

	table := mappingTableString(rows)
	assert.Contains(t, table, "upstream")
	assert.Contains(t, table, "-")
}

func TestTranslateAfterMeasureUsesNewPlacement(t *testing.T) {
	// A measurement after a greedy first flush must return results for
	// the moved physical index, shifted to the 1-based downstream space.
	down := &recordingDownstream{results: map[int]Measurement{
		1: {Qubit: 1, Value: 1},
	}}
	c := newTestController(t, 4, GreedyRouter{}, down)
	require.NoError(t, c.Allocate(1))
	require.NoError(t, c.Allocate(2))
	require.NoError(t, c.Allocate(3))

	// Upstream 3 starts on physical 2 and is the batch's only qubit, so
	// the free placement moves it to physical 0, downstream 1.
	ms, err := c.Submit(Gate{Class: ClassMeasure, Measures: []int{3}, Matrix: basisZ})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 3, ms[0].Qubit)
	assert.Equal(t, 1, ms[0].Value)
}
