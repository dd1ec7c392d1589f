package main

import (
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Unmapped marks a physical index the router left untouched in its
// assignment output.
const Unmapped = -1

// RouteMode tells the router what it may assume about the incoming layout.
type RouteMode struct {
	// FreePlacement permits the router to choose an initial placement.
	// When false the incoming physical layout is the identity — every
	// gate in the batch was built with physical indices under the
	// previous mapping — so initial placement is locked and re-placement
	// disabled.
	FreePlacement bool

	// NumQubits is the physical qubit count of the platform. The batch
	// may touch fewer; the assignment covers all of them.
	NumQubits int

	// Options carries key/value pairs forwarded verbatim from the
	// initialization command stream.
	Options map[string]string
}

// Router is the external circuit-mapping pass, treated as a pure function of
// (batch, mode): it returns the mapped gate sequence and the old-physical to
// new-physical assignment, ideally covering all mode.NumQubits physical
// indices. Unmapped entries and indices beyond the assignment keep their old
// index. The rng is injected by the boundary so a run is reproducible for a
// fixed seed.
type Router interface {
	Route(batch []InternalGate, mode RouteMode, rng *rand.Rand) ([]InternalGate, []int, error)
}

// Downstream is the consumer of mapped gates. Its qubit references are
// 1-based; the controller performs the shift at this boundary only.
type Downstream interface {
	Allocate(numQubits int) error
	Gate(g Gate) error
	GetMeasurement(qubit int) (Measurement, error)
}

// Controller owns the current batch and the index translator chain, and
// runs the hand-off protocol to the router. It is a two-state machine: the
// batch is either empty (idle) or accumulating; a flush always returns it to
// empty. Single callback chain, no locking; re-entrancy is excluded by the
// host protocol.
type Controller struct {
	gatemap   *GateMap
	router    Router
	down      Downstream
	rng       *rand.Rand
	options   map[string]string
	log       *zap.Logger
	numQubits int

	// up2virt maps upstream qubit references to virtual indices; entries
	// come and go with allocate/free. virt2phys maps virtual indices to
	// physical ones and is rewritten wholesale after every mapping pass.
	up2virt   *QubitBiMap
	virt2phys *QubitBiMap

	batch      []InternalGate
	generation int

	// upstreamHigh is the highest upstream reference seen, kept for the
	// mapping dump.
	upstreamHigh int
}

// NewController builds a controller for a platform with the given physical
// qubit count. The virtual-to-physical translator starts out as the
// identity over all physical qubits.
func NewController(gm *GateMap, numQubits int, router Router, down Downstream, rng *rand.Rand, options map[string]string, log *zap.Logger) *Controller {
	c := &Controller{
		gatemap:   gm,
		router:    router,
		down:      down,
		rng:       rng,
		options:   options,
		log:       log,
		numQubits: numQubits,
		up2virt:   NewQubitBiMap(),
		virt2phys: NewQubitBiMap(),
	}
	for q := 0; q < numQubits; q++ {
		c.virt2phys.Map(q, q)
	}
	return c
}

// Allocate claims the lowest free virtual index for an upstream qubit
// reference. Freed indices are reused. It fails with ErrCapacity when every
// virtual index is live, which means the producer needs more concurrently
// live qubits than the platform has physical ones; that is fatal and never
// retried.
func (c *Controller) Allocate(upstream int) error {
	for virt := 0; virt < c.numQubits; virt++ {
		if _, taken := c.up2virt.Reverse(virt); !taken {
			c.up2virt.Map(upstream, virt)
			if upstream > c.upstreamHigh {
				c.upstreamHigh = upstream
			}
			c.log.Debug("placed upstream qubit",
				zap.Int("upstream", upstream), zap.Int("virtual", virt))
			return nil
		}
	}
	return errors.Wrapf(ErrCapacity,
		"upstream qubit %d: all %d virtual qubits are live", upstream, c.numQubits)
}

// Free releases the virtual index of an upstream qubit. Freeing an unmapped
// reference is a no-op.
func (c *Controller) Free(upstream int) {
	c.up2virt.UnmapForward(upstream)
	c.log.Debug("freed upstream qubit", zap.Int("upstream", upstream))
}

// translate runs one upstream reference through the chain to its current
// physical index.
func (c *Controller) translate(upstream int) (int, error) {
	virt, ok := c.up2virt.Forward(upstream)
	if !ok {
		return 0, errors.Wrapf(ErrMappingInconsistency,
			"upstream qubit %d has no virtual mapping", upstream)
	}
	phys, ok := c.virt2phys.Forward(virt)
	if !ok {
		return 0, errors.Wrapf(ErrMappingInconsistency,
			"virtual qubit %d has no physical mapping", virt)
	}
	return phys, nil
}

// Submit detects an upstream gate, translates its operands to physical
// indices, and appends it to the batch. A gate carrying a measurement
// forces a synchronous flush; the measurement results are translated back
// to the upstream index space and returned before control goes back to the
// producer, because the producer's next gate may depend on them.
func (c *Controller) Submit(g Gate) ([]Measurement, error) {
	ig, err := c.gatemap.Detect(g)
	if err != nil {
		return nil, err
	}
	c.log.Debug("receiving gate", zap.String("gate", ig.String()),
		zap.String("space", "upstream"))

	// Translate every operand before touching the batch, so a failure
	// leaves no partial mutation behind.
	phys := make([]int, len(ig.Qubits))
	for i, q := range ig.Qubits {
		if phys[i], err = c.translate(q); err != nil {
			return nil, err
		}
	}

	if ig.PerQubit {
		// One single-qubit internal gate per operand, operand order.
		for _, p := range phys {
			c.batch = append(c.batch, InternalGate{Name: ig.Name, Qubits: []int{p}})
		}
	} else {
		c.batch = append(c.batch, InternalGate{Name: ig.Name, Qubits: phys, Angle: ig.Angle})
	}

	if !g.HasMeasures() {
		return nil, nil
	}

	// Holding a measurement back can deadlock: the producer may need the
	// outcome to decide its next gate while the consumer waits for more
	// gates. Flush now and collect the results synchronously.
	if err := c.Flush(); err != nil {
		return nil, err
	}
	results := make([]Measurement, 0, len(g.Measures))
	for _, upstream := range g.Measures {
		p, err := c.translate(upstream)
		if err != nil {
			return nil, err
		}
		m, err := c.down.GetMeasurement(p + 1)
		if err != nil {
			return nil, err
		}
		m.Qubit = upstream
		results = append(results, m)
	}
	return results, nil
}

// Flush runs the router over the current batch, reconciles the
// virtual-to-physical translator with the router's new assignment, and
// re-emits the mapped gates downstream in original order with the 1-based
// downstream shift. A flush of an empty batch is a no-op. Flushing blocks
// until every resulting gate has been handed to the downstream sink; there
// is no cancellation and no retry.
func (c *Controller) Flush() error {
	if len(c.batch) == 0 {
		return nil
	}

	mode := RouteMode{FreePlacement: c.generation == 0, NumQubits: c.numQubits, Options: c.options}
	c.log.Debug("flushing batch",
		zap.Int("gates", len(c.batch)),
		zap.Int("generation", c.generation),
		zap.Bool("freePlacement", mode.FreePlacement))
	c.logMapping("mapping before route")

	mapped, assign, err := c.router.Route(c.batch, mode, c.rng)
	if err != nil {
		return err
	}

	// Compose the old virtual-to-physical map with the router's
	// assignment: V -> P and P -> P' become V -> P'. A physical index the
	// assignment does not cover, or marks Unmapped, keeps its old index,
	// so qubits the batch never touched stay placed across the flush.
	newV2P := NewQubitBiMap()
	for oldPhys := 0; oldPhys < c.numQubits; oldPhys++ {
		newPhys := oldPhys
		if oldPhys < len(assign) && assign[oldPhys] != Unmapped {
			newPhys = assign[oldPhys]
		}
		if virt, ok := c.virt2phys.Reverse(oldPhys); ok {
			newV2P.Map(virt, newPhys)
		}
	}
	c.virt2phys = newV2P
	c.logMapping("mapping after route")

	for _, ig := range mapped {
		shifted := InternalGate{
			Name:   ig.Name,
			Qubits: make([]int, len(ig.Qubits)),
			Angle:  ig.Angle,
		}
		for i, p := range ig.Qubits {
			shifted.Qubits[i] = p + 1
		}
		wire, err := c.gatemap.Construct(shifted)
		if err != nil {
			return err
		}
		c.log.Debug("sending gate", zap.String("gate", shifted.String()),
			zap.String("space", "downstream"))
		if err := c.down.Gate(wire); err != nil {
			return err
		}
	}

	c.batch = nil
	c.generation++
	return nil
}

// Generation returns the number of completed flushes.
func (c *Controller) Generation() int { return c.generation }

// BatchLen returns the number of gates pending in the batch.
func (c *Controller) BatchLen() int { return len(c.batch) }

// Batch returns a copy of the pending batch, for inspection.
func (c *Controller) Batch() []InternalGate {
	return append([]InternalGate(nil), c.batch...)
}

// MappingRow is one line of the translator-chain dump: the full journey of
// a qubit across the four index spaces. Absent stages are Unmapped.
type MappingRow struct {
	Upstream   int
	Virtual    int
	Physical   int
	Downstream int
}

// MappingRows walks every upstream reference seen so far plus any physical
// qubit not covered by one, mirroring the translator chain for inspection.
func (c *Controller) MappingRows() []MappingRow {
	var rows []MappingRow
	physSeen := make(map[int]bool)
	for up := 1; up <= c.upstreamHigh; up++ {
		row := MappingRow{Upstream: up, Virtual: Unmapped, Physical: Unmapped, Downstream: Unmapped}
		if virt, ok := c.up2virt.Forward(up); ok {
			row.Virtual = virt
			if phys, ok := c.virt2phys.Forward(virt); ok {
				row.Physical = phys
				row.Downstream = phys + 1
				physSeen[phys] = true
			}
		}
		rows = append(rows, row)
	}
	for phys := 0; phys < c.numQubits; phys++ {
		if physSeen[phys] {
			continue
		}
		row := MappingRow{Upstream: Unmapped, Virtual: Unmapped, Physical: phys, Downstream: phys + 1}
		if virt, ok := c.virt2phys.Reverse(phys); ok {
			row.Virtual = virt
		}
		rows = append(rows, row)
	}
	return rows
}

func (c *Controller) logMapping(msg string) {
	if !c.log.Core().Enabled(zap.DebugLevel) {
		return
	}
	c.log.Debug(msg, zap.String("table", "\n"+mappingTableString(c.MappingRows())))
}
