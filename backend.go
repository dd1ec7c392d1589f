package main

import (
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SimBackend is a dense state-vector simulator acting as the downstream
// consumer of mapped gates. Unlike the wire producer it never looks at gate
// names: everything it executes arrives as a matrix. Measurement sampling
// draws from the injected rng, so a run is reproducible for a fixed seed.
type SimBackend struct {
	log       *zap.Logger
	rng       *rand.Rand
	numQubits int
	amps      []Complex

	// results holds the latest measurement per 1-based downstream ref.
	results map[int]Measurement

	// History records every gate received, newest last, for inspection.
	History []Gate
}

// NewSimBackend builds an unallocated backend.
func NewSimBackend(rng *rand.Rand, log *zap.Logger) *SimBackend {
	return &SimBackend{
		log:     log,
		rng:     rng,
		results: make(map[int]Measurement),
	}
}

// Allocate sizes the register and resets it to |0...0>.
func (b *SimBackend) Allocate(numQubits int) error {
	if numQubits <= 0 {
		return errors.Errorf("backend: invalid qubit count %d", numQubits)
	}
	b.numQubits = numQubits
	b.amps = make([]Complex, 1<<numQubits)
	b.amps[0] = 1
	b.History = nil
	b.log.Debug("backend allocated", zap.Int("qubits", numQubits))
	return nil
}

// Gate executes one downstream gate. References are 1-based.
func (b *SimBackend) Gate(g Gate) error {
	b.History = append(b.History, g)
	switch g.Class {
	case ClassUnitary:
		qubits, err := b.internalRefs(g.Qubits())
		if err != nil {
			return err
		}
		b.applyMatrix(g.Matrix.ControlExpand(len(g.Controls)), qubits)
		return nil

	case ClassMeasure:
		for _, ref := range g.Measures {
			qs, err := b.internalRefs([]int{ref})
			if err != nil {
				return err
			}
			value := b.measureInBasis(qs[0], g.Matrix)
			b.results[ref] = Measurement{Qubit: ref, Value: value}
		}
		return nil

	case ClassPrep:
		for _, ref := range g.Targets {
			qs, err := b.internalRefs([]int{ref})
			if err != nil {
				return err
			}
			b.prepInBasis(qs[0], g.Matrix)
		}
		return nil

	default:
		return errors.Errorf("backend: unknown gate class %d", int(g.Class))
	}
}

// GetMeasurement returns the latest measurement of a 1-based downstream
// qubit reference.
func (b *SimBackend) GetMeasurement(qubit int) (Measurement, error) {
	m, ok := b.results[qubit]
	if !ok {
		return Measurement{}, errors.Errorf("backend: no measurement recorded for downstream qubit %d", qubit)
	}
	return m, nil
}

// internalRefs converts 1-based downstream references to 0-based state
// indices, range-checked.
func (b *SimBackend) internalRefs(refs []int) ([]int, error) {
	out := make([]int, len(refs))
	for i, ref := range refs {
		if ref < 1 || ref > b.numQubits {
			return nil, errors.Errorf("backend: downstream qubit %d out of range 1..%d", ref, b.numQubits)
		}
		out[i] = ref - 1
	}
	return out, nil
}

// applyMatrix applies a k-qubit matrix to the given state qubits. The first
// qubit of the list is the most significant bit of the matrix index, which
// matches the control-extension layout (controls in the high bits).
func (b *SimBackend) applyMatrix(m Matrix, qubits []int) {
	k := len(qubits)
	dim := 1 << k
	groupMask := 0
	for _, q := range qubits {
		groupMask |= 1 << q
	}

	idx := make([]int, dim)
	in := make([]Complex, dim)
	for base := range b.amps {
		if base&groupMask != 0 {
			continue
		}
		for j := 0; j < dim; j++ {
			t := base
			for pos, q := range qubits {
				if j&(1<<(k-1-pos)) != 0 {
					t |= 1 << q
				}
			}
			idx[j] = t
			in[j] = b.amps[t]
		}
		for r := 0; r < dim; r++ {
			var sum Complex
			for c := 0; c < dim; c++ {
				sum += m.At(r, c) * in[c]
			}
			b.amps[idx[r]] = sum
		}
	}
}

// measureInBasis rotates the qubit into the measurement basis, samples and
// collapses it along Z, and rotates back.
func (b *SimBackend) measureInBasis(q int, basis Matrix) int {
	b.applyMatrix(conjTranspose(basis), []int{q})
	value := b.collapse(q)
	b.applyMatrix(basis, []int{q})
	return value
}

// prepInBasis forces the qubit to the 0 state of the given basis: rotate
// into the basis, collapse, flip if needed, rotate back.
func (b *SimBackend) prepInBasis(q int, basis Matrix) {
	b.applyMatrix(conjTranspose(basis), []int{q})
	if b.collapse(q) == 1 {
		b.applyMatrix(matX, []int{q})
	}
	b.applyMatrix(basis, []int{q})
}

// collapse samples the qubit along Z and projects the state onto the
// outcome, renormalizing.
func (b *SimBackend) collapse(q int) int {
	bit := 1 << q
	prob1 := 0.0
	for i, a := range b.amps {
		if i&bit != 0 {
			prob1 += real(a)*real(a) + imag(a)*imag(a)
		}
	}

	value := 0
	if b.rng.Float64() < prob1 {
		value = 1
	}

	keep := bit
	prob := prob1
	if value == 0 {
		keep = 0
		prob = 1 - prob1
	}
	norm := 1.0
	if prob > 0 {
		norm = math.Sqrt(prob)
	}
	for i := range b.amps {
		if i&bit == keep {
			b.amps[i] /= complex(norm, 0)
		} else {
			b.amps[i] = 0
		}
	}
	return value
}

// conjTranspose returns the conjugate transpose.
func conjTranspose(m Matrix) Matrix {
	out := m.Clone()
	dim := m.Dim()
	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			out.data[r*dim+c] = cmplx.Conj(m.At(c, r))
		}
	}
	return out
}

// Probabilities returns the per-qubit probability of measuring 1, for the
// inspector's state panel.
func (b *SimBackend) Probabilities() []float64 {
	probs := make([]float64, b.numQubits)
	for i, a := range b.amps {
		p := real(a)*real(a) + imag(a)*imag(a)
		for q := 0; q < b.numQubits; q++ {
			if i&(1<<q) != 0 {
				probs[q] += p
			}
		}
	}
	return probs
}
