package main

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

type Complex = complex128

// Matrix is a square complex matrix whose dimension is a power of two,
// stored row-major.
type Matrix struct {
	dim  int
	data []Complex
}

// NewMatrix builds a matrix from row-major entries. The entry count must be
// 4^n for an n-qubit matrix, n >= 1.
func NewMatrix(entries []Complex) (Matrix, error) {
	nq := 0
	dim := 1
	rem := len(entries)
	for rem > 1 {
		if rem&3 != 0 {
			return Matrix{}, errors.Errorf("matrix has invalid size %d", len(entries))
		}
		rem >>= 2
		dim <<= 1
		nq++
	}
	if nq == 0 {
		return Matrix{}, errors.Errorf("matrix has invalid size %d", len(entries))
	}
	data := make([]Complex, len(entries))
	copy(data, entries)
	return Matrix{dim: dim, data: data}, nil
}

// mustMatrix is for the predefined gate constants, whose sizes are static.
func mustMatrix(entries []Complex) Matrix {
	m, err := NewMatrix(entries)
	if err != nil {
		panic(err)
	}
	return m
}

// Dim returns the matrix dimension (2^n for an n-qubit matrix).
func (m Matrix) Dim() int { return m.dim }

// NumQubits returns the number of qubits the matrix acts on.
func (m Matrix) NumQubits() int {
	nq := 0
	for d := m.dim; d > 1; d >>= 1 {
		nq++
	}
	return nq
}

// At returns the entry at the given row and column.
func (m Matrix) At(row, col int) Complex { return m.data[row*m.dim+col] }

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	data := make([]Complex, len(m.data))
	copy(data, m.data)
	return Matrix{dim: m.dim, data: data}
}

// NormalizeColumns scales each column to unit L2 norm, in place. Columns
// with zero norm are left alone; the unitarity check rejects them later.
func (m Matrix) NormalizeColumns() {
	for col := 0; col < m.dim; col++ {
		norm := 0.0
		for row := 0; row < m.dim; row++ {
			e := m.data[row*m.dim+col]
			norm += real(e)*real(e) + imag(e)*imag(e)
		}
		if norm == 0 {
			continue
		}
		scale := complex(1.0/math.Sqrt(norm), 0)
		for row := 0; row < m.dim; row++ {
			m.data[row*m.dim+col] *= scale
		}
	}
}

// IsApproxUnitary reports whether M†M is the identity within epsilon,
// entrywise.
func (m Matrix) IsApproxUnitary(epsilon float64) bool {
	for i := 0; i < m.dim; i++ {
		for j := 0; j < m.dim; j++ {
			var sum Complex
			for k := 0; k < m.dim; k++ {
				sum += cmplx.Conj(m.At(k, i)) * m.At(k, j)
			}
			want := Complex(0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(sum-want) > epsilon {
				return false
			}
		}
	}
	return true
}

// phasePivot returns the index of the first entry whose magnitude is within
// a hair of the maximum, so that two matrices equal up to global phase pick
// the same pivot.
func (m Matrix) phasePivot() int {
	maxMag := 0.0
	for _, e := range m.data {
		if mag := cmplx.Abs(e); mag > maxMag {
			maxMag = mag
		}
	}
	for i, e := range m.data {
		if cmplx.Abs(e) >= maxMag*(1-1e-9) {
			return i
		}
	}
	return 0
}

// phaseNormalized returns a copy rotated by a global phase such that the
// pivot entry is real and positive.
func (m Matrix) phaseNormalized() Matrix {
	out := m.Clone()
	pivot := out.data[out.phasePivot()]
	mag := cmplx.Abs(pivot)
	if mag == 0 {
		return out
	}
	rot := cmplx.Conj(pivot) / complex(mag, 0)
	for i := range out.data {
		out.data[i] *= rot
	}
	return out
}

// ApproxEqual reports whether the two matrices are entrywise equal within
// epsilon, ignoring global phase.
func (m Matrix) ApproxEqual(other Matrix, epsilon float64) bool {
	if m.dim != other.dim {
		return false
	}
	a := m.phaseNormalized()
	b := other.phaseNormalized()
	for i := range a.data {
		if cmplx.Abs(a.data[i]-b.data[i]) > epsilon {
			return false
		}
	}
	return true
}

// ControlExpand returns the matrix extended with the given number of control
// qubits: identity on the upper-left block, m on the lower-right.
func (m Matrix) ControlExpand(controls int) Matrix {
	if controls <= 0 {
		return m.Clone()
	}
	dim := m.dim << controls
	data := make([]Complex, dim*dim)
	base := dim - m.dim
	for i := 0; i < base; i++ {
		data[i*dim+i] = 1
	}
	for r := 0; r < m.dim; r++ {
		for c := 0; c < m.dim; c++ {
			data[(base+r)*dim+(base+c)] = m.At(r, c)
		}
	}
	return Matrix{dim: dim, data: data}
}

// ──────────────────────────── Predefined matrices ────────────────────────────

const invSqrt2 = 1.0 / math.Sqrt2

var (
	matIdentity = mustMatrix([]Complex{1, 0, 0, 1})
	matX        = mustMatrix([]Complex{0, 1, 1, 0})
	matY        = mustMatrix([]Complex{0, -1i, 1i, 0})
	matZ        = mustMatrix([]Complex{1, 0, 0, -1})
	matH        = mustMatrix([]Complex{invSqrt2, invSqrt2, invSqrt2, -invSqrt2})
	matS        = mustMatrix([]Complex{1, 0, 0, 1i})
	matSDag     = mustMatrix([]Complex{1, 0, 0, -1i})
	matT        = mustMatrix([]Complex{1, 0, 0, cmplx.Exp(complex(0, math.Pi/4))})
	matTDag     = mustMatrix([]Complex{1, 0, 0, cmplx.Exp(complex(0, -math.Pi/4))})
	matSwap     = mustMatrix([]Complex{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	})
	matSqSwap = mustMatrix([]Complex{
		1, 0, 0, 0,
		0, complex(0.5, 0.5), complex(0.5, -0.5), 0,
		0, complex(0.5, -0.5), complex(0.5, 0.5), 0,
		0, 0, 0, 1,
	})

	// Basis transformation matrices; columns are the +1/-1 eigenstates of
	// the corresponding Pauli operator.
	basisZ = matIdentity
	basisX = matH
	basisY = mustMatrix([]Complex{
		invSqrt2, invSqrt2,
		complex(0, invSqrt2), complex(0, -invSqrt2),
	})
)

func rxMatrix(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return mustMatrix([]Complex{c, js, js, c})
}

func ryMatrix(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return mustMatrix([]Complex{c, -s, s, c})
}

func rzMatrix(theta float64) Matrix {
	p := cmplx.Exp(complex(0, theta/2))
	return mustMatrix([]Complex{cmplx.Conj(p), 0, 0, p})
}

func phaseMatrix(lambda float64) Matrix {
	return mustMatrix([]Complex{1, 0, 0, cmplx.Exp(complex(0, lambda))})
}

// ──────────────────────────── Angle decoding ────────────────────────────

// decodeRotation recovers the angle of a parametrized single-qubit rotation
// from its matrix, ignoring global phase. The construct function rebuilds
// the candidate matrix so the decoded value is verified rather than trusted.
func decodeRotation(m Matrix, construct func(float64) Matrix, epsilon float64) (float64, bool) {
	if m.dim != 2 {
		return 0, false
	}
	var candidates []float64
	switch {
	case cmplx.Abs(m.At(0, 1)) < epsilon && cmplx.Abs(m.At(1, 0)) < epsilon:
		// Diagonal: RZ/phase family.
		theta := cmplx.Phase(m.At(1, 1)) - cmplx.Phase(m.At(0, 0))
		candidates = []float64{theta, theta + 2*math.Pi, theta - 2*math.Pi}
	default:
		theta := 2 * math.Atan2(cmplx.Abs(m.At(1, 0)), cmplx.Abs(m.At(0, 0)))
		candidates = []float64{theta, -theta, 2*math.Pi - theta, theta - 2*math.Pi}
	}
	for _, theta := range candidates {
		if construct(theta).ApproxEqual(m, epsilon) {
			return theta, true
		}
	}
	return 0, false
}
