package main

import (
	"math"
	"math/cmplx"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// GateKind is the closed enumeration of gate kinds the declarative table can
// name. Matching on it is exhaustive; there is no string dispatch past the
// loader.
type GateKind int

const (
	KindIdentity GateKind = iota
	KindX
	KindY
	KindZ
	KindH
	KindS
	KindSDag
	KindT
	KindTDag
	KindRX90
	KindRXm90
	KindRX180
	KindRX
	KindRY90
	KindRYm90
	KindRY180
	KindRY
	KindRZ90
	KindRZm90
	KindRZ180
	KindRZ
	KindPhase
	KindSwap
	KindSqSwap
	KindUnitary
	KindMeasure
	KindPrep
)

// kindKeywords maps the table's kind keywords (lowercased) to kinds.
var kindKeywords = map[string]GateKind{
	"i":       KindIdentity,
	"x":       KindX,
	"y":       KindY,
	"z":       KindZ,
	"h":       KindH,
	"s":       KindS,
	"s_dag":   KindSDag,
	"t":       KindT,
	"t_dag":   KindTDag,
	"rx_90":   KindRX90,
	"rx_m90":  KindRXm90,
	"rx_180":  KindRX180,
	"rx":      KindRX,
	"ry_90":   KindRY90,
	"ry_m90":  KindRYm90,
	"ry_180":  KindRY180,
	"ry":      KindRY,
	"rz_90":   KindRZ90,
	"rz_m90":  KindRZm90,
	"rz_180":  KindRZ180,
	"rz":      KindRZ,
	"phase":   KindPhase,
	"swap":    KindSwap,
	"sqswap":  KindSqSwap,
	"unitary": KindUnitary,
	"measure": KindMeasure,
	"prep":    KindPrep,
}

// angleConstructor returns the matrix builder for parametrized kinds, or nil
// for fixed ones.
func angleConstructor(kind GateKind) func(float64) Matrix {
	switch kind {
	case KindRX:
		return rxMatrix
	case KindRY:
		return ryMatrix
	case KindRZ:
		return rzMatrix
	case KindPhase:
		return phaseMatrix
	default:
		return nil
	}
}

// fixedKindMatrix returns the unitary for the fixed (non-parametrized,
// non-measure/prep) kinds.
func fixedKindMatrix(kind GateKind) (Matrix, bool) {
	switch kind {
	case KindIdentity:
		return matIdentity, true
	case KindX:
		return matX, true
	case KindY:
		return matY, true
	case KindZ:
		return matZ, true
	case KindH:
		return matH, true
	case KindS:
		return matS, true
	case KindSDag:
		return matSDag, true
	case KindT:
		return matT, true
	case KindTDag:
		return matTDag, true
	case KindRX90:
		return rxMatrix(math.Pi / 2), true
	case KindRXm90:
		return rxMatrix(-math.Pi / 2), true
	case KindRX180:
		return rxMatrix(math.Pi), true
	case KindRY90:
		return ryMatrix(math.Pi / 2), true
	case KindRYm90:
		return ryMatrix(-math.Pi / 2), true
	case KindRY180:
		return ryMatrix(math.Pi), true
	case KindRZ90:
		return rzMatrix(math.Pi / 2), true
	case KindRZm90:
		return rzMatrix(-math.Pi / 2), true
	case KindRZ180:
		return rzMatrix(math.Pi), true
	case KindSwap:
		return matSwap, true
	case KindSqSwap:
		return matSqSwap, true
	default:
		return Matrix{}, false
	}
}

// GateRecord is one validated entry of the translation table.
type GateRecord struct {
	// Name preserves the source casing for re-emission; lookups use the
	// lowercased form.
	Name     string
	Kind     GateKind
	Controls int
	HasAngle bool

	// Matrix is the base unitary for unitary kinds and the measurement or
	// preparation basis for measure/prep kinds.
	Matrix Matrix
}

// entrySpec is a desugared, still unvalidated table entry.
type entrySpec struct {
	typ        string
	kind       GateKind
	kindKnown  bool
	controlled int
	matField   gjson.Result
	basisField gjson.Result
}

// GateMap owns the validated translation table and offers the two directions
// of the translation: Detect (wire gate to internal description) and
// Construct (internal description to wire gate).
type GateMap struct {
	records []*GateRecord
	byName  map[string]*GateRecord
	epsilon float64
	log     *zap.Logger
}

type rawEntry struct {
	name string
	spec entrySpec
}

// LoadGateMap builds the translation table from a parsed JSON document
// mapping names to gate descriptions. Parametrized-rotation records are
// registered strictly after all fixed records, regardless of declaration
// order, so that an exact fixed-angle record is always preferred over a
// parametrized fallback during detection.
func LoadGateMap(doc gjson.Result, epsilon float64, log *zap.Logger) (*GateMap, error) {
	if !doc.IsObject() {
		return nil, errors.Wrap(ErrGateTable, "gate table must be a JSON object")
	}
	gm := &GateMap{
		byName:  make(map[string]*GateRecord),
		epsilon: epsilon,
		log:     log,
	}

	var fixed, parametrized []rawEntry
	var loopErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		spec, err := desugarEntry(value)
		if err != nil {
			loopErr = errors.Wrapf(err, "gate table entry %q", name)
			return false
		}
		entry := rawEntry{name: name, spec: spec}
		if spec.kindKnown && angleConstructor(spec.kind) != nil {
			parametrized = append(parametrized, entry)
		} else {
			fixed = append(fixed, entry)
		}
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}

	for _, e := range append(fixed, parametrized...) {
		if err := gm.addRecord(e.name, e.spec); err != nil {
			return nil, errors.Wrapf(err, "gate table entry %q", e.name)
		}
	}
	return gm, nil
}

// desugarEntry rewrites the short string form ("c-x", each marker increments
// the control count) into the structured form. Structured entries pass
// through field by field.
func desugarEntry(value gjson.Result) (entrySpec, error) {
	var spec entrySpec
	switch {
	case value.Type == gjson.String:
		typ := strings.ToLower(value.String())
		for strings.HasPrefix(typ, "c-") {
			typ = typ[2:]
			spec.controlled++
		}
		spec.typ = typ
	case value.IsObject():
		typField := value.Get("type")
		if !typField.Exists() {
			return entrySpec{}, errors.Wrap(ErrGateTable, "missing \"type\"")
		}
		spec.typ = strings.ToLower(typField.String())
		spec.controlled = int(value.Get("controlled").Int())
		spec.matField = value.Get("matrix")
		spec.basisField = value.Get("basis")
	default:
		return entrySpec{}, errors.Wrap(ErrGateTable, "entry must be a string or an object")
	}
	spec.kind, spec.kindKnown = kindKeywords[spec.typ]
	return spec, nil
}

// addRecord validates and registers one desugared entry.
func (gm *GateMap) addRecord(name string, spec entrySpec) error {
	key := strings.ToLower(name)
	if _, dup := gm.byName[key]; dup {
		return errors.Wrapf(ErrGateTable, "duplicate gate name %q", name)
	}
	if !spec.kindKnown {
		return errors.Wrapf(ErrGateTable, "unknown gate type %q", spec.typ)
	}

	matrix, err := gm.resolveMatrix(spec)
	if err != nil {
		return err
	}

	rec := &GateRecord{Name: name, Kind: spec.kind}

	switch spec.kind {
	case KindMeasure, KindPrep:
		// Measurement and preparation carry a 2x2 basis, never controls.
		if spec.controlled != 0 {
			return errors.Wrap(ErrGateTable, "measurement/prep cannot be controlled")
		}
		if matrix.Dim() != 2 {
			return errors.Wrap(ErrGateTable, "measurement/prep basis must be 2x2")
		}
		rec.Matrix = matrix
		gm.register(key, rec)
		gm.log.Debug("registered basis record", zap.String("name", name), zap.String("type", spec.typ))
		return nil
	}

	if spec.controlled < 0 {
		return errors.Wrap(ErrGateTable, "\"controlled\" must be non-negative")
	}
	rec.Controls = spec.controlled

	switch {
	case spec.kind == KindUnitary:
		rec.Matrix = matrix
	default:
		if fixedMat, isFixed := fixedKindMatrix(spec.kind); isFixed {
			rec.Matrix = fixedMat
		} else {
			// Parametrized rotation; the real matrix is built per gate
			// from the decoded angle. A zero-angle instance keeps the
			// dimension bookkeeping uniform.
			rec.HasAngle = true
			rec.Matrix = angleConstructor(spec.kind)(0)
		}
	}

	gm.register(key, rec)
	gm.log.Debug("registered unitary record",
		zap.String("name", name),
		zap.Int("controls", rec.Controls),
		zap.Bool("angle", rec.HasAngle))
	return nil
}

func (gm *GateMap) register(key string, rec *GateRecord) {
	gm.records = append(gm.records, rec)
	gm.byName[key] = rec
}

// resolveMatrix resolves the matrix of an entry: explicit "matrix" field,
// then named Pauli "basis", then the Z default. Explicit matrices are
// column-normalized and unitarity-checked at the configured tolerance.
func (gm *GateMap) resolveMatrix(spec entrySpec) (Matrix, error) {
	switch {
	case spec.matField.Exists() && spec.basisField.Exists():
		return Matrix{}, errors.Wrap(ErrGateTable, "\"matrix\" and \"basis\" are mutually exclusive")

	case spec.matField.Exists():
		if !spec.matField.IsArray() {
			return Matrix{}, errors.Wrap(ErrGateTable, "\"matrix\" must be an array")
		}
		var entries []Complex
		var bad error
		spec.matField.ForEach(func(_, el gjson.Result) bool {
			parts := el.Array()
			if !el.IsArray() || len(parts) != 2 {
				bad = errors.Wrap(ErrGateTable, "\"matrix\" elements must be [re, im] pairs")
				return false
			}
			entries = append(entries, complex(parts[0].Float(), parts[1].Float()))
			return true
		})
		if bad != nil {
			return Matrix{}, bad
		}
		m, err := NewMatrix(entries)
		if err != nil {
			return Matrix{}, errors.Wrap(ErrGateTable, err.Error())
		}
		m.NormalizeColumns()
		if !m.IsApproxUnitary(gm.epsilon) {
			return Matrix{}, errors.Wrap(ErrGateTable, "\"matrix\" is not unitary")
		}
		return m, nil

	case spec.basisField.Exists():
		switch strings.ToLower(spec.basisField.String()) {
		case "x":
			return basisX, nil
		case "y":
			return basisY, nil
		case "z":
			return basisZ, nil
		default:
			return Matrix{}, errors.Wrapf(ErrGateTable, "unknown basis %q", spec.basisField.String())
		}

	default:
		return basisZ, nil
	}
}

// ──────────────────────────── Detection ────────────────────────────

// Detect matches a wire gate against the table and returns its internal
// description: the table name, the operands in the wire gate's own index
// space, and the decoded angle for parametrized records. The qubit order of
// the result is controls first, then targets. Measure and prep matches are
// marked PerQubit.
func (gm *GateMap) Detect(g Gate) (InternalGate, error) {
	for _, rec := range gm.records {
		if ig, ok := gm.detectAgainst(rec, g); ok {
			return ig, nil
		}
	}
	return InternalGate{}, errors.Wrapf(ErrUnknownGate,
		"no table match for %s gate on %d qubit(s)", g.Class, len(g.Qubits())+len(g.Measures))
}

func (gm *GateMap) detectAgainst(rec *GateRecord, g Gate) (InternalGate, bool) {
	switch rec.Kind {
	case KindMeasure:
		if g.Class != ClassMeasure || len(g.Measures) == 0 {
			return InternalGate{}, false
		}
		if !rec.Matrix.ApproxEqual(g.Matrix, gm.epsilon) {
			return InternalGate{}, false
		}
		return InternalGate{Name: rec.Name, Qubits: append([]int(nil), g.Measures...), PerQubit: true}, true

	case KindPrep:
		if g.Class != ClassPrep || len(g.Targets) == 0 {
			return InternalGate{}, false
		}
		if !rec.Matrix.ApproxEqual(g.Matrix, gm.epsilon) {
			return InternalGate{}, false
		}
		return InternalGate{Name: rec.Name, Qubits: append([]int(nil), g.Targets...), PerQubit: true}, true
	}

	if g.Class != ClassUnitary {
		return InternalGate{}, false
	}

	// Explicit controls: operand counts and matrix dimension must line up
	// with the record's base matrix.
	if len(g.Controls) == rec.Controls &&
		g.Matrix.Dim() == rec.Matrix.Dim() &&
		len(g.Targets) == rec.Matrix.NumQubits() {
		if angle, ok := gm.matchBase(rec, g.Matrix); ok {
			return InternalGate{Name: rec.Name, Qubits: g.Qubits(), Angle: angle}, true
		}
	}

	// Implicit controls: the producer sent the full control-extended
	// matrix with every operand as a target. The leading operands become
	// the controls of the internal gate.
	if rec.Controls > 0 && len(g.Controls) == 0 &&
		g.Matrix.Dim() == rec.Matrix.Dim()<<rec.Controls &&
		len(g.Targets) == rec.Controls+rec.Matrix.NumQubits() {
		base, ok := extractControlledBase(g.Matrix, rec.Controls, gm.epsilon)
		if !ok {
			return InternalGate{}, false
		}
		if angle, ok := gm.matchBase(rec, base); ok {
			return InternalGate{Name: rec.Name, Qubits: append([]int(nil), g.Targets...), Angle: angle}, true
		}
	}

	return InternalGate{}, false
}

// matchBase compares a candidate base matrix against the record, decoding
// the angle for parametrized records.
func (gm *GateMap) matchBase(rec *GateRecord, m Matrix) (float64, bool) {
	if rec.HasAngle {
		return decodeRotation(m, angleConstructor(rec.Kind), gm.epsilon)
	}
	if rec.Matrix.ApproxEqual(m, gm.epsilon) {
		return 0, true
	}
	return 0, false
}

// extractControlledBase peels the control extension off a matrix: after
// global-phase normalization the upper-left block must be the identity and
// the off-blocks zero; the lower-right block is returned.
func extractControlledBase(m Matrix, controls int, epsilon float64) (Matrix, bool) {
	norm := m.phaseNormalized()
	dim := norm.Dim()
	baseDim := dim >> controls
	offset := dim - baseDim
	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			if r >= offset && c >= offset {
				continue
			}
			want := Complex(0)
			if r == c {
				want = 1
			}
			if cmplx.Abs(norm.At(r, c)-want) > epsilon {
				return Matrix{}, false
			}
		}
	}
	entries := make([]Complex, baseDim*baseDim)
	for r := 0; r < baseDim; r++ {
		for c := 0; c < baseDim; c++ {
			entries[r*baseDim+c] = norm.At(offset+r, offset+c)
		}
	}
	base, err := NewMatrix(entries)
	if err != nil {
		return Matrix{}, false
	}
	return base, true
}

// ──────────────────────────── Construction ────────────────────────────

// Construct is the inverse of Detect: it rebuilds the wire gate for an
// internal description, re-applying the angle for parametrized records and
// splitting the leading operands back into controls.
func (gm *GateMap) Construct(ig InternalGate) (Gate, error) {
	rec, ok := gm.byName[strings.ToLower(ig.Name)]
	if !ok {
		return Gate{}, errors.Wrapf(ErrUnknownGate, "no table entry named %q", ig.Name)
	}

	switch rec.Kind {
	case KindMeasure:
		return Gate{
			Class:    ClassMeasure,
			Measures: append([]int(nil), ig.Qubits...),
			Matrix:   rec.Matrix,
		}, nil
	case KindPrep:
		return Gate{
			Class:   ClassPrep,
			Targets: append([]int(nil), ig.Qubits...),
			Matrix:  rec.Matrix,
		}, nil
	}

	base := rec.Matrix
	if rec.HasAngle {
		base = angleConstructor(rec.Kind)(ig.Angle)
	}
	if len(ig.Qubits) != rec.Controls+base.NumQubits() {
		return Gate{}, errors.Wrapf(ErrUnknownGate,
			"gate %q wants %d operand(s), got %d", ig.Name, rec.Controls+base.NumQubits(), len(ig.Qubits))
	}
	return Gate{
		Class:    ClassUnitary,
		Controls: append([]int(nil), ig.Qubits[:rec.Controls]...),
		Targets:  append([]int(nil), ig.Qubits[rec.Controls:]...),
		Matrix:   base,
	}, nil
}

// HasAngle reports whether the named record is parametrized.
func (gm *GateMap) HasAngle(name string) bool {
	rec, ok := gm.byName[strings.ToLower(name)]
	return ok && rec.HasAngle
}

// Len returns the number of registered records.
func (gm *GateMap) Len() int { return len(gm.records) }
