package main

// QubitBiMap is a finite partial bijection between two qubit index spaces.
// Every mutation re-establishes the bijection invariant before returning:
// for every (a,b) in the forward map, reverse[b] == a and vice versa, and no
// index appears twice on either side.
type QubitBiMap struct {
	forward map[int]int
	reverse map[int]int
}

// NewQubitBiMap returns an empty bimap.
func NewQubitBiMap() *QubitBiMap {
	return &QubitBiMap{
		forward: make(map[int]int),
		reverse: make(map[int]int),
	}
}

// Forward looks up the b side for a. The second return is false when a is
// unmapped; 0 is a valid index on either side, so absence is never encoded
// as a value.
func (m *QubitBiMap) Forward(a int) (int, bool) {
	b, ok := m.forward[a]
	return b, ok
}

// Reverse looks up the a side for b.
func (m *QubitBiMap) Reverse(b int) (int, bool) {
	a, ok := m.reverse[b]
	return a, ok
}

// Map associates a with b, first removing any existing association of
// either index so the bijection is never violated, not even transiently
// observable afterwards.
func (m *QubitBiMap) Map(a, b int) {
	m.UnmapForward(a)
	m.UnmapReverse(b)
	m.forward[a] = b
	m.reverse[b] = a
}

// UnmapForward removes the association of a, if any.
func (m *QubitBiMap) UnmapForward(a int) {
	if b, ok := m.forward[a]; ok {
		delete(m.forward, a)
		delete(m.reverse, b)
	}
}

// UnmapReverse removes the association of b, if any.
func (m *QubitBiMap) UnmapReverse(b int) {
	if a, ok := m.reverse[b]; ok {
		delete(m.forward, a)
		delete(m.reverse, b)
	}
}

// Len returns the number of associations.
func (m *QubitBiMap) Len() int { return len(m.forward) }
