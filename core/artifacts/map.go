package artifacts

import "iter"

// Map is an artifact keyed map that remembers insertion order.
// It is not safe for concurrent writes.
type Map[V any] struct {
	keys   []Artifact
	values map[Artifact]V
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{values: make(map[Artifact]V)}
}

// Set stores v under a and reports whether a was new.
func (m *Map[V]) Set(a Artifact, v V) bool {
	if m.values == nil {
		m.values = make(map[Artifact]V)
	}
	_, exists := m.values[a]
	if !exists {
		m.keys = append(m.keys, a)
	}
	m.values[a] = v
	return !exists
}

func (m *Map[V]) Get(a Artifact) (V, bool) {
	v, ok := m.values[a]
	return v, ok
}

func (m *Map[V]) Has(a Artifact) bool {
	_, ok := m.values[a]
	return ok
}

func (m *Map[V]) Len() int { return len(m.keys) }

func (m *Map[V]) Keys() []Artifact {
	out := make([]Artifact, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map[V]) All() iter.Seq2[Artifact, V] {
	return func(yield func(Artifact, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Set is an ordered set of artifacts.
type Set struct {
	m Map[struct{}]
}

func NewSet(items ...Artifact) *Set {
	s := &Set{}
	for _, a := range items {
		s.Add(a)
	}
	return s
}

// Add reports whether a was not yet present.
func (s *Set) Add(a Artifact) bool { return s.m.Set(a, struct{}{}) }

func (s *Set) Has(a Artifact) bool { return s.m.Has(a) }

func (s *Set) Len() int { return s.m.Len() }

func (s *Set) Items() []Artifact { return s.m.Keys() }
