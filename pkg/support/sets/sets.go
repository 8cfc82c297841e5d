// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implement a set type as a `map[T]struct{}` but with better ergonomics, and
// a Multiset that counts repeated insertions while remembering the order of first insertion.
package sets

// Set implements a Set for the key type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// Has returns true if Set s has the given key.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Multiset counts how many times each key was inserted.
//
// Keys are enumerated in the order they were first inserted, so iteration over a Multiset is
// deterministic, unlike iterating over a Go map.
type Multiset[T comparable] struct {
	counts map[T]int
	order  []T
}

// MakeMultiset returns an empty Multiset.
func MakeMultiset[T comparable]() *Multiset[T] {
	return &Multiset[T]{counts: make(map[T]int)}
}

// Insert adds one occurrence of each of the keys.
func (m *Multiset[T]) Insert(keys ...T) {
	for _, key := range keys {
		if _, found := m.counts[key]; !found {
			m.order = append(m.order, key)
		}
		m.counts[key]++
	}
}

// Count returns the number of occurrences of key, 0 if it was never inserted.
func (m *Multiset[T]) Count(key T) int {
	return m.counts[key]
}

// Keys returns the distinct keys, in order of first insertion.
// The returned slice is a copy and can be modified.
func (m *Multiset[T]) Keys() []T {
	keys := make([]T, len(m.order))
	copy(keys, m.order)
	return keys
}

// HasRepeated returns whether any key was inserted more than once.
func (m *Multiset[T]) HasRepeated() bool {
	for _, count := range m.counts {
		if count > 1 {
			return true
		}
	}
	return false
}
