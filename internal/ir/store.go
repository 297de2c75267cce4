package ir

import (
	"fmt"
	"maps"
	"math/bits"
	"slices"

	"fortio.org/safecast"
)

// Store is an append-only arena handing out typed indices. Deleting an entry
// only flips its validity bit; indices are never reused or shifted.
type Store[I Index, T any] struct {
	items []T
	valid []uint64 // one bit per slot
}

// NewStore returns an empty arena.
func NewStore[I Index, T any]() *Store[I, T] {
	return &Store[I, T]{}
}

func nextIndex[I Index](n int) I {
	raw, err := safecast.Conv[uint32](n)
	if err != nil || raw == Unknown {
		panic(fmt.Errorf("ir: index overflow: %w", err))
	}
	return I(raw)
}

// Add appends a value and returns its fresh index.
func (s *Store[I, T]) Add(v T) I {
	idx := nextIndex[I](len(s.items))
	s.items = append(s.items, v)
	word := len(s.items) - 1
	if word/64 >= len(s.valid) {
		s.valid = append(s.valid, 0)
	}
	s.valid[word/64] |= 1 << (uint(word) % 64)
	return idx
}

// CheckedAdd adds a value and panics if it does not land on the expected
// index. Used when two arenas must stay index-aligned.
func (s *Store[I, T]) CheckedAdd(want I, v T) I {
	got := s.Add(v)
	if got != want {
		panic(fmt.Sprintf("ir: expected to add at index %d, got %d", want, got))
	}
	return got
}

// Valid reports whether idx is in range and not deleted.
func (s *Store[I, T]) Valid(idx I) bool {
	if s == nil {
		return false
	}
	i := int(idx)
	if uint32(idx) == Unknown || i >= len(s.items) {
		return false
	}
	return s.valid[i/64]&(1<<(uint(i)%64)) != 0
}

func (s *Store[I, T]) check(idx I, op string) {
	if uint32(idx) == Unknown || int(idx) >= len(s.items) {
		panic(fmt.Sprintf("ir: %s: index %d out of range (len %d)", op, idx, len(s.items)))
	}
	if !s.Valid(idx) {
		panic(fmt.Sprintf("ir: %s: index %d was deleted", op, idx))
	}
}

// Get returns the value at idx. Out-of-range or deleted indices panic.
func (s *Store[I, T]) Get(idx I) T {
	s.check(idx, "get")
	return s.items[idx]
}

// Mut returns a pointer to the value at idx for in-place mutation.
func (s *Store[I, T]) Mut(idx I) *T {
	s.check(idx, "mut")
	return &s.items[idx]
}

// Delete tombstones idx. Deleting twice panics.
func (s *Store[I, T]) Delete(idx I) {
	s.check(idx, "delete")
	i := int(idx)
	s.valid[i/64] &^= 1 << (uint(i) % 64)
}

// Len returns the number of slots, including deleted ones.
func (s *Store[I, T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Live returns the number of valid slots.
func (s *Store[I, T]) Live() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, w := range s.valid {
		n += bits.OnesCount64(w)
	}
	return n
}

// Idxs returns every valid index in increasing order.
func (s *Store[I, T]) Idxs() []I {
	if s == nil {
		return nil
	}
	out := make([]I, 0, len(s.items))
	for i := range s.items {
		idx := I(uint32(i))
		if s.Valid(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// Iter calls fn for each valid entry in index order.
func (s *Store[I, T]) Iter(fn func(I, T)) {
	for _, idx := range s.Idxs() {
		fn(idx, s.items[idx])
	}
}

// Clone copies the arena. Values are copied shallowly.
func (s *Store[I, T]) Clone() *Store[I, T] {
	return &Store[I, T]{items: slices.Clone(s.items), valid: slices.Clone(s.valid)}
}

// Interned is an arena that deduplicates structurally equal values.
type Interned[I Index, T comparable] struct {
	items []T
	index map[T]I
}

// NewInterned returns an empty interning arena.
func NewInterned[I Index, T comparable]() *Interned[I, T] {
	return &Interned[I, T]{index: make(map[T]I, 64)}
}

// Intern returns the index of v, allocating one if v is new.
func (in *Interned[I, T]) Intern(v T) I {
	if idx, ok := in.index[v]; ok {
		return idx
	}
	idx := nextIndex[I](len(in.items))
	in.items = append(in.items, v)
	in.index[v] = idx
	return idx
}

// Lookup returns the index of v without interning it.
func (in *Interned[I, T]) Lookup(v T) (I, bool) {
	idx, ok := in.index[v]
	return idx, ok
}

// Get returns the value behind idx; invalid indices panic.
func (in *Interned[I, T]) Get(idx I) T {
	if uint32(idx) == Unknown || int(idx) >= len(in.items) {
		panic(fmt.Sprintf("ir: interned get: index %d out of range (len %d)", idx, len(in.items)))
	}
	return in.items[idx]
}

// Valid reports whether idx refers to an interned value.
func (in *Interned[I, T]) Valid(idx I) bool {
	return in != nil && uint32(idx) != Unknown && int(idx) < len(in.items)
}

// Len returns the number of distinct values.
func (in *Interned[I, T]) Len() int {
	if in == nil {
		return 0
	}
	return len(in.items)
}

func (in *Interned[I, T]) Clone() *Interned[I, T] {
	return &Interned[I, T]{items: slices.Clone(in.items), index: maps.Clone(in.index)}
}

// Iter calls fn for every interned value in index order.
func (in *Interned[I, T]) Iter(fn func(I, T)) {
	for i, v := range in.items {
		fn(I(uint32(i)), v)
	}
}
