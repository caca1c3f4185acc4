package queue

import (
	"sync"
)

// Slot is a thread-safe single-item queue. Putting into a full slot replaces
// the held item, so only the most recently put item is ever taken.
type Slot[T any] struct {
	mu      sync.Mutex
	item    T
	pending bool
	dropped uint64
}

// NewSlot creates a new empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Put stores item, overwriting any pending one. It reports whether an
// earlier item was overwritten.
func (s *Slot[T]) Put(item T) (replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced = s.pending
	if replaced {
		s.dropped++
	}
	s.item = item
	s.pending = true
	return replaced
}

// Take removes and returns the pending item. ok is false if the slot was empty.
func (s *Slot[T]) Take() (item T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		var zero T
		return zero, false
	}
	item = s.item
	var zero T
	s.item = zero
	s.pending = false
	return item, true
}

// Peek returns the pending item without removing it.
func (s *Slot[T]) Peek() (item T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item, s.pending
}

// Pending returns true if the slot holds an item.
func (s *Slot[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Clear empties the slot.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.item = zero
	s.pending = false
}

// Overwritten returns how many pending items were replaced before being taken.
func (s *Slot[T]) Overwritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
