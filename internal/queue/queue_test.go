package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic slot
type testItem struct {
	ID   int
	Name string
}

func TestSlot_New(t *testing.T) {
	s := NewSlot[testItem]()
	if s == nil {
		t.Fatal("expected non-nil slot")
	}
	if s.Pending() {
		t.Error("expected empty slot")
	}
}

func TestSlot_TakeEmpty(t *testing.T) {
	s := NewSlot[testItem]()

	item, ok := s.Take()
	if ok {
		t.Error("expected ok=false on empty slot")
	}
	if item.ID != 0 || item.Name != "" {
		t.Errorf("expected zero value, got %+v", item)
	}
}

func TestSlot_PutTake(t *testing.T) {
	s := NewSlot[testItem]()

	if replaced := s.Put(testItem{ID: 1, Name: "first"}); replaced {
		t.Error("first put should not report a replacement")
	}
	if !s.Pending() {
		t.Error("expected pending after put")
	}

	item, ok := s.Take()
	if !ok || item.ID != 1 {
		t.Errorf("expected {1, first}, got %+v ok=%v", item, ok)
	}
	if s.Pending() {
		t.Error("expected empty after take")
	}
}

func TestSlot_LastWriteWins(t *testing.T) {
	s := NewSlot[testItem]()

	s.Put(testItem{ID: 1})
	s.Put(testItem{ID: 2})
	if replaced := s.Put(testItem{ID: 3}); !replaced {
		t.Error("expected replacement to be reported")
	}

	item, ok := s.Take()
	if !ok || item.ID != 3 {
		t.Errorf("expected last item (3), got %+v", item)
	}
	if _, ok := s.Take(); ok {
		t.Error("slot should hold at most one item")
	}
	if s.Overwritten() != 2 {
		t.Errorf("expected 2 overwritten, got %d", s.Overwritten())
	}
}

func TestSlot_PeekDoesNotRemove(t *testing.T) {
	s := NewSlot[testItem]()
	s.Put(testItem{ID: 9})

	item, ok := s.Peek()
	if !ok || item.ID != 9 {
		t.Errorf("expected 9, got %+v", item)
	}
	if !s.Pending() {
		t.Error("peek must not clear the slot")
	}
}

func TestSlot_Clear(t *testing.T) {
	s := NewSlot[testItem]()
	s.Put(testItem{ID: 1})
	s.Clear()
	if s.Pending() {
		t.Error("expected empty slot after clear")
	}
}

func TestSlot_ConcurrentPuts(t *testing.T) {
	s := NewSlot[int]()
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Put(v)
		}(i)
	}
	wg.Wait()

	v, ok := s.Take()
	if !ok || v < 1 || v > 100 {
		t.Errorf("expected one of the put values, got %d ok=%v", v, ok)
	}
	if s.Overwritten() != 99 {
		t.Errorf("expected 99 overwritten, got %d", s.Overwritten())
	}
}
