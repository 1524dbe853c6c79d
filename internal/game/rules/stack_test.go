package rules

import (
	"errors"
	"testing"
)

func TestStackPushPopIsLIFO(t *testing.T) {
	s := NewStack()

	first := s.Push(StackItem{Kind: StackItemKindSpell, Controller: "Alice", Description: "First"})
	second := s.Push(StackItem{Kind: StackItemKindTriggered, Controller: "Bob", Description: "Second"})
	if first >= second {
		t.Fatalf("expected ascending ids, got %d then %d", first, second)
	}

	top, err := s.Peek()
	if err != nil {
		t.Fatalf("unexpected error peeking: %v", err)
	}
	if top.ID != second {
		t.Fatalf("expected top to be %d, got %d", second, top.ID)
	}

	item, err := s.Pop()
	if err != nil {
		t.Fatalf("unexpected error popping top: %v", err)
	}
	if item.ID != second {
		t.Fatalf("expected LIFO order (second), got %d", item.ID)
	}
	item, err = s.Pop()
	if err != nil {
		t.Fatalf("unexpected error popping second item: %v", err)
	}
	if item.ID != first {
		t.Fatalf("expected first, got %d", item.ID)
	}

	if _, err := s.Pop(); !errors.Is(err, ErrStackEmpty) {
		t.Fatalf("expected ErrStackEmpty, got %v", err)
	}
}

func TestStackRemove(t *testing.T) {
	s := NewStack()
	a := s.Push(StackItem{Controller: "Alice"})
	b := s.Push(StackItem{Controller: "Bob"})
	c := s.Push(StackItem{Controller: "Alice"})

	if _, ok := s.Remove(b); !ok {
		t.Fatalf("expected to remove %d", b)
	}
	if s.Contains(b) {
		t.Fatalf("expected %d to be gone", b)
	}

	removed := s.RemoveControlledBy("Alice")
	if len(removed) != 2 || removed[0].ID != c || removed[1].ID != a {
		t.Fatalf("expected Alice's items top first, got %+v", removed)
	}
	if !s.IsEmpty() {
		t.Fatalf("expected empty stack, got %d items", s.Len())
	}

	next := s.Push(StackItem{})
	if next <= c {
		t.Fatalf("expected ids not to be reused, got %d", next)
	}
}

func TestRestoreStackKeepsOrderAndNextID(t *testing.T) {
	s := NewStack()
	s.Push(StackItem{Description: "bottom"})
	s.Push(StackItem{Description: "top"})

	restored := RestoreStack(s.List(), s.NextID())
	top, err := restored.Peek()
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if top.Description != "top" {
		t.Fatalf("expected top item first out, got %q", top.Description)
	}
	if restored.NextID() != s.NextID() {
		t.Fatalf("expected next id %d, got %d", s.NextID(), restored.NextID())
	}
}
