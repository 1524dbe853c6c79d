package rules

// StackItemKind describes the type of object on the stack.
type StackItemKind string

const (
	// StackItemKindSpell represents a spell cast by a player.
	StackItemKindSpell StackItemKind = "SPELL"
	// StackItemKindActivated represents an activated ability.
	StackItemKindActivated StackItemKind = "ACTIVATED"
	// StackItemKindTriggered represents a triggered ability.
	StackItemKindTriggered StackItemKind = "TRIGGERED"
)

// StackItem represents a single object on the stack.
type StackItem struct {
	ID          StackItemID   `json:"id"`
	Kind        StackItemKind `json:"kind"`
	SourceID    CardID        `json:"source_id,omitempty"`
	Controller  PlayerID      `json:"controller"`
	Targets     []Target      `json:"targets,omitempty"`
	Effect      Effect        `json:"effect"`
	Description string        `json:"description,omitempty"`
}

// Stack is the LIFO zone spells and abilities wait on before resolving.
// Index 0 is the bottom.
type Stack struct {
	items  []StackItem
	nextID StackItemID
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{
		items:  make([]StackItem, 0, 16),
		nextID: 1,
	}
}

// Push assigns the item an id and places it on top.
func (s *Stack) Push(item StackItem) StackItemID {
	item.ID = s.nextID
	s.nextID++
	s.items = append(s.items, item)
	return item.ID
}

// Pop removes the top item from the stack.
func (s *Stack) Pop() (StackItem, error) {
	if len(s.items) == 0 {
		return StackItem{}, ErrStackEmpty
	}
	idx := len(s.items) - 1
	item := s.items[idx]
	s.items = s.items[:idx]
	return item, nil
}

// Remove deletes an item from anywhere in the stack by ID.
func (s *Stack) Remove(id StackItemID) (StackItem, bool) {
	for idx := len(s.items) - 1; idx >= 0; idx-- {
		if s.items[idx].ID == id {
			item := s.items[idx]
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return item, true
		}
	}
	return StackItem{}, false
}

// RemoveControlledBy removes every item controlled by the player, top first.
func (s *Stack) RemoveControlledBy(player PlayerID) []StackItem {
	var removed []StackItem
	kept := s.items[:0]
	for idx := len(s.items) - 1; idx >= 0; idx-- {
		if s.items[idx].Controller == player {
			removed = append(removed, s.items[idx])
		}
	}
	for _, item := range s.items {
		if item.Controller != player {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return removed
}

// Peek returns the top item without removing it.
func (s *Stack) Peek() (StackItem, error) {
	if len(s.items) == 0 {
		return StackItem{}, ErrStackEmpty
	}
	return s.items[len(s.items)-1], nil
}

// Get returns the item with the given id.
func (s *Stack) Get(id StackItemID) (StackItem, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return StackItem{}, false
}

// Contains reports whether an item with the id is on the stack.
func (s *Stack) Contains(id StackItemID) bool {
	_, ok := s.Get(id)
	return ok
}

// List returns the items bottom to top.
func (s *Stack) List() []StackItem {
	out := make([]StackItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items on the stack.
func (s *Stack) Len() int {
	return len(s.items)
}

// IsEmpty reports whether the stack has no items.
func (s *Stack) IsEmpty() bool {
	return len(s.items) == 0
}

// NextID returns the id the next pushed item will receive.
func (s *Stack) NextID() StackItemID {
	return s.nextID
}

// RestoreStack rebuilds a stack from a snapshot; items are bottom to top.
func RestoreStack(items []StackItem, nextID StackItemID) *Stack {
	s := NewStack()
	s.items = append(s.items, items...)
	if nextID > s.nextID {
		s.nextID = nextID
	}
	return s
}
