package rules

import "sort"

// AbilityTrigger encapsulates the logic for reacting to a specific event and
// producing a stack item when the condition is satisfied.
type AbilityTrigger struct {
	ID         int
	SourceID   CardID
	Controller PlayerID
	EventType  EventType
	Condition  func(Event) bool
	Build      func(Event) StackItem
	Once       bool
}

// TriggerManager stores and evaluates ability triggers against events.
// Triggers are evaluated in registration order.
type TriggerManager struct {
	triggers []AbilityTrigger
	nextID   int
}

// NewTriggerManager creates an empty trigger manager.
func NewTriggerManager() *TriggerManager {
	return &TriggerManager{nextID: 1}
}

// Register adds a new trigger to the manager and returns its id.
func (tm *TriggerManager) Register(trigger AbilityTrigger) int {
	trigger.ID = tm.nextID
	tm.nextID++
	tm.triggers = append(tm.triggers, trigger)
	return trigger.ID
}

// Unregister removes a trigger by ID.
func (tm *TriggerManager) Unregister(id int) {
	for i, trigger := range tm.triggers {
		if trigger.ID == id {
			tm.triggers = append(tm.triggers[:i], tm.triggers[i+1:]...)
			return
		}
	}
}

// UnregisterSource removes every trigger whose source is the card.
func (tm *TriggerManager) UnregisterSource(source CardID) {
	kept := tm.triggers[:0]
	for _, trigger := range tm.triggers {
		if trigger.SourceID != source {
			kept = append(kept, trigger)
		}
	}
	tm.triggers = kept
}

// Len returns the number of registered triggers.
func (tm *TriggerManager) Len() int {
	return len(tm.triggers)
}

// Handle evaluates the provided event against all registered triggers and
// returns the stack items they produce, in registration order.
func (tm *TriggerManager) Handle(event Event) []StackItem {
	if len(tm.triggers) == 0 {
		return nil
	}

	var (
		stackItems []StackItem
		toRemove   []int
	)
	for _, trigger := range tm.triggers {
		if trigger.EventType != event.Type {
			continue
		}
		if trigger.Condition != nil && !trigger.Condition(event) {
			continue
		}
		if trigger.Build == nil {
			continue
		}
		item := trigger.Build(event)
		item.Kind = StackItemKindTriggered
		if item.SourceID == NoCard {
			item.SourceID = trigger.SourceID
		}
		if item.Controller == "" {
			item.Controller = trigger.Controller
		}
		stackItems = append(stackItems, item)
		if trigger.Once {
			toRemove = append(toRemove, trigger.ID)
		}
	}
	for _, id := range toRemove {
		tm.Unregister(id)
	}
	return stackItems
}

// OrderAPNAP sorts pending triggered items for the stack: the active player's
// items go on first (bottom), then each other player in seat order. Within a
// player, items keep ascending source card order. seats must start with the
// active player.
func OrderAPNAP(items []StackItem, seats []PlayerID) []StackItem {
	rank := make(map[PlayerID]int, len(seats))
	for i, seat := range seats {
		rank[seat] = i
	}
	out := append([]StackItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rankOf(rank, out[i].Controller), rankOf(rank, out[j].Controller)
		if ri != rj {
			return ri < rj
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

func rankOf(rank map[PlayerID]int, player PlayerID) int {
	if r, ok := rank[player]; ok {
		return r
	}
	return len(rank)
}
