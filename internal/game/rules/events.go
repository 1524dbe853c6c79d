package rules

import (
	"sort"
	"sync"
)

// EventType names a rules event.
type EventType string

const (
	// Turn structure
	EventTurnBegan   EventType = "TURN_BEGAN"
	EventStepChanged EventType = "STEP_CHANGED"
	EventPriority    EventType = "PRIORITY"

	// Zones
	EventZoneChange EventType = "ZONE_CHANGE"
	EventDrewCard   EventType = "DREW_CARD"

	// Stack
	EventSpellCast          EventType = "SPELL_CAST"
	EventActivatedAbility   EventType = "ACTIVATED_ABILITY"
	EventTriggeredAbility   EventType = "TRIGGERED_ABILITY"
	EventLandPlayed         EventType = "LAND_PLAYED"
	EventStackItemResolved  EventType = "STACK_ITEM_RESOLVED"
	EventStackItemCountered EventType = "STACK_ITEM_COUNTERED"

	// Combat
	EventDeclareAttackersStepBegin EventType = "DECLARE_ATTACKERS_STEP_BEGIN"
	EventAttackerDeclared          EventType = "ATTACKER_DECLARED"
	EventDeclareAttackersStepEnd   EventType = "DECLARE_ATTACKERS_STEP_END"
	EventBlockerDeclared           EventType = "BLOCKER_DECLARED"
	EventCreatureBlocks            EventType = "CREATURE_BLOCKS"
	EventCreatureBlocked           EventType = "CREATURE_BLOCKED"
	EventBlockersOrdered           EventType = "BLOCKERS_ORDERED"
	EventAssignCombatDamage        EventType = "ASSIGN_COMBAT_DAMAGE"
	EventCombatDamage              EventType = "COMBAT_DAMAGE"
	EventCombatDamageComplete      EventType = "COMBAT_DAMAGE_COMPLETE"
	EventRemovedFromCombat         EventType = "REMOVED_FROM_COMBAT"
	EventCombatEnd                 EventType = "COMBAT_END"

	// Life and damage outside combat
	EventDamage     EventType = "DAMAGE"
	EventLifeChange EventType = "LIFE_CHANGE"

	// Commander and politics
	EventCommanderZoneChoice EventType = "COMMANDER_ZONE_CHOICE"
	EventPlayerEliminated    EventType = "PLAYER_ELIMINATED"
	EventMonarchChanged      EventType = "MONARCH_CHANGED"

	EventGameOver EventType = "GAME_OVER"
)

// Category orders the drain of a batch of events.
type Category int

const (
	CategoryZone Category = iota
	CategoryCombat
	CategoryCommander
	CategoryPolitics
	CategoryOther
)

var categoryNames = map[Category]string{
	CategoryZone:      "ZONE",
	CategoryCombat:    "COMBAT",
	CategoryCommander: "COMMANDER",
	CategoryPolitics:  "POLITICS",
	CategoryOther:     "OTHER",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "OTHER"
}

var defaultCategories = map[EventType]Category{
	EventZoneChange:                CategoryZone,
	EventDrewCard:                  CategoryZone,
	EventDeclareAttackersStepBegin: CategoryCombat,
	EventAttackerDeclared:          CategoryCombat,
	EventDeclareAttackersStepEnd:   CategoryCombat,
	EventBlockerDeclared:           CategoryCombat,
	EventCreatureBlocks:            CategoryCombat,
	EventCreatureBlocked:           CategoryCombat,
	EventBlockersOrdered:           CategoryCombat,
	EventAssignCombatDamage:        CategoryCombat,
	EventCombatDamage:              CategoryCombat,
	EventCombatDamageComplete:      CategoryCombat,
	EventRemovedFromCombat:         CategoryCombat,
	EventCombatEnd:                 CategoryCombat,
	EventCommanderZoneChoice:       CategoryCommander,
	EventMonarchChanged:            CategoryPolitics,
}

// Category returns the default drain category of the event type.
func (et EventType) Category() Category {
	if category, ok := defaultCategories[et]; ok {
		return category
	}
	return CategoryOther
}

// Event represents a state change that other subsystems may react to.
// Player is the subject player (owner, controller, eliminated player, new
// monarch); Target is the player on the receiving end (damaged or defending
// player, previous monarch).
type Event struct {
	Seq               uint64            `json:"seq"`
	Type              EventType         `json:"type"`
	Category          Category          `json:"category"`
	Turn              int               `json:"turn"`
	Player            PlayerID          `json:"player,omitempty"`
	Target            PlayerID          `json:"target,omitempty"`
	Card              CardID            `json:"card,omitempty"`
	Source            CardID            `json:"source,omitempty"`
	Item              StackItemID       `json:"item,omitempty"`
	Amount            int               `json:"amount,omitempty"`
	FromZone          Zone              `json:"from_zone,omitempty"`
	ToZone            Zone              `json:"to_zone,omitempty"`
	Hidden            bool              `json:"hidden,omitempty"`
	SourceIsCommander bool              `json:"source_is_commander,omitempty"`
	Step              Step              `json:"step,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Description       string            `json:"description,omitempty"`
}

// NewEvent creates an event with its default category.
func NewEvent(eventType EventType, player PlayerID, card CardID) Event {
	return Event{
		Type:     eventType,
		Category: eventType.Category(),
		Player:   player,
		Card:     card,
	}
}

// NewEventWithAmount creates an event with an amount value.
func NewEventWithAmount(eventType EventType, player PlayerID, card CardID, amount int) Event {
	evt := NewEvent(eventType, player, card)
	evt.Amount = amount
	return evt
}

// EventQueue collects events raised during a tick and hands them out in
// batches. A batch is sorted by category (zone, combat, commander, politics,
// other) keeping raise order within a category. Events raised while a batch
// is processed land in the next batch.
type EventQueue struct {
	pending []Event
}

// Enqueue appends an event to the pending batch.
func (q *EventQueue) Enqueue(event Event) {
	q.pending = append(q.pending, event)
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return len(q.pending)
}

// Next removes and returns the pending batch in drain order.
func (q *EventQueue) Next() []Event {
	if len(q.pending) == 0 {
		return nil
	}
	batch := q.pending
	q.pending = nil
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Category < batch[j].Category
	})
	return batch
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type subscription struct {
	handle    int
	eventType EventType
	typed     bool
	callback  Listener
}

// EventBus delivers events synchronously to subscribers in subscription
// order.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	nextHandle    int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	return bus.add(subscription{callback: listener})
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	return bus.add(subscription{eventType: eventType, typed: true, callback: listener})
}

func (bus *EventBus) add(sub subscription) int {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	sub.handle = bus.nextHandle
	bus.nextHandle++
	bus.subscriptions = append(bus.subscriptions, sub)
	return sub.handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscriptions {
		if sub.handle == handle {
			bus.subscriptions = append(bus.subscriptions[:i], bus.subscriptions[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to all matching listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	subs := make([]subscription, len(bus.subscriptions))
	copy(subs, bus.subscriptions)
	bus.mu.RUnlock()

	for _, sub := range subs {
		if sub.typed && sub.eventType != event.Type {
			continue
		}
		sub.callback(event)
	}
}
