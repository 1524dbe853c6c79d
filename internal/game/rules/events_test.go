package rules

import "testing"

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	spellCastCount := 0
	lifeCount := 0

	handle := bus.SubscribeTyped(EventSpellCast, func(e Event) {
		spellCastCount++
	})
	bus.SubscribeTyped(EventLifeChange, func(e Event) {
		lifeCount++
	})

	bus.Publish(NewEvent(EventSpellCast, "p1", 1))
	if spellCastCount != 1 || lifeCount != 0 {
		t.Fatalf("expected 1/0, got %d/%d", spellCastCount, lifeCount)
	}

	bus.Publish(NewEventWithAmount(EventLifeChange, "p1", 0, 5))
	if spellCastCount != 1 || lifeCount != 1 {
		t.Fatalf("expected 1/1, got %d/%d", spellCastCount, lifeCount)
	}

	bus.Unsubscribe(handle)
	bus.Publish(NewEvent(EventSpellCast, "p1", 2))
	if spellCastCount != 1 {
		t.Fatalf("expected unsubscribed listener to stay quiet, got %d", spellCastCount)
	}
}

func TestEventBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(func(Event) { order = append(order, i) })
	}
	bus.Publish(NewEvent(EventGameOver, "", 0))
	for i, got := range order {
		if got != i {
			t.Fatalf("expected subscription order, got %v", order)
		}
	}
}

func TestEventQueueDrainsByCategory(t *testing.T) {
	var q EventQueue
	q.Enqueue(NewEvent(EventGameOver, "", 0))
	q.Enqueue(NewEvent(EventMonarchChanged, "p1", 0))
	q.Enqueue(Event{Type: EventPlayerEliminated, Category: CategoryCommander, Player: "p2"})
	q.Enqueue(NewEvent(EventCombatDamage, "p1", 3))
	q.Enqueue(NewEvent(EventZoneChange, "p1", 4))
	q.Enqueue(NewEvent(EventZoneChange, "p1", 5))

	batch := q.Next()
	want := []Category{CategoryZone, CategoryZone, CategoryCombat, CategoryCommander, CategoryPolitics, CategoryOther}
	if len(batch) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(batch))
	}
	for i, c := range want {
		if batch[i].Category != c {
			t.Fatalf("event %d: expected category %s, got %s", i, c, batch[i].Category)
		}
	}
	if batch[0].Card != 4 || batch[1].Card != 5 {
		t.Fatalf("expected raise order within a category, got %d then %d", batch[0].Card, batch[1].Card)
	}

	q.Enqueue(NewEvent(EventZoneChange, "p1", 6))
	if q.Len() != 1 {
		t.Fatalf("expected reactions to wait for the next batch")
	}
	if next := q.Next(); len(next) != 1 || next[0].Card != 6 {
		t.Fatalf("unexpected next batch %+v", next)
	}
}
