package game

import (
	"github.com/magefree/mage-commander/internal/game/rules"
)

// registerTriggers registers the printed triggered abilities of a permanent
// that just entered the battlefield.
func (g *Game) registerTriggers(id rules.CardID) {
	card, ok := g.zones.Card(id)
	if !ok || card.Permanent == nil {
		return
	}
	for _, spec := range card.Characteristics.Triggers {
		spec := spec
		g.triggers.Register(rules.AbilityTrigger{
			SourceID:   id,
			Controller: card.Controller(),
			EventType:  spec.On,
			Condition: func(ev rules.Event) bool {
				if ev.Type == rules.EventZoneChange {
					return ev.Card == id && ev.ToZone == rules.ZoneBattlefield
				}
				return ev.Card == id || ev.Source == id
			},
			Build: func(ev rules.Event) rules.StackItem {
				return g.buildTrigger(id, spec.Effect, spec.Description, ev)
			},
		})
	}
}

// rebuildTriggers re-registers the triggers of every permanent, in ascending
// id order.
func (g *Game) rebuildTriggers() {
	g.triggers = rules.NewTriggerManager()
	for _, card := range g.zones.Permanents("") {
		g.registerTriggers(card.ID)
	}
}

// buildTrigger creates the stack item of a fired trigger. Creature and
// permanent effects target the source itself; player effects target the
// player on the receiving end of the event.
func (g *Game) buildTrigger(source rules.CardID, effect rules.Effect, description string, ev rules.Event) rules.StackItem {
	item := rules.StackItem{SourceID: source, Effect: effect, Description: description}
	card, ok := g.zones.Card(source)
	if ok {
		item.Controller = card.Controller()
	}
	self := func() {
		if ok && card.Zone == rules.ZoneBattlefield {
			item.Targets = []rules.Target{{Card: source, Incarnation: card.Incarnation}}
		}
	}
	switch effect.Target {
	case rules.TargetCreature, rules.TargetPermanent:
		self()
	case rules.TargetPlayer:
		if ev.Target != "" {
			item.Targets = []rules.Target{rules.PlayerTarget(ev.Target)}
		}
	case rules.TargetAny:
		if ev.Target != "" {
			item.Targets = []rules.Target{rules.PlayerTarget(ev.Target)}
		} else {
			self()
		}
	}
	return item
}

// placeTriggers puts the waiting triggered abilities on the stack in APNAP
// order and reports whether any was placed.
func (g *Game) placeTriggers() bool {
	if len(g.pendingTriggers) == 0 {
		return false
	}
	items := rules.OrderAPNAP(g.pendingTriggers, g.turn.RemainingFrom(g.turn.ActivePlayer()))
	g.pendingTriggers = nil

	placed := false
	for _, item := range items {
		if !g.turn.InGame(item.Controller) {
			continue
		}
		id := g.stack.Push(item)
		evt := rules.NewEvent(rules.EventTriggeredAbility, item.Controller, item.SourceID)
		evt.Item = id
		evt.Description = item.Description
		g.emit(evt)
		placed = true
	}
	if placed {
		g.priority.ResetPassed()
	}
	return placed
}
