package combat

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// combatTestHarness wires a zone engine and a combat engine with a life
// ledger so combat scenarios can be set up directly on the battlefield.
type combatTestHarness struct {
	t       *testing.T
	zones   *zone.Engine
	combat  *Engine
	life    lifeLedger
	events  []rules.Event
	players []rules.PlayerID
}

type lifeLedger map[rules.PlayerID]int

func (l lifeLedger) LoseLife(player rules.PlayerID, amount int) {
	l[player] -= amount
}

// creatureSpec defines the properties of a test creature.
type creatureSpec struct {
	Name        string
	Power       int
	Toughness   int
	Controller  rules.PlayerID
	Keywords    []zone.Keyword
	MinBlockers int
	Commander   bool
	Tapped      bool
	Sick        bool
}

func newCombatTestHarness(t *testing.T, players ...rules.PlayerID) *combatTestHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := &combatTestHarness{
		t:       t,
		zones:   zone.NewEngine(players, logger),
		life:    lifeLedger{},
		players: players,
	}
	for _, p := range players {
		h.life[p] = 40
	}
	h.combat = NewEngine(h.zones, logger)
	h.combat.SetEmitter(func(ev rules.Event) { h.events = append(h.events, ev) })
	return h
}

func (h *combatTestHarness) creature(spec creatureSpec) rules.CardID {
	h.t.Helper()
	card := zone.NewCard(0, spec.Controller, zone.Characteristics{
		Name:        spec.Name,
		Types:       []string{zone.TypeCreature},
		Power:       spec.Power,
		Toughness:   spec.Toughness,
		Keywords:    spec.Keywords,
		MinBlockers: spec.MinBlockers,
	})
	card.Zone = rules.ZoneBattlefield
	card.Commander = spec.Commander
	card.Tapped = spec.Tapped
	card.Permanent = &zone.Permanent{Controller: spec.Controller, SummoningSick: spec.Sick}
	if err := h.zones.AddCard(card); err != nil {
		h.t.Fatalf("failed to add creature: %v", err)
	}
	return card.ID
}

func (h *combatTestHarness) card(id rules.CardID) *zone.Card {
	h.t.Helper()
	card, ok := h.zones.Card(id)
	if !ok {
		h.t.Fatalf("card %d not found", id)
	}
	return card
}

func (h *combatTestHarness) attack(player rules.PlayerID, attacks ...Attack) {
	h.t.Helper()
	h.combat.Begin(player)
	h.combat.BeginDeclareAttackers()
	if err := h.combat.DeclareAttackers(player, attacks, h.opponents(player)); err != nil {
		h.t.Fatalf("declare attackers failed: %v", err)
	}
}

func (h *combatTestHarness) opponents(player rules.PlayerID) []rules.PlayerID {
	var out []rules.PlayerID
	for _, p := range h.players {
		if p != player {
			out = append(out, p)
		}
	}
	return out
}

func (h *combatTestHarness) eventTypes() []rules.EventType {
	out := make([]rules.EventType, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Type)
	}
	return out
}
