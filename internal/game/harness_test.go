package game

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

const (
	alice rules.PlayerID = "alice"
	bob   rules.PlayerID = "bob"
	carol rules.PlayerID = "carol"
)

var (
	forest = zone.Characteristics{Name: "Forest", Types: []string{zone.TypeLand}}
	bears  = zone.Characteristics{Name: "Grizzly Bears", Types: []string{zone.TypeCreature}, Power: 2, Toughness: 2}
	shock  = zone.Characteristics{
		Name:  "Shock",
		Types: []string{zone.TypeInstant},
		Spell: rules.Effect{Kind: rules.EffectDamage, Amount: 2, Target: rules.TargetAny},
	}
	murder = zone.Characteristics{
		Name:  "Murder",
		Types: []string{zone.TypeInstant},
		Spell: rules.Effect{Kind: rules.EffectDestroy, Target: rules.TargetCreature},
	}
	unsummon = zone.Characteristics{
		Name:  "Unsummon",
		Types: []string{zone.TypeInstant},
		Spell: rules.Effect{Kind: rules.EffectBounce, Target: rules.TargetCreature},
	}
	counterspell = zone.Characteristics{
		Name:  "Counterspell",
		Types: []string{zone.TypeInstant},
		Spell: rules.Effect{Kind: rules.EffectCounter, Target: rules.TargetStackItem},
	}
	giant = zone.Characteristics{Name: "Craterhoof Giant", Types: []string{zone.TypeCreature}, Power: 12, Toughness: 12}
)

// gameTestHarness drives a Game through Submit and checks the aggregate
// invariants after every tick.
type gameTestHarness struct {
	t      *testing.T
	game   *Game
	submit func(Action) (Decision, error)
}

// deck returns a library of the given cards on top of count forests.
func deck(count int, top ...zone.Characteristics) []CardEntry {
	entries := make([]CardEntry, 0, len(top)+1)
	for _, chars := range top {
		entries = append(entries, CardEntry{Characteristics: chars})
	}
	return append(entries, CardEntry{Characteristics: forest, Count: count})
}

func threePlayerSetup() Setup {
	return Setup{Players: []PlayerSetup{
		{ID: alice, Commanders: []zone.Characteristics{giant}, Library: deck(20, shock, unsummon, counterspell)},
		{ID: bob, Commanders: []zone.Characteristics{bears}, Library: deck(20, murder, unsummon, counterspell)},
		{ID: carol, Library: deck(20)},
	}}
}

func newGameTestHarness(t *testing.T, setup Setup, settings Settings) *gameTestHarness {
	t.Helper()
	g, err := New("test-game", setup, settings, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, g.Check())
	return &gameTestHarness{t: t, game: g, submit: g.Submit}
}

func (h *gameTestHarness) do(action Action) Decision {
	h.t.Helper()
	d, err := h.submit(action)
	require.NoError(h.t, err, "action %s from %s", action.Kind, action.Player)
	require.NoError(h.t, h.game.Check())
	return d
}

func (h *gameTestHarness) reject(action Action) error {
	h.t.Helper()
	before := h.game.Export()
	_, err := h.submit(action)
	require.ErrorIs(h.t, err, rules.ErrInvalidAction)
	require.Equal(h.t, checksum(h.t, before), checksum(h.t, h.game.Export()), "rejected action changed the game")
	return err
}

// passUntil passes priority and declares nothing in combat until done
// reports true for the current decision.
func (h *gameTestHarness) passUntil(done func(Decision) bool) Decision {
	h.t.Helper()
	for i := 0; i < 2000; i++ {
		d := h.game.Decision()
		if done(d) {
			return d
		}
		switch d.Kind {
		case DecisionPriority:
			h.do(PassPriority(d.Player))
		case DecisionDeclareAttackers:
			h.do(DeclareAttackers(d.Player))
		case DecisionDeclareBlockers:
			h.do(DeclareBlockers(d.Player))
		default:
			h.t.Fatalf("cannot pass through decision %s", d)
		}
	}
	h.t.Fatalf("decision never reached")
	return Decision{}
}

func (h *gameTestHarness) passToStep(turn int, step rules.Step) Decision {
	h.t.Helper()
	return h.passUntil(func(d Decision) bool {
		return d.Turn == turn && d.Step == step.String()
	})
}

// passAround lets every remaining player pass once, starting with the holder.
func (h *gameTestHarness) passAround() Decision {
	h.t.Helper()
	var d Decision
	for range h.game.Remaining() {
		d = h.game.Decision()
		require.Equal(h.t, DecisionPriority, d.Kind)
		d = h.do(PassPriority(d.Player))
	}
	return d
}

// onBattlefield puts a fresh permanent under the player's control, ready to
// attack or tap.
func (h *gameTestHarness) onBattlefield(player rules.PlayerID, chars zone.Characteristics) rules.CardID {
	h.t.Helper()
	card := zone.NewCard(rules.NoCard, player, chars)
	card.Zone = rules.ZoneBattlefield
	require.NoError(h.t, h.game.zones.AddCard(card))
	h.game.registerTriggers(card.ID)
	return card.ID
}

// commanderOnBattlefield moves the player's first commander from the command
// zone onto the battlefield.
func (h *gameTestHarness) commanderOnBattlefield(player rules.PlayerID) rules.CardID {
	h.t.Helper()
	ids := h.game.Commanders(player)
	require.NotEmpty(h.t, ids)
	_, err := h.game.zones.Commit(ids[0], rules.ZoneBattlefield, zone.MoveOptions{Controller: player})
	require.NoError(h.t, err)
	h.card(ids[0]).Permanent.SummoningSick = false
	return ids[0]
}

func (h *gameTestHarness) card(id rules.CardID) *zone.Card {
	h.t.Helper()
	card, ok := h.game.Card(id)
	require.True(h.t, ok, "card %d not found", id)
	return card
}

func (h *gameTestHarness) inHand(player rules.PlayerID, name string) rules.CardID {
	h.t.Helper()
	for _, id := range h.game.Zones().Hand(player) {
		if h.card(id).Name() == name {
			return id
		}
	}
	h.t.Fatalf("%s has no %s in hand", player, name)
	return rules.NoCard
}

// attackWith runs the active player's combat up to the damage: the listed
// attacks are declared and every defender declares no blocks.
func (h *gameTestHarness) attackWith(attacks ...combat.Attack) {
	h.t.Helper()
	d := h.passUntil(func(d Decision) bool { return d.Kind == DecisionDeclareAttackers })
	h.do(DeclareAttackers(d.Player, attacks...))
	h.passUntil(func(d Decision) bool { return d.Step == rules.StepEndCombat.String() })
}

func (h *gameTestHarness) eventsOf(eventType rules.EventType) []rules.Event {
	var out []rules.Event
	for _, ev := range h.game.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func checksum(t *testing.T, data *GameStateData) string {
	t.Helper()
	sum, err := data.ComputeChecksum()
	require.NoError(t, err)
	return sum.Hash
}
