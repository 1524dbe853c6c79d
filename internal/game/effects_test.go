package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/counters"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// toolkit is an artifact with one untapped activated ability per effect.
func toolkit(effects ...rules.Effect) zone.Characteristics {
	chars := zone.Characteristics{Name: "Toolkit", Types: []string{zone.TypeArtifact}}
	for _, effect := range effects {
		chars.Abilities = append(chars.Abilities, zone.Ability{Effect: effect})
	}
	return chars
}

// resolveAbility activates alice's ability and lets everyone pass until it
// resolves.
func (h *gameTestHarness) resolveAbility(source rules.CardID, index int, targets ...rules.Target) {
	h.t.Helper()
	h.do(ActivateAbility(alice, source, index, targets...))
	require.Len(h.t, h.game.StackItems(), 1)
	h.passAround()
	require.Empty(h.t, h.game.StackItems())
}

func TestBecomeMonarchEffect(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	crown := h.onBattlefield(alice, toolkit(rules.Effect{Kind: rules.EffectBecomeMonarch}))

	h.resolveAbility(crown, 0)
	assert.Equal(t, alice, h.game.Monarch())
	changed := h.eventsOf(rules.EventMonarchChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, crown, changed[0].Source)

	h.resolveAbility(crown, 0)
	assert.Len(t, h.eventsOf(rules.EventMonarchChanged), 1, "already the monarch")
}

func TestPumpAndCountersUntilCleanup(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	kit := h.onBattlefield(alice, toolkit(
		rules.Effect{Kind: rules.EffectPump, Amount: 2, Target: rules.TargetCreature},
		rules.Effect{Kind: rules.EffectAddCounters, Amount: 1, Target: rules.TargetCreature},
	))
	bear := h.onBattlefield(alice, bears)

	h.resolveAbility(kit, 0, rules.CardTarget(bear))
	assert.Equal(t, 4, h.card(bear).Power())
	assert.Equal(t, 4, h.card(bear).Toughness())

	h.resolveAbility(kit, 1, rules.CardTarget(bear))
	assert.Equal(t, 1, h.card(bear).Counters.Count(counters.CounterTypeP1P1))
	assert.Equal(t, 5, h.card(bear).Toughness())

	h.do(CastSpell(alice, h.inHand(alice, shock.Name), rules.CardTarget(bear)))
	h.passAround()
	require.Equal(t, rules.ZoneBattlefield, h.card(bear).Zone)
	assert.Equal(t, 2, h.card(bear).Permanent.Damage)

	h.passToStep(2, rules.StepUpkeep)
	card := h.card(bear)
	assert.Equal(t, 0, card.Permanent.Damage, "damage wears off in cleanup")
	assert.Equal(t, 3, card.Power(), "the pump ends, the counter stays")
	assert.Equal(t, 3, card.Toughness())
}

func TestExileAndDrawEffects(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	kit := h.onBattlefield(alice, toolkit(
		rules.Effect{Kind: rules.EffectExile, Target: rules.TargetPermanent},
		rules.Effect{Kind: rules.EffectDraw, Amount: 2},
	))
	victim := h.onBattlefield(bob, bears)

	h.resolveAbility(kit, 0, rules.CardTarget(victim))
	assert.Equal(t, rules.ZoneExile, h.card(victim).Zone)
	assert.Contains(t, h.game.Zones().Exile(), victim)

	hand := len(h.game.Zones().Hand(alice))
	drawn := len(h.eventsOf(rules.EventDrewCard))
	h.resolveAbility(kit, 1)
	assert.Len(t, h.game.Zones().Hand(alice), hand+2)
	assert.Len(t, h.eventsOf(rules.EventDrewCard), drawn+2)
}

func TestGrantedKeywordLastsUntilEndOfCombat(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	kit := h.onBattlefield(alice, toolkit(
		rules.Effect{Kind: rules.EffectGrantKeyword, Keyword: string(zone.KeywordFlying), Target: rules.TargetCreature},
	))
	bear := h.onBattlefield(alice, bears)
	wall := h.onBattlefield(bob, zone.Characteristics{Name: "Hill Giant", Types: []string{zone.TypeCreature}, Power: 3, Toughness: 3})

	h.resolveAbility(kit, 0, rules.CardTarget(bear))
	assert.True(t, h.card(bear).HasKeyword(zone.KeywordFlying))
	assert.False(t, bears.HasKeyword(zone.KeywordFlying), "printed characteristics are untouched")

	d := h.passUntil(func(d Decision) bool { return d.Kind == DecisionDeclareAttackers })
	h.do(DeclareAttackers(d.Player, combat.Attack{Attacker: bear, Defender: bob}))
	d = h.passUntil(func(d Decision) bool { return d.Kind == DecisionDeclareBlockers })
	require.Equal(t, bob, d.Player)

	_, err := h.submit(DeclareBlockers(bob, combat.Block{Blocker: wall, Attacker: bear}))
	require.ErrorIs(t, err, rules.ErrIllegalBlock, "a ground creature cannot block a flyer")
	require.NoError(t, h.game.Check())

	h.passUntil(func(d Decision) bool { return d.Step == rules.StepEndCombat.String() })
	assert.Equal(t, 38, h.game.Life(bob))
	assert.False(t, h.card(bear).HasKeyword(zone.KeywordFlying))
	assert.Empty(t, h.card(bear).Permanent.CombatKeywords)
}

func TestCreateTokenEffect(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	kit := h.onBattlefield(alice, toolkit(
		rules.Effect{Kind: rules.EffectCreateToken, Amount: 2, Token: "Soldier", Power: 1, Toughness: 1},
		rules.Effect{Kind: rules.EffectExile, Target: rules.TargetPermanent},
	))

	h.resolveAbility(kit, 0)
	var tokens []rules.CardID
	for _, card := range h.game.Zones().Permanents(alice) {
		if card.Permanent.Token {
			tokens = append(tokens, card.ID)
			assert.Equal(t, "Soldier", card.Name())
			assert.Equal(t, 1, card.Power())
			assert.True(t, card.Permanent.SummoningSick)
		}
	}
	require.Len(t, tokens, 2)

	saved, err := cloneState(h.game.Export())
	require.NoError(t, err)
	imported, err := Import(saved, zaptest.NewLogger(t))
	require.NoError(t, err)
	copied, ok := imported.Card(tokens[0])
	require.True(t, ok)
	assert.True(t, copied.Permanent.Token)

	h.resolveAbility(kit, 1, rules.CardTarget(tokens[0]))
	_, ok = h.game.Card(tokens[0])
	assert.False(t, ok, "a token that leaves the battlefield ceases to exist")
	_, ok = h.game.Card(tokens[1])
	assert.True(t, ok)
}

func TestBusyResolutionLeavesItemOnStack(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	h.do(CastSpell(alice, h.inHand(alice, shock.Name), rules.PlayerTarget(bob)))
	require.Len(t, h.game.StackItems(), 1)

	require.NoError(t, h.game.resolution.BeginResolution(999))
	h.game.resolveTop()
	assert.Len(t, h.game.StackItems(), 1)
	assert.Equal(t, 40, h.game.Life(bob))

	require.NoError(t, h.game.resolution.EndResolution(999))
	h.game.resolveTop()
	assert.Empty(t, h.game.StackItems())
	assert.Equal(t, 38, h.game.Life(bob))
}
