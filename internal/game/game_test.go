package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-commander/internal/game/combat"
	"github.com/magefree/mage-commander/internal/game/commander"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

func TestNewGameDealsOpeningHands(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	g := h.game

	assert.Equal(t, []rules.PlayerID{alice, bob, carol}, g.Seats())
	for _, p := range g.Seats() {
		assert.Len(t, g.Zones().Hand(p), 7, "hand of %s", p)
		assert.Equal(t, 40, g.Life(p))
	}
	assert.Len(t, g.Zones().Library(alice), 16)
	assert.Len(t, g.Zones().Library(carol), 13)
	assert.Len(t, g.Zones().CommandZone(), 2)
	assert.Equal(t, shock.Name, h.card(g.Zones().Hand(alice)[0]).Name(), "the top of the library is drawn first")

	d := g.Decision()
	assert.Equal(t, DecisionPriority, d.Kind)
	assert.Equal(t, alice, d.Player)
	assert.Equal(t, 1, d.Turn)
	assert.Equal(t, rules.StepUpkeep.String(), d.Step)
}

func TestNewGameRejectsBadSetup(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := New("g", Setup{Players: []PlayerSetup{{ID: alice}}}, DefaultSettings(), logger)
	assert.Error(t, err)

	_, err = New("g", Setup{Players: []PlayerSetup{{ID: alice}, {ID: alice}}}, DefaultSettings(), logger)
	assert.Error(t, err)
}

func TestShuffleIsSeeded(t *testing.T) {
	setup := threePlayerSetup()
	setup.Shuffle = true
	settings := DefaultSettings()
	settings.ShuffleSeed = 42

	first := newGameTestHarness(t, setup, settings)
	second := newGameTestHarness(t, setup, settings)
	assert.Equal(t, checksum(t, first.game.Export()), checksum(t, second.game.Export()))
}

func TestFullRoundOfPassesAdvancesStep(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())

	d := h.do(PassPriority(alice))
	assert.Equal(t, bob, d.Player)
	assert.Equal(t, rules.StepUpkeep.String(), d.Step)

	d = h.do(PassPriority(bob))
	assert.Equal(t, carol, d.Player)

	d = h.do(PassPriority(carol))
	assert.Equal(t, rules.StepMain1.String(), d.Step, "the first draw step is skipped")
	assert.Equal(t, alice, d.Player)
	assert.Len(t, h.game.Zones().Hand(alice), 7)
}

func TestOutOfTurnActionIsRejected(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())

	h.reject(PassPriority(bob))
	h.reject(DeclareAttackers(alice))
	h.reject(CastSpell(bob, h.inHand(bob, murder.Name)))

	_, err := h.game.Submit(PassPriority("dave"))
	assert.ErrorIs(t, err, rules.ErrInvalidAction)
}

func TestSorcerySpeedRules(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())

	// Lands wait for the main phase.
	h.reject(PlayLand(alice, h.inHand(alice, forest.Name)))

	h.passToStep(1, rules.StepMain1)
	lands := []rules.CardID{}
	for _, id := range h.game.Zones().Hand(alice) {
		if h.card(id).Name() == forest.Name {
			lands = append(lands, id)
		}
	}
	require.GreaterOrEqual(t, len(lands), 2)

	d := h.do(PlayLand(alice, lands[0]))
	assert.Equal(t, bob, d.Player, "playing a land hands priority on")
	assert.Equal(t, rules.ZoneBattlefield, h.card(lands[0]).Zone)

	h.do(PassPriority(bob))
	h.do(PassPriority(carol))
	h.reject(PlayLand(alice, lands[1]))
}

func TestStackResolvesLastInFirstOut(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	target := h.onBattlefield(bob, bears)

	shockID := h.inHand(alice, shock.Name)
	d := h.do(CastSpell(alice, shockID, rules.CardTarget(target)))
	assert.Equal(t, bob, d.Player, "the caster does not keep priority")

	unsummonID := h.inHand(bob, unsummon.Name)
	h.do(CastSpell(bob, unsummonID, rules.CardTarget(target)))
	items := h.game.StackItems()
	require.Len(t, items, 2)
	assert.Equal(t, unsummonID, items[1].SourceID)
	shockItem := items[0].ID

	h.passAround()
	assert.Equal(t, rules.ZoneHand, h.card(target).Zone)
	require.Len(t, h.game.StackItems(), 1)

	d = h.passAround()
	assert.Empty(t, h.game.StackItems())
	assert.Equal(t, DecisionPriority, d.Kind)
	assert.Equal(t, alice, d.Player)

	countered := h.eventsOf(rules.EventStackItemCountered)
	require.Len(t, countered, 1)
	assert.Equal(t, shockItem, countered[0].Item)
	assert.Equal(t, string(rules.CounterReasonInvalidTargets), countered[0].Reason)
	assert.Equal(t, rules.ZoneGraveyard, h.card(shockID).Zone)
	assert.Equal(t, rules.ZoneGraveyard, h.card(unsummonID).Zone)
	assert.Equal(t, 40, h.game.Life(bob))
}

func TestDamageSpellKillsCreature(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	target := h.onBattlefield(bob, bears)

	h.do(CastSpell(alice, h.inHand(alice, shock.Name), rules.CardTarget(target)))
	h.passAround()

	assert.Equal(t, rules.ZoneGraveyard, h.card(target).Zone)
	assert.Contains(t, h.game.Zones().Graveyard(bob), target)
}

func TestActivatedAbility(t *testing.T) {
	pinger := zone.Characteristics{
		Name:      "Prodigal Pyromancer",
		Types:     []string{zone.TypeCreature},
		Power:     1,
		Toughness: 1,
		Abilities: []zone.Ability{{
			TapCost: true,
			Effect:  rules.Effect{Kind: rules.EffectDamage, Amount: 1, Target: rules.TargetAny},
		}},
	}
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	ready := h.onBattlefield(alice, pinger)
	sick := h.onBattlefield(alice, pinger)
	h.card(sick).Permanent.SummoningSick = true

	h.reject(ActivateAbility(alice, sick, 0, rules.PlayerTarget(bob)))
	h.reject(ActivateAbility(alice, ready, 1, rules.PlayerTarget(bob)))

	h.do(ActivateAbility(alice, ready, 0, rules.PlayerTarget(bob)))
	assert.True(t, h.card(ready).Tapped)
	items := h.game.StackItems()
	require.Len(t, items, 1)
	assert.Equal(t, rules.StackItemKindActivated, items[0].Kind)

	h.passAround()
	assert.Equal(t, 39, h.game.Life(bob))
}

func TestEnterTheBattlefieldTrigger(t *testing.T) {
	healer := zone.Characteristics{
		Name:      "Lone Healer",
		Types:     []string{zone.TypeCreature},
		Power:     1,
		Toughness: 1,
		Triggers: []zone.TriggerSpec{{
			On:     rules.EventZoneChange,
			Effect: rules.Effect{Kind: rules.EffectGainLife, Amount: 3},
		}},
	}
	setup := threePlayerSetup()
	setup.Players[0].Library = deck(20, healer)
	h := newGameTestHarness(t, setup, DefaultSettings())
	h.passToStep(1, rules.StepMain1)

	id := h.inHand(alice, healer.Name)
	h.do(CastSpell(alice, id))
	d := h.passAround()

	assert.Equal(t, rules.ZoneBattlefield, h.card(id).Zone)
	assert.True(t, h.card(id).Permanent.SummoningSick)
	items := h.game.StackItems()
	require.Len(t, items, 1)
	assert.Equal(t, rules.StackItemKindTriggered, items[0].Kind)
	assert.Equal(t, alice, items[0].Controller)
	assert.Equal(t, alice, d.Player)

	h.passAround()
	assert.Equal(t, 43, h.game.Life(alice))
}

func TestCommanderZoneChoice(t *testing.T) {
	for _, toCommandZone := range []bool{true, false} {
		toCommandZone := toCommandZone
		name := "keeps destination"
		if toCommandZone {
			name = "returns to command zone"
		}
		t.Run(name, func(t *testing.T) {
			h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
			h.passToStep(1, rules.StepMain1)
			giantID := h.commanderOnBattlefield(alice)

			h.do(PassPriority(alice))
			h.do(CastSpell(bob, h.inHand(bob, murder.Name), rules.CardTarget(giantID)))
			d := h.passAround()

			assert.Equal(t, DecisionCommanderZone, d.Kind)
			assert.Equal(t, alice, d.Player)
			assert.Equal(t, giantID, d.Card)
			assert.Equal(t, rules.ZoneBattlefield, d.From)
			assert.Equal(t, rules.ZoneGraveyard, d.To)
			assert.Equal(t, rules.ZoneBattlefield, h.card(giantID).Zone, "the move waits for the owner")

			h.reject(PassPriority(alice))
			h.reject(ChooseCommanderZone(bob, giantID, true))

			d = h.do(ChooseCommanderZone(alice, giantID, toCommandZone))
			assert.Equal(t, DecisionPriority, d.Kind)
			if toCommandZone {
				assert.Equal(t, rules.ZoneCommand, h.card(giantID).Zone)
				assert.Equal(t, 1, h.game.CommanderTransitions(giantID))
				assert.Equal(t, 2, h.game.CommanderTax(giantID))
			} else {
				assert.Equal(t, rules.ZoneGraveyard, h.card(giantID).Zone)
				assert.Equal(t, 0, h.game.CommanderTransitions(giantID))
			}
		})
	}
}

func TestCounteredCommanderReturnsToCommandZone(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	giantID := h.game.Commanders(alice)[0]

	h.do(CastSpell(alice, giantID))
	items := h.game.StackItems()
	require.Len(t, items, 1)
	cast := h.eventsOf(rules.EventSpellCast)
	require.Len(t, cast, 1)
	assert.Equal(t, rules.ZoneCommand, cast[0].FromZone)

	h.do(CastSpell(bob, h.inHand(bob, counterspell.Name), rules.ItemTarget(items[0].ID)))
	d := h.passAround()

	countered := h.eventsOf(rules.EventStackItemCountered)
	require.Len(t, countered, 1)
	assert.Equal(t, string(rules.CounterReasonCounterSpell), countered[0].Reason)
	require.Equal(t, DecisionCommanderZone, d.Kind)
	assert.Equal(t, rules.ZoneStack, d.From)
	assert.Equal(t, rules.ZoneGraveyard, d.To)

	h.do(ChooseCommanderZone(alice, giantID, true))
	assert.Equal(t, rules.ZoneCommand, h.card(giantID).Zone)
	assert.Equal(t, 2, h.game.CommanderTax(giantID))
	assert.Empty(t, h.game.StackItems())
}

func TestAlwaysPolicySkipsTheQuestion(t *testing.T) {
	setup := threePlayerSetup()
	setup.Players[0].CommandZonePolicy = commander.PolicyAlways
	h := newGameTestHarness(t, setup, DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	giantID := h.commanderOnBattlefield(alice)

	h.do(PassPriority(alice))
	h.do(CastSpell(bob, h.inHand(bob, murder.Name), rules.CardTarget(giantID)))
	d := h.passAround()

	assert.Equal(t, DecisionPriority, d.Kind)
	assert.Equal(t, rules.ZoneCommand, h.card(giantID).Zone)
	assert.Equal(t, 1, h.game.CommanderTransitions(giantID))
}

func TestCommanderDamageEliminatesOnce(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	giantID := h.commanderOnBattlefield(alice)

	h.attackWith(combat.Attack{Attacker: giantID, Defender: bob})
	assert.Equal(t, 28, h.game.Life(bob))
	assert.Equal(t, 12, h.game.CommanderDamage(giantID, bob))
	assert.True(t, h.card(giantID).Tapped)

	d := h.passUntil(func(d Decision) bool {
		return d.Kind == DecisionDeclareAttackers && d.Turn == 4
	})
	require.Equal(t, alice, d.Player)
	h.card(giantID).Permanent.PowerModifier = -3

	h.attackWith(combat.Attack{Attacker: giantID, Defender: bob})
	assert.Equal(t, 21, h.game.CommanderDamage(giantID, bob))
	assert.Equal(t, 19, h.game.Life(bob), "commander damage is also life loss")

	p, _ := h.game.Player(bob)
	assert.True(t, p.Eliminated)
	assert.Equal(t, rules.EliminationCommanderDamage, p.Reason)
	assert.Equal(t, []rules.PlayerID{alice, carol}, h.game.Remaining())
	assert.Len(t, h.eventsOf(rules.EventPlayerEliminated), 1)
	assert.Empty(t, h.game.Zones().Hand(bob), "an eliminated player's cards leave the game")
	assert.False(t, h.game.Over())
}

func TestBlockedAttackerDamageIsSimultaneous(t *testing.T) {
	hillGiant := zone.Characteristics{Name: "Hill Giant", Types: []string{zone.TypeCreature}, Power: 3, Toughness: 3}
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	attacker := h.onBattlefield(alice, hillGiant)
	first := h.onBattlefield(bob, bears)
	second := h.onBattlefield(bob, bears)

	d := h.passUntil(func(d Decision) bool { return d.Kind == DecisionDeclareAttackers })
	h.do(DeclareAttackers(d.Player, combat.Attack{Attacker: attacker, Defender: bob}))
	d = h.passUntil(func(d Decision) bool { return d.Kind == DecisionDeclareBlockers })
	require.Equal(t, bob, d.Player)
	assert.Equal(t, []rules.CardID{attacker}, d.Attackers)

	h.do(DeclareBlockers(bob,
		combat.Block{Blocker: first, Attacker: attacker},
		combat.Block{Blocker: second, Attacker: attacker},
	))
	h.passUntil(func(d Decision) bool { return d.Step == rules.StepEndCombat.String() })

	assert.Equal(t, rules.ZoneGraveyard, h.card(attacker).Zone, "both blockers deal damage")
	assert.Equal(t, rules.ZoneGraveyard, h.card(first).Zone)
	assert.Equal(t, rules.ZoneBattlefield, h.card(second).Zone)
	assert.Equal(t, 1, h.card(second).Permanent.Damage)
	assert.Equal(t, 40, h.game.Life(bob))
}

func TestMonarchStolenByCombatDamage(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	attacker := h.onBattlefield(alice, bears)
	require.NoError(t, h.game.SetMonarch(bob, rules.NoCard))
	assert.Equal(t, bob, h.game.Monarch())

	h.attackWith(combat.Attack{Attacker: attacker, Defender: bob})
	assert.Equal(t, alice, h.game.Monarch())
	assert.Len(t, h.eventsOf(rules.EventMonarchChanged), 2)

	h.passToStep(1, rules.StepEnd)
	assert.Len(t, h.game.Zones().Hand(alice), 8, "the monarch draws at the end step")

	h.passToStep(2, rules.StepUpkeep)
	assert.Len(t, h.game.Zones().Hand(alice), 7, "cleanup discards down to the maximum hand size")
}

func TestConcede(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())

	d := h.do(Concede(carol))
	assert.Equal(t, alice, d.Player)
	assert.Equal(t, []rules.PlayerID{alice, bob}, h.game.Remaining())
	p, _ := h.game.Player(carol)
	assert.Equal(t, rules.EliminationConceded, p.Reason)
	assert.Empty(t, h.game.Zones().Hand(carol))
	assert.Empty(t, h.game.Zones().Library(carol))

	_, err := h.game.Submit(PassPriority(carol))
	assert.ErrorIs(t, err, rules.ErrInvalidAction)

	d = h.do(Concede(bob))
	assert.Equal(t, DecisionGameOver, d.Kind)
	assert.Equal(t, alice, d.Winner)
	assert.True(t, h.game.Over())
	assert.Len(t, h.eventsOf(rules.EventGameOver), 1)

	_, err = h.game.Submit(PassPriority(alice))
	assert.ErrorIs(t, err, rules.ErrGameOver)
}

func TestActivePlayerConcedeEndsTurn(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	h.passToStep(1, rules.StepMain1)
	h.do(CastSpell(alice, h.inHand(alice, shock.Name), rules.PlayerTarget(bob)))

	d := h.do(Concede(alice))
	assert.Equal(t, DecisionPriority, d.Kind)
	assert.Equal(t, 2, d.Turn)
	assert.Equal(t, bob, d.Player)
	assert.Equal(t, rules.StepUpkeep.String(), d.Step)
	assert.Empty(t, h.game.StackItems(), "the eliminated player's spells leave the stack")
	assert.Equal(t, 40, h.game.Life(bob))
}

func TestDrawFromEmptyLibraryLoses(t *testing.T) {
	setup := Setup{Players: []PlayerSetup{
		{ID: alice, Library: deck(20)},
		{ID: bob, Library: []CardEntry{{Characteristics: forest, Count: 7}}},
	}}
	h := newGameTestHarness(t, setup, DefaultSettings())

	d := h.passUntil(func(d Decision) bool { return d.Kind == DecisionGameOver })
	assert.Equal(t, alice, d.Winner)
	assert.Equal(t, 2, d.Turn)
	p, _ := h.game.Player(bob)
	assert.Equal(t, rules.EliminationEmptyLibrary, p.Reason)
}

func TestLifeTotalLoss(t *testing.T) {
	settings := DefaultSettings()
	settings.StartingLife = 2
	setup := Setup{Players: []PlayerSetup{
		{ID: alice, Library: deck(20, shock)},
		{ID: bob, Library: deck(20)},
	}}
	h := newGameTestHarness(t, setup, settings)
	h.passToStep(1, rules.StepMain1)

	h.do(CastSpell(alice, h.inHand(alice, shock.Name), rules.PlayerTarget(bob)))
	d := h.passAround()

	assert.Equal(t, DecisionGameOver, d.Kind)
	assert.Equal(t, alice, d.Winner)
	p, _ := h.game.Player(bob)
	assert.Equal(t, rules.EliminationLifeTotal, p.Reason)
}

func TestEventsAreSequenced(t *testing.T) {
	h := newGameTestHarness(t, threePlayerSetup(), DefaultSettings())
	var seen []rules.Event
	h.game.Bus().Subscribe(func(ev rules.Event) { seen = append(seen, ev) })

	last := h.game.LastEventSeq()
	h.passToStep(1, rules.StepMain1)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, h.game.EventsSince(last))
	for i, ev := range seen {
		assert.Equal(t, last+uint64(i)+1, ev.Seq)
	}
}
