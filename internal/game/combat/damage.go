package combat

import (
	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// Assignment is one piece of combat damage from a source to a creature or a
// player.
type Assignment struct {
	Source            rules.CardID   `json:"source"`
	SourceController  rules.PlayerID `json:"source_controller"`
	SourceIsCommander bool           `json:"source_is_commander,omitempty"`
	Deathtouch        bool           `json:"deathtouch,omitempty"`
	TargetCard        rules.CardID   `json:"target_card,omitempty"`
	TargetPlayer      rules.PlayerID `json:"target_player,omitempty"`
	Amount            int            `json:"amount"`
}

// DealDamage runs one combat damage step. Every assignment is computed
// against the state at the start of the step, then all of them are applied
// together. firstStrike selects the first strike damage step.
func (e *Engine) DealDamage(firstStrike bool, life LifeTotals) []Assignment {
	assignments := e.assign(firstStrike)

	for _, a := range assignments {
		evt := rules.NewEventWithAmount(rules.EventAssignCombatDamage, a.SourceController, a.TargetCard, a.Amount)
		evt.Source = a.Source
		evt.Target = a.TargetPlayer
		evt.SourceIsCommander = a.SourceIsCommander
		e.emit(evt)
	}

	for _, a := range assignments {
		if a.TargetPlayer != "" {
			life.LoseLife(a.TargetPlayer, a.Amount)
			continue
		}
		card, ok := e.zones.Card(a.TargetCard)
		if !ok || card.Permanent == nil {
			continue
		}
		card.Permanent.Damage += a.Amount
		if a.Deathtouch {
			card.Permanent.DeathtouchDamage = true
		}
	}

	for _, a := range assignments {
		if a.TargetPlayer == "" {
			continue
		}
		evt := rules.NewEventWithAmount(rules.EventCombatDamage, a.SourceController, rules.NoCard, a.Amount)
		evt.Source = a.Source
		evt.Target = a.TargetPlayer
		evt.SourceIsCommander = a.SourceIsCommander
		e.emit(evt)
	}
	e.emit(rules.NewEventWithAmount(rules.EventCombatDamageComplete, e.state.AttackingPlayer, rules.NoCard, len(assignments)))

	if firstStrike {
		e.state.FirstStrikeDone = true
	}
	e.logger.Debug("combat damage dealt",
		zap.Bool("first_strike", firstStrike),
		zap.Int("assignments", len(assignments)),
	)
	return assignments
}

func (e *Engine) assign(firstStrike bool) []Assignment {
	var out []Assignment

	for _, group := range e.state.Attackers {
		attacker, ok := e.zones.Card(group.Attacker)
		if !ok || attacker.Zone != rules.ZoneBattlefield || !e.dealsDamageThisStep(attacker, firstStrike) {
			continue
		}
		if firstStrike {
			e.recordFirstStriker(attacker.ID)
		}
		power := attacker.Power()
		if power <= 0 {
			continue
		}
		base := Assignment{
			Source:            attacker.ID,
			SourceController:  attacker.Controller(),
			SourceIsCommander: attacker.Commander,
			Deathtouch:        attacker.HasKeyword(zone.KeywordDeathtouch),
		}
		trample := attacker.HasKeyword(zone.KeywordTrample)

		if !group.Blocked {
			out = append(out, withPlayer(base, group.Defender, power))
			continue
		}

		var alive []*zone.Card
		for _, id := range group.Blockers {
			if blocker, ok := e.zones.Card(id); ok && blocker.Zone == rules.ZoneBattlefield {
				alive = append(alive, blocker)
			}
		}
		if len(alive) == 0 {
			// Blocked, but every blocker is gone: only trample gets through.
			if trample {
				out = append(out, withPlayer(base, group.Defender, power))
			}
			continue
		}

		remaining := power
		for i, blocker := range alive {
			if remaining <= 0 {
				break
			}
			amount := lethalDamage(blocker, base.Deathtouch)
			if amount > remaining {
				amount = remaining
			}
			if i == len(alive)-1 && !trample {
				amount = remaining
			}
			if amount > 0 {
				out = append(out, withCard(base, blocker.ID, amount))
			}
			remaining -= amount
		}
		if remaining > 0 && trample {
			out = append(out, withPlayer(base, group.Defender, remaining))
		}
	}

	for _, group := range e.state.Attackers {
		attacker, ok := e.zones.Card(group.Attacker)
		if !ok || attacker.Zone != rules.ZoneBattlefield {
			continue
		}
		for _, id := range group.Blockers {
			blocker, ok := e.zones.Card(id)
			if !ok || blocker.Zone != rules.ZoneBattlefield || !e.dealsDamageThisStep(blocker, firstStrike) {
				continue
			}
			if firstStrike {
				e.recordFirstStriker(blocker.ID)
			}
			power := blocker.Power()
			if power <= 0 {
				continue
			}
			out = append(out, Assignment{
				Source:            blocker.ID,
				SourceController:  blocker.Controller(),
				SourceIsCommander: blocker.Commander,
				Deathtouch:        blocker.HasKeyword(zone.KeywordDeathtouch),
				TargetCard:        attacker.ID,
				Amount:            power,
			})
		}
	}
	return out
}

// dealsDamageThisStep: in the first strike step only first and double
// strikers deal damage; in the regular step everyone who did not already
// strike first, plus double strikers.
func (e *Engine) dealsDamageThisStep(card *zone.Card, firstStrike bool) bool {
	first := card.HasKeyword(zone.KeywordFirstStrike)
	double := card.HasKeyword(zone.KeywordDoubleStrike)
	if firstStrike {
		return first || double
	}
	if !e.state.FirstStrikeDone {
		return true
	}
	if double {
		return true
	}
	for _, id := range e.state.FirstStrikers {
		if id == card.ID {
			return false
		}
	}
	return true
}

func (e *Engine) recordFirstStriker(id rules.CardID) {
	for _, existing := range e.state.FirstStrikers {
		if existing == id {
			return
		}
	}
	e.state.FirstStrikers = append(e.state.FirstStrikers, id)
}

// lethalDamage is the damage still needed to destroy the creature; any
// amount is lethal from a deathtouch source.
func lethalDamage(creature *zone.Card, deathtouch bool) int {
	lethal := creature.Toughness()
	if creature.Permanent != nil {
		lethal -= creature.Permanent.Damage
	}
	if lethal < 0 {
		lethal = 0
	}
	if deathtouch && lethal > 1 {
		lethal = 1
	}
	return lethal
}

func withPlayer(base Assignment, player rules.PlayerID, amount int) Assignment {
	base.TargetPlayer = player
	base.Amount = amount
	return base
}

func withCard(base Assignment, card rules.CardID, amount int) Assignment {
	base.TargetCard = card
	base.Amount = amount
	return base
}
