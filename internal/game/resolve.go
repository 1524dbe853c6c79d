package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/counters"
	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/targeting"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// resolveTop resolves the top stack item. An item whose targets have all
// become illegal is countered; otherwise it resolves against the targets
// that are still legal.
func (g *Game) resolveTop() {
	item, err := g.stack.Peek()
	if err != nil {
		return
	}
	// The item stays on the stack when it cannot start resolving.
	if err := g.resolution.BeginResolution(item.ID); err != nil {
		g.logger.Warn("resolution already in progress", zap.Int("stack_item", int(item.ID)), zap.Error(err))
		return
	}
	g.stack.Pop()
	defer func() {
		if err := g.resolution.EndResolution(item.ID); err != nil {
			g.logger.Warn("failed to end resolution", zap.Int("stack_item", int(item.ID)), zap.Error(err))
		}
	}()

	targets := item.Targets
	if len(item.Targets) > 0 {
		targets = g.validator.LegalTargets(item.Targets, targeting.RequirementFor(item.Effect))
		if len(targets) == 0 {
			g.countered(item, rules.CounterReasonInvalidTargets)
			return
		}
	}

	g.applyEffect(item, targets)

	evt := rules.NewEvent(rules.EventStackItemResolved, item.Controller, item.SourceID)
	evt.Item = item.ID
	evt.Description = item.Description
	g.emit(evt)

	g.logger.Debug("stack item resolved",
		zap.Int("stack_item", int(item.ID)),
		zap.String("kind", string(item.Kind)),
		zap.String("effect", string(item.Effect.Kind)),
		zap.Int("legal_targets", len(targets)),
	)

	if item.Kind == rules.StackItemKindSpell && item.Effect.Kind != rules.EffectPermanent {
		g.spellToGraveyard(item.SourceID)
	}
}

// countered removes an item's effect from the game. The spell card, if any,
// goes to its owner's graveyard unless its controller left the game.
func (g *Game) countered(item rules.StackItem, reason rules.CounterReason) {
	evt := rules.NewEvent(rules.EventStackItemCountered, item.Controller, item.SourceID)
	evt.Item = item.ID
	evt.Source = item.SourceID
	evt.Reason = string(reason)
	evt.Description = item.Description
	g.emit(evt)

	g.logger.Debug("stack item countered",
		zap.Int("stack_item", int(item.ID)),
		zap.String("reason", string(reason)),
	)

	if item.Kind == rules.StackItemKindSpell && reason != rules.CounterReasonEliminated {
		g.spellToGraveyard(item.SourceID)
	}
}

func (g *Game) spellToGraveyard(id rules.CardID) {
	if z, ok := g.zones.ZoneOf(id); ok && z == rules.ZoneStack {
		g.move(id, rules.ZoneGraveyard, zone.MoveOptions{})
	}
}

// applyEffect carries out an effect against its legal targets.
func (g *Game) applyEffect(item rules.StackItem, targets []rules.Target) {
	effect := item.Effect
	switch effect.Kind {
	case rules.EffectPermanent:
		g.move(item.SourceID, rules.ZoneBattlefield, zone.MoveOptions{Controller: item.Controller})
	case rules.EffectDamage:
		for _, target := range targets {
			g.dealDamage(item, target, effect.Amount)
		}
	case rules.EffectDestroy:
		g.moveTargets(targets, rules.ZoneGraveyard)
	case rules.EffectExile:
		g.moveTargets(targets, rules.ZoneExile)
	case rules.EffectBounce:
		g.moveTargets(targets, rules.ZoneHand)
	case rules.EffectCounter:
		if len(item.Targets) == 0 {
			if top, err := g.stack.Peek(); err == nil {
				g.stack.Remove(top.ID)
				g.countered(top, rules.CounterReasonCounterSpell)
			}
			return
		}
		for _, target := range targets {
			if removed, ok := g.stack.Remove(target.Item); ok {
				g.countered(removed, rules.CounterReasonCounterSpell)
			}
		}
	case rules.EffectDraw:
		n := effect.Amount
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			g.draw(item.Controller)
		}
	case rules.EffectGainLife:
		g.gainLife(item.Controller, effect.Amount)
	case rules.EffectPump:
		for _, card := range g.targetPermanents(targets) {
			card.Permanent.PowerModifier += effect.Amount
			card.Permanent.ToughnessModifier += effect.Amount
		}
	case rules.EffectAddCounters:
		kind := counters.CounterType(effect.Counter)
		if kind == "" {
			kind = counters.CounterTypeP1P1
		}
		amount := effect.Amount
		if amount < 1 {
			amount = 1
		}
		for _, card := range g.targetPermanents(targets) {
			card.Counters.Add(kind, amount)
		}
	case rules.EffectBecomeMonarch:
		g.politics.Set(item.Controller, item.SourceID)
	case rules.EffectGrantKeyword:
		keyword := zone.Keyword(effect.Keyword)
		for _, card := range g.targetPermanents(targets) {
			if !card.HasKeyword(keyword) {
				card.Permanent.CombatKeywords = append(card.Permanent.CombatKeywords, keyword)
			}
		}
	case rules.EffectCreateToken:
		name := effect.Token
		if name == "" {
			name = "Token"
		}
		chars := zone.Characteristics{
			Name:      name,
			Types:     []string{zone.TypeCreature},
			Power:     effect.Power,
			Toughness: effect.Toughness,
		}
		for i := 0; i < max(effect.Amount, 1); i++ {
			g.zones.CreateToken(item.Controller, item.Controller, chars)
		}
	default:
		g.logger.Debug("effect does nothing", zap.String("effect", string(effect.Kind)))
	}
}

// dealDamage deals noncombat damage from a stack item's source.
func (g *Game) dealDamage(item rules.StackItem, target rules.Target, amount int) {
	if amount <= 0 {
		return
	}
	evt := rules.NewEventWithAmount(rules.EventDamage, item.Controller, rules.NoCard, amount)
	evt.Source = item.SourceID
	if target.IsPlayer() {
		evt.Target = target.Player
		evt.Description = fmt.Sprintf("%d damage to %s", amount, target.Player)
		g.emit(evt)
		g.loseLife(target.Player, amount)
		return
	}
	card, ok := g.zones.Card(target.Card)
	if !ok || card.Permanent == nil {
		return
	}
	card.Permanent.Damage += amount
	evt.Card = card.ID
	evt.Target = card.Controller()
	evt.Description = fmt.Sprintf("%d damage to %s", amount, card.Name())
	g.emit(evt)
}

func (g *Game) moveTargets(targets []rules.Target, to rules.Zone) {
	for _, card := range g.targetPermanents(targets) {
		g.move(card.ID, to, zone.MoveOptions{})
	}
}

// targetPermanents returns the cards behind the card targets that are
// still on the battlefield.
func (g *Game) targetPermanents(targets []rules.Target) []*zone.Card {
	var out []*zone.Card
	for _, target := range targets {
		if !target.IsCard() {
			continue
		}
		if card, ok := g.zones.Card(target.Card); ok && card.Permanent != nil {
			out = append(out, card)
		}
	}
	return out
}
