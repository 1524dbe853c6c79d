package game

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/targeting"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// accepted reports whether Submit committed the action despite the error.
// Only a declaration with some illegal blocks is partially committed.
func accepted(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, rules.ErrIllegalBlock) && !errors.Is(err, rules.ErrInvalidAction)
}

// Accepted reports whether an error returned by Submit still left the action
// applied. It is true for nil and for block declarations rejected in part.
func Accepted(err error) bool { return accepted(err) }

// Submit applies one player action and advances the game to its next
// decision. A rejected action returns the unchanged decision and an error
// wrapping rules.ErrInvalidAction.
func (g *Game) Submit(action Action) (Decision, error) {
	if g.over {
		return g.Decision(), fmt.Errorf("%w: %s from %s", rules.ErrGameOver, action.Kind, action.Player)
	}
	if !g.turn.InGame(action.Player) {
		return g.Decision(), fmt.Errorf("%w: %s is not in the game", rules.ErrInvalidAction, action.Player)
	}

	err := g.apply(action)
	if !accepted(err) {
		g.logger.Debug("action rejected",
			zap.String("kind", string(action.Kind)),
			zap.String("player", string(action.Player)),
			zap.Error(err),
		)
		return g.Decision(), err
	}
	g.run()

	decision := g.Decision()
	g.logger.Debug("action applied",
		zap.String("kind", string(action.Kind)),
		zap.String("player", string(action.Player)),
		zap.String("next", decision.String()),
	)
	return decision, err
}

// expects maps an action kind to the decision it answers.
var expects = map[ActionKind]DecisionKind{
	ActionPassPriority:        DecisionPriority,
	ActionCastSpell:           DecisionPriority,
	ActionActivateAbility:     DecisionPriority,
	ActionPlayLand:            DecisionPriority,
	ActionOrderBlockers:       DecisionPriority,
	ActionDeclareAttackers:    DecisionDeclareAttackers,
	ActionDeclareBlockers:     DecisionDeclareBlockers,
	ActionChooseCommanderZone: DecisionCommanderZone,
}

func (g *Game) apply(a Action) error {
	if a.Kind == ActionConcede {
		g.concede(a.Player)
		return nil
	}

	want, ok := expects[a.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown action kind %q", rules.ErrInvalidAction, a.Kind)
	}
	d := g.Decision()
	if d.Kind != want {
		return fmt.Errorf("%w: %s while waiting for %s", rules.ErrInvalidAction, a.Kind, d)
	}
	// Damage assignment order is a turn-based choice of the attacking player
	// and needs no priority.
	if a.Kind != ActionOrderBlockers && a.Player != d.Player {
		return fmt.Errorf("%w: %s from %s while waiting for %s", rules.ErrInvalidAction, a.Kind, a.Player, d.Player)
	}

	switch a.Kind {
	case ActionPassPriority:
		return g.passPriority(a.Player)
	case ActionCastSpell:
		return g.castSpell(a)
	case ActionActivateAbility:
		return g.activateAbility(a)
	case ActionPlayLand:
		return g.playLand(a)
	case ActionDeclareAttackers:
		return g.declareAttackers(a)
	case ActionDeclareBlockers:
		return g.declareBlockers(a)
	case ActionOrderBlockers:
		return g.orderBlockers(a)
	case ActionChooseCommanderZone:
		return g.chooseCommanderZone(a)
	}
	return nil
}

func (g *Game) passPriority(player rules.PlayerID) error {
	if err := g.priority.Pass(player, g.turn.NextSeat(player)); err != nil {
		return fmt.Errorf("%w: %v", rules.ErrInvalidAction, err)
	}
	if g.priority.AllPassed(g.turn.Remaining()) {
		g.allPassed()
	}
	return nil
}

// allPassed resolves the top of the stack, or ends the step when the stack
// is empty.
func (g *Game) allPassed() {
	if g.stack.IsEmpty() {
		g.stepDone = true
		return
	}
	g.resolveTop()
	g.startPriority()
}

// sorcerySpeed reports whether the player may do sorcery-speed things now.
func (g *Game) sorcerySpeed(player rules.PlayerID) bool {
	return player == g.turn.ActivePlayer() && g.turn.CurrentStep().IsMain() && g.stack.IsEmpty()
}

// chooseTargets validates the chosen targets and pins card targets to their
// current incarnation.
func (g *Game) chooseTargets(effect rules.Effect, targets []rules.Target) ([]rules.Target, error) {
	if err := g.validator.ValidateTargetSelection(targets, targeting.RequirementFor(effect)); err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidAction, err)
	}
	if len(targets) == 0 {
		return nil, nil
	}
	pinned := make([]rules.Target, len(targets))
	for i, target := range targets {
		if target.IsCard() {
			if card, ok := g.zones.Card(target.Card); ok {
				target.Incarnation = card.Incarnation
			}
		}
		pinned[i] = target
	}
	return pinned, nil
}

// spellEffect is what a spell card does when it resolves.
func spellEffect(chars zone.Characteristics) rules.Effect {
	if chars.IsPermanent() {
		return rules.Effect{Kind: rules.EffectPermanent}
	}
	return chars.Spell
}

func (g *Game) castSpell(a Action) error {
	card, ok := g.zones.Card(a.Card)
	if !ok {
		return fmt.Errorf("%w: unknown card %d", rules.ErrInvalidAction, a.Card)
	}
	if card.Owner != a.Player {
		return fmt.Errorf("%w: %s does not own %s", rules.ErrInvalidAction, a.Player, card.Name())
	}
	switch card.Zone {
	case rules.ZoneHand:
	case rules.ZoneCommand:
		if !card.Commander {
			return fmt.Errorf("%w: %s is not a commander", rules.ErrInvalidAction, card.Name())
		}
	default:
		return fmt.Errorf("%w: %s cannot be cast from %s", rules.ErrInvalidAction, card.Name(), card.Zone)
	}
	chars := card.Characteristics
	if chars.IsLand() {
		return fmt.Errorf("%w: %s is a land", rules.ErrInvalidAction, card.Name())
	}
	if !chars.IsInstant() && !g.sorcerySpeed(a.Player) {
		return fmt.Errorf("%w: %s can only be cast at sorcery speed", rules.ErrInvalidAction, card.Name())
	}
	effect := spellEffect(chars)
	targets, err := g.chooseTargets(effect, a.Targets)
	if err != nil {
		return err
	}

	from := card.Zone
	if _, err := g.zones.Commit(card.ID, rules.ZoneStack, zone.MoveOptions{}); err != nil {
		return err
	}
	id := g.stack.Push(rules.StackItem{
		Kind:        rules.StackItemKindSpell,
		SourceID:    card.ID,
		Controller:  a.Player,
		Targets:     targets,
		Effect:      effect,
		Description: fmt.Sprintf("%s casts %s", a.Player, card.Name()),
	})

	evt := rules.NewEvent(rules.EventSpellCast, a.Player, card.ID)
	evt.Item = id
	evt.FromZone = from
	evt.Description = card.Name()
	if from == rules.ZoneCommand {
		evt.Amount = g.commander.Tax(card.ID)
	}
	g.emit(evt)

	g.logger.Debug("spell cast",
		zap.String("player", string(a.Player)),
		zap.Int("card_id", int(card.ID)),
		zap.String("card_name", card.Name()),
		zap.Int("stack_item", int(id)),
	)
	g.acted(a.Player)
	return nil
}

func (g *Game) activateAbility(a Action) error {
	card, ok := g.zones.Card(a.Card)
	if !ok || card.Zone != rules.ZoneBattlefield {
		return fmt.Errorf("%w: card %d is not on the battlefield", rules.ErrInvalidAction, a.Card)
	}
	if card.Controller() != a.Player {
		return fmt.Errorf("%w: %s does not control %s", rules.ErrInvalidAction, a.Player, card.Name())
	}
	abilities := card.Characteristics.Abilities
	if a.Ability < 0 || a.Ability >= len(abilities) {
		return fmt.Errorf("%w: %s has no ability %d", rules.ErrInvalidAction, card.Name(), a.Ability)
	}
	ability := abilities[a.Ability]
	if ability.TapCost {
		if card.Tapped {
			return fmt.Errorf("%w: %s is tapped", rules.ErrInvalidAction, card.Name())
		}
		if !card.CanAttackOrTap() {
			return fmt.Errorf("%w: %s has summoning sickness", rules.ErrInvalidAction, card.Name())
		}
	}
	targets, err := g.chooseTargets(ability.Effect, a.Targets)
	if err != nil {
		return err
	}

	if ability.TapCost {
		card.Tapped = true
	}
	description := ability.Description
	if description == "" {
		description = fmt.Sprintf("%s ability %d", card.Name(), a.Ability)
	}
	id := g.stack.Push(rules.StackItem{
		Kind:        rules.StackItemKindActivated,
		SourceID:    card.ID,
		Controller:  a.Player,
		Targets:     targets,
		Effect:      ability.Effect,
		Description: description,
	})
	evt := rules.NewEventWithAmount(rules.EventActivatedAbility, a.Player, card.ID, a.Ability)
	evt.Item = id
	evt.Description = description
	g.emit(evt)
	g.acted(a.Player)
	return nil
}

func (g *Game) playLand(a Action) error {
	card, ok := g.zones.Card(a.Card)
	if !ok || card.Zone != rules.ZoneHand || card.Owner != a.Player {
		return fmt.Errorf("%w: card %d is not in %s's hand", rules.ErrInvalidAction, a.Card, a.Player)
	}
	if !card.Characteristics.IsLand() {
		return fmt.Errorf("%w: %s is not a land", rules.ErrInvalidAction, card.Name())
	}
	if !g.sorcerySpeed(a.Player) {
		return fmt.Errorf("%w: lands are played in your main phase with an empty stack", rules.ErrInvalidAction)
	}
	p := g.players[a.Player]
	if p.LandsPlayed > 0 {
		return fmt.Errorf("%w: %s already played a land this turn", rules.ErrInvalidAction, a.Player)
	}

	if _, err := g.zones.Commit(card.ID, rules.ZoneBattlefield, zone.MoveOptions{Controller: a.Player}); err != nil {
		return err
	}
	p.LandsPlayed++
	evt := rules.NewEvent(rules.EventLandPlayed, a.Player, card.ID)
	evt.Description = card.Name()
	g.emit(evt)
	g.acted(a.Player)
	return nil
}

func (g *Game) declareAttackers(a Action) error {
	if err := g.combat.DeclareAttackers(a.Player, a.Attacks, g.opponents(a.Player)); err != nil {
		return err
	}
	g.attackersPending = false
	g.startPriority()
	return nil
}

func (g *Game) declareBlockers(a Action) error {
	err := g.combat.DeclareBlockers(a.Player, a.Blocks)
	if !accepted(err) {
		return err
	}
	g.blockersPending = g.blockersPending[1:]
	if len(g.blockersPending) == 0 {
		g.startPriority()
	}
	return err
}

func (g *Game) orderBlockers(a Action) error {
	if g.turn.CurrentStep() != rules.StepDeclareBlockers {
		return fmt.Errorf("%w: blockers are ordered in the declare blockers step", rules.ErrInvalidAction)
	}
	return g.combat.OrderBlockers(a.Player, a.Card, a.Order)
}

func (g *Game) chooseCommanderZone(a Action) error {
	move := g.pendingMoves[0]
	if a.Card != move.Card {
		return fmt.Errorf("%w: waiting for a choice about card %d, got %d", rules.ErrInvalidAction, move.Card, a.Card)
	}
	card, ok := g.zones.Card(move.Card)
	if !ok || card.Zone != move.From {
		// The card left its zone some other way; nothing to move.
		g.pendingMoves = g.pendingMoves[1:]
		return nil
	}
	dest, err := g.commander.Choose(move.Card, move.From, move.To, a.ToCommandZone)
	if err != nil {
		return err
	}
	g.pendingMoves = g.pendingMoves[1:]
	if _, err := g.zones.Commit(move.Card, dest, zone.MoveOptions{}); err != nil {
		g.logger.Warn("commander move failed", zap.Int("card_id", int(move.Card)), zap.Error(err))
	}
	return nil
}

func (g *Game) concede(player rules.PlayerID) {
	evt := rules.NewEvent(rules.EventPlayerEliminated, player, rules.NoCard)
	evt.Reason = string(rules.EliminationConceded)
	evt.Description = fmt.Sprintf("%s conceded", player)
	g.emit(evt)
}

// acted hands priority on after the holder put something on the stack or
// played a land.
func (g *Game) acted(player rules.PlayerID) {
	if err := g.priority.Acted(player, g.turn.NextSeat(player)); err != nil {
		g.logger.Warn("priority out of sync", zap.String("player", string(player)), zap.Error(err))
	}
}

// opponents returns every other player still in the game.
func (g *Game) opponents(player rules.PlayerID) []rules.PlayerID {
	var out []rules.PlayerID
	for _, seat := range g.turn.Remaining() {
		if seat != player {
			out = append(out, seat)
		}
	}
	return out
}

func (g *Game) beginTurn() {
	active := g.turn.ActivePlayer()
	if p, ok := g.players[active]; ok {
		p.LandsPlayed = 0
	}
	evt := rules.NewEventWithAmount(rules.EventTurnBegan, active, rules.NoCard, g.turn.TurnNumber())
	evt.Description = fmt.Sprintf("turn %d: %s", g.turn.TurnNumber(), active)
	g.emit(evt)
	g.logger.Debug("turn began",
		zap.Int("turn", g.turn.TurnNumber()),
		zap.String("active_player", string(active)),
	)
}

// nextStep leaves the finished step and enters the next one.
func (g *Game) nextStep() {
	if g.turn.CurrentStep() == rules.StepDeclareBlockers {
		g.turn.SetHasFirstStrike(g.combat.HasAttackers() && g.combat.NeedsFirstStrikeStep())
	}
	_, step, newTurn := g.turn.AdvanceStep()
	if newTurn {
		g.beginTurn()
	}
	g.enterStep(step)
}

// enterStep performs the turn-based actions of a step and then either marks
// it done or waits for the decision it opens.
func (g *Game) enterStep(step rules.Step) {
	active := g.turn.ActivePlayer()
	evt := rules.NewEvent(rules.EventStepChanged, active, rules.NoCard)
	evt.Step = step
	evt.Description = step.String()
	g.emit(evt)

	switch step {
	case rules.StepUntap:
		for _, card := range g.zones.Permanents(active) {
			card.Tapped = false
			card.Permanent.SummoningSick = false
		}
		g.stepDone = true
		return
	case rules.StepDraw:
		if g.turn.TurnNumber() == 1 && g.settings.SkipFirstDraw {
			g.stepDone = true
			return
		}
		g.draw(active)
	case rules.StepBeginCombat:
		g.combat.Begin(active)
	case rules.StepDeclareAttackers:
		g.combat.BeginDeclareAttackers()
		g.attackersPending = true
		return
	case rules.StepDeclareBlockers:
		if !g.combat.HasAttackers() {
			g.stepDone = true
			return
		}
		g.blockersPending = g.combat.Defenders(g.turn.RemainingFrom(g.turn.NextSeat(active)))
		if len(g.blockersPending) > 0 {
			return
		}
	case rules.StepFirstStrikeDamage, rules.StepCombatDamage:
		if !g.combat.HasAttackers() {
			g.stepDone = true
			return
		}
		g.combat.DealDamage(step == rules.StepFirstStrikeDamage, lifeTotals{g})
	case rules.StepEndCombat:
		g.combat.End()
	case rules.StepEnd:
		if g.politics.Is(active) {
			g.draw(active)
		}
	case rules.StepCleanup:
		g.cleanup(active)
		g.stepDone = true
		return
	}
	g.startPriority()
}

// startPriority gives the active player priority with nobody having passed.
func (g *Game) startPriority() {
	active := g.turn.ActivePlayer()
	g.priority.Start(active)
	g.emit(rules.NewEvent(rules.EventPriority, active, rules.NoCard))
}

func (g *Game) draw(player rules.PlayerID) {
	if _, err := g.zones.Draw(player); err != nil {
		if errors.Is(err, rules.ErrEmptyLibrary) {
			if p, ok := g.players[player]; ok {
				p.DrewFromEmpty = true
			}
			g.logger.Info("draw from empty library", zap.String("player", string(player)))
			return
		}
		g.logger.Warn("draw failed", zap.String("player", string(player)), zap.Error(err))
	}
}

// cleanup discards down to the maximum hand size and ends "until end of
// turn" effects.
func (g *Game) cleanup(active rules.PlayerID) {
	if max := g.settings.MaxHandSize; max > 0 {
		hand := g.zones.Hand(active)
		if excess := len(hand) - max; excess > 0 {
			sort.Slice(hand, func(i, j int) bool { return hand[i] < hand[j] })
			for _, id := range hand[:excess] {
				g.move(id, rules.ZoneGraveyard, zone.MoveOptions{})
			}
		}
	}
	for _, card := range g.zones.Permanents("") {
		card.Permanent.Damage = 0
		card.Permanent.DeathtouchDamage = false
		card.Permanent.PowerModifier = 0
		card.Permanent.ToughnessModifier = 0
		card.Permanent.CombatKeywords = nil
	}
}

// pruneBlockers drops defenders that are no longer attacked, e.g. after the
// attackers left combat.
func (g *Game) pruneBlockers() {
	if len(g.blockersPending) == 0 {
		return
	}
	attacked := g.combat.Defenders(g.blockersPending)
	if len(attacked) == len(g.blockersPending) {
		return
	}
	g.blockersPending = attacked
	if len(attacked) == 0 {
		g.startPriority()
	}
}

// forceEndTurn skips the rest of the turn after the active player left the
// game. Combat ends and the turn goes straight to cleanup.
func (g *Game) forceEndTurn() {
	g.attackersPending = false
	g.blockersPending = nil
	if g.combat.State().AttackingPlayer != "" {
		g.combat.End()
	}
	g.turn.EndTurn()
	g.enterStep(rules.StepCleanup)
}
