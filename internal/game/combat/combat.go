// Package combat runs the declare-attackers, declare-blockers and damage
// steps of a turn.
package combat

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
	"github.com/magefree/mage-commander/internal/game/zone"
)

// Attack assigns an attacking creature to a defending player.
type Attack struct {
	Attacker rules.CardID   `json:"attacker"`
	Defender rules.PlayerID `json:"defender"`
}

// Block assigns a blocking creature to the attacker it blocks.
type Block struct {
	Blocker  rules.CardID `json:"blocker"`
	Attacker rules.CardID `json:"attacker"`
}

// AttackerState is one attacking creature with its blockers in damage
// assignment order.
type AttackerState struct {
	Attacker   rules.CardID   `json:"attacker"`
	Controller rules.PlayerID `json:"controller"`
	Defender   rules.PlayerID `json:"defender"`
	Blocked    bool           `json:"blocked,omitempty"`
	Blockers   []rules.CardID `json:"blockers,omitempty"`
}

// State is the combat bookkeeping for the current turn.
type State struct {
	AttackingPlayer rules.PlayerID  `json:"attacking_player,omitempty"`
	Declared        bool            `json:"declared,omitempty"`
	Attackers       []AttackerState `json:"attackers,omitempty"`
	FirstStrikers   []rules.CardID  `json:"first_strikers,omitempty"`
	FirstStrikeDone bool            `json:"first_strike_done,omitempty"`
}

// LifeTotals receives combat damage dealt to players.
type LifeTotals interface {
	LoseLife(player rules.PlayerID, amount int)
}

// Engine validates declarations and resolves combat damage against the
// zone engine's permanents.
type Engine struct {
	logger *zap.Logger
	zones  *zone.Engine
	emit   func(rules.Event)
	state  State
}

// NewEngine creates a combat engine reading permanents from zones.
func NewEngine(zones *zone.Engine, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger: logger,
		zones:  zones,
		emit:   func(rules.Event) {},
	}
}

// SetEmitter installs the sink for combat events.
func (e *Engine) SetEmitter(emit func(rules.Event)) {
	if emit == nil {
		emit = func(rules.Event) {}
	}
	e.emit = emit
}

// State returns a copy of the combat state.
func (e *Engine) State() State {
	out := State{
		AttackingPlayer: e.state.AttackingPlayer,
		Declared:        e.state.Declared,
		FirstStrikeDone: e.state.FirstStrikeDone,
		FirstStrikers:   append([]rules.CardID(nil), e.state.FirstStrikers...),
	}
	for _, group := range e.state.Attackers {
		group.Blockers = append([]rules.CardID(nil), group.Blockers...)
		out.Attackers = append(out.Attackers, group)
	}
	return out
}

// Restore replaces the combat state, used when importing a snapshot.
func (e *Engine) Restore(state State) {
	e.state = State{
		AttackingPlayer: state.AttackingPlayer,
		Declared:        state.Declared,
		FirstStrikeDone: state.FirstStrikeDone,
		FirstStrikers:   append([]rules.CardID(nil), state.FirstStrikers...),
	}
	for _, group := range state.Attackers {
		group.Blockers = append([]rules.CardID(nil), group.Blockers...)
		e.state.Attackers = append(e.state.Attackers, group)
	}
}

// Begin resets combat for the attacking player's beginning of combat step.
func (e *Engine) Begin(attackingPlayer rules.PlayerID) {
	e.state = State{AttackingPlayer: attackingPlayer}
}

// BeginDeclareAttackers opens the declare attackers step.
func (e *Engine) BeginDeclareAttackers() {
	e.emit(rules.NewEvent(rules.EventDeclareAttackersStepBegin, e.state.AttackingPlayer, rules.NoCard))
}

// HasAttackers reports whether any creature is attacking.
func (e *Engine) HasAttackers() bool {
	return len(e.state.Attackers) > 0
}

// IsAttacking reports whether the card is an attacking creature.
func (e *Engine) IsAttacking(card rules.CardID) bool {
	return e.group(card) != nil
}

// IsBlocking reports whether the card is a blocking creature.
func (e *Engine) IsBlocking(card rules.CardID) bool {
	_, ok := e.blockedBy(card)
	return ok
}

// Attackers returns the attacking creatures in declaration order.
func (e *Engine) Attackers() []AttackerState {
	return e.State().Attackers
}

// DeclareAttackers validates and commits the attacking player's whole
// declaration. Any invalid assignment rejects all of it with
// ErrInvalidAction. opponents are the players who may be attacked.
func (e *Engine) DeclareAttackers(player rules.PlayerID, attacks []Attack, opponents []rules.PlayerID) error {
	if player != e.state.AttackingPlayer {
		return fmt.Errorf("%w: %s is not the attacking player", rules.ErrInvalidAction, player)
	}
	if e.state.Declared {
		return fmt.Errorf("%w: attackers already declared", rules.ErrInvalidAction)
	}
	seen := make(map[rules.CardID]bool, len(attacks))
	for _, attack := range attacks {
		if seen[attack.Attacker] {
			return fmt.Errorf("%w: creature %d declared twice", rules.ErrInvalidAction, attack.Attacker)
		}
		seen[attack.Attacker] = true
		if err := e.canAttack(player, attack, opponents); err != nil {
			return fmt.Errorf("%w: %v", rules.ErrInvalidAction, err)
		}
	}

	for _, attack := range attacks {
		card, _ := e.zones.Card(attack.Attacker)
		if !card.HasKeyword(zone.KeywordVigilance) {
			card.Tapped = true
		}
		e.state.Attackers = append(e.state.Attackers, AttackerState{
			Attacker:   attack.Attacker,
			Controller: player,
			Defender:   attack.Defender,
		})
		evt := rules.NewEvent(rules.EventAttackerDeclared, player, attack.Attacker)
		evt.Target = attack.Defender
		evt.Description = fmt.Sprintf("%s attacks %s", card.Name(), attack.Defender)
		e.emit(evt)
	}
	e.state.Declared = true
	e.emit(rules.NewEventWithAmount(rules.EventDeclareAttackersStepEnd, player, rules.NoCard, len(attacks)))

	e.logger.Debug("attackers declared",
		zap.String("player", string(player)),
		zap.Int("attackers", len(attacks)),
	)
	return nil
}

func (e *Engine) canAttack(player rules.PlayerID, attack Attack, opponents []rules.PlayerID) error {
	card, ok := e.zones.Card(attack.Attacker)
	if !ok || card.Zone != rules.ZoneBattlefield {
		return fmt.Errorf("creature %d is not on the battlefield", attack.Attacker)
	}
	if !card.IsCreature() {
		return fmt.Errorf("%s is not a creature", card.Name())
	}
	if card.Controller() != player {
		return fmt.Errorf("%s is not controlled by %s", card.Name(), player)
	}
	if card.Tapped {
		return fmt.Errorf("%s is tapped", card.Name())
	}
	if !card.CanAttackOrTap() {
		return fmt.Errorf("%s has summoning sickness", card.Name())
	}
	if card.HasKeyword(zone.KeywordDefender) {
		return fmt.Errorf("%s has defender", card.Name())
	}
	for _, opponent := range opponents {
		if opponent == attack.Defender && opponent != player {
			return nil
		}
	}
	return fmt.Errorf("%s cannot be attacked", attack.Defender)
}

// Defenders returns the attacked players in the given seat order.
func (e *Engine) Defenders(seatOrder []rules.PlayerID) []rules.PlayerID {
	var out []rules.PlayerID
	for _, seat := range seatOrder {
		for _, group := range e.state.Attackers {
			if group.Defender == seat {
				out = append(out, seat)
				break
			}
		}
	}
	return out
}

// DeclareBlockers validates each block of a defending player on its own.
// Illegal assignments are returned joined, each wrapping ErrIllegalBlock;
// the legal ones are committed.
func (e *Engine) DeclareBlockers(player rules.PlayerID, blocks []Block) error {
	attacked := false
	for _, group := range e.state.Attackers {
		if group.Defender == player {
			attacked = true
			break
		}
	}
	if !attacked {
		return fmt.Errorf("%w: %s is not a defending player", rules.ErrInvalidAction, player)
	}

	var (
		errs     []error
		valid    []Block
		inDecl   = make(map[rules.CardID]bool, len(blocks))
		perGroup = make(map[rules.CardID]int)
	)
	for _, block := range blocks {
		if inDecl[block.Blocker] {
			errs = append(errs, fmt.Errorf("%w: creature %d already blocks", rules.ErrIllegalBlock, block.Blocker))
			continue
		}
		if err := e.canBlock(player, block); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", rules.ErrIllegalBlock, err))
			continue
		}
		inDecl[block.Blocker] = true
		valid = append(valid, block)
		perGroup[block.Attacker]++
	}

	// "Can't be blocked except by N or more creatures" drops every block on
	// that attacker when too few are declared.
	committed := valid[:0]
	for _, block := range valid {
		attacker, _ := e.zones.Card(block.Attacker)
		group := e.group(block.Attacker)
		min := attacker.Characteristics.MinBlockers
		if min > 1 && perGroup[block.Attacker]+len(group.Blockers) < min {
			errs = append(errs, fmt.Errorf("%w: %s can only be blocked by %d or more creatures",
				rules.ErrIllegalBlock, attacker.Name(), min))
			continue
		}
		committed = append(committed, block)
	}

	var newlyBlocked []rules.CardID
	for _, block := range committed {
		group := e.group(block.Attacker)
		if !group.Blocked {
			group.Blocked = true
			newlyBlocked = append(newlyBlocked, block.Attacker)
		}
		group.Blockers = append(group.Blockers, block.Blocker)

		declared := rules.NewEvent(rules.EventBlockerDeclared, player, block.Blocker)
		declared.Source = block.Attacker
		e.emit(declared)
		blocks := rules.NewEvent(rules.EventCreatureBlocks, player, block.Blocker)
		blocks.Source = block.Attacker
		e.emit(blocks)
	}
	for _, attacker := range newlyBlocked {
		group := e.group(attacker)
		blocked := rules.NewEvent(rules.EventCreatureBlocked, group.Controller, attacker)
		blocked.Target = player
		e.emit(blocked)
	}

	e.logger.Debug("blockers declared",
		zap.String("player", string(player)),
		zap.Int("blocks", len(committed)),
		zap.Int("rejected", len(errs)),
	)
	return errors.Join(errs...)
}

func (e *Engine) canBlock(player rules.PlayerID, block Block) error {
	blocker, ok := e.zones.Card(block.Blocker)
	if !ok || blocker.Zone != rules.ZoneBattlefield {
		return fmt.Errorf("creature %d is not on the battlefield", block.Blocker)
	}
	if !blocker.IsCreature() {
		return fmt.Errorf("%s is not a creature", blocker.Name())
	}
	if blocker.Controller() != player {
		return fmt.Errorf("%s is not controlled by %s", blocker.Name(), player)
	}
	if blocker.Tapped {
		return fmt.Errorf("%s is tapped", blocker.Name())
	}
	if e.IsBlocking(block.Blocker) {
		return fmt.Errorf("%s is already blocking", blocker.Name())
	}
	group := e.group(block.Attacker)
	if group == nil {
		return fmt.Errorf("creature %d is not attacking", block.Attacker)
	}
	if group.Defender != player {
		return fmt.Errorf("creature %d is not attacking %s", block.Attacker, player)
	}
	attacker, ok := e.zones.Card(block.Attacker)
	if !ok {
		return fmt.Errorf("creature %d is gone", block.Attacker)
	}
	if attacker.HasKeyword(zone.KeywordFlying) &&
		!blocker.HasKeyword(zone.KeywordFlying) && !blocker.HasKeyword(zone.KeywordReach) {
		return fmt.Errorf("%s cannot block flying %s", blocker.Name(), attacker.Name())
	}
	return nil
}

// OrderBlockers sets the damage assignment order of a blocked attacker. The
// order must be a permutation of its current blockers.
func (e *Engine) OrderBlockers(player rules.PlayerID, attacker rules.CardID, order []rules.CardID) error {
	group := e.group(attacker)
	if group == nil {
		return fmt.Errorf("%w: creature %d is not attacking", rules.ErrInvalidAction, attacker)
	}
	if group.Controller != player {
		return fmt.Errorf("%w: %s does not control attacker %d", rules.ErrInvalidAction, player, attacker)
	}
	if len(order) != len(group.Blockers) {
		return fmt.Errorf("%w: order names %d blockers, attacker has %d", rules.ErrInvalidAction, len(order), len(group.Blockers))
	}
	current := make(map[rules.CardID]bool, len(group.Blockers))
	for _, id := range group.Blockers {
		current[id] = true
	}
	for _, id := range order {
		if !current[id] {
			return fmt.Errorf("%w: creature %d is not blocking %d", rules.ErrInvalidAction, id, attacker)
		}
		delete(current, id)
	}
	group.Blockers = append([]rules.CardID(nil), order...)
	e.emit(rules.NewEvent(rules.EventBlockersOrdered, player, attacker))
	return nil
}

// NeedsFirstStrikeStep reports whether any attacking or blocking creature
// has first strike or double strike.
func (e *Engine) NeedsFirstStrikeStep() bool {
	for _, group := range e.state.Attackers {
		if e.hasFirstStrike(group.Attacker) {
			return true
		}
		for _, blocker := range group.Blockers {
			if e.hasFirstStrike(blocker) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) hasFirstStrike(id rules.CardID) bool {
	card, ok := e.zones.Card(id)
	if !ok {
		return false
	}
	return card.HasKeyword(zone.KeywordFirstStrike) || card.HasKeyword(zone.KeywordDoubleStrike)
}

// RemoveFromCombat takes a creature out of combat, typically because it
// left the battlefield. An attacker that was blocked stays blocked.
func (e *Engine) RemoveFromCombat(card rules.CardID) bool {
	for i, group := range e.state.Attackers {
		if group.Attacker == card {
			e.state.Attackers = append(e.state.Attackers[:i], e.state.Attackers[i+1:]...)
			e.emit(rules.NewEvent(rules.EventRemovedFromCombat, group.Controller, card))
			return true
		}
	}
	if group, ok := e.blockedBy(card); ok {
		for i, blocker := range group.Blockers {
			if blocker == card {
				group.Blockers = append(group.Blockers[:i], group.Blockers[i+1:]...)
				break
			}
		}
		e.emit(rules.NewEvent(rules.EventRemovedFromCombat, group.Defender, card))
		return true
	}
	return false
}

// RemovePlayer drops an eliminated player from combat: attacks against them
// and creatures they control leave combat.
func (e *Engine) RemovePlayer(player rules.PlayerID) {
	kept := e.state.Attackers[:0]
	for _, group := range e.state.Attackers {
		if group.Defender == player || group.Controller == player {
			continue
		}
		kept = append(kept, group)
	}
	e.state.Attackers = kept
	for i := range e.state.Attackers {
		group := &e.state.Attackers[i]
		blockers := group.Blockers[:0]
		for _, blocker := range group.Blockers {
			if card, ok := e.zones.Card(blocker); ok && card.Controller() != player {
				blockers = append(blockers, blocker)
			}
		}
		group.Blockers = blockers
	}
}

// End closes combat: combat-only keywords are cleared and the state reset.
func (e *Engine) End() {
	for _, card := range e.zones.Permanents("") {
		card.Permanent.CombatKeywords = nil
	}
	e.emit(rules.NewEvent(rules.EventCombatEnd, e.state.AttackingPlayer, rules.NoCard))
	e.state = State{}
}

func (e *Engine) group(attacker rules.CardID) *AttackerState {
	for i := range e.state.Attackers {
		if e.state.Attackers[i].Attacker == attacker {
			return &e.state.Attackers[i]
		}
	}
	return nil
}

func (e *Engine) blockedBy(blocker rules.CardID) (*AttackerState, bool) {
	for i := range e.state.Attackers {
		for _, id := range e.state.Attackers[i].Blockers {
			if id == blocker {
				return &e.state.Attackers[i], true
			}
		}
	}
	return nil, false
}
