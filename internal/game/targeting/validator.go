package targeting

import (
	"fmt"

	"github.com/magefree/mage-commander/internal/game/rules"
)

// TargetGameStateAccessor provides access to game state needed for target validation.
type TargetGameStateAccessor interface {
	// PlayerInGame reports whether the player is still in the game.
	PlayerInGame(player rules.PlayerID) bool
	// FindCardForTarget finds a card by ID in any zone.
	FindCardForTarget(id rules.CardID) (TargetCardInfo, bool)
	// StackHas reports whether the stack item is still on the stack.
	StackHas(id rules.StackItemID) bool
}

// TargetCardInfo provides information about a card for target validation.
type TargetCardInfo struct {
	ID          rules.CardID
	Zone        rules.Zone
	Incarnation int
	Creature    bool
}

// TargetValidator validates that selected targets are legal.
type TargetValidator struct {
	gameState TargetGameStateAccessor
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(gameState TargetGameStateAccessor) *TargetValidator {
	return &TargetValidator{gameState: gameState}
}

// ValidateTarget checks if a single target is legal for the requirement.
func (tv *TargetValidator) ValidateTarget(target rules.Target, requirement TargetRequirement) error {
	if tv == nil || tv.gameState == nil {
		return fmt.Errorf("target validator not initialized")
	}
	if !requirement.accepts(target) {
		return fmt.Errorf("%w: target %+v does not fit requirement %s", rules.ErrInvalidTargets, target, requirement.Kind)
	}

	switch {
	case target.IsPlayer():
		if !tv.gameState.PlayerInGame(target.Player) {
			return fmt.Errorf("%w: player %s is not in the game", rules.ErrInvalidTargets, target.Player)
		}
	case target.IsItem():
		if !tv.gameState.StackHas(target.Item) {
			return fmt.Errorf("%w: stack item %d is gone", rules.ErrInvalidTargets, target.Item)
		}
	default:
		card, ok := tv.gameState.FindCardForTarget(target.Card)
		if !ok {
			return fmt.Errorf("%w: card %d not found", rules.ErrInvalidTargets, target.Card)
		}
		if card.Zone != rules.ZoneBattlefield {
			return fmt.Errorf("%w: card %d is not a permanent", rules.ErrInvalidTargets, target.Card)
		}
		if target.Incarnation != 0 && card.Incarnation != target.Incarnation {
			return fmt.Errorf("%w: card %d changed zones since it was targeted", rules.ErrInvalidTargets, target.Card)
		}
		if (requirement.Kind == rules.TargetCreature || requirement.Kind == rules.TargetAny) && !card.Creature {
			return fmt.Errorf("%w: card %d is not a creature", rules.ErrInvalidTargets, target.Card)
		}
	}
	return nil
}

// ValidateTargetSelection validates a full selection at the time it is made:
// the count must fit and every target must be legal and distinct.
func (tv *TargetValidator) ValidateTargetSelection(targets []rules.Target, requirement TargetRequirement) error {
	if err := requirement.CheckCount(targets); err != nil {
		return fmt.Errorf("%w: %v", rules.ErrInvalidTargets, err)
	}
	seen := make(map[rules.Target]bool, len(targets))
	for _, target := range targets {
		key := target
		key.Incarnation = 0
		if seen[key] {
			return fmt.Errorf("%w: duplicate target %+v", rules.ErrInvalidTargets, target)
		}
		seen[key] = true
		if err := tv.ValidateTarget(target, requirement); err != nil {
			return err
		}
	}
	return nil
}

// LegalTargets returns the subset of targets still legal on resolution, in
// their original order.
func (tv *TargetValidator) LegalTargets(targets []rules.Target, requirement TargetRequirement) []rules.Target {
	legal := make([]rules.Target, 0, len(targets))
	for _, target := range targets {
		if tv.ValidateTarget(target, requirement) == nil {
			legal = append(legal, target)
		}
	}
	return legal
}
