package targeting

import (
	"fmt"

	"github.com/magefree/mage-commander/internal/game/rules"
)

// TargetRequirement defines what targets a spell or ability requires.
type TargetRequirement struct {
	// Kind specifies what kind of target is required.
	Kind rules.TargetKind
	// MinTargets is the minimum number of targets required (usually 1).
	MinTargets int
	// MaxTargets is the maximum number of targets allowed.
	MaxTargets int
}

// RequirementFor derives the requirement of an effect.
func RequirementFor(effect rules.Effect) TargetRequirement {
	max := effect.TargetCount()
	req := TargetRequirement{Kind: effect.Target, MaxTargets: max}
	if max > 0 && effect.Kind != rules.EffectCounter {
		req.MinTargets = 1
	}
	return req
}

// CheckCount checks the number of chosen targets against the requirement.
func (r TargetRequirement) CheckCount(targets []rules.Target) error {
	count := len(targets)
	if count < r.MinTargets {
		return fmt.Errorf("not enough targets: need at least %d, got %d", r.MinTargets, count)
	}
	if count > r.MaxTargets {
		return fmt.Errorf("too many targets: need at most %d, got %d", r.MaxTargets, count)
	}
	return nil
}

// accepts reports whether the target's shape fits the requirement kind.
func (r TargetRequirement) accepts(target rules.Target) bool {
	switch r.Kind {
	case rules.TargetPlayer:
		return target.IsPlayer()
	case rules.TargetCreature, rules.TargetPermanent:
		return target.IsCard()
	case rules.TargetStackItem:
		return target.IsItem()
	case rules.TargetAny:
		return target.IsPlayer() || target.IsCard()
	}
	return false
}
