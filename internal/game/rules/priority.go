package rules

import "fmt"

// PriorityManager tracks who holds priority and who has passed in
// succession since the last action.
type PriorityManager struct {
	holder PlayerID
	passed []PlayerID
}

// NewPriorityManager creates a manager with nobody holding priority.
func NewPriorityManager() *PriorityManager {
	return &PriorityManager{}
}

// Holder returns the player who may act next.
func (pm *PriorityManager) Holder() PlayerID {
	return pm.holder
}

// Passed returns the players who passed in succession, in passing order.
func (pm *PriorityManager) Passed() []PlayerID {
	return append([]PlayerID(nil), pm.passed...)
}

// Start gives priority to the player with an empty passed set. Used at the
// start of every step and after each resolution.
func (pm *PriorityManager) Start(player PlayerID) {
	pm.holder = player
	pm.passed = pm.passed[:0]
}

// ResetPassed clears the passed set without moving priority.
func (pm *PriorityManager) ResetPassed() {
	pm.passed = pm.passed[:0]
}

// Pass records a pass by the holder and hands priority to next.
func (pm *PriorityManager) Pass(player, next PlayerID) error {
	if player != pm.holder {
		return fmt.Errorf("%w: %s does not hold priority (holder %s)", ErrInvalidAction, player, pm.holder)
	}
	if !pm.hasPassed(player) {
		pm.passed = append(pm.passed, player)
	}
	pm.holder = next
	return nil
}

// Acted records a legal action by the holder: the passed set is cleared and
// priority moves to next.
func (pm *PriorityManager) Acted(player, next PlayerID) error {
	if player != pm.holder {
		return fmt.Errorf("%w: %s does not hold priority (holder %s)", ErrInvalidAction, player, pm.holder)
	}
	pm.passed = pm.passed[:0]
	pm.holder = next
	return nil
}

// AllPassed reports whether every one of the given players has passed.
func (pm *PriorityManager) AllPassed(players []PlayerID) bool {
	if len(players) == 0 {
		return false
	}
	for _, player := range players {
		if !pm.hasPassed(player) {
			return false
		}
	}
	return true
}

// Remove drops an eliminated player. If they held priority it moves to next.
func (pm *PriorityManager) Remove(player, next PlayerID) {
	for i, p := range pm.passed {
		if p == player {
			pm.passed = append(pm.passed[:i], pm.passed[i+1:]...)
			break
		}
	}
	if pm.holder == player {
		pm.holder = next
	}
}

func (pm *PriorityManager) hasPassed(player PlayerID) bool {
	for _, p := range pm.passed {
		if p == player {
			return true
		}
	}
	return false
}

// PriorityState is the serialisable form of a PriorityManager.
type PriorityState struct {
	Holder PlayerID   `json:"holder"`
	Passed []PlayerID `json:"passed,omitempty"`
}

// State captures the manager for a snapshot.
func (pm *PriorityManager) State() PriorityState {
	return PriorityState{Holder: pm.holder, Passed: pm.Passed()}
}

// RestorePriorityManager rebuilds a manager from a snapshot.
func RestorePriorityManager(state PriorityState) *PriorityManager {
	return &PriorityManager{
		holder: state.Holder,
		passed: append([]PlayerID(nil), state.Passed...),
	}
}

// ResolutionContext tracks the stack item currently resolving so an effect
// cannot start another resolution from inside itself.
type ResolutionContext struct {
	resolving []StackItemID
	maxDepth  int
}

// NewResolutionContext creates a context allowing one level of resolution.
func NewResolutionContext() *ResolutionContext {
	return &ResolutionContext{maxDepth: 1}
}

// BeginResolution marks the start of resolving a stack item.
func (rc *ResolutionContext) BeginResolution(id StackItemID) error {
	if len(rc.resolving) >= rc.maxDepth {
		return fmt.Errorf("maximum resolution depth (%d) exceeded", rc.maxDepth)
	}
	rc.resolving = append(rc.resolving, id)
	return nil
}

// EndResolution marks the end of resolving a stack item.
func (rc *ResolutionContext) EndResolution(id StackItemID) error {
	if len(rc.resolving) == 0 {
		return fmt.Errorf("no item currently resolving")
	}
	current := rc.resolving[len(rc.resolving)-1]
	if current != id {
		return fmt.Errorf("resolution mismatch: expected %d, got %d", current, id)
	}
	rc.resolving = rc.resolving[:len(rc.resolving)-1]
	return nil
}

// IsResolving returns true if something is currently resolving.
func (rc *ResolutionContext) IsResolving() bool {
	return len(rc.resolving) > 0
}
