package rules

import "errors"

var (
	// ErrInvalidAction is returned when an action does not fit the current
	// decision: wrong player, wrong step, or an illegal choice. State is
	// unchanged when it is returned.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidTargets marks a stack item whose targets are all illegal
	// on resolution. It surfaces as a counter reason, not to callers.
	ErrInvalidTargets = errors.New("invalid targets")
	// ErrIllegalBlock rejects a single block assignment. The remaining
	// assignments of the same declaration still commit.
	ErrIllegalBlock = errors.New("illegal block")
	// ErrEmptyLibrary is returned when drawing from an empty library.
	ErrEmptyLibrary = errors.New("library is empty")
	// ErrGameOver is returned for any action submitted after the game ended.
	ErrGameOver = errors.New("game is over")
	// ErrStackEmpty is returned when popping or peeking an empty stack.
	ErrStackEmpty = errors.New("stack empty")
)

// EliminationReason explains why a player left the game.
type EliminationReason string

const (
	EliminationLifeTotal       EliminationReason = "LIFE_TOTAL"
	EliminationCommanderDamage EliminationReason = "COMMANDER_DAMAGE"
	EliminationEmptyLibrary    EliminationReason = "EMPTY_LIBRARY"
	EliminationConceded        EliminationReason = "CONCEDED"
)

// CounterReason explains why a stack item was removed without resolving.
type CounterReason string

const (
	CounterReasonInvalidTargets CounterReason = "INVALID_TARGETS"
	CounterReasonCounterSpell   CounterReason = "COUNTER_SPELL"
	CounterReasonEliminated     CounterReason = "CONTROLLER_ELIMINATED"
)
