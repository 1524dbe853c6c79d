package rules

import (
	"fmt"
	"strings"
)

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseBeginning Phase = iota
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnding
)

var phaseNames = map[Phase]string{
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnding:         "ENDING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Step represents the individual steps that comprise a turn.
type Step int

const (
	StepUntap Step = iota
	StepUpkeep
	StepDraw
	StepMain1
	StepBeginCombat
	StepDeclareAttackers
	StepDeclareBlockers
	StepFirstStrikeDamage
	StepCombatDamage
	StepEndCombat
	StepMain2
	StepEnd
	StepCleanup
)

var stepNames = map[Step]string{
	StepUntap:             "UNTAP",
	StepUpkeep:            "UPKEEP",
	StepDraw:              "DRAW",
	StepMain1:             "MAIN1",
	StepBeginCombat:       "BEGIN_COMBAT",
	StepDeclareAttackers:  "DECLARE_ATTACKERS",
	StepDeclareBlockers:   "DECLARE_BLOCKERS",
	StepFirstStrikeDamage: "FIRST_STRIKE_DAMAGE",
	StepCombatDamage:      "COMBAT_DAMAGE",
	StepEndCombat:         "END_COMBAT",
	StepMain2:             "MAIN2",
	StepEnd:               "END",
	StepCleanup:           "CLEANUP",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

// ParseStep is the inverse of Step.String.
func ParseStep(name string) (Step, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for step, stepName := range stepNames {
		if stepName == upper {
			return step, nil
		}
	}
	return StepUntap, fmt.Errorf("unknown step %q", name)
}

// HasPriority reports whether players receive priority during the step.
// Untap and cleanup are turn-based only.
func (s Step) HasPriority() bool {
	return s != StepUntap && s != StepCleanup
}

// IsMain reports whether the step is one of the two main phases.
func (s Step) IsMain() bool {
	return s == StepMain1 || s == StepMain2
}

type turnEntry struct {
	phase Phase
	step  Step
}

// baseTurnSequence is the default turn structure without first strike damage step
var baseTurnSequence = []turnEntry{
	{PhaseBeginning, StepUntap},
	{PhaseBeginning, StepUpkeep},
	{PhaseBeginning, StepDraw},
	{PhasePrecombatMain, StepMain1},
	{PhaseCombat, StepBeginCombat},
	{PhaseCombat, StepDeclareAttackers},
	{PhaseCombat, StepDeclareBlockers},
	{PhaseCombat, StepCombatDamage},
	{PhaseCombat, StepEndCombat},
	{PhasePostcombatMain, StepMain2},
	{PhaseEnding, StepEnd},
	{PhaseEnding, StepCleanup},
}

// buildTurnSequence creates the turn sequence, with StepFirstStrikeDamage
// placed right before StepCombatDamage when hasFirstStrike is set.
func buildTurnSequence(hasFirstStrike bool) []turnEntry {
	sequence := make([]turnEntry, 0, len(baseTurnSequence)+1)
	for _, entry := range baseTurnSequence {
		if hasFirstStrike && entry.step == StepCombatDamage {
			sequence = append(sequence, turnEntry{PhaseCombat, StepFirstStrikeDamage})
		}
		sequence = append(sequence, entry)
	}
	return sequence
}

// TurnManager tracks the active player, the current step and the fixed
// seating rotation. Eliminated seats are skipped but keep their position.
type TurnManager struct {
	orderIndex     int
	turnNumber     int
	seats          []PlayerID
	eliminated     map[PlayerID]bool
	activeSeat     int
	sequence       []turnEntry
	hasFirstStrike bool
}

// NewTurnManager creates a turn manager at the untap step of turn 1 with the
// first seat active.
func NewTurnManager(seats []PlayerID) *TurnManager {
	return &TurnManager{
		turnNumber: 1,
		seats:      append([]PlayerID(nil), seats...),
		eliminated: make(map[PlayerID]bool),
		sequence:   buildTurnSequence(false),
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return tm.sequence[tm.orderIndex].phase
}

// CurrentStep returns the step currently in progress.
func (tm *TurnManager) CurrentStep() Step {
	return tm.sequence[tm.orderIndex].step
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() PlayerID {
	if len(tm.seats) == 0 {
		return ""
	}
	return tm.seats[tm.activeSeat]
}

// HasFirstStrike reports whether the current turn includes a first strike
// damage step.
func (tm *TurnManager) HasFirstStrike() bool {
	return tm.hasFirstStrike
}

// Seats returns every seat in table order, eliminated ones included.
func (tm *TurnManager) Seats() []PlayerID {
	return append([]PlayerID(nil), tm.seats...)
}

// InGame reports whether the player holds a seat and has not been eliminated.
func (tm *TurnManager) InGame(player PlayerID) bool {
	return tm.seatIndex(player) >= 0 && !tm.eliminated[player]
}

// Remaining returns the players still in the game in seat order.
func (tm *TurnManager) Remaining() []PlayerID {
	out := make([]PlayerID, 0, len(tm.seats))
	for _, seat := range tm.seats {
		if !tm.eliminated[seat] {
			out = append(out, seat)
		}
	}
	return out
}

// RemainingFrom returns the players still in the game in rotation order
// starting with start. start itself is included only if it is still in the
// game.
func (tm *TurnManager) RemainingFrom(start PlayerID) []PlayerID {
	idx := tm.seatIndex(start)
	if idx < 0 {
		return tm.Remaining()
	}
	out := make([]PlayerID, 0, len(tm.seats))
	for i := 0; i < len(tm.seats); i++ {
		seat := tm.seats[(idx+i)%len(tm.seats)]
		if !tm.eliminated[seat] {
			out = append(out, seat)
		}
	}
	return out
}

// NextSeat returns the next player in rotation after the given one, skipping
// eliminated seats. The given player may itself be eliminated. It returns the
// player itself when nobody else remains.
func (tm *TurnManager) NextSeat(after PlayerID) PlayerID {
	idx := tm.seatIndex(after)
	if idx < 0 {
		return ""
	}
	for i := 1; i <= len(tm.seats); i++ {
		seat := tm.seats[(idx+i)%len(tm.seats)]
		if !tm.eliminated[seat] {
			return seat
		}
	}
	return ""
}

// Eliminate removes the player from the rotation. The active seat stays where
// it is until the turn ends.
func (tm *TurnManager) Eliminate(player PlayerID) {
	if tm.seatIndex(player) < 0 {
		return
	}
	tm.eliminated[player] = true
}

// AdvanceStep moves to the next step. After cleanup the turn number is
// incremented and the next remaining seat becomes active. newTurn reports
// whether a turn boundary was crossed.
func (tm *TurnManager) AdvanceStep() (phase Phase, step Step, newTurn bool) {
	tm.orderIndex++
	if tm.orderIndex >= len(tm.sequence) {
		tm.orderIndex = 0
		tm.turnNumber++
		if next := tm.NextSeat(tm.ActivePlayer()); next != "" {
			tm.activeSeat = tm.seatIndex(next)
		}
		tm.sequence = buildTurnSequence(false)
		tm.hasFirstStrike = false
		newTurn = true
	}
	return tm.CurrentPhase(), tm.CurrentStep(), newTurn
}

// EndTurn jumps to the cleanup step without running the steps in between.
// The caller advances from there to start the next turn.
func (tm *TurnManager) EndTurn() {
	tm.orderIndex = len(tm.sequence) - 1
}

// SetHasFirstStrike inserts or removes the first strike damage step. It must
// be called before combat damage starts.
func (tm *TurnManager) SetHasFirstStrike(hasFirstStrike bool) {
	if tm.hasFirstStrike == hasFirstStrike {
		return
	}
	current := tm.CurrentStep()
	tm.sequence = buildTurnSequence(hasFirstStrike)
	tm.hasFirstStrike = hasFirstStrike
	for i, entry := range tm.sequence {
		if entry.step == current {
			tm.orderIndex = i
			break
		}
	}
}

func (tm *TurnManager) seatIndex(player PlayerID) int {
	for i, seat := range tm.seats {
		if seat == player {
			return i
		}
	}
	return -1
}

// TurnState is the serialisable form of a TurnManager.
type TurnState struct {
	TurnNumber     int        `json:"turn_number"`
	Active         PlayerID   `json:"active"`
	Step           string     `json:"step"`
	HasFirstStrike bool       `json:"has_first_strike"`
	Seats          []PlayerID `json:"seats"`
	Eliminated     []PlayerID `json:"eliminated,omitempty"`
}

// State captures the manager for a snapshot.
func (tm *TurnManager) State() TurnState {
	state := TurnState{
		TurnNumber:     tm.turnNumber,
		Active:         tm.ActivePlayer(),
		Step:           tm.CurrentStep().String(),
		HasFirstStrike: tm.hasFirstStrike,
		Seats:          tm.Seats(),
	}
	for _, seat := range tm.seats {
		if tm.eliminated[seat] {
			state.Eliminated = append(state.Eliminated, seat)
		}
	}
	return state
}

// RestoreTurnManager rebuilds a manager from a snapshot.
func RestoreTurnManager(state TurnState) (*TurnManager, error) {
	if len(state.Seats) == 0 {
		return nil, fmt.Errorf("restore turn: no seats")
	}
	step, err := ParseStep(state.Step)
	if err != nil {
		return nil, fmt.Errorf("restore turn: %w", err)
	}
	tm := NewTurnManager(state.Seats)
	tm.turnNumber = state.TurnNumber
	tm.activeSeat = tm.seatIndex(state.Active)
	if tm.activeSeat < 0 {
		return nil, fmt.Errorf("restore turn: active player %q has no seat", state.Active)
	}
	for _, player := range state.Eliminated {
		tm.Eliminate(player)
	}
	tm.sequence = buildTurnSequence(state.HasFirstStrike)
	tm.hasFirstStrike = state.HasFirstStrike
	tm.orderIndex = -1
	for i, entry := range tm.sequence {
		if entry.step == step {
			tm.orderIndex = i
			break
		}
	}
	if tm.orderIndex < 0 {
		return nil, fmt.Errorf("restore turn: step %s not in turn sequence", step)
	}
	return tm, nil
}
