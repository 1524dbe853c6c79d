package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Checkpoint is a snapshot taken at the first decision of a turn, after
// ActionIndex recorded actions.
type Checkpoint struct {
	Turn        int
	ActionIndex int
	State       *GameStateData
}

// Replay is a recorded game: turn checkpoints plus every accepted action.
// Any position can be reached by restoring a checkpoint and re-applying the
// actions recorded after it.
type Replay struct {
	GameID       string
	Checkpoints  []Checkpoint
	Actions      []Action
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(gameID string) *Replay {
	return &Replay{GameID: gameID}
}

// RecordCheckpoint appends a checkpoint.
func (r *Replay) RecordCheckpoint(cp Checkpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Checkpoints = append(r.Checkpoints, cp)
}

// RecordAction appends an accepted action.
func (r *Replay) RecordAction(action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Actions = append(r.Actions, action)
}

// Truncate forgets everything recorded after the first n actions.
func (r *Replay) Truncate(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < len(r.Actions) {
		r.Actions = r.Actions[:n]
	}
	kept := r.Checkpoints[:0]
	for _, cp := range r.Checkpoints {
		if cp.ActionIndex <= n {
			kept = append(kept, cp)
		}
	}
	r.Checkpoints = kept
	if r.CurrentIndex > len(r.Checkpoints) {
		r.CurrentIndex = len(r.Checkpoints)
	}
}

// CheckpointForTurn returns the first checkpoint of the turn.
func (r *Replay) CheckpointForTurn(turn int) (Checkpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cp := range r.Checkpoints {
		if cp.Turn == turn {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// LastCheckpoint returns the most recent checkpoint.
func (r *Replay) LastCheckpoint() (Checkpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return r.Checkpoints[len(r.Checkpoints)-1], true
}

// ActionAt returns the recorded action at index.
func (r *Replay) ActionAt(index int) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.Actions) {
		return Action{}, false
	}
	return r.Actions[index], true
}

// ActionCount returns the number of recorded actions.
func (r *Replay) ActionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Actions)
}

// Start resets checkpoint playback to the beginning.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the next checkpoint, nil at the end.
func (r *Replay) Next() *Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.Checkpoints) {
		cp := r.Checkpoints[r.CurrentIndex]
		r.CurrentIndex++
		return &cp
	}
	return nil
}

// Previous steps back one checkpoint, nil at the beginning.
func (r *Replay) Previous() *Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		cp := r.Checkpoints[r.CurrentIndex]
		return &cp
	}
	return nil
}

// Skip moves forward by count checkpoints, clamped to the recorded range.
func (r *Replay) Skip(count int) *Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	newIndex := r.CurrentIndex + count
	if newIndex >= len(r.Checkpoints) {
		newIndex = len(r.Checkpoints) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}

	r.CurrentIndex = newIndex
	if r.CurrentIndex < len(r.Checkpoints) {
		cp := r.Checkpoints[r.CurrentIndex]
		return &cp
	}
	return nil
}

// Size returns the number of checkpoints.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Checkpoints)
}

// ReplayFilePath is where SaveToFile writes the game's replay.
func ReplayFilePath(directory, gameID string) string {
	return filepath.Join(directory, gameID+".replay")
}

// SaveToFile writes the replay to <directory>/<game id>.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := ReplayFilePath(directory, r.GameID)
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	metadata := replayMetadata{
		GameID:          r.GameID,
		Timestamp:       time.Now(),
		Version:         replayVersion,
		CheckpointCount: len(r.Checkpoints),
		ActionCount:     len(r.Actions),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, cp := range r.Checkpoints {
		state, err := cp.State.SerializeToBytes()
		if err != nil {
			return fmt.Errorf("failed to encode checkpoint %d: %w", i, err)
		}
		record := checkpointRecord{Turn: cp.Turn, ActionIndex: cp.ActionIndex, State: state}
		if err := encoder.Encode(&record); err != nil {
			return fmt.Errorf("failed to encode checkpoint %d: %w", i, err)
		}
	}
	for i, action := range r.Actions {
		if err := encoder.Encode(&action); err != nil {
			return fmt.Errorf("failed to encode action %d: %w", i, err)
		}
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	filename := ReplayFilePath(directory, gameID)

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)
	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.GameID)
	for i := 0; i < metadata.CheckpointCount; i++ {
		var record checkpointRecord
		if err := decoder.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %d: %w", i, err)
		}
		state, err := DeserializeFromBytes(record.State)
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %d: %w", i, err)
		}
		replay.Checkpoints = append(replay.Checkpoints, Checkpoint{
			Turn:        record.Turn,
			ActionIndex: record.ActionIndex,
			State:       state,
		})
	}
	for i := 0; i < metadata.ActionCount; i++ {
		var action Action
		if err := decoder.Decode(&action); err != nil {
			return nil, fmt.Errorf("failed to decode action %d: %w", i, err)
		}
		replay.Actions = append(replay.Actions, action)
	}
	return replay, nil
}

// replayVersion 2 stores checkpoint states as snapshot JSON. gob turns
// empty slices into nil, which changes the snapshot checksum.
const replayVersion = 2

type replayMetadata struct {
	GameID          string
	Timestamp       time.Time
	Version         int
	CheckpointCount int
	ActionCount     int
}

type checkpointRecord struct {
	Turn        int
	ActionIndex int
	State       []byte
}

// Recorder drives a game while recording it, and moves it back and forth
// through the recording.
type Recorder struct {
	logger *zap.Logger
	game   *Game
	replay *Replay
	// cursor is the number of recorded actions the game has applied.
	cursor int
}

// NewRecorder starts recording the game from its current state.
func NewRecorder(g *Game, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		logger: logger.With(zap.String("game_id", g.ID())),
		game:   g,
		replay: NewReplay(g.ID()),
	}
	if err := r.checkpoint(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRecorderFromReplay rebuilds a game at the replay's first checkpoint.
func NewRecorderFromReplay(replay *Replay, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if replay.Size() == 0 {
		return nil, fmt.Errorf("replay %s has no checkpoints", replay.GameID)
	}
	first := replay.Checkpoints[0]
	state, err := cloneState(first.State)
	if err != nil {
		return nil, err
	}
	g, err := Import(state, logger)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		logger: logger.With(zap.String("game_id", replay.GameID)),
		game:   g,
		replay: replay,
		cursor: first.ActionIndex,
	}, nil
}

// Game returns the recorded game.
func (r *Recorder) Game() *Game { return r.game }

// Replay returns the recording.
func (r *Recorder) Replay() *Replay { return r.replay }

// Position returns the number of recorded actions applied so far.
func (r *Recorder) Position() int { return r.cursor }

// Submit applies the action and records it when accepted. Submitting after
// a rewind discards the recorded future.
func (r *Recorder) Submit(action Action) (Decision, error) {
	before := r.game.TurnNumber()
	decision, err := r.game.Submit(action)
	if !accepted(err) {
		return decision, err
	}
	r.replay.Truncate(r.cursor)
	r.replay.RecordAction(action)
	r.cursor++
	if r.game.TurnNumber() != before {
		if cpErr := r.checkpoint(); cpErr != nil {
			r.logger.Warn("failed to record checkpoint", zap.Error(cpErr))
		}
	}
	return decision, err
}

func (r *Recorder) checkpoint() error {
	state, err := cloneState(r.game.Export())
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	r.replay.RecordCheckpoint(Checkpoint{
		Turn:        r.game.TurnNumber(),
		ActionIndex: r.cursor,
		State:       state,
	})
	r.logger.Debug("recorded checkpoint",
		zap.Int("turn", r.game.TurnNumber()),
		zap.Int("action_index", r.cursor),
	)
	return nil
}

// Rewind restores the game to the first decision of the turn.
func (r *Recorder) Rewind(turn int) error {
	cp, ok := r.replay.CheckpointForTurn(turn)
	if !ok {
		return fmt.Errorf("no checkpoint for turn %d", turn)
	}
	state, err := cloneState(cp.State)
	if err != nil {
		return err
	}
	if err := r.game.Restore(state); err != nil {
		return fmt.Errorf("rewind to turn %d: %w", turn, err)
	}
	r.cursor = cp.ActionIndex
	r.logger.Info("rewound game", zap.Int("turn", turn), zap.Int("action_index", r.cursor))
	return nil
}

// StepForward re-applies up to n recorded actions and returns how many were
// applied.
func (r *Recorder) StepForward(n int) (int, error) {
	applied := 0
	for applied < n {
		action, ok := r.replay.ActionAt(r.cursor)
		if !ok {
			break
		}
		if _, err := r.game.Submit(action); !accepted(err) {
			return applied, fmt.Errorf("replay diverged at action %d: %w", r.cursor, err)
		}
		r.cursor++
		applied++
	}
	return applied, nil
}

// StepTurns re-applies recorded actions until n more turns have begun or the
// recording ends. It returns the turn reached.
func (r *Recorder) StepTurns(n int) (int, error) {
	target := r.game.TurnNumber() + n
	for r.game.TurnNumber() < target {
		stepped, err := r.StepForward(1)
		if err != nil {
			return r.game.TurnNumber(), err
		}
		if stepped == 0 {
			break
		}
	}
	return r.game.TurnNumber(), nil
}
