package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/game/rules"
)

// ErrGameNotFound is returned for an unknown game id.
var ErrGameNotFound = errors.New("game not found")

// SnapshotStore persists encoded snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, gameID string, turn int, checksum string, data []byte) error
	// LoadSnapshot returns the latest snapshot of the game.
	LoadSnapshot(ctx context.Context, gameID string) ([]byte, error)
}

// ActionSink receives every accepted action, numbered per game.
type ActionSink interface {
	RecordAction(ctx context.Context, gameID string, seq int, payload []byte) error
}

// GameNotification carries one published event of a managed game.
type GameNotification struct {
	GameID string
	Event  rules.Event
}

// NotificationHandler receives notifications synchronously while the game
// is locked; it must not call back into the Manager for the same game.
type NotificationHandler func(notification GameNotification)

type managedGame struct {
	mu       sync.Mutex
	recorder *Recorder
	unsub    int
}

// Manager hosts many games. Each game is driven under its own lock.
type Manager struct {
	logger    *zap.Logger
	mu        sync.RWMutex
	games     map[string]*managedGame
	handler   NotificationHandler
	store     SnapshotStore
	sink      ActionSink
	replayDir string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSnapshotStore persists a snapshot at every turn start and at game end.
func WithSnapshotStore(store SnapshotStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithActionSink forwards accepted actions.
func WithActionSink(sink ActionSink) ManagerOption {
	return func(m *Manager) { m.sink = sink }
}

// WithReplayDir saves finished games as replay files in dir.
func WithReplayDir(dir string) ManagerOption {
	return func(m *Manager) { m.replayDir = dir }
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger: logger,
		games:  make(map[string]*managedGame),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetNotificationHandler installs the handler for published events.
func (m *Manager) SetNotificationHandler(handler NotificationHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *Manager) notify(gameID string, ev rules.Event) {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()
	if handler != nil {
		handler(GameNotification{GameID: gameID, Event: ev})
	}
}

func (m *Manager) get(gameID string) (*managedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mg, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return mg, nil
}

func (m *Manager) register(ctx context.Context, g *Game, recorder *Recorder) {
	mg := &managedGame{recorder: recorder}
	id := g.ID()
	mg.unsub = g.Bus().Subscribe(func(ev rules.Event) { m.notify(id, ev) })

	m.mu.Lock()
	m.games[id] = mg
	m.mu.Unlock()

	m.persist(ctx, g)
}

// Create starts a new game and returns its id and first decision.
func (m *Manager) Create(ctx context.Context, setup Setup, settings Settings) (string, Decision, error) {
	id := uuid.NewString()
	g, err := New(id, setup, settings, m.logger)
	if err != nil {
		return "", Decision{}, err
	}
	recorder, err := NewRecorder(g, m.logger)
	if err != nil {
		return "", Decision{}, err
	}
	m.register(ctx, g, recorder)
	m.logger.Info("game created",
		zap.String("game_id", id),
		zap.Int("players", len(setup.Players)),
	)
	return id, g.Decision(), nil
}

// Submit applies an action to the game.
func (m *Manager) Submit(ctx context.Context, gameID string, action Action) (Decision, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return Decision{}, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()

	g := mg.recorder.Game()
	turn := g.TurnNumber()
	decision, err := mg.recorder.Submit(action)
	if !accepted(err) {
		return decision, err
	}

	if m.sink != nil {
		payload, encErr := json.Marshal(action)
		if encErr == nil {
			encErr = m.sink.RecordAction(ctx, gameID, mg.recorder.Position(), payload)
		}
		if encErr != nil {
			m.logger.Warn("failed to forward action", zap.String("game_id", gameID), zap.Error(encErr))
		}
	}
	if g.TurnNumber() != turn || g.Over() {
		m.persist(ctx, g)
	}
	if g.Over() && m.replayDir != "" {
		if saveErr := mg.recorder.Replay().SaveToFile(m.replayDir); saveErr != nil {
			m.logger.Warn("failed to save replay", zap.String("game_id", gameID), zap.Error(saveErr))
		}
	}
	return decision, err
}

// persist writes the game's snapshot to the store, if any.
func (m *Manager) persist(ctx context.Context, g *Game) {
	if m.store == nil {
		return
	}
	snapshot := g.Export()
	checksum, err := snapshot.ComputeChecksum()
	if err != nil {
		m.logger.Warn("failed to checksum snapshot", zap.String("game_id", g.ID()), zap.Error(err))
		return
	}
	data, err := snapshot.SerializeToBytes()
	if err != nil {
		m.logger.Warn("failed to encode snapshot", zap.String("game_id", g.ID()), zap.Error(err))
		return
	}
	if err := m.store.SaveSnapshot(ctx, g.ID(), g.TurnNumber(), checksum.Hash, data); err != nil {
		m.logger.Warn("failed to save snapshot", zap.String("game_id", g.ID()), zap.Error(err))
	}
}

// Decision returns the decision the game waits for.
func (m *Manager) Decision(gameID string) (Decision, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return Decision{}, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return mg.recorder.Game().Decision(), nil
}

// Export returns a snapshot of the game.
func (m *Manager) Export(gameID string) (*GameStateData, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return nil, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return cloneState(mg.recorder.Game().Export())
}

// Events returns the game's published events after seq.
func (m *Manager) Events(gameID string, since uint64) ([]rules.Event, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return nil, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	return mg.recorder.Game().EventsSince(since), nil
}

// Rewind restores the game to the first decision of the turn.
func (m *Manager) Rewind(gameID string, turn int) (Decision, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return Decision{}, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	if err := mg.recorder.Rewind(turn); err != nil {
		return Decision{}, err
	}
	return mg.recorder.Game().Decision(), nil
}

// StepForward re-applies up to n recorded actions after a rewind.
func (m *Manager) StepForward(gameID string, n int) (Decision, int, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return Decision{}, 0, err
	}
	mg.mu.Lock()
	defer mg.mu.Unlock()
	applied, err := mg.recorder.StepForward(n)
	return mg.recorder.Game().Decision(), applied, err
}

// Load brings a stored game back under management from its latest snapshot.
func (m *Manager) Load(ctx context.Context, gameID string) (Decision, error) {
	if m.store == nil {
		return Decision{}, fmt.Errorf("no snapshot store configured")
	}
	data, err := m.store.LoadSnapshot(ctx, gameID)
	if err != nil {
		return Decision{}, err
	}
	snapshot, err := DeserializeFromBytes(data)
	if err != nil {
		return Decision{}, err
	}
	g, err := Import(snapshot, m.logger)
	if err != nil {
		return Decision{}, err
	}
	recorder, err := NewRecorder(g, m.logger)
	if err != nil {
		return Decision{}, err
	}

	m.mu.RLock()
	existing, loaded := m.games[gameID]
	m.mu.RUnlock()
	if loaded {
		existing.mu.Lock()
		existing.recorder.Game().Bus().Unsubscribe(existing.unsub)
		existing.mu.Unlock()
	}
	m.register(ctx, g, recorder)
	m.logger.Info("game loaded", zap.String("game_id", gameID), zap.Int("turn", g.TurnNumber()))
	return g.Decision(), nil
}

// Remove stops managing the game.
func (m *Manager) Remove(gameID string) error {
	m.mu.Lock()
	mg, ok := m.games[gameID]
	delete(m.games, gameID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	mg.mu.Lock()
	mg.recorder.Game().Bus().Unsubscribe(mg.unsub)
	mg.mu.Unlock()
	return nil
}

// List returns the ids of the managed games, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
