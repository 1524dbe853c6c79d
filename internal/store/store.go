// Package store persists game snapshots. Each save is kept as a row so a
// game can be reloaded from its latest snapshot or audited turn by turn.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/config"
	"github.com/magefree/mage-commander/internal/game"
)

// ErrNotFound is returned when a game has no stored snapshot.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotInfo describes one stored snapshot without its payload.
type SnapshotInfo struct {
	ID       string    `json:"id"`
	GameID   string    `json:"game_id"`
	Turn     int       `json:"turn"`
	Checksum string    `json:"checksum"`
	Size     int       `json:"size"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store is a snapshot backend usable by game.Manager.
type Store interface {
	game.SnapshotStore
	// ListSnapshots returns the game's snapshots, oldest first.
	ListSnapshots(ctx context.Context, gameID string) ([]SnapshotInfo, error)
	Close() error
}

// Open returns the backend selected by the configuration.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		return OpenSQLite(cfg.DSN, logger)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
