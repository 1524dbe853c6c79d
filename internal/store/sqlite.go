package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var sqliteSchema string

// SQLite stores snapshots in a local database file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("sqlite snapshot store opened", zap.String("path", path))
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) SaveSnapshot(ctx context.Context, gameID string, turn int, checksum string, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE game_id = ?`, gameID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to allocate snapshot seq: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, game_id, seq, turn, checksum, data, saved_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), gameID, seq, turn, checksum, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved",
		zap.String("game_id", gameID),
		zap.Int("turn", turn),
		zap.Int("seq", seq),
	)
	return nil
}

func (s *SQLite) LoadSnapshot(ctx context.Context, gameID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE game_id = ? ORDER BY seq DESC LIMIT 1`, gameID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

func (s *SQLite) ListSnapshots(ctx context.Context, gameID string) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn, checksum, length(data), saved_at FROM snapshots WHERE game_id = ? ORDER BY seq`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []SnapshotInfo{}
	for rows.Next() {
		info := SnapshotInfo{GameID: gameID}
		var savedAt string
		if err := rows.Scan(&info.ID, &info.Turn, &info.Checksum, &info.Size, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			return nil, fmt.Errorf("bad saved_at %q: %w", savedAt, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
