package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
    id         UUID PRIMARY KEY,
    game_id    TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    turn       INTEGER NOT NULL,
    checksum   TEXT NOT NULL,
    data       BYTEA NOT NULL,
    saved_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (game_id, seq)
)`

// Postgres stores snapshots in a shared database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects to dsn and creates the snapshot table if needed.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	stats := pool.Stat()
	logger.Info("postgres snapshot store opened",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, gameID string, turn int, checksum string, data []byte) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var seq int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM game_snapshots WHERE game_id = $1`, gameID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate snapshot seq: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO game_snapshots (id, game_id, seq, turn, checksum, data) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), gameID, seq, turn, checksum, data,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		p.logger.Debug("snapshot saved",
			zap.String("game_id", gameID),
			zap.Int("turn", turn),
			zap.Int("seq", seq),
		)
		return nil
	})
}

func (p *Postgres) LoadSnapshot(ctx context.Context, gameID string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM game_snapshots WHERE game_id = $1 ORDER BY seq DESC LIMIT 1`, gameID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

func (p *Postgres) ListSnapshots(ctx context.Context, gameID string) ([]SnapshotInfo, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id::text, turn, checksum, octet_length(data), saved_at FROM game_snapshots WHERE game_id = $1 ORDER BY seq`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []SnapshotInfo{}
	for rows.Next() {
		info := SnapshotInfo{GameID: gameID}
		if err := rows.Scan(&info.ID, &info.Turn, &info.Checksum, &info.Size, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
