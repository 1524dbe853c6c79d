// Package actionlog pushes every accepted action to a Redis list so an
// out-of-process historian can persist or audit games.
package actionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/magefree/mage-commander/internal/config"
	"github.com/magefree/mage-commander/internal/game"
)

// Record is one queued action.
type Record struct {
	GameID      string          `json:"game_id"`
	ActionIndex int             `json:"action_index"`
	Player      string          `json:"player"`
	ActionType  string          `json:"action_type"`
	Action      json.RawMessage `json:"action"`
	Timestamp   int64           `json:"timestamp"`
}

// Decode returns the recorded action.
func (r Record) Decode() (game.Action, error) {
	var action game.Action
	if err := json.Unmarshal(r.Action, &action); err != nil {
		return game.Action{}, fmt.Errorf("failed to decode action %d of %s: %w", r.ActionIndex, r.GameID, err)
	}
	return action, nil
}

// listClient is the part of the Redis client the log uses.
type listClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Close() error
}

// Log implements game.ActionSink on a Redis list.
type Log struct {
	client listClient
	queue  string
	logger *zap.Logger
	now    func() time.Time
}

// Connect opens the Redis client and checks it answers.
func Connect(ctx context.Context, cfg config.ActionLogConfig, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("action log connected",
		zap.String("addr", cfg.Addr),
		zap.String("queue", cfg.Queue),
	)
	return newLog(rdb, cfg.Queue, logger), nil
}

func newLog(client listClient, queue string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{client: client, queue: queue, logger: logger, now: time.Now}
}

// RecordAction pushes the JSON-encoded action onto the queue.
func (l *Log) RecordAction(ctx context.Context, gameID string, seq int, payload []byte) error {
	var head struct {
		Kind   string `json:"kind"`
		Player string `json:"player"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return fmt.Errorf("failed to read action payload: %w", err)
	}
	data, err := json.Marshal(Record{
		GameID:      gameID,
		ActionIndex: seq,
		Player:      head.Player,
		ActionType:  head.Kind,
		Action:      payload,
		Timestamp:   l.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	if err := l.client.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	l.logger.Debug("action queued",
		zap.String("game_id", gameID),
		zap.Int("seq", seq),
		zap.String("type", head.Kind),
	)
	return nil
}

// Range returns the queued records of one game, in push order. An empty
// gameID returns every record.
func (l *Log) Range(ctx context.Context, gameID string) ([]Record, error) {
	values, err := l.client.LRange(ctx, l.queue, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read Redis list '%s': %w", l.queue, err)
	}
	records := make([]Record, 0, len(values))
	for _, v := range values {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			l.logger.Warn("skipping malformed action record", zap.Error(err))
			continue
		}
		if gameID == "" || rec.GameID == gameID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (l *Log) Close() error {
	return l.client.Close()
}
