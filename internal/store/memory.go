package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySnapshot struct {
	info SnapshotInfo
	data []byte
}

// Memory keeps snapshots in process. It is the default backend and the one
// used by tests.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]memorySnapshot
}

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string][]memorySnapshot)}
}

func (m *Memory) SaveSnapshot(_ context.Context, gameID string, turn int, checksum string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[gameID] = append(m.snapshots[gameID], memorySnapshot{
		info: SnapshotInfo{
			ID:       uuid.NewString(),
			GameID:   gameID,
			Turn:     turn,
			Checksum: checksum,
			Size:     len(data),
			SavedAt:  time.Now().UTC(),
		},
		data: append([]byte(nil), data...),
	})
	return nil
}

func (m *Memory) LoadSnapshot(_ context.Context, gameID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	saved := m.snapshots[gameID]
	if len(saved) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, gameID)
	}
	return append([]byte(nil), saved[len(saved)-1].data...), nil
}

func (m *Memory) ListSnapshots(_ context.Context, gameID string) ([]SnapshotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	saved := m.snapshots[gameID]
	infos := make([]SnapshotInfo, 0, len(saved))
	for _, s := range saved {
		infos = append(infos, s.info)
	}
	return infos, nil
}

func (m *Memory) Close() error { return nil }
