package pipeline

import (
	"context"
	"sync"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
)

// MemoryStore is a SnapshotStore that keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]domain.Snapshot)}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SensorID] = snap
	return nil
}

// LatestSnapshot returns domain.ErrNoSnapshot until a snapshot for sensorID is saved.
func (s *MemoryStore) LatestSnapshot(_ context.Context, sensorID string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[sensorID]
	if !ok {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return snap, nil
}
