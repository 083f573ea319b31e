// Package store persists decision-core snapshots
package store

import (
	"context"
	"sync"

	"tradecore/internal/core"
)

// MemoryStore keeps the last snapshot in process memory
type MemoryStore struct {
	snap *core.Snapshot
	mu   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snap *core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

// LoadSnapshot returns nil when nothing was saved
func (s *MemoryStore) LoadSnapshot(ctx context.Context) (*core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, nil
}
