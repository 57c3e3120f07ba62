// Package checkpoint provides CheckpointStore implementations for persisting
// ExecutionState snapshots at subtask boundaries. The in-memory store suits
// tests and single-process demos; the file store survives crashes and powers
// resume-from-last-completed-subtask.
package checkpoint

import (
	"context"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// InMemoryStore is a volatile core.CheckpointStore keeping snapshots in a
// process-local map. It is safe for concurrent access across independent
// runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]core.Snapshot)}
}

// Save implements core.CheckpointStore.
func (s *InMemoryStore) Save(_ context.Context, snapshot core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.RunID] = snapshot
	return nil
}

// Load implements core.CheckpointStore.
func (s *InMemoryStore) Load(_ context.Context, runID string) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[runID]
	if !ok {
		return core.Snapshot{}, core.ErrCheckpointNotFound
	}
	return snap, nil
}

// Delete implements core.CheckpointStore.
func (s *InMemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, runID)
	return nil
}
