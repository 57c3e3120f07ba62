package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// FileStore is a durable core.CheckpointStore writing one JSON file per run
// id. Writes go through a temp file plus rename so a crash mid-write never
// leaves a torn snapshot.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates (if needed) the checkpoint directory and returns a
// store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(runID string) string {
	// Run ids are uuids, but keep the filename safe regardless.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, runID)
	return filepath.Join(s.dir, safe+".json")
}

// Save implements core.CheckpointStore.
func (s *FileStore) Save(_ context.Context, snapshot core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	target := s.path(snapshot.RunID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return os.Rename(tmp, target)
}

// Load implements core.CheckpointStore.
func (s *FileStore) Load(_ context.Context, runID string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(runID))
	if os.IsNotExist(err) {
		return core.Snapshot{}, core.ErrCheckpointNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

// Delete implements core.CheckpointStore.
func (s *FileStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(runID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
