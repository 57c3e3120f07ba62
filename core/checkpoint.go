package core

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned when no snapshot exists for a run id.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointStore persists ExecutionState snapshots keyed by run id. The
// coordinator writes one snapshot at each subtask boundary, enabling
// resume-from-last-completed-subtask after a crash. Stores may be volatile
// (tests) or durable (file, database).
type CheckpointStore interface {
	// Save persists the snapshot, replacing any previous snapshot for the
	// same run id.
	Save(ctx context.Context, snapshot Snapshot) error

	// Load returns the latest snapshot for the run id, or
	// ErrCheckpointNotFound.
	Load(ctx context.Context, runID string) (Snapshot, error)

	// Delete removes the snapshot for a completed run. Deleting an unknown
	// run id is not an error.
	Delete(ctx context.Context, runID string) error
}
