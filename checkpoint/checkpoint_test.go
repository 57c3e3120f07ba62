package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.CheckpointStore = (*InMemoryStore)(nil)
	_ core.CheckpointStore = (*FileStore)(nil)
)

func sampleSnapshot(runID string) core.Snapshot {
	task := core.NewTask("write docs", []string{"outline", "draft"})
	state := core.NewExecutionState(runID, task)
	_ = state.Results.Record("subtask-1", "the outline")
	state.AppendContext("[subtask-1] outline: the outline")
	state.Position = 1
	return state.Snapshot()
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	snap := sampleSnapshot("run-a")

	require.NoError(t, s.Save(ctx, snap))

	loaded, err := s.Load(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, snap.RunID, loaded.RunID)
	assert.Equal(t, snap.ResultOrder, loaded.ResultOrder)

	require.NoError(t, s.Delete(ctx, "run-a"))
	_, err = s.Load(ctx, "run-a")
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	snap := sampleSnapshot("run-b")

	require.NoError(t, s.Save(ctx, snap))

	// A restored state continues from the saved position.
	loaded, err := s.Load(ctx, "run-b")
	require.NoError(t, err)
	state, err := core.RestoreExecutionState(loaded)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Results.Len())
	assert.Equal(t, "[subtask-1] outline: the outline", state.WorkingContext())

	require.NoError(t, s.Delete(ctx, "run-b"))
	_, err = s.Load(ctx, "run-b")
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleSnapshot("run-c")
	require.NoError(t, s.Save(ctx, first))

	second := first
	second.Position = 2
	require.NoError(t, s.Save(ctx, second))

	loaded, err := s.Load(ctx, "run-c")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Position)
}

func TestFileStore_SanitizesRunID(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	snap := sampleSnapshot("../escape/attempt")
	require.NoError(t, s.Save(ctx, snap))

	// The file lands inside the store directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Ext(entries[0].Name()), ".json")

	loaded, err := s.Load(ctx, "../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, "../escape/attempt", loaded.RunID)
}

func TestFileStore_DeleteMissingIsNoop(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, s.Delete(context.Background(), "never-saved"))
}

func TestFileStore_LoadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load(context.Background(), "never-saved")
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)
}
