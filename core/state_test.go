package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState() *ExecutionState {
	task := NewTask("write a report", []string{"gather data", "analyze", "write"})
	return NewExecutionState("run-1", task)
}

func TestExecutionState_WorkingContext(t *testing.T) {
	s := newTestState()
	assert.Equal(t, "", s.WorkingContext())

	s.AppendContext("[subtask-1] gather data: done")
	assert.Equal(t, "[subtask-1] gather data: done", s.WorkingContext())

	s.SetCompressedContext("summary so far")
	assert.Equal(t, "summary so far", s.WorkingContext())
	assert.Equal(t, "", s.CumulativeContext())

	// Fragments appended after compression follow the summary.
	s.AppendContext("[subtask-2] analyze: done")
	assert.Equal(t, "summary so far\n[subtask-2] analyze: done", s.WorkingContext())
}

func TestExecutionState_CompressionPreservesResults(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.Results.Record("subtask-1", "raw output one"))
	s.AppendContext("[subtask-1] gather data: raw output one")

	s.SetCompressedContext("short summary")

	out, ok := s.Results.Get("subtask-1")
	assert.True(t, ok)
	assert.Equal(t, "raw output one", out)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.Results.Record("subtask-1", "one"))
	require.NoError(t, s.Results.Record("subtask-2", "two"))
	s.AppendContext("fragment")
	s.SetCompressedContext("summary")
	s.AppendContext("tail")
	s.Position = 2

	restored, err := RestoreExecutionState(s.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, "run-1", restored.RunID)
	assert.Equal(t, []string{"subtask-1", "subtask-2"}, restored.Results.Keys())
	assert.Equal(t, "summary\ntail", restored.WorkingContext())
	assert.Equal(t, 2, restored.Position)
	assert.Equal(t, StepExecuting, restored.Step)
}

func TestRestoreExecutionState_RejectsOutOfOrderResults(t *testing.T) {
	s := newTestState()
	snap := s.Snapshot()
	// Results recorded for subtask-2 without subtask-1 violate the
	// sequential prefix contract.
	snap.ResultOrder = []string{"subtask-2"}
	snap.ResultOutputs = map[string]string{"subtask-2": "two"}

	_, err := RestoreExecutionState(snap)
	assert.Error(t, err)
}

func TestRestoreExecutionState_RejectsMissingOutput(t *testing.T) {
	s := newTestState()
	snap := s.Snapshot()
	snap.ResultOrder = []string{"subtask-1"}
	snap.ResultOutputs = map[string]string{}

	_, err := RestoreExecutionState(snap)
	assert.Error(t, err)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "planning", StepPlanning.String())
	assert.Equal(t, "executing", StepExecuting.String())
	assert.Equal(t, "compressing", StepCompressing.String())
	assert.Equal(t, "aggregating", StepAggregating.String())
	assert.Equal(t, "done", StepDone.String())
	assert.Equal(t, "failed", StepFailed.String())
}
