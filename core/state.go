package core

import (
	"fmt"
	"time"
)

// Step identifies the coordinator's current position in the run state
// machine.
type Step int

const (
	// StepPlanning covers task decomposition.
	StepPlanning Step = iota
	// StepExecuting covers sub-agent execution of one subtask.
	StepExecuting
	// StepCompressing covers context compression between subtasks.
	StepCompressing
	// StepAggregating covers final result synthesis.
	StepAggregating
	// StepDone is the successful terminal state.
	StepDone
	// StepFailed is the failure terminal state, reachable from any state.
	StepFailed
)

// String returns the string representation of the step.
func (s Step) String() string {
	switch s {
	case StepPlanning:
		return "planning"
	case StepExecuting:
		return "executing"
	case StepCompressing:
		return "compressing"
	case StepAggregating:
		return "aggregating"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExecutionState is the single mutable object threaded through one
// orchestration run. Exactly one coordinator owns and mutates it at any
// time; it must never be shared across goroutines. This single-writer
// discipline is the central coordination contract: shared-context races are
// structurally impossible because there is exactly one in-flight subtask and
// state mutation happens only at transition points.
type ExecutionState struct {
	RunID    string
	Task     Task
	Results  *Results
	Step     Step
	Position int // index of the subtask currently executing

	cumulativeContext string
	compressedContext string
}

// NewExecutionState creates the state for a fresh run.
func NewExecutionState(runID string, task Task) *ExecutionState {
	return &ExecutionState{
		RunID:   runID,
		Task:    task,
		Results: NewResults(),
		Step:    StepPlanning,
	}
}

// AppendContext appends a narrative fragment to the rolling cumulative
// context.
func (s *ExecutionState) AppendContext(fragment string) {
	s.cumulativeContext += fragment
}

// CumulativeContext returns the rolling narrative context accumulated so far.
func (s *ExecutionState) CumulativeContext() string { return s.cumulativeContext }

// SetCompressedContext replaces the compressed context wholesale. Recorded
// results are unaffected; only the rolling narrative shrinks.
func (s *ExecutionState) SetCompressedContext(summary string) {
	s.compressedContext = summary
	s.cumulativeContext = ""
}

// CompressedContext returns the latest compression output, empty if
// compression has not run.
func (s *ExecutionState) CompressedContext() string { return s.compressedContext }

// WorkingContext returns the context a sub-agent should see: the compressed
// context when compression is active, followed by whatever has accumulated
// since.
func (s *ExecutionState) WorkingContext() string {
	if s.compressedContext == "" {
		return s.cumulativeContext
	}
	if s.cumulativeContext == "" {
		return s.compressedContext
	}
	return s.compressedContext + "\n" + s.cumulativeContext
}

// Snapshot captures a serializable copy of the state at a subtask boundary.
// Snapshots are what checkpoint stores persist; they never alias live state.
type Snapshot struct {
	RunID             string            `json:"run_id"`
	Task              Task              `json:"task"`
	ResultOrder       []string          `json:"result_order"`
	ResultOutputs     map[string]string `json:"result_outputs"`
	CumulativeContext string            `json:"cumulative_context"`
	CompressedContext string            `json:"compressed_context"`
	Step              string            `json:"step"`
	Position          int               `json:"position"`
	Taken             time.Time         `json:"taken"`
}

// Snapshot returns a deep, serializable copy of the current state.
func (s *ExecutionState) Snapshot() Snapshot {
	return Snapshot{
		RunID:             s.RunID,
		Task:              s.Task,
		ResultOrder:       s.Results.Keys(),
		ResultOutputs:     s.Results.Map(),
		CumulativeContext: s.cumulativeContext,
		CompressedContext: s.compressedContext,
		Step:              s.Step.String(),
		Position:          s.Position,
		Taken:             time.Now().UTC(),
	}
}

// RestoreExecutionState rebuilds live state from a snapshot, validating that
// the recorded results form a strict prefix of the task's subtask order.
func RestoreExecutionState(snap Snapshot) (*ExecutionState, error) {
	state := NewExecutionState(snap.RunID, snap.Task)
	for i, id := range snap.ResultOrder {
		if i >= len(snap.Task.Subtasks) || snap.Task.Subtasks[i].ID != id {
			return nil, fmt.Errorf("snapshot results out of order at %s", id)
		}
		output, ok := snap.ResultOutputs[id]
		if !ok {
			return nil, fmt.Errorf("snapshot missing output for %s", id)
		}
		if err := state.Results.Record(id, output); err != nil {
			return nil, err
		}
	}
	state.cumulativeContext = snap.CumulativeContext
	state.compressedContext = snap.CompressedContext
	state.Position = snap.Position
	state.Step = StepExecuting
	return state, nil
}
