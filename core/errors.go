package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedPattern is returned when a run is configured with any
// execution pattern other than sequential. Parallel fan-out over shared
// context is deliberately not offered: it produces nondeterministic,
// internally contradictory results.
var ErrUnsupportedPattern = errors.New("only the sequential execution pattern is supported")

// PlanningError reports that task decomposition produced no usable subtasks.
// Planning failure is fatal to a run; no partial task breakdown is
// meaningful.
type PlanningError struct {
	Task string
	Err  error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed for task %q: %v", e.Task, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *PlanningError) Unwrap() error { return e.Err }

// SubtaskError reports that a subtask exhausted its retry budget and aborted
// the run. It always identifies the failing subtask and carries the partial
// results accumulated so far, so a caller can inspect how far execution
// progressed.
type SubtaskError struct {
	SubtaskID string
	Position  int
	Attempts  int
	Partial   *Results
	Err       error
}

// Error implements the error interface.
func (e *SubtaskError) Error() string {
	return fmt.Sprintf("subtask %s (position %d) failed after %d attempts: %v",
		e.SubtaskID, e.Position, e.Attempts, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *SubtaskError) Unwrap() error { return e.Err }

// ValidationError reports that a sub-agent produced output rejected by the
// subtask's validator. The coordinator treats it exactly like a capability
// failure: retryable under the same policy.
type ValidationError struct {
	SubtaskID string
	Reason    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("output for %s rejected: %s", e.SubtaskID, e.Reason)
}

// CompressionError reports a failed context compression. It is never fatal:
// the coordinator degrades to truncating the cumulative context and the run
// continues.
type CompressionError struct {
	Err error
}

// Error implements the error interface.
func (e *CompressionError) Error() string {
	return fmt.Sprintf("context compression failed: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *CompressionError) Unwrap() error { return e.Err }

// AggregationError reports that aggregation was invoked with an incomplete
// result set. Given the coordinator's all-or-nothing contract this state
// should be unreachable; it indicates an internal invariant violation, not a
// recoverable user-facing condition.
type AggregationError struct {
	Missing []string
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation invariant violated: missing results for %s",
		strings.Join(e.Missing, ", "))
}
