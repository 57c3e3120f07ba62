package core

import "time"

// TraceEvent is an immutable record of one state transition within a run.
// The ordered trace lets callers audit exactly how a run progressed:
// which subtask ran when, where compression fired, how a failure unfolded.
type TraceEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Step      Step      `json:"step"`
	SubtaskID string    `json:"subtask_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTraceEvent creates a trace event stamped with the current UTC time.
func NewTraceEvent(runID string, step Step, subtaskID, detail string) TraceEvent {
	return TraceEvent{
		ID:        NewID(),
		RunID:     runID,
		Step:      step,
		SubtaskID: subtaskID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
}
