package core

import "time"

// EpisodeKind distinguishes the event an episode records.
type EpisodeKind string

const (
	// EpisodeSubtask records one executed subtask and its outcome.
	EpisodeSubtask EpisodeKind = "subtask"
	// EpisodeCompression records a context compression (input size, summary)
	// so later retrieval can recover why context shrank.
	EpisodeCompression EpisodeKind = "compression"
)

// Episode is a timestamped record of one executed subtask (or compression
// pass) and its outcome. Episodes are append-only: they are created
// synchronously on the hot path immediately after a subtask completes and
// never mutated afterwards. Consolidation is additive: it derives semantic
// facts from episodes but preserves the raw episodes for audit.
type Episode struct {
	ID                 int64       `json:"id"` // monotonic, assigned by the store
	Timestamp          time.Time   `json:"timestamp"`
	Kind               EpisodeKind `json:"kind"`
	SubtaskDescription string      `json:"subtask_description"`
	ActionSummary      string      `json:"action_summary"`
	Outcome            string      `json:"outcome"`
	Success            bool        `json:"success"`
	Embedding          []float32   `json:"-"`
}
