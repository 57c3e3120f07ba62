package core

import "fmt"

// Results is an insertion-ordered mapping from subtask id to sub-agent
// output. Insertion order equals completion order; each key is written at
// most once and an output is immutable after it has been recorded.
//
// Results is NOT safe for concurrent use. It is owned by exactly one
// coordinator, which is the single writer for the lifetime of a run.
type Results struct {
	order   []string
	outputs map[string]string
}

// NewResults constructs an empty result set.
func NewResults() *Results {
	return &Results{outputs: make(map[string]string)}
}

// Record stores the output for a subtask id. Recording the same id twice is
// an invariant violation and returns an error rather than overwriting.
func (r *Results) Record(subtaskID, output string) error {
	if _, exists := r.outputs[subtaskID]; exists {
		return fmt.Errorf("result for %s already recorded", subtaskID)
	}
	r.outputs[subtaskID] = output
	r.order = append(r.order, subtaskID)
	return nil
}

// Get returns the recorded output and an existence flag.
func (r *Results) Get(subtaskID string) (string, bool) {
	out, ok := r.outputs[subtaskID]
	return out, ok
}

// Keys returns the subtask ids in completion order (defensive copy).
func (r *Results) Keys() []string {
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// Len reports the number of recorded results.
func (r *Results) Len() int { return len(r.order) }

// Clone returns a deep copy safe for independent inspection, e.g. when
// surfacing partial results alongside a run failure.
func (r *Results) Clone() *Results {
	clone := NewResults()
	for _, id := range r.order {
		clone.order = append(clone.order, id)
		clone.outputs[id] = r.outputs[id]
	}
	return clone
}

// Map returns a plain map copy of the outputs. Ordering information is not
// carried; use Keys for completion order.
func (r *Results) Map() map[string]string {
	m := make(map[string]string, len(r.outputs))
	for k, v := range r.outputs {
		m[k] = v
	}
	return m
}
