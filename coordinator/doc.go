// Package coordinator drives the sequential execution of a planned task:
// one subtask at a time, assembling per-step context from the compressed or
// cumulative narrative plus two-tier memory retrieval, invoking the
// sub-agent capability under a retry policy, and recording results at
// well-defined transition points.
//
// The coordinator is deliberately single-writer. Exactly one subtask is in
// flight at any time and the ExecutionState it owns is never shared across
// goroutines, so races over shared context are structurally impossible.
// Parallel fan-out over shared state was evaluated and rejected: concurrent
// writers interleave nondeterministically and produce internally
// contradictory results. Multiple independent runs may still execute
// concurrently; each owns its own state and they share only the read-mostly
// memory store.
package coordinator
