// Package core provides the foundational domain types, interfaces and error
// taxonomy used by TaskMesh. It defines the core abstractions for:
//
//   - Tasks and Subtasks (units of decomposed work)
//   - ExecutionState (the single-writer state threaded through a run)
//   - Episodes and SemanticFacts (the two memory tiers)
//   - Pluggable stores for memory retrieval and run checkpointing
//   - Trace events (immutable records of state transitions)
//
// The package intentionally keeps implementation concerns (persistence,
// coordination, concrete capability adapters) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
