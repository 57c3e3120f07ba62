// Package memory provides MemoryStore implementations for the two-tier
// memory model: episodic experience (append-only, time-stamped records of
// executed subtasks) and consolidated semantic knowledge (deduplicated fact
// statements). Two backends are included:
//
//   - InMemoryStore: process-local, mutex-guarded, suitable for tests and
//     single-process runs
//   - ChromemStore: persistent storage on top of the chromem-go embedded
//     vector database (pure Go, no external service)
//
// Both back retrieval with cosine similarity over stored embeddings,
// breaking ties by recency for episodes and by support count for facts.
package memory
