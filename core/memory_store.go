package core

import "context"

// EpisodeHit is a retrieved episode with its similarity score.
type EpisodeHit struct {
	Episode Episode
	Score   float64
}

// FactHit is a retrieved semantic fact with its similarity score.
type FactHit struct {
	Fact  SemanticFact
	Score float64
}

// MemoryStore persists the two memory tiers and serves similarity retrieval
// over both. Implementations back search with cosine similarity over stored
// embeddings; results are ordered by similarity descending with recency as
// the episode tiebreak and support count as the fact tiebreak.
//
// Concurrency contract: episode writes are append-only and never contended
// (ids are monotonic). Fact writes may merge and must be serialized per fact
// so two consolidation passes touching the same fact cannot lose updates.
// Reads must remain safe during background consolidation writes.
type MemoryStore interface {
	// AddEpisode appends an episode, assigning and returning its monotonic id.
	AddEpisode(ctx context.Context, episode Episode) (int64, error)

	// AddFact inserts a new semantic fact, or merges into an existing fact
	// whose embedding is within mergeThreshold similarity,
	// incrementing its support count, refreshing LastUpdated and appending
	// the candidate's source episode ids. Returns the id of the stored or
	// merged fact and whether a merge occurred.
	AddFact(ctx context.Context, fact SemanticFact, mergeThreshold float64) (string, bool, error)

	// SearchEpisodes returns up to k episodes nearest to the query embedding.
	SearchEpisodes(ctx context.Context, queryEmbedding []float32, k int) ([]EpisodeHit, error)

	// SearchFacts returns up to m facts nearest to the query embedding.
	SearchFacts(ctx context.Context, queryEmbedding []float32, m int) ([]FactHit, error)

	// UnconsolidatedEpisodes returns up to limit subtask episodes that have
	// not yet been consolidated, oldest first.
	UnconsolidatedEpisodes(ctx context.Context, limit int) ([]Episode, error)

	// MarkConsolidated records that the given episode ids have been
	// consolidated, making repeated consolidation idempotent.
	MarkConsolidated(ctx context.Context, episodeIDs []int64) error
}
