package core

import "time"

// SemanticFact is a consolidated, deduplicated knowledge statement derived
// from one or more episodes. Facts are created and merged only by the
// consolidator; from the coordinator's perspective they are read-only
// advisory context during a run. Near-duplicate candidates merge into an
// existing fact, incrementing SupportCount instead of inserting.
type SemanticFact struct {
	ID               string    `json:"id"`
	Statement        string    `json:"statement"`
	Embedding        []float32 `json:"-"`
	SupportCount     int       `json:"support_count"`
	LastUpdated      time.Time `json:"last_updated"`
	SourceEpisodeIDs []int64   `json:"source_episode_ids"`
}
