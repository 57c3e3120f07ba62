package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// InMemoryStore is a process-local core.MemoryStore. Episodes are append-only
// with monotonic ids; fact writes go through a single write lock, which
// trivially satisfies the per-fact serialization contract (two consolidation
// passes merging into the same fact cannot lose updates). Reads take only the
// read lock and stay safe during background consolidation writes.
type InMemoryStore struct {
	mu            sync.RWMutex
	episodes      []core.Episode
	nextEpisodeID int64
	facts         map[string]core.SemanticFact
	consolidated  map[int64]bool

	maxEpisodes int
}

// Options configures an InMemoryStore.
type Options struct {
	// MaxEpisodes caps retained episodes; 0 means unbounded. When the cap is
	// exceeded the oldest already-consolidated episodes are evicted first,
	// falling back to the oldest overall. Facts derived from evicted episodes
	// survive, so consolidated knowledge is not lost.
	MaxEpisodes int
}

// NewInMemoryStore constructs an empty in-memory memory store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		nextEpisodeID: 1,
		facts:         make(map[string]core.SemanticFact),
		consolidated:  make(map[int64]bool),
		maxEpisodes:   opts.MaxEpisodes,
	}
}

// AddEpisode implements core.MemoryStore. Ids are monotonic and assigned
// under the write lock; creation order therefore matches completion order.
func (s *InMemoryStore) AddEpisode(_ context.Context, episode core.Episode) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	episode.ID = s.nextEpisodeID
	s.nextEpisodeID++
	if episode.Timestamp.IsZero() {
		episode.Timestamp = time.Now().UTC()
	}
	s.episodes = append(s.episodes, episode)
	s.evictLocked()
	return episode.ID, nil
}

func (s *InMemoryStore) evictLocked() {
	if s.maxEpisodes <= 0 || len(s.episodes) <= s.maxEpisodes {
		return
	}
	overflow := len(s.episodes) - s.maxEpisodes
	kept := make([]core.Episode, 0, s.maxEpisodes)
	// First pass drops the oldest consolidated episodes.
	for _, ep := range s.episodes {
		if overflow > 0 && s.consolidated[ep.ID] {
			delete(s.consolidated, ep.ID)
			overflow--
			continue
		}
		kept = append(kept, ep)
	}
	// Still over cap: drop oldest regardless.
	if overflow > 0 {
		for _, ep := range kept[:overflow] {
			delete(s.consolidated, ep.ID)
		}
		kept = kept[overflow:]
	}
	s.episodes = kept
}

// AddFact implements core.MemoryStore. The nearest existing fact within
// mergeThreshold absorbs the candidate: its support count grows by the
// candidate's, LastUpdated refreshes and source episode ids are appended.
// Otherwise the candidate is inserted as a new fact.
func (s *InMemoryStore) AddFact(_ context.Context, fact core.SemanticFact, mergeThreshold float64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fact.SupportCount <= 0 {
		fact.SupportCount = 1
	}
	now := time.Now().UTC()

	bestID := ""
	bestScore := mergeThreshold
	for id, existing := range s.facts {
		score := CosineSimilarity(fact.Embedding, existing.Embedding)
		if score >= bestScore {
			bestScore = score
			bestID = id
		}
	}

	if bestID != "" {
		existing := s.facts[bestID]
		existing.SupportCount += fact.SupportCount
		existing.LastUpdated = now
		existing.SourceEpisodeIDs = append(existing.SourceEpisodeIDs, fact.SourceEpisodeIDs...)
		s.facts[bestID] = existing
		return bestID, true, nil
	}

	if fact.ID == "" {
		fact.ID = core.NewID()
	}
	fact.LastUpdated = now
	s.facts[fact.ID] = fact
	return fact.ID, false, nil
}

// SearchEpisodes implements core.MemoryStore: cosine similarity descending,
// ties broken by recency (higher id first).
func (s *InMemoryStore) SearchEpisodes(_ context.Context, queryEmbedding []float32, k int) ([]core.EpisodeHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]core.EpisodeHit, 0, len(s.episodes))
	for _, ep := range s.episodes {
		hits = append(hits, core.EpisodeHit{Episode: ep, Score: CosineSimilarity(queryEmbedding, ep.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Episode.ID > hits[j].Episode.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SearchFacts implements core.MemoryStore: cosine similarity descending,
// ties broken by support count.
func (s *InMemoryStore) SearchFacts(_ context.Context, queryEmbedding []float32, m int) ([]core.FactHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]core.FactHit, 0, len(s.facts))
	for _, fact := range s.facts {
		hits = append(hits, core.FactHit{Fact: fact, Score: CosineSimilarity(queryEmbedding, fact.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Fact.SupportCount > hits[j].Fact.SupportCount
	})
	if m > 0 && len(hits) > m {
		hits = hits[:m]
	}
	return hits, nil
}

// UnconsolidatedEpisodes implements core.MemoryStore, returning subtask
// episodes not yet marked consolidated, oldest first. Compression episodes
// are audit records and never consolidated.
func (s *InMemoryStore) UnconsolidatedEpisodes(_ context.Context, limit int) ([]core.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Episode
	for _, ep := range s.episodes {
		if ep.Kind != core.EpisodeSubtask || s.consolidated[ep.ID] {
			continue
		}
		out = append(out, ep)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkConsolidated implements core.MemoryStore.
func (s *InMemoryStore) MarkConsolidated(_ context.Context, episodeIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range episodeIDs {
		s.consolidated[id] = true
	}
	return nil
}

// FactCount reports the number of stored semantic facts. Useful for
// inspecting consolidation behavior.
func (s *InMemoryStore) FactCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// EpisodeCount reports the number of retained episodes.
func (s *InMemoryStore) EpisodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.episodes)
}
