package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	chromem "github.com/philippgille/chromem-go"
)

const (
	episodeCollection = "episodes"
	factCollection    = "facts"
	stateFileName     = "memory_state.json"
)

// ChromemConfig holds configuration for the chromem-go backed store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Logger receives store diagnostics. Nil defaults to NoOp.
	Logger logging.Logger
}

// chromemState is the sidecar bookkeeping chromem itself does not model:
// the monotonic episode counter and the set of episodes awaiting
// consolidation. It is small and rewritten atomically on every change.
type chromemState struct {
	NextEpisodeID int64   `json:"next_episode_id"`
	Pending       []int64 `json:"pending"`
}

// ChromemStore is a persistent core.MemoryStore on top of the chromem-go
// embedded vector database. Episodes and facts live in separate collections;
// both survive process restarts. chromem-go is pure Go with no external
// service, which keeps the store embeddable (the same reason the rest of the
// module avoids client/server infrastructure).
//
// Fact merges are serialized by the store-level write lock, satisfying the
// lost-update contract for concurrent consolidation passes.
type ChromemStore struct {
	db       *chromem.DB
	episodes *chromem.Collection
	facts    *chromem.Collection
	config   ChromemConfig
	logger   logging.Logger

	mu    sync.Mutex
	state chromemState
}

// NewChromemStore opens (or creates) a persistent store rooted at
// config.Path. The embedder backs chromem's embedding function for any
// content added without a precomputed vector.
func NewChromemStore(config ChromemConfig, embedder model.Embedder) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	embFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	episodes, err := db.GetOrCreateCollection(episodeCollection, nil, embFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", episodeCollection, err)
	}
	facts, err := db.GetOrCreateCollection(factCollection, nil, embFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", factCollection, err)
	}

	s := &ChromemStore{
		db:       db,
		episodes: episodes,
		facts:    facts,
		config:   config,
		logger:   logger,
		state:    chromemState{NextEpisodeID: 1},
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromemStore) statePath() string {
	return filepath.Join(s.config.Path, stateFileName)
}

func (s *ChromemStore) loadState() error {
	data, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading memory state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return fmt.Errorf("decoding memory state: %w", err)
	}
	return nil
}

// saveStateLocked must be called with s.mu held.
func (s *ChromemStore) saveStateLocked() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing memory state: %w", err)
	}
	return os.Rename(tmp, s.statePath())
}

// AddEpisode implements core.MemoryStore.
func (s *ChromemStore) AddEpisode(ctx context.Context, episode core.Episode) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	episode.ID = s.state.NextEpisodeID
	s.state.NextEpisodeID++
	if episode.Timestamp.IsZero() {
		episode.Timestamp = time.Now().UTC()
	}

	doc := chromem.Document{
		ID:        strconv.FormatInt(episode.ID, 10),
		Content:   episode.SubtaskDescription + "\n" + episode.Outcome,
		Embedding: episode.Embedding,
		Metadata: map[string]string{
			"kind":                string(episode.Kind),
			"subtask_description": episode.SubtaskDescription,
			"action_summary":      episode.ActionSummary,
			"outcome":             episode.Outcome,
			"success":             strconv.FormatBool(episode.Success),
			"timestamp":           episode.Timestamp.Format(time.RFC3339Nano),
		},
	}
	if err := s.episodes.AddDocument(ctx, doc); err != nil {
		s.state.NextEpisodeID--
		return 0, fmt.Errorf("adding episode: %w", err)
	}

	if episode.Kind == core.EpisodeSubtask {
		s.state.Pending = append(s.state.Pending, episode.ID)
	}
	if err := s.saveStateLocked(); err != nil {
		return 0, err
	}
	return episode.ID, nil
}

// AddFact implements core.MemoryStore. chromem has no in-place update, so a
// merge deletes the old document and re-adds it with refreshed metadata.
// Both steps happen under the store lock.
func (s *ChromemStore) AddFact(ctx context.Context, fact core.SemanticFact, mergeThreshold float64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fact.SupportCount <= 0 {
		fact.SupportCount = 1
	}
	now := time.Now().UTC()

	if count := s.facts.Count(); count > 0 {
		results, err := s.facts.QueryEmbedding(ctx, fact.Embedding, 1, nil, nil)
		if err != nil {
			return "", false, fmt.Errorf("querying facts: %w", err)
		}
		if len(results) > 0 && float64(results[0].Similarity) >= mergeThreshold {
			merged, err := factFromResult(results[0])
			if err != nil {
				return "", false, err
			}
			merged.SupportCount += fact.SupportCount
			merged.LastUpdated = now
			merged.SourceEpisodeIDs = append(merged.SourceEpisodeIDs, fact.SourceEpisodeIDs...)
			merged.Embedding = results[0].Embedding

			if err := s.facts.Delete(ctx, nil, nil, merged.ID); err != nil {
				return "", false, fmt.Errorf("replacing fact %s: %w", merged.ID, err)
			}
			if err := s.facts.AddDocument(ctx, factDocument(merged)); err != nil {
				return "", false, fmt.Errorf("replacing fact %s: %w", merged.ID, err)
			}
			return merged.ID, true, nil
		}
	}

	if fact.ID == "" {
		fact.ID = core.NewID()
	}
	fact.LastUpdated = now
	if err := s.facts.AddDocument(ctx, factDocument(fact)); err != nil {
		return "", false, fmt.Errorf("adding fact: %w", err)
	}
	return fact.ID, false, nil
}

// SearchEpisodes implements core.MemoryStore.
func (s *ChromemStore) SearchEpisodes(ctx context.Context, queryEmbedding []float32, k int) ([]core.EpisodeHit, error) {
	// chromem requires nResults <= document count.
	count := s.episodes.Count()
	if count == 0 {
		return nil, nil
	}
	if k <= 0 || k > count {
		k = count
	}
	results, err := s.episodes.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying episodes: %w", err)
	}

	hits := make([]core.EpisodeHit, 0, len(results))
	for _, r := range results {
		ep, err := episodeFromResult(r)
		if err != nil {
			return nil, err
		}
		hits = append(hits, core.EpisodeHit{Episode: ep, Score: float64(r.Similarity)})
	}
	// chromem orders by similarity; enforce the recency tiebreak on top.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Episode.ID > hits[j].Episode.ID
	})
	return hits, nil
}

// SearchFacts implements core.MemoryStore.
func (s *ChromemStore) SearchFacts(ctx context.Context, queryEmbedding []float32, m int) ([]core.FactHit, error) {
	count := s.facts.Count()
	if count == 0 {
		return nil, nil
	}
	if m <= 0 || m > count {
		m = count
	}
	results, err := s.facts.QueryEmbedding(ctx, queryEmbedding, m, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}

	hits := make([]core.FactHit, 0, len(results))
	for _, r := range results {
		fact, err := factFromResult(r)
		if err != nil {
			return nil, err
		}
		hits = append(hits, core.FactHit{Fact: fact, Score: float64(r.Similarity)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Fact.SupportCount > hits[j].Fact.SupportCount
	})
	return hits, nil
}

// UnconsolidatedEpisodes implements core.MemoryStore.
func (s *ChromemStore) UnconsolidatedEpisodes(ctx context.Context, limit int) ([]core.Episode, error) {
	s.mu.Lock()
	pending := make([]int64, len(s.state.Pending))
	copy(pending, s.state.Pending)
	s.mu.Unlock()

	var out []core.Episode
	for _, id := range pending {
		if limit > 0 && len(out) >= limit {
			break
		}
		doc, err := s.episodes.GetByID(ctx, strconv.FormatInt(id, 10))
		if err != nil {
			// Evicted/missing documents drop out of the pending set on the
			// next MarkConsolidated; skip here.
			s.logger.Warn("pending episode missing from store", "episode_id", id)
			continue
		}
		ep, err := episodeFromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// MarkConsolidated implements core.MemoryStore.
func (s *ChromemStore) MarkConsolidated(_ context.Context, episodeIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[int64]bool, len(episodeIDs))
	for _, id := range episodeIDs {
		done[id] = true
	}
	kept := s.state.Pending[:0]
	for _, id := range s.state.Pending {
		if !done[id] {
			kept = append(kept, id)
		}
	}
	s.state.Pending = kept
	return s.saveStateLocked()
}

// FactCount reports the number of stored semantic facts.
func (s *ChromemStore) FactCount() int { return s.facts.Count() }

// EpisodeCount reports the number of stored episodes.
func (s *ChromemStore) EpisodeCount() int { return s.episodes.Count() }

func factDocument(fact core.SemanticFact) chromem.Document {
	sources := make([]string, len(fact.SourceEpisodeIDs))
	for i, id := range fact.SourceEpisodeIDs {
		sources[i] = strconv.FormatInt(id, 10)
	}
	sourceJSON, _ := json.Marshal(sources)
	return chromem.Document{
		ID:        fact.ID,
		Content:   fact.Statement,
		Embedding: fact.Embedding,
		Metadata: map[string]string{
			"support_count": strconv.Itoa(fact.SupportCount),
			"last_updated":  fact.LastUpdated.Format(time.RFC3339Nano),
			"sources":       string(sourceJSON),
		},
	}
}

func factFromResult(r chromem.Result) (core.SemanticFact, error) {
	return factFromFields(r.ID, r.Content, r.Embedding, r.Metadata)
}

func factFromFields(id, content string, embedding []float32, metadata map[string]string) (core.SemanticFact, error) {
	fact := core.SemanticFact{
		ID:        id,
		Statement: content,
		Embedding: embedding,
	}
	if v := metadata["support_count"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.SemanticFact{}, fmt.Errorf("fact %s: bad support_count %q", id, v)
		}
		fact.SupportCount = n
	}
	if v := metadata["last_updated"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return core.SemanticFact{}, fmt.Errorf("fact %s: bad last_updated %q", id, v)
		}
		fact.LastUpdated = t
	}
	if v := metadata["sources"]; v != "" {
		var sources []string
		if err := json.Unmarshal([]byte(v), &sources); err != nil {
			return core.SemanticFact{}, fmt.Errorf("fact %s: bad sources: %w", id, err)
		}
		for _, src := range sources {
			n, err := strconv.ParseInt(src, 10, 64)
			if err != nil {
				return core.SemanticFact{}, fmt.Errorf("fact %s: bad source id %q", id, src)
			}
			fact.SourceEpisodeIDs = append(fact.SourceEpisodeIDs, n)
		}
	}
	return fact, nil
}

func episodeFromResult(r chromem.Result) (core.Episode, error) {
	return episodeFromFields(r.ID, r.Embedding, r.Metadata)
}

func episodeFromDocument(d chromem.Document) (core.Episode, error) {
	return episodeFromFields(d.ID, d.Embedding, d.Metadata)
}

func episodeFromFields(id string, embedding []float32, metadata map[string]string) (core.Episode, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return core.Episode{}, fmt.Errorf("episode: bad id %q", id)
	}
	ep := core.Episode{
		ID:                 n,
		Kind:               core.EpisodeKind(metadata["kind"]),
		SubtaskDescription: metadata["subtask_description"],
		ActionSummary:      metadata["action_summary"],
		Outcome:            metadata["outcome"],
		Embedding:          embedding,
	}
	if v := metadata["success"]; v != "" {
		ep.Success = v == "true"
	}
	if v := metadata["timestamp"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return core.Episode{}, fmt.Errorf("episode %s: bad timestamp %q", id, v)
		}
		ep.Timestamp = t
	}
	return ep, nil
}
