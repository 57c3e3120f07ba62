package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/model"
)

// Interface compliance (compile-time assertion)
var _ core.MemoryStore = (*ChromemStore)(nil)

func newChromemStore(t *testing.T, dir string) (*ChromemStore, *model.MockEmbedder) {
	t.Helper()
	embedder := model.NewMockEmbedder(64)
	s, err := NewChromemStore(ChromemConfig{Path: dir}, embedder)
	require.NoError(t, err)
	return s, embedder
}

func TestChromemStore_RequiresConfig(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, model.NewMockEmbedder(8))
	assert.Error(t, err)

	_, err = NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil)
	assert.Error(t, err)
}

func TestChromemStore_EpisodeRoundTrip(t *testing.T) {
	s, embedder := newChromemStore(t, t.TempDir())
	ctx := context.Background()

	vec, err := embedder.Embed(ctx, "inspect the billing service")
	require.NoError(t, err)

	id, err := s.AddEpisode(ctx, core.Episode{
		Kind:               core.EpisodeSubtask,
		SubtaskDescription: "inspect the billing service",
		ActionSummary:      "found the postgres schema",
		Outcome:            "schema documented",
		Success:            true,
		Embedding:          vec,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	hits, err := s.SearchEpisodes(ctx, vec, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].Episode.ID)
	assert.Equal(t, "inspect the billing service", hits[0].Episode.SubtaskDescription)
	assert.Equal(t, "found the postgres schema", hits[0].Episode.ActionSummary)
	assert.True(t, hits[0].Episode.Success)
	assert.False(t, hits[0].Episode.Timestamp.IsZero())
}

func TestChromemStore_SearchClampsToStoredCount(t *testing.T) {
	s, embedder := newChromemStore(t, t.TempDir())
	ctx := context.Background()

	vec, err := embedder.Embed(ctx, "only episode")
	require.NoError(t, err)
	_, err = s.AddEpisode(ctx, core.Episode{Kind: core.EpisodeSubtask, SubtaskDescription: "only episode", Embedding: vec})
	require.NoError(t, err)

	// Asking for more than stored must not fail.
	hits, err := s.SearchEpisodes(ctx, vec, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	// Empty store yields an empty result, not an error.
	facts, err := s.SearchFacts(ctx, vec, 3)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestChromemStore_FactMerge(t *testing.T) {
	s, embedder := newChromemStore(t, t.TempDir())
	ctx := context.Background()

	vec, err := embedder.Embed(ctx, "the api rate limit is 100 rps")
	require.NoError(t, err)

	id1, merged, err := s.AddFact(ctx, core.SemanticFact{
		Statement:        "the api rate limit is 100 rps",
		Embedding:        vec,
		SupportCount:     1,
		SourceEpisodeIDs: []int64{1},
	}, 0.85)
	require.NoError(t, err)
	assert.False(t, merged)

	id2, merged, err := s.AddFact(ctx, core.SemanticFact{
		Statement:        "the api rate limit is 100 rps",
		Embedding:        vec,
		SupportCount:     1,
		SourceEpisodeIDs: []int64{2},
	}, 0.85)
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, s.FactCount())

	hits, err := s.SearchFacts(ctx, vec, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].Fact.SupportCount)
	assert.ElementsMatch(t, []int64{1, 2}, hits[0].Fact.SourceEpisodeIDs)
}

func TestChromemStore_PendingSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, embedder := newChromemStore(t, dir)
	vec, err := embedder.Embed(ctx, "persisted episode")
	require.NoError(t, err)

	id, err := s.AddEpisode(ctx, core.Episode{Kind: core.EpisodeSubtask, SubtaskDescription: "persisted episode", Embedding: vec})
	require.NoError(t, err)

	// Reopen from disk: pending episodes and the id counter survive.
	reopened, err := NewChromemStore(ChromemConfig{Path: dir}, embedder)
	require.NoError(t, err)

	pending, err := reopened.UnconsolidatedEpisodes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	id2, err := reopened.AddEpisode(ctx, core.Episode{Kind: core.EpisodeSubtask, SubtaskDescription: "second", Embedding: vec})
	require.NoError(t, err)
	assert.Equal(t, id+1, id2)
}

func TestChromemStore_MarkConsolidatedClearsPending(t *testing.T) {
	s, embedder := newChromemStore(t, t.TempDir())
	ctx := context.Background()

	vec, err := embedder.Embed(ctx, "episode one")
	require.NoError(t, err)
	id1, err := s.AddEpisode(ctx, core.Episode{Kind: core.EpisodeSubtask, SubtaskDescription: "episode one", Embedding: vec})
	require.NoError(t, err)
	id2, err := s.AddEpisode(ctx, core.Episode{Kind: core.EpisodeSubtask, SubtaskDescription: "episode two", Embedding: vec})
	require.NoError(t, err)

	require.NoError(t, s.MarkConsolidated(ctx, []int64{id1}))

	pending, err := s.UnconsolidatedEpisodes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id2, pending[0].ID)
}

func TestChromemStore_CompressionEpisodesAreNotPending(t *testing.T) {
	s, embedder := newChromemStore(t, t.TempDir())
	ctx := context.Background()

	vec, err := embedder.Embed(ctx, "context compression")
	require.NoError(t, err)
	_, err = s.AddEpisode(ctx, core.Episode{Kind: core.EpisodeCompression, SubtaskDescription: "context compression", Outcome: "summary", Embedding: vec})
	require.NoError(t, err)

	pending, err := s.UnconsolidatedEpisodes(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
