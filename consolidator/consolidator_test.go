package consolidator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
)

func TestParseStatements(t *testing.T) {
	got := parseStatements("1. The api limit is 100 rps\n2. Deploys happen on Tuesdays\nnot a list line\n- Third fact")
	assert.Equal(t, []string{
		"The api limit is 100 rps",
		"Deploys happen on Tuesdays",
		"Third fact",
	}, got)
}

func addEpisodes(t *testing.T, store core.MemoryStore, embedder model.Embedder, descriptions ...string) {
	t.Helper()
	ctx := context.Background()
	for _, desc := range descriptions {
		vec, err := embedder.Embed(ctx, desc)
		require.NoError(t, err)
		_, err = store.AddEpisode(ctx, core.Episode{
			Kind:               core.EpisodeSubtask,
			SubtaskDescription: desc,
			ActionSummary:      "completed " + desc,
			Success:            true,
			Embedding:          vec,
		})
		require.NoError(t, err)
	}
}

func TestRunOnce_ExtractsAndStoresFacts(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Facts:", "1. The billing service uses postgres\n2. Deploys happen on Tuesdays")
	embedder := model.NewMockEmbedder(64)
	store := memory.NewInMemoryStore()

	addEpisodes(t, store, embedder, "inspect billing service", "review deploy pipeline")

	c := New(gen, embedder, store)
	stats, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.EpisodesProcessed)
	assert.Equal(t, 2, stats.FactsInserted)
	assert.Equal(t, 0, stats.FactsMerged)
	assert.Equal(t, 2, store.FactCount())
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Facts:", "1. Something learned")
	embedder := model.NewMockEmbedder(64)
	store := memory.NewInMemoryStore()

	addEpisodes(t, store, embedder, "the only episode")

	c := New(gen, embedder, store)
	stats, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EpisodesProcessed)

	// Second pass sees no unconsolidated episodes and does nothing.
	stats, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EpisodesProcessed)
	assert.Equal(t, 1, store.FactCount())
}

func TestRunOnce_MergesNearDuplicateFacts(t *testing.T) {
	// Every batch extracts the same statement; batches after the first must
	// merge into the existing fact instead of inserting duplicates.
	gen := model.NewMockGenerator()
	gen.AddResponse("Facts:", "1. The api rate limit is 100 rps")
	embedder := model.NewMockEmbedder(64)
	store := memory.NewInMemoryStore()

	var descriptions []string
	for i := 0; i < 50; i++ {
		descriptions = append(descriptions, fmt.Sprintf("probe the api, attempt %d", i))
	}
	addEpisodes(t, store, embedder, descriptions...)

	c := New(gen, embedder, store, func(o *Options) { o.BatchSize = 10 })

	var inserted, merged, processed int
	for {
		stats, err := c.RunOnce(context.Background())
		require.NoError(t, err)
		if stats.EpisodesProcessed == 0 {
			break
		}
		processed += stats.EpisodesProcessed
		inserted += stats.FactsInserted
		merged += stats.FactsMerged
	}

	assert.Equal(t, 50, processed)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 4, merged)
	assert.Equal(t, 1, store.FactCount())

	// The merged fact's support count reflects every merge.
	vec, err := embedder.Embed(context.Background(), "The api rate limit is 100 rps")
	require.NoError(t, err)
	hits, err := store.SearchFacts(context.Background(), vec, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 5, hits[0].Fact.SupportCount)
}

func TestRunOnce_FailureLeavesEpisodesUnconsolidated(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Facts:", "1. A fact")
	embedder := model.NewMockEmbedder(64)
	store := memory.NewInMemoryStore()

	addEpisodes(t, store, embedder, "an episode")

	c := New(gen, embedder, store)

	// Embedding the candidate fact fails; the pass errors and the episode
	// stays pending.
	embedder.FailNext(1)
	_, err := c.RunOnce(context.Background())
	require.Error(t, err)

	pending, err := store.UnconsolidatedEpisodes(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// The retry succeeds and consumes the backlog.
	stats, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EpisodesProcessed)
}

func TestConsolidator_BackgroundWorkerDrains(t *testing.T) {
	gen := model.NewMockGenerator()
	gen.AddResponse("Facts:", "1. Background fact")
	embedder := model.NewMockEmbedder(64)
	store := memory.NewInMemoryStore()

	addEpisodes(t, store, embedder, "one", "two", "three")

	c := New(gen, embedder, store, func(o *Options) {
		o.BatchSize = 3
		o.Interval = 10 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	// The interval tick picks the backlog up without any notifications.
	require.Eventually(t, func() bool {
		pending, err := store.UnconsolidatedEpisodes(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)

	c.Stop()
	assert.Equal(t, 1, store.FactCount())
}

func TestConsolidator_StopIsIdempotent(t *testing.T) {
	c := New(model.NewMockGenerator(), model.NewMockEmbedder(8), memory.NewInMemoryStore())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}

func TestNotify_NeverBlocks(t *testing.T) {
	c := New(model.NewMockGenerator(), model.NewMockEmbedder(8), memory.NewInMemoryStore())
	for i := 0; i < 5000; i++ {
		c.Notify()
	}
}
