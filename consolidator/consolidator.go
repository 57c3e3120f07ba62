// Package consolidator converts accumulated episodes into semantic facts in
// the background, decoupled from the per-subtask hot path by a non-blocking
// notification channel. A slow consolidation pass can therefore never stall
// subtask execution. Candidate statements are extracted in batches (one
// generation call per batch for cost control), embedded, and merged into
// existing facts above a similarity threshold instead of inserted as
// near-duplicates. Consolidation is additive: raw episodes survive for audit.
package consolidator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
)

const extractionPrompt = `You are a knowledge distiller. From the following execution episodes, extract the generalizable facts worth remembering for future tasks.

Episodes:
%s

Instructions:
1. State each fact as one standalone sentence
2. Prefer durable knowledge over run-specific detail
3. Do not repeat near-identical facts
4. Return only the facts as a numbered list

Facts:`

// Options configures a Consolidator.
type Options struct {
	// BatchSize is how many unconsolidated episodes one pass processes, and
	// how many notifications accumulate before the worker wakes up.
	BatchSize int
	// Interval triggers a periodic pass even when the batch has not filled,
	// so a quiet system still consolidates its tail. Zero disables the timer.
	Interval time.Duration
	// MergeThreshold is the cosine similarity above which a candidate fact
	// merges into an existing one.
	MergeThreshold float64
	// GenerateConfig is passed through to the generation capability.
	GenerateConfig model.GenerateConfig
	// Logger receives consolidation diagnostics. Nil defaults to NoOp.
	Logger logging.Logger
}

// Stats summarizes one consolidation pass.
type Stats struct {
	EpisodesProcessed int
	FactsInserted     int
	FactsMerged       int
}

// Consolidator is the background memory consolidation worker.
type Consolidator struct {
	gen      model.Generator
	embedder model.Embedder
	store    core.MemoryStore
	opts     Options
	logger   logging.Logger

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Consolidator. Call Start to launch the background worker, or
// drive passes synchronously with RunOnce (tests, shutdown flush).
func New(gen model.Generator, embedder model.Embedder, store core.MemoryStore, optFns ...func(o *Options)) *Consolidator {
	opts := Options{
		BatchSize:      10,
		Interval:       time.Minute,
		MergeThreshold: 0.85,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Consolidator{
		gen:      gen,
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
		notify:   make(chan struct{}, 1024),
		done:     make(chan struct{}),
	}
}

// Notify signals that a new episode was recorded. It never blocks: when the
// channel is full the pending work is picked up by the next pass anyway.
func (c *Consolidator) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Start launches the background worker. The worker wakes when BatchSize
// notifications accumulate or the interval elapses, and drains all
// unconsolidated episodes batch by batch.
func (c *Consolidator) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop terminates the background worker and waits for an in-flight pass to
// finish. Stop is idempotent.
func (c *Consolidator) Stop() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Consolidator) loop(ctx context.Context) {
	defer c.wg.Done()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if c.opts.Interval > 0 {
		ticker = time.NewTicker(c.opts.Interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.notify:
			pending++
			if pending < c.opts.BatchSize {
				continue
			}
			pending = 0
		case <-tick:
			pending = 0
		}

		if err := c.Drain(ctx); err != nil {
			c.logger.Error("consolidation pass failed", "error", err)
		}
	}
}

// Drain runs consolidation passes until no unconsolidated episodes remain.
func (c *Consolidator) Drain(ctx context.Context) error {
	for {
		stats, err := c.RunOnce(ctx)
		if err != nil {
			return err
		}
		if stats.EpisodesProcessed == 0 {
			return nil
		}
	}
}

// RunOnce executes one consolidation pass over at most BatchSize episodes.
// Episodes are marked consolidated only after the pass succeeds, so a failed
// pass is retried in full and a repeated pass over already-consolidated
// episodes is a no-op (idempotence).
func (c *Consolidator) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	start := time.Now()

	episodes, err := c.store.UnconsolidatedEpisodes(ctx, c.opts.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("listing unconsolidated episodes: %w", err)
	}
	if len(episodes) == 0 {
		return stats, nil
	}

	statements, err := c.extract(ctx, episodes)
	if err != nil {
		return stats, err
	}

	episodeIDs := make([]int64, len(episodes))
	for i, ep := range episodes {
		episodeIDs[i] = ep.ID
	}

	for _, statement := range statements {
		embedding, err := c.embedder.Embed(ctx, statement)
		if err != nil {
			return stats, fmt.Errorf("embedding candidate fact: %w", err)
		}
		candidate := core.SemanticFact{
			Statement:        statement,
			Embedding:        embedding,
			SupportCount:     1,
			SourceEpisodeIDs: episodeIDs,
		}
		_, merged, err := c.store.AddFact(ctx, candidate, c.opts.MergeThreshold)
		if err != nil {
			return stats, fmt.Errorf("storing fact: %w", err)
		}
		if merged {
			stats.FactsMerged++
		} else {
			stats.FactsInserted++
		}
	}

	if err := c.store.MarkConsolidated(ctx, episodeIDs); err != nil {
		return stats, fmt.Errorf("marking episodes consolidated: %w", err)
	}
	stats.EpisodesProcessed = len(episodes)

	if tl, ok := c.logger.(*logging.TaskMeshLogger); ok {
		tl.LogConsolidation(stats.EpisodesProcessed, stats.FactsInserted, stats.FactsMerged, time.Since(start), nil)
	} else {
		c.logger.Debug("consolidation pass completed",
			"episodes", stats.EpisodesProcessed,
			"facts_inserted", stats.FactsInserted,
			"facts_merged", stats.FactsMerged,
			"duration", time.Since(start))
	}
	return stats, nil
}

func (c *Consolidator) extract(ctx context.Context, episodes []core.Episode) ([]string, error) {
	var formatted strings.Builder
	for _, ep := range episodes {
		outcome := "failed"
		if ep.Success {
			outcome = "succeeded"
		}
		fmt.Fprintf(&formatted, "- [%s] %s: %s (%s)\n", ep.Timestamp.Format(time.RFC3339), ep.SubtaskDescription, ep.ActionSummary, outcome)
	}

	out, err := c.gen.Generate(ctx, fmt.Sprintf(extractionPrompt, formatted.String()), c.opts.GenerateConfig)
	if err != nil {
		return nil, fmt.Errorf("extracting facts: %w", err)
	}
	return parseStatements(out), nil
}

// parseStatements pulls fact sentences out of a numbered or bulleted list.
func parseStatements(text string) []string {
	var statements []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] >= '0' && line[0] <= '9' || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			clean := strings.TrimSpace(strings.TrimLeft(line, "0123456789.-* )"))
			if clean != "" {
				statements = append(statements, clean)
			}
		}
	}
	return statements
}
