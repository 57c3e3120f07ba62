// Package taskmesh provides a high-level façade over the task orchestration
// core (planner, coordinator, compressor, memory & consolidation) enabling
// rapid construction of task-breakdown systems. Most applications interact
// with this package by:
//  1. Creating a TaskMesh via New() with a generation and an embedding capability
//  2. Running tasks synchronously (Run), or resuming a checkpointed run (Resume)
//  3. Optionally starting the background memory consolidator (StartConsolidation)
//
// The façade delegates orchestration to coordinator.Coordinator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// persistent memory store, a durable checkpoint store and a structured logger.
package taskmesh

import (
	"context"

	"github.com/hupe1980/taskmesh/aggregator"
	"github.com/hupe1980/taskmesh/compressor"
	"github.com/hupe1980/taskmesh/consolidator"
	"github.com/hupe1980/taskmesh/coordinator"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/planner"
)

// Options configures the TaskMesh instance.
type Options struct {
	// Coordinator configuration (pattern, thresholds, retries, retrieval)
	CoordinatorConfig coordinator.Config

	// PlannerOptions tunes task decomposition bounds.
	PlannerOptions func(o *planner.Options)

	// CompressorOptions tunes the context compression budget and sizing.
	CompressorOptions func(o *compressor.Options)

	// ConsolidatorOptions tunes the background consolidation worker.
	ConsolidatorOptions func(o *consolidator.Options)

	// Validate checks sub-agent outputs before they are accepted. Nil
	// defaults to coordinator.NonEmptyValidator.
	Validate coordinator.Validator

	// GenerateConfig is passed through to all generation calls.
	GenerateConfig model.GenerateConfig

	// Stores (defaults to in-memory implementations if not provided)
	MemoryStore     core.MemoryStore
	CheckpointStore core.CheckpointStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TaskMesh is the high-level façade aggregating the coordinator and the
// background consolidation worker.
type TaskMesh struct {
	opts         Options
	coordinator  *coordinator.Coordinator
	consolidator *consolidator.Consolidator
	store        core.MemoryStore
}

// New creates a new TaskMesh instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(gen model.Generator, embedder model.Embedder, optFns ...func(o *Options)) (*TaskMesh, error) {
	opts := Options{
		CoordinatorConfig: coordinator.DefaultConfig,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	taskPlanner := planner.New(gen, func(o *planner.Options) {
		o.GenerateConfig = opts.GenerateConfig
		o.Logger = opts.Logger
		if opts.PlannerOptions != nil {
			opts.PlannerOptions(o)
		}
	})

	ctxCompressor, err := compressor.New(gen, func(o *compressor.Options) {
		o.GenerateConfig = opts.GenerateConfig
		o.Logger = opts.Logger
		if opts.CompressorOptions != nil {
			opts.CompressorOptions(o)
		}
	})
	if err != nil {
		return nil, err
	}

	resultAggregator := aggregator.New(gen, func(o *aggregator.Options) {
		o.GenerateConfig = opts.GenerateConfig
		o.Logger = opts.Logger
	})

	memoryConsolidator := consolidator.New(gen, embedder, opts.MemoryStore, func(o *consolidator.Options) {
		o.GenerateConfig = opts.GenerateConfig
		o.Logger = opts.Logger
		if opts.ConsolidatorOptions != nil {
			opts.ConsolidatorOptions(o)
		}
	})

	coord, err := coordinator.New(gen, embedder, opts.MemoryStore, taskPlanner, ctxCompressor, resultAggregator, func(o *coordinator.Options) {
		o.Config = opts.CoordinatorConfig
		o.Checkpoints = opts.CheckpointStore
		o.Consolidation = memoryConsolidator
		o.Validate = opts.Validate
		o.GenerateConfig = opts.GenerateConfig
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &TaskMesh{
		opts:         opts,
		coordinator:  coord,
		consolidator: memoryConsolidator,
		store:        opts.MemoryStore,
	}, nil
}

// Run orchestrates a task end to end and returns the run outcome. The
// outcome is non-nil even on failure so callers can inspect partial results.
func (m *TaskMesh) Run(ctx context.Context, task string) (*coordinator.Outcome, error) {
	return m.coordinator.Run(ctx, task)
}

// Resume continues a previously checkpointed run from its last completed
// subtask. It requires a checkpoint store to be configured.
func (m *TaskMesh) Resume(ctx context.Context, runID string) (*coordinator.Outcome, error) {
	return m.coordinator.Resume(ctx, runID)
}

// StartConsolidation launches the background memory consolidation worker.
// The worker stops when the context is cancelled or StopConsolidation is
// called.
func (m *TaskMesh) StartConsolidation(ctx context.Context) {
	m.consolidator.Start(ctx)
}

// StopConsolidation shuts the worker down and waits for the in-flight pass.
func (m *TaskMesh) StopConsolidation() {
	m.consolidator.Stop()
}

// Consolidate runs a single synchronous consolidation pass, useful for
// shutdown flushes and tests.
func (m *TaskMesh) Consolidate(ctx context.Context) (consolidator.Stats, error) {
	return m.consolidator.RunOnce(ctx)
}

// MemoryStore exposes the configured memory store for direct inspection.
func (m *TaskMesh) MemoryStore() core.MemoryStore {
	return m.store
}
