package main

import (
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/taskmesh"
	"github.com/hupe1980/taskmesh/checkpoint"
	"github.com/hupe1980/taskmesh/compressor"
	"github.com/hupe1980/taskmesh/consolidator"
	"github.com/hupe1980/taskmesh/coordinator"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/model/anthropic"
	"github.com/hupe1980/taskmesh/model/openai"
	"github.com/hupe1980/taskmesh/planner"
	openaisdk "github.com/openai/openai-go"
)

// buildMesh constructs a TaskMesh from the CLI configuration.
func buildMesh(cfg *Config) (*taskmesh.TaskMesh, error) {
	logger := buildLogger()

	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	embedder := buildEmbedder(cfg)

	store, err := buildMemoryStore(cfg, embedder, logger)
	if err != nil {
		return nil, err
	}
	checkpoints, err := buildCheckpointStore(cfg)
	if err != nil {
		return nil, err
	}

	return taskmesh.New(gen, embedder, func(o *taskmesh.Options) {
		o.CoordinatorConfig = coordinator.Config{
			Pattern:              coordinator.PatternSequential,
			CompressionThreshold: cfg.Orchestrator.CompressionThreshold,
			MaxRetries:           cfg.Orchestrator.MaxRetries,
			RetrievalK:           cfg.Orchestrator.RetrievalEpisodes,
			RetrievalM:           cfg.Orchestrator.RetrievalFacts,
		}
		o.PlannerOptions = func(po *planner.Options) {
			po.MinSubtasks = cfg.Orchestrator.MinSubtasks
			po.MaxSubtasks = cfg.Orchestrator.MaxSubtasks
		}
		o.CompressorOptions = func(co *compressor.Options) {
			co.MaxWords = cfg.Orchestrator.CompressionMaxWords
			co.TokenEncoding = cfg.Orchestrator.TokenEncoding
		}
		o.ConsolidatorOptions = func(co *consolidator.Options) {
			co.BatchSize = cfg.Consolidator.BatchSize
			co.Interval = cfg.Consolidator.Interval
			co.MergeThreshold = cfg.Consolidator.MergeThreshold
		}
		o.GenerateConfig = model.GenerateConfig{
			Temperature: cfg.Model.Temperature,
			MaxTokens:   int64(cfg.Model.MaxTokens),
		}
		o.MemoryStore = store
		o.CheckpointStore = checkpoints
		o.Logger = logger
	})
}

func buildLogger() logging.Logger {
	logCfg := logging.DefaultLoggerConfig()
	logCfg.Format = "text"
	logCfg.Output = os.Stderr
	logCfg.AddSource = false
	if verbose {
		logCfg.Level = logging.LogLevelDebug
	}
	return logging.NewLogger(logCfg)
}

func buildGenerator(cfg *Config) (model.Generator, error) {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewGenerator(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			if cfg.Model.Temperature != 0 {
				o.Temperature = cfg.Model.Temperature
			}
			o.MaxTokens = int64(cfg.Model.MaxTokens)
		}), nil
	case "openai":
		return openai.NewGenerator(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = openaisdk.ChatModel(cfg.Model.Name)
			}
			if cfg.Model.Temperature != 0 {
				o.Temperature = cfg.Model.Temperature
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

func buildEmbedder(cfg *Config) model.Embedder {
	// Embeddings go through OpenAI regardless of the generation provider;
	// Anthropic has no embedding endpoint.
	return openai.NewEmbedder(func(o *openai.Options) {
		if cfg.Model.EmbeddingModel != "" {
			o.EmbeddingModel = openaisdk.EmbeddingModel(cfg.Model.EmbeddingModel)
		}
	})
}

func buildMemoryStore(cfg *Config, embedder model.Embedder, logger logging.Logger) (core.MemoryStore, error) {
	switch cfg.Memory.Store {
	case "chromem":
		path, err := expandHome(cfg.Memory.Path)
		if err != nil {
			return nil, err
		}
		return memory.NewChromemStore(memory.ChromemConfig{
			Path:     path,
			Compress: cfg.Memory.Compress,
			Logger:   logger,
		}, embedder)
	default:
		return memory.NewInMemoryStore(func(o *memory.Options) {
			o.MaxEpisodes = cfg.Memory.MaxEpisodes
		}), nil
	}
}

func buildCheckpointStore(cfg *Config) (core.CheckpointStore, error) {
	if cfg.Checkpoints.Dir == "" {
		return nil, nil
	}
	dir, err := expandHome(cfg.Checkpoints.Dir)
	if err != nil {
		return nil, err
	}
	return checkpoint.NewFileStore(dir)
}
