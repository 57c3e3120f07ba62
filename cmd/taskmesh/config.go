package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Config holds the CLI configuration, merged from the YAML config file and
// TASKMESH_* environment variables.
type Config struct {
	Model        ModelConfig        `koanf:"model"`
	Memory       MemoryConfig       `koanf:"memory"`
	Checkpoints  CheckpointConfig   `koanf:"checkpoints"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Consolidator ConsolidatorConfig `koanf:"consolidator"`
}

// ModelConfig selects and tunes the generation and embedding providers.
type ModelConfig struct {
	// Provider is "anthropic" or "openai".
	Provider    string  `koanf:"provider"`
	Name        string  `koanf:"name"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	// EmbeddingModel selects the OpenAI embedding model. Embeddings always
	// use OpenAI; Anthropic exposes no embedding endpoint.
	EmbeddingModel string `koanf:"embedding_model"`
}

// MemoryConfig selects the memory store backend.
type MemoryConfig struct {
	// Store is "in_memory" or "chromem".
	Store string `koanf:"store"`
	// Path is the chromem persistence directory.
	Path string `koanf:"path"`
	// Compress enables gzip for persisted chromem documents.
	Compress bool `koanf:"compress"`
	// MaxEpisodes bounds the in-memory episode log. Zero means unbounded.
	MaxEpisodes int `koanf:"max_episodes"`
}

// CheckpointConfig selects where run snapshots are persisted.
type CheckpointConfig struct {
	// Dir is the directory for checkpoint files. Empty disables
	// checkpointing.
	Dir string `koanf:"dir"`
}

// OrchestratorConfig tunes planning, compression and retry behavior.
type OrchestratorConfig struct {
	MinSubtasks          int    `koanf:"min_subtasks"`
	MaxSubtasks          int    `koanf:"max_subtasks"`
	CompressionThreshold int    `koanf:"compression_threshold"`
	CompressionMaxWords  int    `koanf:"compression_max_words"`
	TokenEncoding        string `koanf:"token_encoding"`
	MaxRetries           int    `koanf:"max_retries"`
	RetrievalEpisodes    int    `koanf:"retrieval_episodes"`
	RetrievalFacts       int    `koanf:"retrieval_facts"`
}

// ConsolidatorConfig tunes the background consolidation worker.
type ConsolidatorConfig struct {
	BatchSize      int           `koanf:"batch_size"`
	Interval       time.Duration `koanf:"interval"`
	MergeThreshold float64       `koanf:"merge_threshold"`
}

// loadConfig loads configuration from the YAML file, then overrides with
// TASKMESH_* environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TASKMESH_MODEL_PROVIDER, TASKMESH_MEMORY_STORE, ...)
//  2. YAML config file (~/.config/taskmesh/config.yaml)
//  3. Hardcoded defaults
func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "taskmesh", "config.yaml")
	}

	if f, err := os.Open(path); err == nil {
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// TASKMESH_MODEL_PROVIDER -> model.provider
	// TASKMESH_MEMORY_MAX_EPISODES -> memory.max_episodes
	if err := k.Load(env.Provider("TASKMESH_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "TASKMESH_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "anthropic"
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 4096
	}
	if cfg.Memory.Store == "" {
		cfg.Memory.Store = "in_memory"
	}
	if cfg.Memory.Store == "chromem" && cfg.Memory.Path == "" {
		cfg.Memory.Path = "~/.config/taskmesh/memory"
	}
	if cfg.Orchestrator.MinSubtasks == 0 {
		cfg.Orchestrator.MinSubtasks = 2
	}
	if cfg.Orchestrator.MaxSubtasks == 0 {
		cfg.Orchestrator.MaxSubtasks = 5
	}
	if cfg.Orchestrator.CompressionThreshold == 0 {
		cfg.Orchestrator.CompressionThreshold = 2000
	}
	if cfg.Orchestrator.CompressionMaxWords == 0 {
		cfg.Orchestrator.CompressionMaxWords = 200
	}
	if cfg.Orchestrator.MaxRetries == 0 {
		cfg.Orchestrator.MaxRetries = 3
	}
	if cfg.Orchestrator.RetrievalEpisodes == 0 {
		cfg.Orchestrator.RetrievalEpisodes = 5
	}
	if cfg.Orchestrator.RetrievalFacts == 0 {
		cfg.Orchestrator.RetrievalFacts = 3
	}
	if cfg.Consolidator.BatchSize == 0 {
		cfg.Consolidator.BatchSize = 10
	}
	if cfg.Consolidator.Interval == 0 {
		cfg.Consolidator.Interval = time.Minute
	}
	if cfg.Consolidator.MergeThreshold == 0 {
		cfg.Consolidator.MergeThreshold = 0.85
	}
}

// Validate rejects configurations the CLI cannot act on.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown model provider %q (want anthropic or openai)", c.Model.Provider)
	}
	switch c.Memory.Store {
	case "in_memory", "chromem":
	default:
		return fmt.Errorf("unknown memory store %q (want in_memory or chromem)", c.Memory.Store)
	}
	if c.Consolidator.MergeThreshold < 0 || c.Consolidator.MergeThreshold > 1 {
		return fmt.Errorf("merge threshold %v out of range [0, 1]", c.Consolidator.MergeThreshold)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
