package model

import (
	"context"
	"fmt"
)

// GenerateConfig carries per-call generation parameters. Zero values mean
// "provider default".
type GenerateConfig struct {
	Temperature   float64  `json:"temperature,omitempty"`
	MaxTokens     int64    `json:"max_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// Generator is the minimal generation capability required by the
// orchestration core. Implementations block until the provider returns a
// completion (or the context is cancelled) and surface provider-side
// failures as *ModelError.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg GenerateConfig) (string, error)

	// Info returns metadata about the backing model implementation.
	Info() Info
}

// Embedder converts text into a fixed-dimensionality vector. Failures are
// surfaced as *EmbeddingError.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// ModelError wraps a generation-capability failure (rate limit, timeout,
// malformed provider output). The coordinator catches it at the capability
// boundary and classifies it as retryable.
type ModelError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("model error (%s): %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ModelError) Unwrap() error { return e.Err }

// EmbeddingError wraps an embedding-capability failure.
type EmbeddingError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (%s): %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *EmbeddingError) Unwrap() error { return e.Err }
