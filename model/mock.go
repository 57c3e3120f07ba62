package model

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// MockGenerator is a deterministic in-memory Generator useful for tests and
// examples. It matches prompts against registered substrings and supports
// scripted failures to exercise retry paths.
type MockGenerator struct {
	mu        sync.Mutex
	info      Info
	responses []mockResponse
	failures  int
	calls     []string
}

type mockResponse struct {
	match    string
	response string
}

// NewMockGenerator constructs a MockGenerator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{info: Info{Name: "mock", Provider: "mock"}}
}

// AddResponse registers a canned completion returned for any prompt
// containing match. Registrations are checked in order; first hit wins.
func (m *MockGenerator) AddResponse(match, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{match: match, response: response})
}

// FailNext makes the next n Generate calls fail with a *ModelError before
// normal matching resumes.
func (m *MockGenerator) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Calls returns the prompts seen so far, in call order.
func (m *MockGenerator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, _ GenerateConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ModelError{Provider: "mock", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)
	if m.failures > 0 {
		m.failures--
		return "", &ModelError{Provider: "mock", Err: errors.New("scripted failure")}
	}
	for _, r := range m.responses {
		if strings.Contains(prompt, r.match) {
			return r.response, nil
		}
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}

// Info implements Generator.
func (m *MockGenerator) Info() Info { return m.info }

// MockEmbedder produces deterministic unit vectors by hashing whitespace
// tokens into a fixed number of dimensions. Texts sharing tokens land close
// together, so cosine ranking in tests behaves like a (very crude) semantic
// index without any external model.
type MockEmbedder struct {
	dims     int
	failNext int
	mu       sync.Mutex
}

// NewMockEmbedder constructs a MockEmbedder with the given dimensionality.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &MockEmbedder{dims: dims}
}

// FailNext makes the next n Embed calls fail with a *EmbeddingError.
func (m *MockEmbedder) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, &EmbeddingError{Provider: "mock", Err: err}
	}
	m.mu.Lock()
	if m.failNext > 0 {
		m.failNext--
		m.mu.Unlock()
		return nil, &EmbeddingError{Provider: "mock", Err: errors.New("scripted failure")}
	}
	m.mu.Unlock()

	vec := make([]float32, m.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%m.dims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
