// Package model defines the capability boundary between TaskMesh and
// language-model providers. Two narrow interfaces cover everything the
// orchestration core needs:
//
//   - Generator: prompt in, completion text out
//   - Embedder: text in, fixed-dimension vector out
//
// Provider adapters live in subpackages (anthropic, openai). The package
// also ships deterministic mock implementations used throughout the test
// suite: MockGenerator supports canned responses and scripted failures,
// MockEmbedder produces stable token-hash vectors so similarity behaves
// predictably without a real embedding model.
package model
