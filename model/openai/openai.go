// Package openai provides Generator and Embedder adapters for the OpenAI API.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskmesh/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configures the OpenAI adapters (chat model, embedding model,
// temperature, max completion tokens, API key).
type Options struct {
	Model               openai.ChatModel
	EmbeddingModel      openai.EmbeddingModel
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		EmbeddingModel:      openai.EmbeddingModelTextEmbedding3Small,
		Temperature:         0.1,
		MaxCompletionTokens: 4096,
	}
}

// Generator wraps the OpenAI Chat Completions API behind the generic
// model.Generator interface.
type Generator struct {
	client *openai.Client
	opts   Options
}

// NewGenerator creates a new OpenAI generator using the official client.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Generator{client: &client, opts: opts}
}

// NewGeneratorFromClient creates a new OpenAI generator from an existing client.
func NewGeneratorFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements model.Generator via a single non-streaming chat
// completion call.
func (g *Generator) Generate(ctx context.Context, prompt string, cfg model.GenerateConfig) (string, error) {
	temperature := g.opts.Temperature
	if cfg.Temperature != 0 {
		temperature = cfg.Temperature
	}
	maxTokens := g.opts.MaxCompletionTokens
	if cfg.MaxTokens != 0 {
		maxTokens = cfg.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               g.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if len(cfg.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: cfg.StopSequences}
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &model.ModelError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &model.ModelError{Provider: "openai", Err: fmt.Errorf("empty completion")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Info implements model.Generator.
func (g *Generator) Info() model.Info {
	return model.Info{Name: string(g.opts.Model), Provider: "openai"}
}

// Embedder wraps the OpenAI Embeddings API behind the generic model.Embedder
// interface.
type Embedder struct {
	client *openai.Client
	opts   Options
}

// NewEmbedder creates a new OpenAI embedder using the official client.
func NewEmbedder(optFns ...func(o *Options)) *Embedder {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Embedder{client: &client, opts: opts}
}

// NewEmbedderFromClient creates a new OpenAI embedder from an existing client.
func NewEmbedderFromClient(client *openai.Client, optFns ...func(o *Options)) *Embedder {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{client: client, opts: opts}
}

// Embed implements model.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.opts.EmbeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, &model.EmbeddingError{Provider: "openai", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &model.EmbeddingError{Provider: "openai", Err: fmt.Errorf("empty embedding response")}
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
