// Package anthropic provides a Generator adapter for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/taskmesh/model"
)

// Options configures the Anthropic generator adapter (model id, temperature,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Generator wraps the Anthropic Messages API behind the generic
// model.Generator interface.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

// NewGenerator creates a new Anthropic generator using the official client.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.1,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Generator{
		client: &client,
		opts:   opts,
	}
}

// NewGeneratorFromClient creates a new Anthropic generator from an existing client.
func NewGeneratorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.1,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Generator{
		client: client,
		opts:   opts,
	}
}

// Generate implements model.Generator via a single non-streaming Messages call.
func (g *Generator) Generate(ctx context.Context, prompt string, cfg model.GenerateConfig) (string, error) {
	temperature := g.opts.Temperature
	if cfg.Temperature != 0 {
		temperature = cfg.Temperature
	}
	maxTokens := g.opts.MaxTokens
	if cfg.MaxTokens != 0 {
		maxTokens = cfg.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if len(cfg.StopSequences) > 0 {
		params.StopSequences = cfg.StopSequences
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", &model.ModelError{Provider: "anthropic", Err: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return "", &model.ModelError{Provider: "anthropic", Err: fmt.Errorf("empty completion")}
	}
	return text, nil
}

// Info implements model.Generator.
func (g *Generator) Info() model.Info {
	return model.Info{Name: string(g.opts.Model), Provider: "anthropic"}
}
