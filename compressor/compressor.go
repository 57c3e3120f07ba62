// Package compressor reduces an accumulated textual context into a bounded
// summary while preserving decision-relevant facts. One generation call with
// an explicit extractive instruction does the work; the output is
// hard-bounded so a verbose model cannot grow the context it was asked to
// shrink. Compression failure is never fatal to a run: the coordinator
// degrades to truncation and continues.
package compressor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/pkoukk/tiktoken-go"
)

const compressionPrompt = `Compress the following context into key insights (under %d words):

Context: %s

Recent steps:
%s

Instructions:
1. Preserve: task goals, completed work, key numeric facts, decisions already made
2. Remove: verbose explanations, repeated phrasing, redundant information
3. Focus on actionable insights and important findings
4. Keep the compression under %d words

Compressed context:`

// Options configures a Compressor.
type Options struct {
	// MaxWords is the word budget stated in the compression instruction.
	MaxWords int
	// MaxChars hard-bounds the returned summary; model output beyond it is
	// truncated at a word boundary.
	MaxChars int
	// TokenEncoding selects a tiktoken encoding (e.g. "cl100k_base") for
	// token-based context sizing. Empty means character-based sizing.
	TokenEncoding string
	// GenerateConfig is passed through to the generation capability.
	GenerateConfig model.GenerateConfig
	// Logger receives compression diagnostics. Nil defaults to NoOp.
	Logger logging.Logger
}

// Compressor produces bounded summaries of accumulated run context.
type Compressor struct {
	gen      model.Generator
	opts     Options
	logger   logging.Logger
	encoding *tiktoken.Tiktoken
}

// New creates a Compressor backed by the given generation capability.
func New(gen model.Generator, optFns ...func(o *Options)) (*Compressor, error) {
	opts := Options{
		MaxWords: 200,
		MaxChars: 1200,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	c := &Compressor{gen: gen, opts: opts, logger: opts.Logger}
	if opts.TokenEncoding != "" {
		enc, err := tiktoken.GetEncoding(opts.TokenEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading token encoding %s: %w", opts.TokenEncoding, err)
		}
		c.encoding = enc
	}
	return c, nil
}

// ContextSize measures text for threshold decisions: token count when a
// token encoding is configured, character count otherwise.
func (c *Compressor) ContextSize(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return len(text)
}

// Compress summarizes fullContext, optionally grounding on recent episodes.
// The result never exceeds the configured character bound nor the input
// length. Failures return *core.CompressionError so callers can degrade
// gracefully.
func (c *Compressor) Compress(ctx context.Context, fullContext string, episodes []core.Episode) (string, error) {
	if strings.TrimSpace(fullContext) == "" {
		return "", &core.CompressionError{Err: errors.New("nothing to compress")}
	}

	var recent strings.Builder
	for _, ep := range episodes {
		fmt.Fprintf(&recent, "- %s: %s\n", ep.SubtaskDescription, ep.ActionSummary)
	}
	if recent.Len() == 0 {
		recent.WriteString("(none)\n")
	}

	prompt := fmt.Sprintf(compressionPrompt, c.opts.MaxWords, fullContext, recent.String(), c.opts.MaxWords)
	summary, err := c.gen.Generate(ctx, prompt, c.opts.GenerateConfig)
	if err != nil {
		return "", &core.CompressionError{Err: err}
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", &core.CompressionError{Err: errors.New("empty summary")}
	}

	bound := c.opts.MaxChars
	if len(fullContext) < bound {
		// Compression must never increase context length.
		bound = len(fullContext)
	}
	return Truncate(summary, bound), nil
}

// Truncate cuts text to at most maxChars, preferring a word boundary near
// the cut so the summary stays readable.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxChars/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// TruncateTail keeps the last maxChars of text, used by the coordinator's
// degradation path where the most recent context matters most.
func TruncateTail(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := text[len(text)-maxChars:]
	if idx := strings.IndexByte(cut, ' '); idx >= 0 && idx < maxChars/2 {
		cut = cut[idx+1:]
	}
	return strings.TrimSpace(cut)
}
