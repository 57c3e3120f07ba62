// Package aggregator synthesizes all subtask outputs into one final result
// with a single generation call. Aggregation runs only after every subtask
// has completed; an incomplete result set indicates a coordinator invariant
// violation and is reported as *core.AggregationError rather than retried.
package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
)

const mergePrompt = `You are a result merger. Combine the following subtask results into a comprehensive final result.

Original task: %s
Working context: %s
Subtask results:
%s

Instructions:
1. Synthesize all subtask results into a coherent final result, in order
2. Ensure the final result addresses the original task completely
3. Maintain the quality and detail from individual subtasks
4. Create a well-structured, professional output

Final result:`

// Options configures an Aggregator.
type Options struct {
	// GenerateConfig is passed through to the generation capability.
	GenerateConfig model.GenerateConfig
	// Logger receives aggregation diagnostics. Nil defaults to NoOp.
	Logger logging.Logger
}

// Aggregator merges ordered subtask outputs into the final result.
type Aggregator struct {
	gen    model.Generator
	opts   Options
	logger logging.Logger
}

// New creates an Aggregator backed by the given generation capability.
func New(gen model.Generator, optFns ...func(o *Options)) *Aggregator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Aggregator{gen: gen, opts: opts, logger: opts.Logger}
}

// Aggregate synthesizes the recorded results in subtask order. Every subtask
// must have a recorded result; anything missing is an internal invariant
// violation, logged loudly and returned as *core.AggregationError.
func (a *Aggregator) Aggregate(ctx context.Context, task core.Task, workingContext string, results *core.Results) (string, error) {
	var missing []string
	for _, st := range task.Subtasks {
		if _, ok := results.Get(st.ID); !ok {
			missing = append(missing, st.ID)
		}
	}
	if len(missing) > 0 {
		err := &core.AggregationError{Missing: missing}
		a.logger.Error("aggregation invoked with incomplete results", "missing", strings.Join(missing, ","))
		return "", err
	}

	var formatted strings.Builder
	for _, st := range task.Subtasks {
		output, _ := results.Get(st.ID)
		fmt.Fprintf(&formatted, "\n[%s] %s:\n%s\n", st.ID, st.Description, output)
	}
	if workingContext == "" {
		workingContext = "(none)"
	}

	prompt := fmt.Sprintf(mergePrompt, task.Description, workingContext, formatted.String())
	final, err := a.gen.Generate(ctx, prompt, a.opts.GenerateConfig)
	if err != nil {
		return "", fmt.Errorf("merging results: %w", err)
	}
	return strings.TrimSpace(final), nil
}
