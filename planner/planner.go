// Package planner decomposes a high-level task into an ordered list of
// subtasks via a single generation call. Planning is the first state of a
// run and its failure is fatal: no partial task breakdown is meaningful, so
// after one stricter re-prompt an unusable decomposition propagates as
// *core.PlanningError.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
)

const breakdownPrompt = `You are a task breakdown specialist. Break the following complex task into clear, actionable subtasks.

Task: %s

Instructions:
1. Analyze the task and identify logical components
2. Create %d-%d subtasks that build on each other in order
3. Each subtask should be specific and actionable
4. Return only the subtasks as a numbered list

Subtasks:`

const strictBreakdownPrompt = `Break the following task into subtasks. Respond with ONLY a numbered list, one subtask per line, nothing else. Example format:
1. First subtask
2. Second subtask

Task: %s

Subtasks:`

// Options configures a Planner.
type Options struct {
	// MinSubtasks is the lower bound requested from the model. At least one
	// parsed subtask is required regardless.
	MinSubtasks int
	// MaxSubtasks caps the decomposition; surplus lines are dropped.
	MaxSubtasks int
	// GenerateConfig is passed through to the generation capability.
	GenerateConfig model.GenerateConfig
	// Logger receives planning diagnostics. Nil defaults to NoOp.
	Logger logging.Logger
}

// Planner turns a task string into an ordered subtask sequence.
type Planner struct {
	gen    model.Generator
	opts   Options
	logger logging.Logger
}

// New creates a Planner backed by the given generation capability.
func New(gen model.Generator, optFns ...func(o *Options)) *Planner {
	opts := Options{
		MinSubtasks: 2,
		MaxSubtasks: 5,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Planner{gen: gen, opts: opts, logger: opts.Logger}
}

// Plan decomposes the task into at least one subtask. The first attempt uses
// the standard breakdown prompt; an empty or unparsable response triggers
// exactly one re-prompt with a stricter instruction. If that also fails the
// error is fatal to the run.
func (p *Planner) Plan(ctx context.Context, task string) ([]core.Subtask, error) {
	if strings.TrimSpace(task) == "" {
		return nil, &core.PlanningError{Task: task, Err: errors.New("empty task")}
	}

	prompt := fmt.Sprintf(breakdownPrompt, task, p.opts.MinSubtasks, p.opts.MaxSubtasks)
	descriptions, err := p.attempt(ctx, prompt)
	if err == nil && len(descriptions) > 0 {
		return core.NewTask(task, descriptions).Subtasks, nil
	}
	p.logger.Warn("decomposition unparsable, re-prompting", "task", task, "error", err)

	prompt = fmt.Sprintf(strictBreakdownPrompt, task)
	descriptions, err = p.attempt(ctx, prompt)
	if err != nil {
		return nil, &core.PlanningError{Task: task, Err: err}
	}
	if len(descriptions) == 0 {
		return nil, &core.PlanningError{Task: task, Err: errors.New("no subtasks parsed from decomposition")}
	}
	return core.NewTask(task, descriptions).Subtasks, nil
}

func (p *Planner) attempt(ctx context.Context, prompt string) ([]string, error) {
	out, err := p.gen.Generate(ctx, prompt, p.opts.GenerateConfig)
	if err != nil {
		return nil, err
	}
	descriptions := ParseSubtaskList(out)
	if len(descriptions) > p.opts.MaxSubtasks {
		descriptions = descriptions[:p.opts.MaxSubtasks]
	}
	return descriptions, nil
}

// ParseSubtaskList extracts subtask descriptions from a numbered or bulleted
// list, stripping list markers and surrounding whitespace. Lines that carry
// no marker are ignored, which keeps prose preambles out of the plan.
func ParseSubtaskList(text string) []string {
	var subtasks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] >= '0' && line[0] <= '9' || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			clean := strings.TrimSpace(strings.TrimLeft(line, "0123456789.-* )"))
			if clean != "" {
				subtasks = append(subtasks, clean)
			}
		}
	}
	return subtasks
}
