package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/taskmesh/aggregator"
	"github.com/hupe1980/taskmesh/compressor"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/planner"
)

const subAgentPrompt = `You are a sub-agent working on one subtask of a larger project.

Working context: %s
Relevant past episodes:
%s
Relevant knowledge:
%s
Current task: %s

Instructions:
1. Use the working context to understand the project scope
2. Leverage the relevant history for your task
3. Focus only on your assigned subtask
4. Provide detailed, actionable results
5. Ensure your work integrates well with the previous results

Your response:`

// PatternSequential is the only supported execution pattern.
const PatternSequential = "sequential"

// Config defines tuning parameters for the coordinator's behavior.
type Config struct {
	// Pattern selects the execution pattern. Only "sequential" is accepted;
	// empty defaults to it.
	Pattern string

	// CompressionThreshold is the working-context size (characters, or
	// tokens when the compressor is token-configured) above which
	// compression fires.
	CompressionThreshold int

	// MaxRetries is the number of retries after the first failed attempt of
	// a subtask invocation.
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration

	// RetrievalK is the number of episodes retrieved per step.
	RetrievalK int

	// RetrievalM is the number of semantic facts retrieved per step.
	RetrievalM int
}

// DefaultConfig provides the default coordinator configuration.
var DefaultConfig = Config{
	Pattern:              PatternSequential,
	CompressionThreshold: 2000,
	MaxRetries:           3,
	RetryBaseDelay:       500 * time.Millisecond,
	RetrievalK:           5,
	RetrievalM:           3,
}

// Validator checks a sub-agent's output before it is accepted. Returning an
// error sends the invocation back through the retry path.
type Validator func(subtask core.Subtask, output string) error

// NonEmptyValidator is the default output check: the output must contain
// something other than whitespace.
func NonEmptyValidator(subtask core.Subtask, output string) error {
	if strings.TrimSpace(output) == "" {
		return &core.ValidationError{SubtaskID: subtask.ID, Reason: "empty output"}
	}
	return nil
}

// Notifier receives a signal after each episode write. The consolidator
// implements it; the call must never block the hot path.
type Notifier interface {
	Notify()
}

// Options configures a Coordinator beyond its required capabilities.
type Options struct {
	// Config contains tuning parameters; zero fields fall back to
	// DefaultConfig values.
	Config Config

	// Checkpoints persists state snapshots at subtask boundaries; nil
	// disables checkpointing.
	Checkpoints core.CheckpointStore

	// Consolidation is notified after each episode write; nil disables
	// notifications.
	Consolidation Notifier

	// Validate checks sub-agent outputs. Nil defaults to NonEmptyValidator.
	// Per-subtask validation can dispatch on the subtask argument.
	Validate Validator

	// GenerateConfig is passed through to sub-agent generation calls.
	GenerateConfig model.GenerateConfig

	// Logger receives coordination diagnostics. Nil defaults to NoOp.
	Logger logging.Logger
}

// Outcome is the user-visible result of a run: the synthesized final result,
// the per-subtask outputs in completion order, and the ordered transition
// trace. On failure FinalResult is empty and Results holds the outputs of
// every subtask that completed before the failure.
type Outcome struct {
	RunID       string
	FinalResult string
	Results     *core.Results
	Trace       []core.TraceEvent
}

// Coordinator owns one run's ExecutionState at a time and drives it through
// the planning, executing, compressing and aggregating states.
type Coordinator struct {
	gen      model.Generator
	embedder model.Embedder
	store    core.MemoryStore

	planner    *planner.Planner
	compressor *compressor.Compressor
	aggregator *aggregator.Aggregator

	cfg    Config
	opts   Options
	logger logging.Logger
}

// New wires a Coordinator from its capabilities and collaborators.
func New(
	gen model.Generator,
	embedder model.Embedder,
	store core.MemoryStore,
	taskPlanner *planner.Planner,
	ctxCompressor *compressor.Compressor,
	resultAggregator *aggregator.Aggregator,
	optFns ...func(o *Options),
) (*Coordinator, error) {
	opts := Options{Config: DefaultConfig, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg.Pattern == "" {
		cfg.Pattern = PatternSequential
	}
	if cfg.Pattern != PatternSequential {
		return nil, core.ErrUnsupportedPattern
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = DefaultConfig.CompressionThreshold
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig.RetryBaseDelay
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = DefaultConfig.RetrievalK
	}
	if cfg.RetrievalM <= 0 {
		cfg.RetrievalM = DefaultConfig.RetrievalM
	}
	if opts.Validate == nil {
		opts.Validate = NonEmptyValidator
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Coordinator{
		gen:        gen,
		embedder:   embedder,
		store:      store,
		planner:    taskPlanner,
		compressor: ctxCompressor,
		aggregator: resultAggregator,
		cfg:        cfg,
		opts:       opts,
		logger:     opts.Logger,
	}, nil
}

// Run orchestrates a task end to end: plan, execute each subtask in planner
// order, aggregate. The returned Outcome is non-nil even on failure so
// callers can inspect partial results and the transition trace.
func (c *Coordinator) Run(ctx context.Context, task string) (*Outcome, error) {
	runID := core.NewID()
	outcome := &Outcome{RunID: runID, Results: core.NewResults()}

	c.logger.Info("run started", "run_id", runID, "task", task)
	outcome.Trace = append(outcome.Trace, core.NewTraceEvent(runID, core.StepPlanning, "", task))

	subtasks, err := c.planner.Plan(ctx, task)
	if err != nil {
		outcome.Trace = append(outcome.Trace, core.NewTraceEvent(runID, core.StepFailed, "", err.Error()))
		return outcome, err
	}

	state := core.NewExecutionState(runID, core.Task{Description: task, Subtasks: subtasks})
	return c.execute(ctx, state, outcome)
}

// Resume continues a previously checkpointed run from its last completed
// subtask. It fails when no checkpoint store is configured or no snapshot
// exists for the run id.
func (c *Coordinator) Resume(ctx context.Context, runID string) (*Outcome, error) {
	if c.opts.Checkpoints == nil {
		return nil, errors.New("no checkpoint store configured")
	}
	snap, err := c.opts.Checkpoints.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	state, err := core.RestoreExecutionState(snap)
	if err != nil {
		return nil, fmt.Errorf("restoring run %s: %w", runID, err)
	}

	outcome := &Outcome{RunID: runID, Results: state.Results}
	outcome.Trace = append(outcome.Trace, core.NewTraceEvent(runID, core.StepExecuting, "", fmt.Sprintf("resumed with %d results", state.Results.Len())))
	c.logger.Info("run resumed", "run_id", runID, "completed", state.Results.Len())
	return c.execute(ctx, state, outcome)
}

// execute drives the state machine from the current position to a terminal
// state. State mutation happens only here, at the marked transition points.
func (c *Coordinator) execute(ctx context.Context, state *core.ExecutionState, outcome *Outcome) (*Outcome, error) {
	outcome.Results = state.Results

	// Recent episodes of this run, kept to ground compression prompts.
	var recent []core.Episode

	for i := state.Results.Len(); i < len(state.Task.Subtasks); i++ {
		// Cancellation is honored only between subtask boundaries, never
		// mid-invocation, so Results can never hold a torn subtask.
		if err := ctx.Err(); err != nil {
			state.Step = core.StepFailed
			outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepFailed, "", "cancelled"))
			return outcome, err
		}

		subtask := state.Task.Subtasks[i]
		state.Step = core.StepExecuting
		state.Position = i
		outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepExecuting, subtask.ID, subtask.Description))

		if err := c.executeSubtask(ctx, state, subtask, &recent); err != nil {
			state.Step = core.StepFailed
			outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepFailed, subtask.ID, err.Error()))
			c.checkpoint(ctx, state)
			return outcome, err
		}

		c.checkpoint(ctx, state)

		if c.contextSize(state.CumulativeContext()) > c.cfg.CompressionThreshold {
			c.compress(ctx, state, outcome, &recent)
		}
	}

	state.Step = core.StepAggregating
	outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepAggregating, "", ""))

	final, err := c.aggregator.Aggregate(ctx, state.Task, state.WorkingContext(), state.Results)
	if err != nil {
		state.Step = core.StepFailed
		outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepFailed, "", err.Error()))
		var aggErr *core.AggregationError
		if errors.As(err, &aggErr) {
			c.logger.Error("aggregation invariant violation", "run_id", state.RunID, "error", err)
		}
		return outcome, err
	}

	state.Step = core.StepDone
	outcome.FinalResult = final
	outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepDone, "", ""))
	if c.opts.Checkpoints != nil {
		if err := c.opts.Checkpoints.Delete(ctx, state.RunID); err != nil {
			c.logger.Warn("deleting checkpoint", "run_id", state.RunID, "error", err)
		}
	}
	c.logger.Info("run completed", "run_id", state.RunID, "subtasks", state.Results.Len())
	return outcome, nil
}

// executeSubtask performs steps 1-6 of the per-subtask transition: retrieve,
// assemble, invoke (with retries), validate, record episode, record result,
// append context.
func (c *Coordinator) executeSubtask(ctx context.Context, state *core.ExecutionState, subtask core.Subtask, recent *[]core.Episode) error {
	started := time.Now()

	queryEmbedding, episodes, facts := c.retrieve(ctx, subtask)
	prompt := c.assemblePrompt(state, subtask, episodes, facts)

	output, attempts, err := c.invokeWithRetry(ctx, subtask, prompt)
	if err != nil {
		c.logSubtask(subtask, time.Since(started), false, err)
		// Record the failure as an episode too: failed attempts are
		// experience worth retrieving later.
		c.recordEpisode(ctx, core.Episode{
			Kind:               core.EpisodeSubtask,
			SubtaskDescription: subtask.Description,
			ActionSummary:      fmt.Sprintf("attempted %d times", attempts),
			Outcome:            err.Error(),
			Success:            false,
			Embedding:          queryEmbedding,
		}, recent)
		return &core.SubtaskError{
			SubtaskID: subtask.ID,
			Position:  subtask.Position,
			Attempts:  attempts,
			Partial:   state.Results.Clone(),
			Err:       err,
		}
	}

	// The episode is recorded synchronously before the result: the memory
	// write is part of the completion, not an afterthought.
	c.recordEpisode(ctx, core.Episode{
		Kind:               core.EpisodeSubtask,
		SubtaskDescription: subtask.Description,
		ActionSummary:      summarize(output, 280),
		Outcome:            output,
		Success:            true,
		Embedding:          c.episodeEmbedding(ctx, subtask.Description, output, queryEmbedding),
	}, recent)

	if err := state.Results.Record(subtask.ID, output); err != nil {
		return fmt.Errorf("recording result for %s: %w", subtask.ID, err)
	}
	state.AppendContext(fmt.Sprintf("\n[%s] %s: %s", subtask.ID, subtask.Description, output))

	c.logSubtask(subtask, time.Since(started), true, nil)
	return nil
}

// retrieve fetches the nearest episodes and facts for the subtask. Retrieval
// is advisory context, so any failure here degrades to an empty result set
// instead of failing the subtask.
func (c *Coordinator) retrieve(ctx context.Context, subtask core.Subtask) ([]float32, []core.EpisodeHit, []core.FactHit) {
	queryEmbedding, err := c.embedder.Embed(ctx, subtask.Description)
	if err != nil {
		c.logger.Warn("embedding subtask for retrieval", "subtask_id", subtask.ID, "error", err)
		return nil, nil, nil
	}

	episodes, err := c.store.SearchEpisodes(ctx, queryEmbedding, c.cfg.RetrievalK)
	if err != nil {
		c.logger.Warn("episode retrieval", "subtask_id", subtask.ID, "error", err)
	}
	facts, err := c.store.SearchFacts(ctx, queryEmbedding, c.cfg.RetrievalM)
	if err != nil {
		c.logger.Warn("fact retrieval", "subtask_id", subtask.ID, "error", err)
	}
	return queryEmbedding, episodes, facts
}

func (c *Coordinator) assemblePrompt(state *core.ExecutionState, subtask core.Subtask, episodes []core.EpisodeHit, facts []core.FactHit) string {
	working := state.WorkingContext()
	if working == "" {
		working = "(none)"
	}

	var episodeText strings.Builder
	for _, hit := range episodes {
		fmt.Fprintf(&episodeText, "- %s: %s\n", hit.Episode.SubtaskDescription, hit.Episode.ActionSummary)
	}
	if episodeText.Len() == 0 {
		episodeText.WriteString("(none)\n")
	}

	var factText strings.Builder
	for _, hit := range facts {
		fmt.Fprintf(&factText, "- %s\n", hit.Fact.Statement)
	}
	if factText.Len() == 0 {
		factText.WriteString("(none)\n")
	}

	return fmt.Sprintf(subAgentPrompt, working, episodeText.String(), factText.String(), subtask.Description)
}

// invokeWithRetry calls the sub-agent capability up to 1+MaxRetries times
// with exponential backoff, treating validation failure exactly like a
// capability failure. It returns the accepted output and the number of
// attempts made.
func (c *Coordinator) invokeWithRetry(ctx context.Context, subtask core.Subtask, prompt string) (string, int, error) {
	var lastErr error
	maxAttempts := c.cfg.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, backoffDelay(c.cfg.RetryBaseDelay, attempt-1)); err != nil {
				return "", attempt - 1, lastErr
			}
		}

		started := time.Now()
		output, err := c.gen.Generate(ctx, prompt, c.opts.GenerateConfig)
		if err == nil {
			err = c.opts.Validate(subtask, output)
		}
		c.logModelCall(attempt, time.Since(started), err)
		if err == nil {
			return output, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", attempt, lastErr
		}
		c.logger.Warn("subtask attempt failed", "subtask_id", subtask.ID, "attempt", attempt, "error", err)
	}
	return "", maxAttempts, lastErr
}

// compress runs the context compressor and replaces the rolling narrative.
// On failure the run is never blocked: the cumulative context is truncated
// to its tail instead.
func (c *Coordinator) compress(ctx context.Context, state *core.ExecutionState, outcome *Outcome, recent *[]core.Episode) {
	state.Step = core.StepCompressing
	outcome.Trace = append(outcome.Trace, core.NewTraceEvent(state.RunID, core.StepCompressing, "", ""))

	full := state.CumulativeContext()
	summary, err := c.compressor.Compress(ctx, full, *recent)
	if err != nil {
		truncated := compressor.TruncateTail(full, c.cfg.CompressionThreshold/2)
		state.SetCompressedContext(truncated)
		c.logCompression(len(full), len(truncated), true, err)
		return
	}

	state.SetCompressedContext(summary)
	c.recordEpisode(ctx, core.Episode{
		Kind:               core.EpisodeCompression,
		SubtaskDescription: "context compression",
		ActionSummary:      fmt.Sprintf("%d chars -> %d chars", len(full), len(summary)),
		Outcome:            summary,
		Success:            true,
	}, recent)
	c.logCompression(len(full), len(summary), false, nil)
}

// recordEpisode writes to the memory store synchronously (hot path),
// notifies the consolidator without blocking, and tracks the episode in the
// run's recency window.
func (c *Coordinator) recordEpisode(ctx context.Context, episode core.Episode, recent *[]core.Episode) {
	if _, err := c.store.AddEpisode(ctx, episode); err != nil {
		c.logger.Warn("recording episode", "error", err)
		return
	}
	*recent = append(*recent, episode)
	if n := c.cfg.RetrievalK; len(*recent) > n {
		*recent = (*recent)[len(*recent)-n:]
	}
	if c.opts.Consolidation != nil {
		c.opts.Consolidation.Notify()
	}
}

func (c *Coordinator) episodeEmbedding(ctx context.Context, description, output string, fallback []float32) []float32 {
	embedding, err := c.embedder.Embed(ctx, description+"\n"+summarize(output, 500))
	if err != nil {
		c.logger.Warn("embedding episode", "error", err)
		return fallback
	}
	return embedding
}

func (c *Coordinator) checkpoint(ctx context.Context, state *core.ExecutionState) {
	if c.opts.Checkpoints == nil {
		return
	}
	if err := c.opts.Checkpoints.Save(ctx, state.Snapshot()); err != nil {
		c.logger.Warn("saving checkpoint", "run_id", state.RunID, "error", err)
	}
}

func (c *Coordinator) contextSize(text string) int {
	if c.compressor != nil {
		return c.compressor.ContextSize(text)
	}
	return len(text)
}

func (c *Coordinator) logSubtask(subtask core.Subtask, dur time.Duration, success bool, err error) {
	if tl, ok := c.logger.(*logging.TaskMeshLogger); ok {
		tl.LogSubtask(subtask.ID, subtask.Position, dur, success, err)
		return
	}
	if success {
		c.logger.Info("subtask completed", "subtask_id", subtask.ID, "duration", dur)
	} else {
		c.logger.Error("subtask failed", "subtask_id", subtask.ID, "duration", dur, "error", err)
	}
}

func (c *Coordinator) logModelCall(attempt int, dur time.Duration, err error) {
	if tl, ok := c.logger.(*logging.TaskMeshLogger); ok {
		tl.LogModelCall(c.gen.Info().Name, attempt, dur, err == nil, err)
	}
}

func (c *Coordinator) logCompression(inputChars, outputChars int, degraded bool, err error) {
	if tl, ok := c.logger.(*logging.TaskMeshLogger); ok {
		tl.LogCompression(inputChars, outputChars, degraded, err)
		return
	}
	if degraded {
		c.logger.Warn("compression degraded to truncation", "input_chars", inputChars, "output_chars", outputChars, "error", err)
	} else {
		c.logger.Info("context compressed", "input_chars", inputChars, "output_chars", outputChars)
	}
}

// summarize shortens text for episode summaries and embeddings.
func summarize(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxChars {
		return text
	}
	return compressor.Truncate(text, maxChars)
}
