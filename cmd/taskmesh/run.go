package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh/coordinator"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Break a task into subtasks, execute them and merge the results",
	Long: `Run plans the given task, executes each subtask sequentially with
memory retrieval and compressed context hand-off, and prints the merged
final result.

Examples:
  # Run a task with the default provider
  taskmesh run "Create a marketing plan for a new app"

  # Use OpenAI and persistent memory
  TASKMESH_MODEL_PROVIDER=openai TASKMESH_MEMORY_STORE=chromem \
    taskmesh run "Summarize the Q3 incident reports"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	mesh, err := buildMesh(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	mesh.StartConsolidation(ctx)
	defer mesh.StopConsolidation()

	outcome, err := mesh.Run(ctx, task)
	printOutcome(outcome, err)
	return err
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. The run
// stops at the next subtask boundary; completed work stays checkpointed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// printOutcome writes per-subtask outputs and the final result (or the
// partial results of a failed run) to stdout.
func printOutcome(outcome *coordinator.Outcome, err error) {
	if outcome == nil {
		return
	}
	fmt.Printf("Run: %s\n\n", outcome.RunID)

	if outcome.Results != nil {
		for _, id := range outcome.Results.Keys() {
			output, _ := outcome.Results.Get(id)
			fmt.Printf("=== %s ===\n%s\n\n", id, output)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		if outcome.Results != nil && outcome.Results.Len() > 0 {
			fmt.Fprintf(os.Stderr, "Kept %d completed subtask result(s); resume with:\n  taskmesh resume %s\n", outcome.Results.Len(), outcome.RunID)
		}
		return
	}

	fmt.Printf("=== Final result ===\n%s\n", outcome.FinalResult)
}
