package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its last checkpoint",
	Long: `Resume loads the checkpoint saved for the given run id and continues
execution from the first subtask without a recorded result. Requires a
checkpoint directory to be configured.

Examples:
  taskmesh resume 2f1f9c1e-8f1a-4a7d-9a9b-0c6d1d1f2a3b`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
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

	outcome, err := mesh.Resume(ctx, args[0])
	printOutcome(outcome, err)
	return err
}
