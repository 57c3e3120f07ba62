package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain the memory store",
}

var memoryConsolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run consolidation passes until no episodes are pending",
	Long: `Consolidate drains the backlog of unconsolidated episodes, extracting
semantic facts and merging near-duplicates. Useful after interrupted runs,
where the background worker may not have caught up before shutdown.`,
	RunE: runMemoryConsolidate,
}

func init() {
	memoryCmd.AddCommand(memoryConsolidateCmd)
}

func runMemoryConsolidate(cmd *cobra.Command, args []string) error {
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

	var processed, inserted, merged int
	for {
		stats, err := mesh.Consolidate(ctx)
		if err != nil {
			return err
		}
		if stats.EpisodesProcessed == 0 {
			break
		}
		processed += stats.EpisodesProcessed
		inserted += stats.FactsInserted
		merged += stats.FactsMerged
	}

	fmt.Printf("Consolidated %d episode(s): %d fact(s) inserted, %d merged\n", processed, inserted, merged)
	return nil
}
