// Package main implements the taskmesh CLI for running and resuming
// orchestrated tasks from the command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// verbose enables debug-level logging.
	verbose bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskmesh",
	Short: "CLI for orchestrating complex tasks via sequential sub-agents",
	Long: `taskmesh breaks a complex task into subtasks, executes them sequentially
with compressed context hand-off, and merges the outputs into a final result.
Episodes and distilled facts are kept in a memory store that survives across
runs when a persistent store is configured.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/taskmesh/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(memoryCmd)
}
