package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrowd/harrow/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "harrow",
	Short: "Harrow - Batch scheduler for remote compute fleets",
	Long: `Harrow drives a fleet of remote workers against a single target,
keeping it saturated with tightly timed hack/weaken/grow/weaken batches.

Drifted targets are prepared back to baseline automatically before
batching resumes.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOut, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut, Output: os.Stderr})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Harrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit structured JSON logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(prepCmd)
	rootCmd.AddCommand(statusCmd)
}
