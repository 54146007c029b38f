package cli

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cellbench/internal/pipelines/replay"
	"github.com/lucasnoah/cellbench/internal/pipelines/scripted"
)

var (
	version = "dev"
	verbose bool
)

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "cellbench",
	Short: "cellbench — evaluation harness for workcell design pipelines",
	Long: `cellbench runs task-completion pipelines over a fixed corpus of robotic
palletizing prompts, validates the artifact each stage produces, and records
tamper-evident evidence logs that comparison reports are generated from.

Evidence is written as JSON documents (one per pipeline per run) and can be
mirrored into SQLite for cross-run analytics.`,
	// Harness and resume progress goes through the stdlib logger; keep it
	// quiet unless asked.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutput(os.Stderr)
		} else {
			log.SetOutput(io.Discard)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	scripted.Register()
	replay.Register()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log harness and resume progress to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
