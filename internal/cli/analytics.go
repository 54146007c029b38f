package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cellbench/internal/analytics"
	"github.com/lucasnoah/cellbench/internal/db"
)

var (
	analyticsPipeline string
	analyticsSince    string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query the SQLite evidence mirror",
}

var analyticsStageDurationCmd = &cobra.Command{
	Use:   "stage-duration",
	Short: "Average and percentile durations per stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openMirror()
		if err != nil {
			return err
		}
		defer database.Close()

		results, err := analytics.QueryStageDurations(database, analyticsPipeline)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-6s %-7s %-10s %-10s %s\n", "STAGE", "COUNT", "AVG(s)", "P50(s)", "P95(s)")
		for _, r := range results {
			fmt.Fprintf(w, "%-6s %-7d %-10.1f %-10.1f %.1f\n", r.Stage, r.Count, r.Avg, r.P50, r.P95)
		}
		return nil
	},
}

var analyticsToolHitsCmd = &cobra.Command{
	Use:   "tool-hits",
	Short: "Tool hit rates by stage and tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openMirror()
		if err != nil {
			return err
		}
		defer database.Close()

		results, err := analytics.QueryToolHitRates(database, analyticsPipeline)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-6s %-20s %-6s %-8s %s\n", "STAGE", "TOOL", "HITS", "MISSES", "HIT%")
		for _, r := range results {
			fmt.Fprintf(w, "%-6s %-20s %-6d %-8d %.1f\n", r.Stage, r.ToolName, r.Hits, r.Misses, r.HitPct)
		}
		return nil
	},
}

var analyticsThroughputCmd = &cobra.Command{
	Use:   "throughput",
	Short: "Iteration volume and success rate per day",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openMirror()
		if err != nil {
			return err
		}
		defer database.Close()

		results, err := analytics.QueryPipelineThroughput(database, analyticsSince)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-12s %-12s %-6s %-10s %s\n", "DAY", "PIPELINE", "ITER", "SUCCESSES", "SUCCESS%")
		for _, r := range results {
			fmt.Fprintf(w, "%-12s %-12s %-6d %-10d %.1f\n", r.Period, r.Pipeline, r.Iterations, r.Successes, r.SuccessPct)
		}
		return nil
	},
}

func openMirror() (*db.DB, error) {
	path, err := mirrorPath()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func mirrorPath() (string, error) {
	if dbPathFlag != "" {
		return dbPathFlag, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return db.DefaultDBPath()
}

func init() {
	analyticsCmd.PersistentFlags().StringVar(&analyticsPipeline, "pipeline", "", "filter to one pipeline")
	analyticsCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the SQLite mirror")
	analyticsThroughputCmd.Flags().StringVar(&analyticsSince, "since", "", "only include iterations recorded at or after this date (YYYY-MM-DD)")

	analyticsCmd.AddCommand(analyticsStageDurationCmd)
	analyticsCmd.AddCommand(analyticsToolHitsCmd)
	analyticsCmd.AddCommand(analyticsThroughputCmd)
}
