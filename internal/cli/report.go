package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/cellbench/internal/harness"
	"github.com/lucasnoah/cellbench/internal/metrics"
	"github.com/lucasnoah/cellbench/internal/report"
)

var reportPipelines []string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerate the comparison report from the latest evidence logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		selectors := reportPipelines
		if len(selectors) == 0 {
			selectors = cfg.Pipelines
		}
		if len(selectors) == 1 && selectors[0] == "all" {
			selectors = harness.Names()
		}

		sources := make([]metrics.Source, 0, len(selectors))
		for _, name := range selectors {
			src := metrics.Source{Pipeline: name}
			// A pipeline with no log still appears in the report, zeroed.
			if path, err := harness.FindLatestLog(cfg.LogsDir, name); err == nil {
				src.Path = path
			} else {
				cmd.PrintErrf("%s: %v\n", name, err)
			}
			sources = append(sources, src)
		}

		summaries := metrics.Collect(sources)
		reportPath, rawPath, err := report.Generate(summaries, cfg.ReportsDir)
		if err != nil {
			return err
		}
		cmd.Printf("Report:    %s\n", reportPath)
		cmd.Printf("Summaries: %s\n", rawPath)
		cmd.Println()
		report.QuickSummary(cmd.OutOrStdout(), summaries)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringSliceVarP(&reportPipelines, "pipelines", "p", nil,
		"pipelines to include (default from config)")
}
