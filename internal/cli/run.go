package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cellbench/internal/db"
	"github.com/lucasnoah/cellbench/internal/harness"
	"github.com/lucasnoah/cellbench/internal/metrics"
	"github.com/lucasnoah/cellbench/internal/prompts"
	"github.com/lucasnoah/cellbench/internal/report"
)

var (
	runPipelines  []string
	runPrompts    int
	runOffset     int
	runComplexity string
	runResume     bool
	runNoReport   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate pipelines over the prompt corpus",
	Long: `Run each selected pipeline over the chosen slice of the prompt corpus.
Every pipeline gets its own evidence log; a failing pipeline is isolated and
reported with zeroed results rather than aborting the batch. The command
exits 0 once the evidence and report are written, regardless of how the
pipelines scored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		selectors := runPipelines
		if len(selectors) == 0 {
			selectors = cfg.Pipelines
		}
		pipes, err := harness.Resolve(selectors)
		if err != nil {
			return err
		}

		batch := prompts.Get(runPrompts, runOffset, runComplexity)
		if len(batch) == 0 {
			return fmt.Errorf("no prompts selected (count=%d offset=%d complexity=%q)",
				runPrompts, runOffset, runComplexity)
		}

		startID := 0
		if runResume {
			for _, p := range pipes {
				prior, err := harness.FindLatestLog(cfg.LogsDir, p.Name())
				if err != nil {
					continue
				}
				next, err := harness.NextStartID(prior)
				if err != nil {
					return fmt.Errorf("resume %s: %w", p.Name(), err)
				}
				if next > startID {
					startID = next
				}
			}
		}

		results := harness.RunEvaluation(pipes, batch, cfg, startID, runResume)

		for _, r := range results {
			if r.Err != nil {
				cmd.PrintErrf("pipeline %s failed: %v\n", r.Pipeline, r.Err)
			}
		}

		if cfg.DBPath != "" {
			if err := mirrorResults(cfg.DBPath, results); err != nil {
				cmd.PrintErrf("evidence mirror: %v\n", err)
			}
		}

		// Summaries come from the live loggers, not from re-loading the
		// documents: a resumed logger's totals include the prior batches.
		summaries := make([]metrics.PipelineSummary, 0, len(results))
		for _, r := range results {
			summaries = append(summaries, metrics.FromLogger(r.Pipeline, r.Logger, r.Err))
		}

		if !runNoReport {
			reportPath, rawPath, err := report.Generate(summaries, cfg.ReportsDir)
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			cmd.Printf("Report:    %s\n", reportPath)
			cmd.Printf("Summaries: %s\n", rawPath)
		}
		for _, r := range results {
			if r.Logger != nil {
				cmd.Printf("Evidence:  %s\n", r.Logger.Path())
			}
		}
		cmd.Println()
		report.QuickSummary(cmd.OutOrStdout(), summaries)
		return nil
	},
}

// mirrorResults copies finalized iteration records into the SQLite mirror.
// Pipelines run without a sink attached, so mirroring happens after the
// batch; the unique (run, iteration) constraint makes reruns idempotent.
func mirrorResults(dbPath string, results []harness.RunResult) error {
	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return err
	}

	store := db.NewStore(database)
	for _, r := range results {
		if r.Logger == nil {
			continue
		}
		for i := range r.Logger.Records() {
			rec := r.Logger.Records()[i]
			if err := store.RecordIteration(r.Pipeline, r.Logger.RunID(), &rec); err != nil {
				return fmt.Errorf("mirror %s iteration %d: %w", r.Pipeline, rec.IterationID, err)
			}
		}
	}
	return nil
}

func init() {
	runCmd.Flags().StringSliceVarP(&runPipelines, "pipelines", "p", nil,
		"pipelines to evaluate (default from config; \"all\" for every registered pipeline)")
	runCmd.Flags().IntVarP(&runPrompts, "prompts", "n", 0,
		"number of prompts to run (0 = all remaining after offset)")
	runCmd.Flags().IntVar(&runOffset, "offset", 0, "skip this many prompts from the start of the corpus")
	runCmd.Flags().StringVar(&runComplexity, "complexity", "", "filter prompts by complexity (low, medium, high)")
	runCmd.Flags().BoolVar(&runResume, "resume", false,
		"extend each pipeline's latest evidence log instead of starting fresh totals")
	runCmd.Flags().BoolVar(&runNoReport, "no-report", false, "skip writing the comparison report")
}
