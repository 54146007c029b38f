// Package report renders comparison results: a Markdown report plus a raw
// JSON snapshot of the per-pipeline summaries, and a quick console table
// for the end of a run.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lucasnoah/cellbench/internal/evidence"
	"github.com/lucasnoah/cellbench/internal/metrics"
)

func pctStr(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

// Generate writes the Markdown comparison report and the raw summaries
// snapshot into outDir, returning both paths.
func Generate(summaries []metrics.PipelineSummary, outDir string) (reportPath, rawPath string, err error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	stamp := time.Now().Format("20060102_150405")
	reportPath = filepath.Join(outDir, fmt.Sprintf("comparison_report_%s.md", stamp))
	rawPath = filepath.Join(outDir, fmt.Sprintf("raw_summaries_%s.json", stamp))

	if err := evidence.WriteAtomic(reportPath, []byte(render(summaries))); err != nil {
		return "", "", err
	}

	raw := make([]evidence.Summary, 0, len(summaries))
	for _, s := range summaries {
		raw = append(raw, s.Summary)
	}
	if err := evidence.WriteJSON(rawPath, raw); err != nil {
		return "", "", err
	}
	return reportPath, rawPath, nil
}

func render(summaries []metrics.PipelineSummary) string {
	var b strings.Builder
	b.WriteString("# Pipeline Comparison Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))

	b.WriteString("## Stage Success Rates\n\n")
	b.WriteString("| Pipeline | Iterations | Stage 1 | Stage 2 | Stage 3 | Overall |\n")
	b.WriteString("|----------|-----------:|--------:|--------:|--------:|--------:|\n")
	for _, row := range metrics.SuccessTable(summaries) {
		name := row.Pipeline
		if row.Failed {
			name += " (log unreadable)"
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s |\n",
			name, row.Iterations,
			pctStr(row.Stage1Rate), pctStr(row.Stage2Rate),
			pctStr(row.Stage3Rate), pctStr(row.OverallRate))
	}
	b.WriteString("\n")

	b.WriteString("## Tool Call Accounting\n\n")
	b.WriteString("| Pipeline | Stage | Hits | Misses | Hit Rate |\n")
	b.WriteString("|----------|-------|-----:|-------:|---------:|\n")
	for _, row := range metrics.ToolTable(summaries) {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s |\n",
			row.Pipeline, row.Stage, row.Hits, row.Misses, pctStr(row.HitRate))
	}
	b.WriteString("\n")

	b.WriteString("## LLM Usage\n\n")
	b.WriteString("| Pipeline | API Calls | Avg Calls/Iter | Prompt Tokens | Completion Tokens | Total Tokens | Avg Tokens/Iter |\n")
	b.WriteString("|----------|----------:|---------------:|--------------:|------------------:|-------------:|----------------:|\n")
	for _, row := range metrics.UsageTable(summaries) {
		fmt.Fprintf(&b, "| %s | %d | %.1f | %d | %d | %d | %.1f |\n",
			row.Pipeline, row.TotalCalls, row.AvgCalls,
			row.TokensPrompt, row.TokensCompletion, row.TokensTotal, row.AvgTokens)
	}
	b.WriteString("\n")

	var failed []metrics.PipelineSummary
	for _, s := range summaries {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		b.WriteString("## Notes\n\n")
		for _, s := range failed {
			fmt.Fprintf(&b, "- `%s`: evidence log could not be read (%v); rates reported as zero.\n",
				s.Pipeline, s.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// QuickSummary prints a compact console table after a run.
func QuickSummary(w io.Writer, summaries []metrics.PipelineSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PIPELINE\tITER\tS1\tS2\tS3\tOVERALL")
	for _, row := range metrics.SuccessTable(summaries) {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			row.Pipeline, row.Iterations,
			pctStr(row.Stage1Rate), pctStr(row.Stage2Rate),
			pctStr(row.Stage3Rate), pctStr(row.OverallRate))
	}
	tw.Flush()
}
