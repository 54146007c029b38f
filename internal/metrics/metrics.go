// Package metrics turns persisted evidence logs into the comparison tables
// the report renders: per-stage success rates, tool hit/miss rates, and LLM
// usage. Values are reported exactly as measured; there is no normalization
// or rescaling anywhere in this package.
package metrics

import (
	"github.com/lucasnoah/cellbench/internal/evidence"
)

// Source names one pipeline's evidence document.
type Source struct {
	Pipeline string
	Path     string
}

// PipelineSummary is one pipeline's aggregate view. Err is set when the log
// could not be loaded; the embedded Summary is then zeroed so the pipeline
// still appears in every table.
type PipelineSummary struct {
	evidence.Summary
	Path string
	Err  error
}

// Collect loads and summarizes each source, preserving order. A log that
// fails to parse produces a zeroed entry rather than aborting the report.
func Collect(sources []Source) []PipelineSummary {
	out := make([]PipelineSummary, 0, len(sources))
	for _, src := range sources {
		ps := PipelineSummary{Path: src.Path}
		doc, err := evidence.LoadDocument(src.Path)
		if err != nil {
			ps.Summary = evidence.SummarizeRecords(src.Pipeline, nil, evidence.PriorStats{})
			ps.Err = err
		} else {
			ps.Summary = evidence.SummarizeRecords(src.Pipeline, doc.Records, evidence.PriorStats{})
		}
		out = append(out, ps)
	}
	return out
}

// FromLogger summarizes a finished run straight from its logger. A resumed
// logger carries prior-batch totals that the persisted document's records
// alone do not, so live runs must be summarized this way rather than by
// re-loading the document. runErr marks a pipeline whose run faulted.
func FromLogger(pipeline string, lg *evidence.Logger, runErr error) PipelineSummary {
	ps := PipelineSummary{Err: runErr}
	if lg == nil {
		ps.Summary = evidence.SummarizeRecords(pipeline, nil, evidence.PriorStats{})
		return ps
	}
	ps.Summary = lg.Summary()
	ps.Path = lg.Path()
	return ps
}

// SuccessRow is one line of the per-stage success-rate table.
type SuccessRow struct {
	Pipeline    string
	Iterations  int
	Stage1Rate  float64
	Stage2Rate  float64
	Stage3Rate  float64
	OverallRate float64
	Failed      bool // log unreadable, rates forced to zero
}

// SuccessTable builds the success-rate comparison.
func SuccessTable(summaries []PipelineSummary) []SuccessRow {
	rows := make([]SuccessRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, SuccessRow{
			Pipeline:    s.Pipeline,
			Iterations:  s.Iterations,
			Stage1Rate:  s.Stages["1"].SuccessRate,
			Stage2Rate:  s.Stages["2"].SuccessRate,
			Stage3Rate:  s.Stages["3"].SuccessRate,
			OverallRate: s.OverallRate,
			Failed:      s.Err != nil,
		})
	}
	return rows
}

// ToolRow is one line of the per-stage tool hit/miss table.
type ToolRow struct {
	Pipeline string
	Stage    string
	Hits     int
	Misses   int
	HitRate  float64 // hits/(hits+misses), 0 when no calls occurred
}

// ToolTable builds the tool accounting comparison, three rows per pipeline.
func ToolTable(summaries []PipelineSummary) []ToolRow {
	rows := make([]ToolRow, 0, 3*len(summaries))
	for _, s := range summaries {
		for _, stage := range []string{"1", "2", "3"} {
			st := s.Stages[stage]
			rows = append(rows, ToolRow{
				Pipeline: s.Pipeline,
				Stage:    stage,
				Hits:     st.ToolHits,
				Misses:   st.ToolMisses,
				HitRate:  st.ToolHitRate,
			})
		}
	}
	return rows
}

// UsageRow is one line of the LLM usage table.
type UsageRow struct {
	Pipeline         string
	TotalCalls       int
	AvgCalls         float64
	TokensPrompt     int
	TokensCompletion int
	TokensTotal      int
	AvgTokens        float64
}

// UsageTable builds the LLM usage comparison.
func UsageTable(summaries []PipelineSummary) []UsageRow {
	rows := make([]UsageRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, UsageRow{
			Pipeline:         s.Pipeline,
			TotalCalls:       s.Usage.TotalAPICalls,
			AvgCalls:         s.Usage.AvgAPICallsPerIter,
			TokensPrompt:     s.Usage.TotalTokensPrompt,
			TokensCompletion: s.Usage.TotalTokensCompletion,
			TokensTotal:      s.Usage.TotalTokens,
			AvgTokens:        s.Usage.AvgTokensPerIter,
		})
	}
	return rows
}
