// Package evidence records what happened during an evaluation run: every
// iteration, every stage outcome, every tool invocation. The in-memory log
// is flushed to a self-contained JSON document after each iteration, so a
// crash loses at most the iteration that was open. A logger can be
// constructed over a prior run's document to extend aggregate statistics
// across batches without double-counting.
package evidence

import (
	"encoding/json"

	"github.com/lucasnoah/cellbench/internal/validate"
)

// Stage identifiers, matching the artifact package.
var stageOrder = []string{"1", "2", "3"}

// maxArgsSummary caps the recorded argument summary of a tool call.
const maxArgsSummary = 200

// ToolCall is one recorded tool invocation, owned by exactly one stage.
type ToolCall struct {
	Timestamp     string  `json:"timestamp"`
	ToolName      string  `json:"tool_name"`
	Stage         string  `json:"stage"`
	ArgsSummary   string  `json:"args_summary"`
	Success       bool    `json:"success"`
	Duration      float64 `json:"duration"`
	Error         string  `json:"error,omitempty"`
	IsAppropriate bool    `json:"is_appropriate"`
}

// Hit reports whether the call counts as a hit: the tool was appropriate
// for its stage and the invocation succeeded.
func (c *ToolCall) Hit() bool {
	return c.IsAppropriate && c.Success
}

// StageResult is the outcome of one stage within one iteration. Every
// iteration records exactly one per stage; stages that were never reached
// get a synthetic failed result so they are distinguishable from passes in
// aggregate counts.
type StageResult struct {
	Stage             string           `json:"stage"`
	Success           bool             `json:"success"`
	Message           string           `json:"message"`
	Duration          float64          `json:"duration"`
	OutputData        json.RawMessage  `json:"output_data,omitempty"`
	ValidationDetails []validate.Check `json:"validation_details,omitempty"`
	ToolCalls         []ToolCall       `json:"tool_calls"`
}

// IterationRecord is one full pass through the three stages for one prompt.
// Derived fields are computed when the iteration closes and never mutated
// afterwards.
type IterationRecord struct {
	IterationID      int           `json:"iteration_id"`
	PipelineName     string        `json:"pipeline_name"`
	PromptID         string        `json:"prompt_id"`
	PromptText       string        `json:"prompt_text"`
	StartTime        string        `json:"start_time"`
	EndTime          string        `json:"end_time"`
	TotalDuration    float64       `json:"total_duration"`
	StageResults     []StageResult `json:"stage_results"`
	OverallSuccess   bool          `json:"overall_success"`
	Stage1Success    bool          `json:"stage1_success"`
	Stage2Success    bool          `json:"stage2_success"`
	Stage3Success    bool          `json:"stage3_success"`
	TotalToolCalls   int           `json:"total_tool_calls"`
	ToolHits         int           `json:"tool_hits"`
	ToolMisses       int           `json:"tool_misses"`
	APICalls         int           `json:"api_calls"`
	TokensPrompt     int           `json:"tokens_prompt"`
	TokensCompletion int           `json:"tokens_completion"`
	TokensTotal      int           `json:"tokens_total"`
}

func (r *IterationRecord) stageSuccess(stage string) bool {
	switch stage {
	case "1":
		return r.Stage1Success
	case "2":
		return r.Stage2Success
	case "3":
		return r.Stage3Success
	}
	return false
}

// UsageTotals aggregates LLM API usage across a set of iterations.
type UsageTotals struct {
	TotalAPICalls         int     `json:"total_api_calls"`
	TotalTokens           int     `json:"total_tokens"`
	TotalTokensPrompt     int     `json:"total_tokens_prompt"`
	TotalTokensCompletion int     `json:"total_tokens_completion"`
	AvgAPICallsPerIter    float64 `json:"avg_api_calls_per_iter"`
	AvgTokensPerIter      float64 `json:"avg_tokens_per_iter"`
}

// Document is the persisted evidence log: one self-contained snapshot per
// pipeline per run, rewritten atomically after every iteration.
type Document struct {
	Pipeline        string            `json:"pipeline"`
	RunID           string            `json:"run_id"`
	GeneratedAt     string            `json:"generated_at"`
	TotalIterations int               `json:"total_iterations"`
	LLMUsageTotals  UsageTotals       `json:"llm_usage_totals"`
	Records         []IterationRecord `json:"records"`
}

// StageStats is the per-stage slice of a summary.
type StageStats struct {
	Successes   int     `json:"successes"`
	Attempts    int     `json:"attempts"`
	SuccessRate float64 `json:"success_rate"`
	ToolHits    int     `json:"tool_hits"`
	ToolMisses  int     `json:"tool_misses"`
	ToolHitRate float64 `json:"tool_hit_rate"`
}

// Summary is the aggregate view of a run, prior batches included.
type Summary struct {
	Pipeline         string                `json:"pipeline"`
	Iterations       int                   `json:"iterations"`
	OverallSuccesses int                   `json:"overall_successes"`
	OverallRate      float64               `json:"overall_success_rate"`
	Stages           map[string]StageStats `json:"stages"`
	Usage            UsageTotals           `json:"llm_usage"`
}

// EventSink receives each finalized iteration record, for mirroring evidence
// into secondary stores.
type EventSink interface {
	RecordIteration(pipeline, runID string, rec *IterationRecord) error
}

func rate(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
