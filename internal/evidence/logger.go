package evidence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/cellbench/internal/validate"
)

// Logger records one pipeline's evaluation run. It is single-writer: exactly
// one iteration may be open at a time, and within it exactly one stage.
// Misuse of the state machine is an error, not a silent no-op.
type Logger struct {
	pipeline string
	runID    string
	jsonPath string
	textPath string
	text     *os.File

	records []IterationRecord
	prior   PriorStats
	sink    EventSink

	cur        *IterationRecord
	curStage   *StageResult
	stageStart time.Time
	seenStages map[string]bool

	now func() time.Time
}

// New creates a logger for one pipeline run, writing its JSON document and
// plain-text log under dir. If resumeFrom names a prior document, its totals
// are pre-aggregated into the summary; a corrupt prior log is a warning, not
// a failure, and resume proceeds from zero.
func New(pipeline, dir, resumeFrom string) (*Logger, error) {
	if pipeline == "" {
		return nil, fmt.Errorf("pipeline name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	l := &Logger{
		pipeline:   pipeline,
		runID:      uuid.NewString(),
		seenStages: make(map[string]bool),
		now:        time.Now,
	}

	if resumeFrom != "" {
		prior, err := LoadPrior(resumeFrom)
		if err != nil {
			log.Printf("warning: prior log %s unusable, resuming from zero: %v", resumeFrom, err)
		} else {
			l.prior = prior
		}
	}

	// Run id fragment keeps two runs within the same second from colliding.
	stamp := fmt.Sprintf("%s_%s", l.now().Format("20060102_150405"), l.runID[:8])
	l.jsonPath = filepath.Join(dir, fmt.Sprintf("%s_evidence_%s.json", pipeline, stamp))
	l.textPath = filepath.Join(dir, fmt.Sprintf("%s_evidence_%s.log", pipeline, stamp))

	text, err := os.OpenFile(l.textPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open text log: %w", err)
	}
	l.text = text

	// Flush immediately so an empty run still leaves a loadable document.
	if err := l.flush(); err != nil {
		text.Close()
		return nil, err
	}
	return l, nil
}

// Pipeline returns the pipeline name this logger records.
func (l *Logger) Pipeline() string { return l.pipeline }

// RunID returns the unique id assigned to this run.
func (l *Logger) RunID() string { return l.runID }

// Path returns the location of the persisted JSON document.
func (l *Logger) Path() string { return l.jsonPath }

// TextPath returns the location of the human-readable log.
func (l *Logger) TextPath() string { return l.textPath }

// AttachSink registers a secondary store that receives each finalized
// iteration.
func (l *Logger) AttachSink(sink EventSink) { l.sink = sink }

// Records returns the completed iteration records of this run.
func (l *Logger) Records() []IterationRecord { return l.records }

func (l *Logger) logf(format string, args ...any) {
	if l.text == nil {
		return
	}
	fmt.Fprintf(l.text, "[%s] ", l.now().Format("15:04:05"))
	fmt.Fprintf(l.text, format+"\n", args...)
}

// StartIteration opens a new iteration. The previous iteration must have
// been closed.
func (l *Logger) StartIteration(iterationID int, promptID, promptText string) error {
	if l.cur != nil {
		return fmt.Errorf("iteration %d still open", l.cur.IterationID)
	}
	l.cur = &IterationRecord{
		IterationID:  iterationID,
		PipelineName: l.pipeline,
		PromptID:     promptID,
		PromptText:   promptText,
		StartTime:    l.now().UTC().Format(time.RFC3339),
	}
	l.seenStages = make(map[string]bool)
	l.logf("=== iteration %d (%s) ===", iterationID, promptID)
	return nil
}

// StartStage opens a stage within the current iteration.
func (l *Logger) StartStage(stage string) error {
	if l.cur == nil {
		return fmt.Errorf("no open iteration")
	}
	if l.curStage != nil {
		return fmt.Errorf("stage %s still open", l.curStage.Stage)
	}
	if l.seenStages[stage] {
		return fmt.Errorf("stage %s already recorded for iteration %d", stage, l.cur.IterationID)
	}
	l.curStage = &StageResult{Stage: stage}
	l.stageStart = l.now()
	return nil
}

// LogToolCall appends a tool invocation to the open stage. The call's stage
// field and timestamp are stamped here; the args summary is truncated.
func (l *Logger) LogToolCall(call ToolCall) error {
	if l.cur == nil || l.curStage == nil {
		return fmt.Errorf("no open stage for tool call %s", call.ToolName)
	}
	call.Stage = l.curStage.Stage
	if call.Timestamp == "" {
		call.Timestamp = l.now().UTC().Format(time.RFC3339)
	}
	if len(call.ArgsSummary) > maxArgsSummary {
		call.ArgsSummary = call.ArgsSummary[:maxArgsSummary]
	}
	l.curStage.ToolCalls = append(l.curStage.ToolCalls, call)
	return nil
}

// LogLLMUsage adds API usage to the current iteration.
func (l *Logger) LogLLMUsage(apiCalls, promptTokens, completionTokens int) error {
	if l.cur == nil {
		return fmt.Errorf("no open iteration for usage")
	}
	l.cur.APICalls += apiCalls
	l.cur.TokensPrompt += promptTokens
	l.cur.TokensCompletion += completionTokens
	l.cur.TokensTotal += promptTokens + completionTokens
	return nil
}

// EndStage closes the open stage with its outcome.
func (l *Logger) EndStage(success bool, message string, output json.RawMessage, details []validate.Check) error {
	if l.cur == nil || l.curStage == nil {
		return fmt.Errorf("no open stage")
	}
	s := l.curStage
	s.Success = success
	s.Message = message
	s.Duration = l.now().Sub(l.stageStart).Seconds()
	s.OutputData = output
	s.ValidationDetails = details
	l.cur.StageResults = append(l.cur.StageResults, *s)
	l.seenStages[s.Stage] = true
	l.logf("stage %s: success=%v %s", s.Stage, success, message)
	l.curStage = nil
	return nil
}

// EndIteration finalizes the open iteration: stages never reached get a
// synthetic failed result, derived flags and tool totals are computed, the
// record is appended, and the whole document is flushed atomically.
func (l *Logger) EndIteration() (*IterationRecord, error) {
	if l.cur == nil {
		return nil, fmt.Errorf("no open iteration")
	}
	if l.curStage != nil {
		return nil, fmt.Errorf("stage %s still open", l.curStage.Stage)
	}
	rec := l.cur

	for _, stage := range stageOrder {
		if !l.seenStages[stage] {
			rec.StageResults = append(rec.StageResults, StageResult{
				Stage:   stage,
				Message: fmt.Sprintf("stage %s not reached", stage),
			})
		}
	}
	orderStageResults(rec.StageResults)

	for _, s := range rec.StageResults {
		switch s.Stage {
		case "1":
			rec.Stage1Success = s.Success
		case "2":
			rec.Stage2Success = s.Success
		case "3":
			rec.Stage3Success = s.Success
		}
		for _, c := range s.ToolCalls {
			rec.TotalToolCalls++
			if c.Hit() {
				rec.ToolHits++
			} else {
				rec.ToolMisses++
			}
		}
	}
	rec.OverallSuccess = rec.Stage1Success && rec.Stage2Success && rec.Stage3Success

	end := l.now()
	rec.EndTime = end.UTC().Format(time.RFC3339)
	if start, err := time.Parse(time.RFC3339, rec.StartTime); err == nil {
		rec.TotalDuration = end.UTC().Sub(start).Seconds()
	}

	l.records = append(l.records, *rec)
	l.cur = nil
	l.logf("iteration %d done: overall=%v tools=%d hits=%d misses=%d",
		rec.IterationID, rec.OverallSuccess, rec.TotalToolCalls, rec.ToolHits, rec.ToolMisses)

	if err := l.flush(); err != nil {
		return nil, err
	}
	if l.sink != nil {
		if err := l.sink.RecordIteration(l.pipeline, l.runID, rec); err != nil {
			log.Printf("warning: evidence sink rejected iteration %d: %v", rec.IterationID, err)
		}
	}
	return rec, nil
}

func orderStageResults(results []StageResult) {
	byStage := make(map[string]StageResult, len(results))
	for _, s := range results {
		byStage[s.Stage] = s
	}
	for i, stage := range stageOrder {
		if i < len(results) {
			if s, ok := byStage[stage]; ok {
				results[i] = s
			}
		}
	}
}

// Document builds the persistable snapshot of all completed iterations.
func (l *Logger) Document() *Document {
	doc := &Document{
		Pipeline:        l.pipeline,
		RunID:           l.runID,
		GeneratedAt:     l.now().UTC().Format(time.RFC3339),
		TotalIterations: len(l.records),
		Records:         l.records,
	}
	doc.LLMUsageTotals = usageOf(l.records)
	return doc
}

func usageOf(records []IterationRecord) UsageTotals {
	var u UsageTotals
	for _, r := range records {
		u.TotalAPICalls += r.APICalls
		u.TotalTokensPrompt += r.TokensPrompt
		u.TotalTokensCompletion += r.TokensCompletion
		u.TotalTokens += r.TokensTotal
	}
	if n := len(records); n > 0 {
		u.AvgAPICallsPerIter = float64(u.TotalAPICalls) / float64(n)
		u.AvgTokensPerIter = float64(u.TotalTokens) / float64(n)
	}
	return u
}

func (l *Logger) flush() error {
	return WriteJSON(l.jsonPath, l.Document())
}

// Close flushes the document and closes the text log. The logger must not
// have an open iteration.
func (l *Logger) Close() error {
	if l.cur != nil {
		return fmt.Errorf("iteration %d still open", l.cur.IterationID)
	}
	if err := l.flush(); err != nil {
		return err
	}
	if l.text != nil {
		if err := l.text.Close(); err != nil {
			return err
		}
		l.text = nil
	}
	return nil
}

// Summary reduces completed records plus any prior batch into aggregate
// statistics. The in-flight iteration is never included.
func (l *Logger) Summary() Summary {
	return SummarizeRecords(l.pipeline, l.records, l.prior)
}

// SummarizeRecords reduces a record set plus pre-aggregated prior totals
// into a Summary. Also used by the report path over loaded documents.
func SummarizeRecords(pipeline string, records []IterationRecord, prior PriorStats) Summary {
	sum := Summary{
		Pipeline:         pipeline,
		Iterations:       prior.Iterations + len(records),
		OverallSuccesses: prior.OverallSuccesses,
		Stages:           make(map[string]StageStats, len(stageOrder)),
	}

	stageSucc := make(map[string]int)
	hits := make(map[string]int)
	misses := make(map[string]int)
	for _, r := range records {
		if r.OverallSuccess {
			sum.OverallSuccesses++
		}
		for _, stage := range stageOrder {
			if r.stageSuccess(stage) {
				stageSucc[stage]++
			}
		}
		for _, s := range r.StageResults {
			for _, c := range s.ToolCalls {
				if c.Hit() {
					hits[s.Stage]++
				} else {
					misses[s.Stage]++
				}
			}
		}
	}

	for _, stage := range stageOrder {
		st := StageStats{
			Successes:  prior.StageSuccesses[stage] + stageSucc[stage],
			Attempts:   sum.Iterations,
			ToolHits:   prior.ToolHits[stage] + hits[stage],
			ToolMisses: prior.ToolMisses[stage] + misses[stage],
		}
		st.SuccessRate = rate(st.Successes, st.Attempts)
		st.ToolHitRate = rate(st.ToolHits, st.ToolHits+st.ToolMisses)
		sum.Stages[stage] = st
	}

	sum.OverallRate = rate(sum.OverallSuccesses, sum.Iterations)

	live := usageOf(records)
	sum.Usage = UsageTotals{
		TotalAPICalls:         prior.APICalls + live.TotalAPICalls,
		TotalTokens:           prior.TokensTotal + live.TotalTokens,
		TotalTokensPrompt:     prior.TokensPrompt + live.TotalTokensPrompt,
		TotalTokensCompletion: prior.TokensCompletion + live.TotalTokensCompletion,
	}
	if sum.Iterations > 0 {
		sum.Usage.AvgAPICallsPerIter = float64(sum.Usage.TotalAPICalls) / float64(sum.Iterations)
		sum.Usage.AvgTokensPerIter = float64(sum.Usage.TotalTokens) / float64(sum.Iterations)
	}
	return sum
}
