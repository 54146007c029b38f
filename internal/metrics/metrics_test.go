package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasnoah/cellbench/internal/evidence"
)

// writeLog produces a real evidence document with n iterations, the first
// s1Pass of which pass stage 1 (and, of those, fully succeed).
func writeLog(t *testing.T, pipeline string, n, pass int) string {
	t.Helper()
	lg, err := evidence.New(pipeline, t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		ok := i <= pass
		if err := lg.StartIteration(i, "P01", "p"); err != nil {
			t.Fatal(err)
		}
		for _, stage := range []string{"1", "2", "3"} {
			if err := lg.StartStage(stage); err != nil {
				t.Fatal(err)
			}
			if err := lg.LogToolCall(evidence.ToolCall{
				ToolName: "tool", Success: ok, IsAppropriate: true,
			}); err != nil {
				t.Fatal(err)
			}
			if err := lg.EndStage(ok, "", nil, nil); err != nil {
				t.Fatal(err)
			}
		}
		if err := lg.LogLLMUsage(2, 100, 50); err != nil {
			t.Fatal(err)
		}
		if _, err := lg.EndIteration(); err != nil {
			t.Fatal(err)
		}
	}
	if err := lg.Close(); err != nil {
		t.Fatal(err)
	}
	return lg.Path()
}

func TestCollectAndSuccessTable(t *testing.T) {
	good := writeLog(t, "scripted", 10, 7)
	bad := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	summaries := Collect([]Source{
		{Pipeline: "scripted", Path: good},
		{Pipeline: "broken", Path: bad},
		{Pipeline: "absent", Path: filepath.Join(t.TempDir(), "nope.json")},
	})
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}

	rows := SuccessTable(summaries)
	if rows[0].Pipeline != "scripted" || rows[0].Iterations != 10 {
		t.Errorf("scripted row wrong: %+v", rows[0])
	}
	if rows[0].Stage1Rate != 0.7 || rows[0].OverallRate != 0.7 {
		t.Errorf("scripted rates wrong: %+v", rows[0])
	}

	// Unparseable logs yield zeroed rows, never abort the table.
	for _, row := range rows[1:] {
		if !row.Failed {
			t.Errorf("%s: parse failure not flagged", row.Pipeline)
		}
		if row.Iterations != 0 || row.OverallRate != 0 {
			t.Errorf("%s: zeroed row expected, got %+v", row.Pipeline, row)
		}
	}
}

// A resumed logger's summary folds in the prior batch; the persisted
// document holds only the new batch's records, so summarizing a live run
// must go through the logger, not a document reload.
func TestFromLoggerKeepsPriorBatchTotals(t *testing.T) {
	prior := writeLog(t, "scripted", 2, 2)

	lg, err := evidence.New("scripted", t.TempDir(), prior)
	if err != nil {
		t.Fatal(err)
	}
	if err := lg.StartIteration(3, "P03", "p"); err != nil {
		t.Fatal(err)
	}
	for _, stage := range []string{"1", "2", "3"} {
		if err := lg.StartStage(stage); err != nil {
			t.Fatal(err)
		}
		if err := lg.EndStage(true, "", nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := lg.EndIteration(); err != nil {
		t.Fatal(err)
	}
	if err := lg.Close(); err != nil {
		t.Fatal(err)
	}

	ps := FromLogger("scripted", lg, nil)
	if ps.Iterations != 3 || ps.OverallSuccesses != 3 {
		t.Fatalf("resumed summary = %d iterations / %d successes, want 3/3",
			ps.Iterations, ps.OverallSuccesses)
	}
	if ps.Path != lg.Path() || ps.Err != nil {
		t.Errorf("path/err wrong: %+v", ps)
	}

	// The document alone sees one record; Collect stays the cold path.
	cold := Collect([]Source{{Pipeline: "scripted", Path: lg.Path()}})
	if cold[0].Iterations != 1 {
		t.Fatalf("document reload iterations = %d, want 1", cold[0].Iterations)
	}
}

func TestFromLoggerNilLoggerIsZeroed(t *testing.T) {
	ps := FromLogger("broken", nil, os.ErrNotExist)
	if ps.Err == nil || ps.Iterations != 0 {
		t.Fatalf("nil logger should yield zeroed errored summary: %+v", ps)
	}
	if ps.Pipeline != "broken" {
		t.Errorf("pipeline = %q, want broken", ps.Pipeline)
	}
}

func TestToolTable(t *testing.T) {
	path := writeLog(t, "scripted", 4, 3)
	summaries := Collect([]Source{{Pipeline: "scripted", Path: path}})

	rows := ToolTable(summaries)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for _, r := range rows {
		if r.Hits != 3 || r.Misses != 1 {
			t.Errorf("stage %s: hits=%d misses=%d, want 3/1", r.Stage, r.Hits, r.Misses)
		}
		if r.HitRate != 0.75 {
			t.Errorf("stage %s: hit rate = %v, want 0.75", r.Stage, r.HitRate)
		}
	}
}

func TestToolTableNoCallsIsZeroRate(t *testing.T) {
	lg, err := evidence.New("quiet", t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := lg.Close(); err != nil {
		t.Fatal(err)
	}
	rows := ToolTable(Collect([]Source{{Pipeline: "quiet", Path: lg.Path()}}))
	for _, r := range rows {
		if r.HitRate != 0 {
			t.Errorf("stage %s: rate with no calls = %v, want 0", r.Stage, r.HitRate)
		}
	}
}

func TestUsageTable(t *testing.T) {
	path := writeLog(t, "scripted", 5, 5)
	rows := UsageTable(Collect([]Source{{Pipeline: "scripted", Path: path}}))
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	u := rows[0]
	if u.TotalCalls != 10 || u.AvgCalls != 2 {
		t.Errorf("calls wrong: %+v", u)
	}
	if u.TokensPrompt != 500 || u.TokensCompletion != 250 || u.TokensTotal != 750 {
		t.Errorf("tokens wrong: %+v", u)
	}
	if u.AvgTokens != 150 {
		t.Errorf("avg tokens = %v, want 150", u.AvgTokens)
	}
}
