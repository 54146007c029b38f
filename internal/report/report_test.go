package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/cellbench/internal/evidence"
	"github.com/lucasnoah/cellbench/internal/metrics"
)

func summariesForTest(t *testing.T) []metrics.PipelineSummary {
	t.Helper()
	lg, err := evidence.New("scripted", t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 4; i++ {
		ok := i <= 3
		if err := lg.StartIteration(i, "P01", "p"); err != nil {
			t.Fatal(err)
		}
		for _, stage := range []string{"1", "2", "3"} {
			if err := lg.StartStage(stage); err != nil {
				t.Fatal(err)
			}
			if err := lg.LogToolCall(evidence.ToolCall{
				ToolName: "design_workcell", Success: ok, IsAppropriate: true,
			}); err != nil {
				t.Fatal(err)
			}
			if err := lg.EndStage(ok, "", nil, nil); err != nil {
				t.Fatal(err)
			}
		}
		if err := lg.LogLLMUsage(3, 200, 80); err != nil {
			t.Fatal(err)
		}
		if _, err := lg.EndIteration(); err != nil {
			t.Fatal(err)
		}
	}
	if err := lg.Close(); err != nil {
		t.Fatal(err)
	}

	return metrics.Collect([]metrics.Source{
		{Pipeline: "scripted", Path: lg.Path()},
		{Pipeline: "replay", Path: filepath.Join(t.TempDir(), "missing.json")},
	})
}

func TestGenerateWritesReportAndSnapshot(t *testing.T) {
	outDir := t.TempDir()
	reportPath, rawPath, err := Generate(summariesForTest(t), outDir)
	if err != nil {
		t.Fatal(err)
	}

	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(md)
	for _, want := range []string{
		"## Stage Success Rates",
		"## Tool Call Accounting",
		"## LLM Usage",
		"| scripted | 4 | 75.0% | 75.0% | 75.0% | 75.0% |",
		"replay (log unreadable)",
		"## Notes",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}

	var raw []evidence.Summary
	if err := evidence.ReadJSON(rawPath, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 {
		t.Fatalf("snapshot summaries = %d, want 2", len(raw))
	}
	if raw[0].Pipeline != "scripted" || raw[0].Iterations != 4 {
		t.Errorf("snapshot first summary wrong: %+v", raw[0])
	}
}

func TestGenerateCreatesOutDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "reports")
	if _, _, err := Generate(nil, outDir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(outDir); err != nil {
		t.Fatal(err)
	}
}

func TestQuickSummary(t *testing.T) {
	var buf bytes.Buffer
	QuickSummary(&buf, summariesForTest(t))
	out := buf.String()
	if !strings.Contains(out, "PIPELINE") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "scripted") || !strings.Contains(out, "75.0%") {
		t.Errorf("missing scripted row: %q", out)
	}
	if !strings.Contains(out, "replay") {
		t.Errorf("missing replay row: %q", out)
	}
}
