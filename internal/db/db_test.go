package db

import (
	"path/filepath"
	"testing"

	"github.com/lucasnoah/cellbench/internal/evidence"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func sampleRecord(id int) *evidence.IterationRecord {
	return &evidence.IterationRecord{
		IterationID:    id,
		PipelineName:   "scripted",
		PromptID:       "P01",
		StartTime:      "2026-08-25T10:00:00Z",
		EndTime:        "2026-08-25T10:00:05Z",
		TotalDuration:  5,
		OverallSuccess: true,
		Stage1Success:  true,
		Stage2Success:  true,
		Stage3Success:  true,
		TotalToolCalls: 3,
		ToolHits:       3,
		StageResults: []evidence.StageResult{
			{Stage: "1", Success: true, Message: "ok", Duration: 1,
				ToolCalls: []evidence.ToolCall{
					{ToolName: "design_workcell", Stage: "1", Success: true, IsAppropriate: true},
				}},
			{Stage: "2", Success: true, Message: "ok", Duration: 2,
				ToolCalls: []evidence.ToolCall{
					{ToolName: "optimize_layout", Stage: "2", Success: true, IsAppropriate: true},
				}},
			{Stage: "3", Success: true, Message: "ok", Duration: 2,
				ToolCalls: []evidence.ToolCall{
					{ToolName: "build_scene", Stage: "3", Success: true, IsAppropriate: true},
				}},
		},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d := testDB(t)
	if err := d.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.db")
	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Migrate(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordIteration(t *testing.T) {
	d := testDB(t)
	store := NewStore(d)

	if err := store.RecordIteration("scripted", "run-1", sampleRecord(1)); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordIteration("scripted", "run-1", sampleRecord(2)); err != nil {
		t.Fatal(err)
	}

	n, err := store.CountIterations("scripted")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}

	var stages, calls int
	if err := d.Conn().QueryRow("SELECT COUNT(*) FROM stage_results").Scan(&stages); err != nil {
		t.Fatal(err)
	}
	if err := d.Conn().QueryRow("SELECT COUNT(*) FROM tool_calls").Scan(&calls); err != nil {
		t.Fatal(err)
	}
	if stages != 6 || calls != 6 {
		t.Errorf("stages=%d calls=%d, want 6/6", stages, calls)
	}
}

func TestRecordIterationDuplicateRejected(t *testing.T) {
	d := testDB(t)
	store := NewStore(d)

	if err := store.RecordIteration("scripted", "run-1", sampleRecord(1)); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordIteration("scripted", "run-1", sampleRecord(1)); err == nil {
		t.Fatal("duplicate (run, iteration) must be rejected")
	}
	// The failed transaction must not leave partial rows behind.
	var calls int
	if err := d.Conn().QueryRow("SELECT COUNT(*) FROM tool_calls").Scan(&calls); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("tool calls = %d, want 3", calls)
	}
}

func TestReset(t *testing.T) {
	d := testDB(t)
	store := NewStore(d)
	if err := store.RecordIteration("scripted", "run-1", sampleRecord(1)); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountIterations("")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("iterations after reset = %d, want 0", n)
	}
}
