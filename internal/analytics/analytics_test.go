package analytics

import (
	"database/sql"
	"testing"

	"github.com/lucasnoah/cellbench/internal/db"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func exec(t *testing.T, conn *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func insertIteration(t *testing.T, conn *sql.DB, pipeline string, iterID int, success bool) int64 {
	t.Helper()
	res, err := conn.Exec(
		`INSERT INTO iterations (
			pipeline, run_id, iteration_id, prompt_id,
			overall_success, stage1_success, stage2_success, stage3_success,
			total_tool_calls, tool_hits, tool_misses,
			start_time, end_time, duration
		) VALUES (?, 'run-1', ?, 'P01', ?, ?, ?, ?, 0, 0, 0, '', '', 0)`,
		pipeline, iterID, success, success, success, success,
	)
	if err != nil {
		t.Fatal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func insertStage(t *testing.T, conn *sql.DB, iterRow int64, stage string, duration float64) int64 {
	t.Helper()
	res, err := conn.Exec(
		`INSERT INTO stage_results (iteration_row, stage, success, message, duration)
		 VALUES (?, ?, 1, '', ?)`, iterRow, stage, duration)
	if err != nil {
		t.Fatal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestQueryStageDurations(t *testing.T) {
	d := testDB(t)
	c := d.Conn()

	i1 := insertIteration(t, c, "scripted", 1, true)
	i2 := insertIteration(t, c, "scripted", 2, true)
	insertStage(t, c, i1, "1", 10)
	insertStage(t, c, i2, "1", 20)
	insertStage(t, c, i1, "2", 5)

	results, err := QueryStageDurations(d, "scripted")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 stages", len(results))
	}
	s1 := results[0]
	if s1.Stage != "1" || s1.Count != 2 {
		t.Errorf("stage 1 row wrong: %+v", s1)
	}
	if s1.Avg != 15 || s1.P50 != 15 {
		t.Errorf("stage 1 avg/p50 = %v/%v, want 15/15", s1.Avg, s1.P50)
	}

	// Filtering to a pipeline with no rows is empty, not an error.
	results, err = QueryStageDurations(d, "other")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("unexpected rows for unknown pipeline: %v", results)
	}
}

func TestQueryToolHitRates(t *testing.T) {
	d := testDB(t)
	c := d.Conn()

	iter := insertIteration(t, c, "scripted", 1, true)
	s1 := insertStage(t, c, iter, "1", 1)
	exec(t, c, `INSERT INTO tool_calls (stage_row, tool_name, stage, success, is_appropriate)
		VALUES (?, 'design_workcell', '1', 1, 1)`, s1)
	exec(t, c, `INSERT INTO tool_calls (stage_row, tool_name, stage, success, is_appropriate)
		VALUES (?, 'design_workcell', '1', 0, 1)`, s1)
	exec(t, c, `INSERT INTO tool_calls (stage_row, tool_name, stage, success, is_appropriate)
		VALUES (?, '<missing: build_scene>', '3', 0, 0)`, s1)

	results, err := QueryToolHitRates(d, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	design := results[0]
	if design.ToolName != "design_workcell" || design.Hits != 1 || design.Misses != 1 {
		t.Errorf("design row wrong: %+v", design)
	}
	if design.HitPct != 50 {
		t.Errorf("hit pct = %v, want 50", design.HitPct)
	}
	missRow := results[1]
	if missRow.Hits != 0 || missRow.Misses != 1 || missRow.HitPct != 0 {
		t.Errorf("synthetic miss row wrong: %+v", missRow)
	}
}

func TestQueryPipelineThroughput(t *testing.T) {
	d := testDB(t)
	c := d.Conn()

	insertIteration(t, c, "scripted", 1, true)
	insertIteration(t, c, "scripted", 2, false)
	insertIteration(t, c, "replay", 1, true)

	results, err := QueryPipelineThroughput(d, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 pipeline rows", len(results))
	}
	for _, r := range results {
		switch r.Pipeline {
		case "scripted":
			if r.Iterations != 2 || r.Successes != 1 || r.SuccessPct != 50 {
				t.Errorf("scripted row wrong: %+v", r)
			}
		case "replay":
			if r.Iterations != 1 || r.SuccessPct != 100 {
				t.Errorf("replay row wrong: %+v", r)
			}
		default:
			t.Errorf("unexpected pipeline %q", r.Pipeline)
		}
	}
}

func TestHelpers(t *testing.T) {
	if got := avg(nil); got != 0 {
		t.Errorf("avg(nil) = %v", got)
	}
	if got := percentile([]float64{1, 2, 3, 4}, 50); got != 2.5 {
		t.Errorf("p50 = %v, want 2.5", got)
	}
	if got := pct(1, 3); got != 33.3 {
		t.Errorf("pct = %v, want 33.3", got)
	}
	if got := pct(0, 0); got != 0 {
		t.Errorf("pct(0,0) = %v", got)
	}
}
