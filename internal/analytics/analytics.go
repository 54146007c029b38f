// Package analytics runs aggregate queries over the SQLite evidence mirror.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// StageDuration holds duration stats for a stage.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_seconds"`
	P50   float64 `json:"p50_seconds"`
	P95   float64 `json:"p95_seconds"`
}

// QueryStageDurations returns average and percentile stage durations,
// optionally filtered to one pipeline.
func QueryStageDurations(database DB, pipeline string) ([]StageDuration, error) {
	query := `
		SELECT sr.stage, sr.duration
		FROM stage_results sr
		JOIN iterations i ON i.id = sr.iteration_row`
	args := []interface{}{}
	if pipeline != "" {
		query += ` WHERE i.pipeline = ?`
		args = append(args, pipeline)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	durations := make(map[string][]float64)
	for rows.Next() {
		var stage string
		var d float64
		if err := rows.Scan(&stage, &d); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		durations[stage] = append(durations[stage], d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, ds := range durations {
		sort.Float64s(ds)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(ds),
			Avg:   avg(ds),
			P50:   percentile(ds, 50),
			P95:   percentile(ds, 95),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// ToolHitRate holds hit/miss stats for one tool within one stage.
type ToolHitRate struct {
	Stage    string  `json:"stage"`
	ToolName string  `json:"tool_name"`
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	HitPct   float64 `json:"hit_pct"`
}

// QueryToolHitRates returns per-stage, per-tool hit rates. A hit is a call
// that was both appropriate for its stage and successful.
func QueryToolHitRates(database DB, pipeline string) ([]ToolHitRate, error) {
	query := `
		SELECT tc.stage, tc.tool_name,
			SUM(CASE WHEN tc.is_appropriate = 1 AND tc.success = 1 THEN 1 ELSE 0 END) as hits,
			SUM(CASE WHEN tc.is_appropriate = 0 OR tc.success = 0 THEN 1 ELSE 0 END) as misses
		FROM tool_calls tc
		JOIN stage_results sr ON sr.id = tc.stage_row
		JOIN iterations i ON i.id = sr.iteration_row`
	args := []interface{}{}
	if pipeline != "" {
		query += ` WHERE i.pipeline = ?`
		args = append(args, pipeline)
	}
	query += ` GROUP BY tc.stage, tc.tool_name ORDER BY tc.stage, tc.tool_name`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tool hit rates: %w", err)
	}
	defer rows.Close()

	var results []ToolHitRate
	for rows.Next() {
		var r ToolHitRate
		if err := rows.Scan(&r.Stage, &r.ToolName, &r.Hits, &r.Misses); err != nil {
			return nil, fmt.Errorf("scan tool hit rate: %w", err)
		}
		r.HitPct = pct(r.Hits, r.Hits+r.Misses)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// PipelineThroughput holds per-day iteration counts for one pipeline.
type PipelineThroughput struct {
	Period     string  `json:"period"`
	Pipeline   string  `json:"pipeline"`
	Iterations int     `json:"iterations"`
	Successes  int     `json:"successes"`
	SuccessPct float64 `json:"success_pct"`
}

// QueryPipelineThroughput returns iteration volume and success rate grouped
// by day and pipeline, most recent first.
func QueryPipelineThroughput(database DB, since string) ([]PipelineThroughput, error) {
	query := `
		SELECT strftime('%Y-%m-%d', recorded_at) as period, pipeline,
			COUNT(*) as iterations,
			SUM(CASE WHEN overall_success = 1 THEN 1 ELSE 0 END) as successes
		FROM iterations`
	args := []interface{}{}
	if since != "" {
		query += ` WHERE recorded_at >= ?`
		args = append(args, since)
	}
	query += ` GROUP BY period, pipeline ORDER BY period DESC, pipeline LIMIT 30`

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pipeline throughput: %w", err)
	}
	defer rows.Close()

	var results []PipelineThroughput
	for rows.Next() {
		var pt PipelineThroughput
		if err := rows.Scan(&pt.Period, &pt.Pipeline, &pt.Iterations, &pt.Successes); err != nil {
			return nil, fmt.Errorf("scan throughput: %w", err)
		}
		pt.SuccessPct = pct(pt.Successes, pt.Iterations)
		results = append(results, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
