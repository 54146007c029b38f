package db

import (
	"fmt"

	"github.com/lucasnoah/cellbench/internal/evidence"
)

// Store writes finalized evidence records into the mirror. It satisfies
// evidence.EventSink.
type Store struct {
	db *DB
}

// NewStore wraps an open database as an evidence sink.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// RecordIteration inserts one iteration with its stage results and tool
// calls in a single transaction. Replaying the same (run, iteration) pair
// is rejected by the unique constraint, keeping the mirror idempotent
// against duplicate flushes.
func (s *Store) RecordIteration(pipeline, runID string, rec *evidence.IterationRecord) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO iterations (
			pipeline, run_id, iteration_id, prompt_id,
			overall_success, stage1_success, stage2_success, stage3_success,
			total_tool_calls, tool_hits, tool_misses,
			api_calls, tokens_prompt, tokens_completion, tokens_total,
			start_time, end_time, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pipeline, runID, rec.IterationID, rec.PromptID,
		rec.OverallSuccess, rec.Stage1Success, rec.Stage2Success, rec.Stage3Success,
		rec.TotalToolCalls, rec.ToolHits, rec.ToolMisses,
		rec.APICalls, rec.TokensPrompt, rec.TokensCompletion, rec.TokensTotal,
		rec.StartTime, rec.EndTime, rec.TotalDuration,
	)
	if err != nil {
		return fmt.Errorf("insert iteration %d: %w", rec.IterationID, err)
	}
	iterRow, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("iteration row id: %w", err)
	}

	for _, sr := range rec.StageResults {
		res, err := tx.Exec(
			`INSERT INTO stage_results (iteration_row, stage, success, message, duration)
			 VALUES (?, ?, ?, ?, ?)`,
			iterRow, sr.Stage, sr.Success, sr.Message, sr.Duration,
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", sr.Stage, err)
		}
		stageRow, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("stage row id: %w", err)
		}
		for _, c := range sr.ToolCalls {
			_, err := tx.Exec(
				`INSERT INTO tool_calls (
					stage_row, tool_name, stage, args_summary,
					success, is_appropriate, duration, error, called_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				stageRow, c.ToolName, c.Stage, c.ArgsSummary,
				c.Success, c.IsAppropriate, c.Duration, c.Error, c.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("insert tool call %s: %w", c.ToolName, err)
			}
		}
	}

	return tx.Commit()
}

// CountIterations returns the number of mirrored iterations, optionally
// filtered by pipeline.
func (s *Store) CountIterations(pipeline string) (int, error) {
	query := "SELECT COUNT(*) FROM iterations"
	args := []interface{}{}
	if pipeline != "" {
		query += " WHERE pipeline = ?"
		args = append(args, pipeline)
	}
	var n int
	if err := s.db.conn.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count iterations: %w", err)
	}
	return n, nil
}
