// Package db mirrors evidence events into SQLite so runs can be queried
// across pipelines and batches. The JSON evidence documents remain the
// source of truth; the mirror exists for analytics.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// DefaultDBPath returns ~/.cellbench/cellbench.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".cellbench")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "cellbench.db"), nil
}

// Open opens or creates the database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS iterations (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    pipeline          TEXT NOT NULL,
    run_id            TEXT NOT NULL,
    iteration_id      INTEGER NOT NULL,
    prompt_id         TEXT NOT NULL,
    overall_success   BOOLEAN NOT NULL,
    stage1_success    BOOLEAN NOT NULL,
    stage2_success    BOOLEAN NOT NULL,
    stage3_success    BOOLEAN NOT NULL,
    total_tool_calls  INTEGER NOT NULL,
    tool_hits         INTEGER NOT NULL,
    tool_misses       INTEGER NOT NULL,
    api_calls         INTEGER NOT NULL DEFAULT 0,
    tokens_prompt     INTEGER NOT NULL DEFAULT 0,
    tokens_completion INTEGER NOT NULL DEFAULT 0,
    tokens_total      INTEGER NOT NULL DEFAULT 0,
    start_time        TEXT NOT NULL,
    end_time          TEXT NOT NULL,
    duration          REAL NOT NULL,
    recorded_at       TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(run_id, iteration_id)
);
CREATE INDEX IF NOT EXISTS idx_iterations_pipeline ON iterations(pipeline, recorded_at DESC);

CREATE TABLE IF NOT EXISTS stage_results (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    iteration_row INTEGER NOT NULL REFERENCES iterations(id) ON DELETE CASCADE,
    stage         TEXT NOT NULL CHECK(stage IN ('1','2','3')),
    success       BOOLEAN NOT NULL,
    message       TEXT,
    duration      REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_stage_results_iter ON stage_results(iteration_row, stage);

CREATE TABLE IF NOT EXISTS tool_calls (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    stage_row      INTEGER NOT NULL REFERENCES stage_results(id) ON DELETE CASCADE,
    tool_name      TEXT NOT NULL,
    stage          TEXT NOT NULL,
    args_summary   TEXT,
    success        BOOLEAN NOT NULL,
    is_appropriate BOOLEAN NOT NULL,
    duration       REAL NOT NULL DEFAULT 0,
    error          TEXT,
    called_at      TEXT
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_stage ON tool_calls(stage, tool_name);
`

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset() error {
	tables := []string{"tool_calls", "stage_results", "iterations", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate()
}
