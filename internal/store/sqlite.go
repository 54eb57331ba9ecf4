package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sql.DB

// InitDB opens the SQLite run history and creates its tables
func InitDB(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var err error
	DB, err = sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}

func createTables() error {
	_, err := DB.Exec(`
		CREATE TABLE IF NOT EXISTS ingest_runs (
			id TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			candidate_rows INTEGER DEFAULT 0,
			excluded_count INTEGER DEFAULT 0,
			skipped_count INTEGER DEFAULT 0,
			action_count INTEGER DEFAULT 0,
			failed_count INTEGER DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT DEFAULT '',
			report_path TEXT DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ingest_runs table: %w", err)
	}

	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS ingest_run_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ref_des TEXT NOT NULL,
			action_kind TEXT NOT NULL,
			http_status INTEGER DEFAULT 0,
			remote_id TEXT DEFAULT '',
			message TEXT DEFAULT '',
			succeeded BOOLEAN DEFAULT 0,
			deployment INTEGER DEFAULT 0,
			ingest_type TEXT DEFAULT '',
			priority INTEGER DEFAULT 0,
			job_id INTEGER DEFAULT 0,
			file_mask TEXT DEFAULT '',
			error_kind TEXT DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (run_id) REFERENCES ingest_runs(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ingest_run_items table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_ingest_run_items_run_id ON ingest_run_items(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_ingest_run_items_ref_des ON ingest_run_items(ref_des)",
	}
	for _, idx := range indexes {
		if _, err := DB.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
