package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunRecord stores one ingest run.
type RunRecord struct {
	ID            string
	TriggerType   string
	StartedAt     time.Time
	FinishedAt    *time.Time
	CandidateRows int
	ExcludedCount int
	SkippedCount  int
	ActionCount   int
	FailedCount   int
	Status        string
	Error         string
	ReportPath    string
}

// RunItemRecord stores one report row of a run.
type RunItemRecord struct {
	ID         int64
	RunID      string
	RefDes     string
	ActionKind string
	HTTPStatus int
	RemoteID   string
	Message    string
	Succeeded  bool
	Deployment int
	IngestType string
	Priority   int
	JobID      int64
	FileMask   string
	ErrorKind  string
	CreatedAt  time.Time
}

// RunFinish carries the counters written when a run ends.
type RunFinish struct {
	Status      string
	Error       string
	ActionCount int
	FailedCount int
	ReportPath  string
	FinishedAt  time.Time
}

// RunStore persists the audit trail of ingest runs. Nothing in it is read back
// to plan a later run.
type RunStore struct {
	db *sql.DB
}

func NewRunStore() *RunStore {
	return &RunStore{db: DB}
}

func (s *RunStore) CreateRun(ctx context.Context, run *RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, trigger_type, started_at, finished_at, candidate_rows, excluded_count, skipped_count, action_count, failed_count, status, error, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.TriggerType, run.StartedAt, toNullTime(run.FinishedAt), run.CandidateRows, run.ExcludedCount, run.SkippedCount, run.ActionCount, run.FailedCount, run.Status, run.Error, run.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to create ingest run: %w", err)
	}
	return nil
}

func (s *RunStore) FinishRun(ctx context.Context, id string, f RunFinish) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET finished_at = ?, action_count = ?, failed_count = ?, status = ?, error = ?, report_path = ?
		WHERE id = ?
	`, f.FinishedAt, f.ActionCount, f.FailedCount, f.Status, f.Error, f.ReportPath, id)
	if err != nil {
		return fmt.Errorf("failed to finish ingest run: %w", err)
	}
	return nil
}

func (s *RunStore) AddItem(ctx context.Context, item *RunItemRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_run_items (run_id, ref_des, action_kind, http_status, remote_id, message, succeeded, deployment, ingest_type, priority, job_id, file_mask, error_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.RunID, item.RefDes, item.ActionKind, item.HTTPStatus, item.RemoteID, item.Message, item.Succeeded, item.Deployment, item.IngestType, item.Priority, item.JobID, item.FileMask, item.ErrorKind, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add ingest run item: %w", err)
	}
	return nil
}

const runSelectSQL = `
	SELECT id, trigger_type, started_at, finished_at, candidate_rows, excluded_count, skipped_count, action_count, failed_count, status, error, report_path
	FROM ingest_runs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var r RunRecord
	var finishedAt sql.NullTime
	err := row.Scan(&r.ID, &r.TriggerType, &r.StartedAt, &finishedAt, &r.CandidateRows, &r.ExcludedCount, &r.SkippedCount, &r.ActionCount, &r.FailedCount, &r.Status, &r.Error, &r.ReportPath)
	if err != nil {
		return r, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, runSelectSQL+`
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer rows.Close()

	items := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// GetRun returns nil, nil when the run does not exist.
func (s *RunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, runSelectSQL+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ingest run: %w", err)
	}
	return &r, nil
}

func (s *RunStore) ListItems(ctx context.Context, runID string) ([]RunItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, ref_des, action_kind, http_status, remote_id, message, succeeded, deployment, ingest_type, priority, job_id, file_mask, error_kind, created_at
		FROM ingest_run_items
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest run items: %w", err)
	}
	defer rows.Close()

	items := []RunItemRecord{}
	for rows.Next() {
		var it RunItemRecord
		if err := rows.Scan(&it.ID, &it.RunID, &it.RefDes, &it.ActionKind, &it.HTTPStatus, &it.RemoteID, &it.Message, &it.Succeeded, &it.Deployment, &it.IngestType, &it.Priority, &it.JobID, &it.FileMask, &it.ErrorKind, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
