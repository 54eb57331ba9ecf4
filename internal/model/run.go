package model

import "time"

// Run statuses.
const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusInterrupted = "interrupted"
	RunStatusFailed      = "failed"
)

// IngestRun summarizes one execution of a plan.
type IngestRun struct {
	ID            string     `json:"id"`
	TriggerType   string     `json:"trigger_type"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CandidateRows int        `json:"candidate_rows"`
	ExcludedCount int        `json:"excluded_count"`
	SkippedCount  int        `json:"skipped_count"`
	ActionCount   int        `json:"action_count"`
	FailedCount   int        `json:"failed_count"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	ReportPath    string     `json:"report_path,omitempty"`
}

// IngestRunListResponse lists runs.
type IngestRunListResponse struct {
	Items []IngestRun `json:"items"`
}

// IngestRunDetailResponse shows a run and its report rows.
type IngestRunDetailResponse struct {
	Run   IngestRun   `json:"run"`
	Items []ReportRow `json:"items"`
}
