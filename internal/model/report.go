package model

import (
	"sync"
	"time"
)

// Error kinds recorded on report rows that did not succeed. Declined rows are
// operator choices and do not count as failures.
const (
	ErrorKindValidation = "validation"
	ErrorKindRemote     = "remote_rejected"
	ErrorKindTransport  = "transport_failure"
	ErrorKindSkipped    = "not_attempted"
	ErrorKindDeclined   = "declined"
)

// ReportRow is the outcome of one executed action.
type ReportRow struct {
	RefDes     string `json:"refDes"`
	ActionKind string `json:"actionKind"`
	HTTPStatus int    `json:"httpStatus"`
	RemoteID   string `json:"remoteId"`
	Message    string `json:"message"`
	Succeeded  bool   `json:"succeeded"`
	Deployment int    `json:"deployment,omitempty"`
	Type       string `json:"type,omitempty"`
	Priority   int    `json:"priority,omitempty"`

	JobID     int64     `json:"jobId,omitempty"`
	FileMask  string    `json:"fileMask,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	At        time.Time `json:"at"`
}

// ReportColumns is the header of the per-run report file.
var ReportColumns = []string{"refDes", "actionKind", "httpStatus", "remoteId", "message", "succeeded", "deployment", "type", "priority"}

// Report accumulates one row per action. It is append-only and safe for concurrent use.
type Report struct {
	RunID string

	mu   sync.Mutex
	rows []ReportRow
}

// NewReport creates an empty report for a run.
func NewReport(runID string) *Report {
	return &Report{RunID: runID}
}

// Append records a row.
func (r *Report) Append(row ReportRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
}

// Rows returns a copy of the recorded rows in append order.
func (r *Report) Rows() []ReportRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReportRow(nil), r.rows...)
}

// Summary counts rows per action kind and outcome.
func (r *Report) Summary() ReportSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := ReportSummary{Total: len(r.rows)}
	for _, row := range r.rows {
		var c *ActionCount
		switch row.ActionKind {
		case "transition":
			c = &s.Transitions
		case "purge":
			c = &s.Purges
		case "submit":
			c = &s.Submissions
		}
		if row.ErrorKind == ErrorKindDeclined {
			s.Declined++
			continue
		}
		if !row.Succeeded {
			s.Failed++
		}
		if c == nil {
			continue
		}
		if row.Succeeded {
			c.Succeeded++
		} else {
			c.Failed++
		}
	}
	return s
}

// ActionCount is the outcome tally of one action kind.
type ActionCount struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ReportSummary is the tally printed at the end of a run.
type ReportSummary struct {
	Total       int         `json:"total"`
	Failed      int         `json:"failed"`
	Declined    int         `json:"declined"`
	Transitions ActionCount `json:"transitions"`
	Purges      ActionCount `json:"purges"`
	Submissions ActionCount `json:"submissions"`
}
