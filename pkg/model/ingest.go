package model

import (
	"fmt"
	"strings"
	"time"
)

// IngestType is the delivery method of the data an ingest request pulls in.
type IngestType string

const (
	IngestTypeTelemetered IngestType = "TELEMETERED"
	IngestTypeRecovered   IngestType = "RECOVERED"
)

// ParseIngestType accepts the type in any case ("telemetered", "RECOVERED").
func ParseIngestType(s string) (IngestType, error) {
	switch IngestType(strings.ToUpper(strings.TrimSpace(s))) {
	case IngestTypeTelemetered:
		return IngestTypeTelemetered, nil
	case IngestTypeRecovered:
		return IngestTypeRecovered, nil
	}
	return "", fmt.Errorf("unknown ingest type %q (want telemetered or recovered)", s)
}

// JobState is the lifecycle state of an ingest request on the remote system.
type JobState string

const (
	JobStateRun     JobState = "RUN"
	JobStateSuspend JobState = "SUSPEND"
	JobStateCancel  JobState = "CANCEL"
)

// ParseJobState accepts the state in any case.
func ParseJobState(s string) (JobState, error) {
	switch JobState(strings.ToUpper(strings.TrimSpace(s))) {
	case JobStateRun:
		return JobStateRun, nil
	case JobStateSuspend:
		return JobStateSuspend, nil
	case JobStateCancel:
		return JobStateCancel, nil
	}
	return "", fmt.Errorf("unknown job state %q (want run, suspend or cancel)", s)
}

// IngestFileMask is one file mask entry of an ingest request submission.
type IngestFileMask struct {
	ParserDriver string `json:"parserDriver"`
	FileMask     string `json:"fileMask"`
	DataSource   string `json:"dataSource"`
	Deployment   int    `json:"deployment"`
	RefDes       string `json:"refDes"`
	RefDesFinal  string `json:"refDesFinal"`
}

// IngestOptions restricts which files an ingest request picks up.
type IngestOptions struct {
	BeginFileDate string `json:"beginFileDate,omitempty"`
	EndFileDate   string `json:"endFileDate,omitempty"`
}

// IngestRequest is the body of POST ingestrequest/.
// Options is nil unless at least one date bound is set.
type IngestRequest struct {
	Username  string           `json:"username"`
	State     JobState         `json:"state"`
	Type      IngestType       `json:"type"`
	Priority  int              `json:"priority"`
	FileMasks []IngestFileMask `json:"ingestRequestFileMasks"`
	Options   *IngestOptions   `json:"options,omitempty"`
}

// RefDesParts is the object form of a reference designator used in listings.
type RefDesParts struct {
	Subsite string `json:"subsite"`
	Node    string `json:"node"`
	Sensor  string `json:"sensor"`
}

// String joins the parts with dashes.
func (r RefDesParts) String() string {
	return r.Subsite + "-" + r.Node + "-" + r.Sensor
}

// FileMaskRecord is a file mask entry as returned by the listing endpoint.
type FileMaskRecord struct {
	ParserDriver string      `json:"parserDriver"`
	FileMask     string      `json:"fileMask"`
	DataSource   string      `json:"dataSource"`
	Deployment   int         `json:"deployment"`
	RefDes       RefDesParts `json:"refDes"`
}

// IngestRequestRecord is an ingest request known to the remote system.
// EntryDate and ModifiedDate are epoch milliseconds.
type IngestRequestRecord struct {
	ID           int64            `json:"id"`
	Username     string           `json:"username"`
	State        JobState         `json:"state"`
	Status       string           `json:"status"`
	Type         IngestType       `json:"type"`
	Priority     int              `json:"priority"`
	EntryDate    int64            `json:"entryDate"`
	ModifiedDate int64            `json:"modifiedDate"`
	FileMasks    []FileMaskRecord `json:"ingestRequestFileMasks"`
}

// EntryTime converts EntryDate to a UTC time.
func (r IngestRequestRecord) EntryTime() time.Time {
	return time.UnixMilli(r.EntryDate).UTC()
}

// ModifiedTime converts ModifiedDate to a UTC time.
func (r IngestRequestRecord) ModifiedTime() time.Time {
	return time.UnixMilli(r.ModifiedDate).UTC()
}

// StateChangeRequest is the body of PUT ingestrequest/{id}.
type StateChangeRequest struct {
	ID    int64    `json:"id"`
	State JobState `json:"state"`
}

// PurgeRequest is the body of PUT ingestrequest/purgerecords.
type PurgeRequest struct {
	Subsite string `json:"subsite"`
	Node    string `json:"node"`
	Sensor  string `json:"sensor"`
}

// APIResponse is the common body of M2M write responses.
type APIResponse struct {
	ID         int64  `json:"id,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode string `json:"statusCode,omitempty"`

	// HTTPStatus is the status line code, filled in by the client.
	HTTPStatus int `json:"-"`
}

// JobCounts maps a file status (e.g. "COMPLETE", "ERROR") to the number of files in it.
type JobCounts map[string]int
