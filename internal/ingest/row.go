package ingest

import (
	"strings"
	"time"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// DateLayout is the format of beginFileDate/endFileDate.
const DateLayout = "2006-01-02"

// DefaultPriority matches the priority the data team uses for sheet ingests.
const DefaultPriority = 3

// CandidateRow is one requested ingestion unit: one sheet line plus run-scoped fields.
type CandidateRow struct {
	RefDes        string
	ParserDriver  string
	FileMask      string
	DataSource    string
	Deployment    int
	Type          model.IngestType
	State         model.JobState
	Username      string
	Priority      int
	BeginFileDate *time.Time
	EndFileDate   *time.Time

	// WildcardDecoder is filled in from the classifier before building.
	WildcardDecoder bool

	// Source is "<file>:<line>" for operator-facing messages.
	Source string
}

// IsCommented reports whether a parser column disables its row: empty, or starting with '#'.
func IsCommented(parserDriver string) bool {
	p := strings.TrimSpace(parserDriver)
	return p == "" || strings.HasPrefix(p, "#")
}

// ParseDate parses a yyyy-mm-dd date flag. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, &ValidationError{Field: "fileDate", Reason: "date must be in the form yyyy-mm-dd, got " + s}
	}
	return &t, nil
}
