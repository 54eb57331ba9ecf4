// Package ingest turns candidate rows into ingest request payloads.
package ingest

import (
	"strings"

	"github.com/ooi-datateam/ingestctl/internal/refdes"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// Build converts one row into the canonical ingest request. It performs no I/O and
// returns the same payload for the same row.
func Build(row CandidateRow) (*model.IngestRequest, error) {
	invalid := func(field, reason string) error {
		return &ValidationError{RefDes: row.RefDes, FileMask: row.FileMask, Field: field, Reason: reason}
	}

	if IsCommented(row.ParserDriver) {
		return nil, invalid("parserDriver", "parser is empty or commented out")
	}
	if strings.TrimSpace(row.FileMask) == "" {
		return nil, invalid("fileMask", "file mask is empty")
	}
	rd, err := refdes.Parse(row.RefDes)
	if err != nil {
		return nil, invalid("refDes", err.Error())
	}
	if _, err := model.ParseIngestType(string(row.Type)); err != nil {
		return nil, invalid("type", err.Error())
	}
	if row.BeginFileDate != nil && row.EndFileDate != nil && row.EndFileDate.Before(*row.BeginFileDate) {
		return nil, invalid("endFileDate", "end file date is before begin file date")
	}

	state := row.State
	if state == "" {
		state = model.JobStateRun
	}
	priority := row.Priority
	if priority == 0 {
		priority = DefaultPriority
	}

	req := &model.IngestRequest{
		Username: row.Username,
		State:    state,
		Type:     row.Type,
		Priority: priority,
		FileMasks: []model.IngestFileMask{{
			ParserDriver: strings.TrimSpace(row.ParserDriver),
			FileMask:     strings.TrimSpace(row.FileMask),
			DataSource:   strings.TrimSpace(row.DataSource),
			Deployment:   row.Deployment,
			RefDes:       rd.String(),
			RefDesFinal:  refdes.RefDesFinal(row.WildcardDecoder),
		}},
	}

	var opts model.IngestOptions
	if row.BeginFileDate != nil {
		opts.BeginFileDate = row.BeginFileDate.Format(DateLayout)
	}
	if row.EndFileDate != nil {
		opts.EndFileDate = row.EndFileDate.Format(DateLayout)
	}
	if opts != (model.IngestOptions{}) {
		req.Options = &opts
	}

	return req, nil
}
