package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

func baseRow() CandidateRow {
	return CandidateRow{
		RefDes:       "CE01ISSM-MFD35-04-ADCPTM000",
		ParserDriver: "mi.dataset.driver.adcpt_m.adcpt_m_wvs_recovered_driver",
		FileMask:     "/omc_data/whoi/OMC/CE01ISSM/D00005/cg_data/dcl35/adcpt/*.DAT",
		DataSource:   "recovered_host",
		Deployment:   5,
		Type:         model.IngestTypeRecovered,
		State:        model.JobStateRun,
		Username:     "datateam",
		Priority:     3,
	}
}

func mustDate(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func TestBuildWildcardDesignator(t *testing.T) {
	row := baseRow()
	row.RefDes = "GA03FLMA-RIM01-02-CTDMOG000"
	row.ParserDriver = "ctdmo_ghqr_sio_mule"
	row.FileMask = "*.dat"
	row.WildcardDecoder = true

	req, err := Build(row)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(req.FileMasks) != 1 {
		t.Fatalf("expected exactly one file mask, got %d", len(req.FileMasks))
	}
	fm := req.FileMasks[0]
	if fm.RefDesFinal != "false" {
		t.Fatalf("refDesFinal = %q, want false", fm.RefDesFinal)
	}
	if fm.RefDes != "GA03FLMA-RIM01-02-CTDMOG000" || fm.Deployment != 5 || fm.FileMask != "*.dat" {
		t.Fatalf("unexpected file mask: %+v", fm)
	}
}

func TestBuildDefaultDesignatorIsFinal(t *testing.T) {
	req, err := Build(baseRow())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.FileMasks[0].RefDesFinal != "true" {
		t.Fatalf("refDesFinal = %q, want true", req.FileMasks[0].RefDesFinal)
	}
	if req.Username != "datateam" || req.State != model.JobStateRun || req.Type != model.IngestTypeRecovered || req.Priority != 3 {
		t.Fatalf("unexpected request header fields: %+v", req)
	}
}

func TestBuildOmitsOptionsWithoutDates(t *testing.T) {
	req, err := Build(baseRow())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Options != nil {
		t.Fatalf("expected nil options, got %+v", req.Options)
	}
	body, _ := json.Marshal(req)
	if strings.Contains(string(body), "options") {
		t.Fatalf("options key must be absent: %s", body)
	}
}

func TestBuildOptionsCarryOnlySetBounds(t *testing.T) {
	row := baseRow()
	row.BeginFileDate = mustDate(t, "2019-06-01")
	req, err := Build(row)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	body, _ := json.Marshal(req)
	if !strings.Contains(string(body), `"options":{"beginFileDate":"2019-06-01"}`) {
		t.Fatalf("unexpected options encoding: %s", body)
	}

	row.BeginFileDate = nil
	row.EndFileDate = mustDate(t, "2020-01-31")
	req, err = Build(row)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	body, _ = json.Marshal(req)
	if !strings.Contains(string(body), `"options":{"endFileDate":"2020-01-31"}`) {
		t.Fatalf("unexpected options encoding: %s", body)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	row := baseRow()
	row.BeginFileDate = mustDate(t, "2019-06-01")
	row.EndFileDate = mustDate(t, "2019-12-01")

	first, err := Build(row)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := Build(row)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("payloads differ:\n%s\n%s", a, b)
	}
}

func TestBuildRejectsInvalidRows(t *testing.T) {
	cases := map[string]func(*CandidateRow){
		"empty parser":     func(r *CandidateRow) { r.ParserDriver = "" },
		"commented parser": func(r *CandidateRow) { r.ParserDriver = "#mi.dataset.driver.ctdbp" },
		"blank parser":     func(r *CandidateRow) { r.ParserDriver = "   " },
		"empty mask":       func(r *CandidateRow) { r.FileMask = "" },
		"bad refdes":       func(r *CandidateRow) { r.RefDes = "CE01ISSM" },
		"bad type":         func(r *CandidateRow) { r.Type = "STREAMED" },
		"dates reversed": func(r *CandidateRow) {
			r.BeginFileDate = mustDate(t, "2020-01-02")
			r.EndFileDate = mustDate(t, "2020-01-01")
		},
	}
	for name, mutate := range cases {
		row := baseRow()
		mutate(&row)
		req, err := Build(row)
		if err == nil {
			t.Fatalf("%s: expected error, got payload %+v", name, req)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: error %v does not match ErrValidation", name, err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected *ValidationError, got %T", name, err)
		}
	}
}

func TestBuildDefaultsStateAndPriority(t *testing.T) {
	row := baseRow()
	row.State = ""
	row.Priority = 0
	req, err := Build(row)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.State != model.JobStateRun || req.Priority != DefaultPriority {
		t.Fatalf("defaults not applied: state=%s priority=%d", req.State, req.Priority)
	}
}

func TestIsCommented(t *testing.T) {
	cases := map[string]bool{
		"":                      true,
		"  ":                    true,
		"#mi.dataset.driver":    true,
		" # disabled":           true,
		"mi.dataset.driver":     false,
		"ctdmo_ghqr_sio_mule":   false,
		"mi.dataset.driver#tag": false,
	}
	for in, want := range cases {
		if got := IsCommented(in); got != want {
			t.Fatalf("IsCommented(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	if d, err := ParseDate(""); err != nil || d != nil {
		t.Fatalf("ParseDate(\"\") = %v, %v", d, err)
	}
	if _, err := ParseDate("2019/06/01"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
