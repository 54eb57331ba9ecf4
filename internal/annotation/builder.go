package annotation

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// ErrInvalidRow matches every row that cannot be turned into a record.
var ErrInvalidRow = errors.New("invalid annotation row")

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Request is a built record plus the id to update; UpdateID 0 means create.
type Request struct {
	UpdateID int64
	Record   *model.AnnotationRecord
}

// Build converts row into a request. defaultSource fills an empty source column.
func Build(row Row, defaultSource string) (*Request, error) {
	updateID, err := parseID(row.ID)
	if err != nil {
		return nil, rowErr(row, err)
	}
	if row.Subsite == "" {
		return nil, rowErr(row, errors.New("subsite is required"))
	}
	if strings.TrimSpace(row.Annotation) == "" {
		return nil, rowErr(row, errors.New("annotation text is required"))
	}

	begin, err := parseDate(row.BeginDate)
	if err != nil {
		return nil, rowErr(row, fmt.Errorf("beginDate: %w", err))
	}
	if begin == nil {
		return nil, rowErr(row, errors.New("beginDate is required"))
	}
	end, err := parseDate(row.EndDate)
	if err != nil {
		return nil, rowErr(row, fmt.Errorf("endDate: %w", err))
	}

	rec := &model.AnnotationRecord{
		Class:      model.AnnotationClass,
		Subsite:    nullable(row.Subsite),
		Node:       nullable(row.Node),
		Sensor:     nullable(row.Sensor),
		Stream:     nullable(row.Stream),
		Method:     nullable(row.Method),
		BeginDT:    begin.UnixMilli(),
		Annotation: row.Annotation,
	}
	if end != nil {
		if end.Before(*begin) {
			return nil, rowErr(row, fmt.Errorf("beginDate (%s) is after endDate (%s)", row.BeginDate, row.EndDate))
		}
		ms := end.UnixMilli()
		rec.EndDT = &ms
	}

	if rec.Parameters, err = parseParameters(row.Parameters); err != nil {
		return nil, rowErr(row, err)
	}
	if rec.ExclusionFlag, err = parseFlag(row.ExclusionFlag); err != nil {
		return nil, rowErr(row, err)
	}
	if !slices.Contains(model.QCFlags, row.QCFlag) {
		return nil, rowErr(row, fmt.Errorf("invalid qcFlag: %s", row.QCFlag))
	}
	rec.QCFlag = nullable(row.QCFlag)

	source := row.Source
	if source == "" {
		source = defaultSource
	}
	rec.Source = nullable(source)

	if updateID > 0 {
		rec.ID = &updateID
	}
	return &Request{UpdateID: updateID, Record: rec}, nil
}

// parseID returns 0 for a blank or zero id, which means create.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// spreadsheets often round-trip integer ids as "123.0"
	s = strings.TrimSuffix(s, ".0")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("id must be a positive integer, got %q", s)
	}
	return id, nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

// parseParameters accepts "", "[]", "[1, 2]" or "1,2".
func parseParameters(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	params := []int{}
	if strings.TrimSpace(s) == "" {
		return params, nil
	}
	for _, part := range strings.Split(s, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid parameter id %q", strings.TrimSpace(part))
		}
		params = append(params, p)
	}
	return params, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "n":
		return false, nil
	case "1", "true", "t", "yes", "y":
		return true, nil
	}
	return false, fmt.Errorf("invalid exclusionFlag: %s", s)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rowErr(row Row, err error) error {
	return fmt.Errorf("%w: line %d: %v", ErrInvalidRow, row.Line, err)
}
