// Package annotation turns annotation CSV rows into M2M annotation records.
package annotation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Columns is the header written back to the run CSV, in order.
var Columns = []string{"id", "subsite", "node", "sensor", "stream", "method", "parameters", "beginDate", "endDate", "exclusionFlag", "qcFlag", "source", "annotation"}

// Row is one raw CSV line. Values are kept verbatim so they can be written back.
type Row struct {
	Line          int
	ID            string
	Subsite       string
	Node          string
	Sensor        string
	Stream        string
	Method        string
	Parameters    string
	BeginDate     string
	EndDate       string
	ExclusionFlag string
	QCFlag        string
	Source        string
	Annotation    string
}

func (r Row) values() []string {
	return []string{r.ID, r.Subsite, r.Node, r.Sensor, r.Stream, r.Method, r.Parameters, r.BeginDate, r.EndDate, r.ExclusionFlag, r.QCFlag, r.Source, r.Annotation}
}

// Load reads an annotation CSV. Columns are matched by header name; subsite, beginDate
// and annotation are required.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation csv: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses annotation rows from r.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("annotation csv is empty")
		}
		return nil, fmt.Errorf("failed to read annotation header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"subsite", "begindate", "annotation"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("annotation csv is missing column %q", required)
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		get := func(name string) string {
			i, ok := idx[strings.ToLower(name)]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		row := Row{
			Line:          line,
			ID:            get("id"),
			Subsite:       get("subsite"),
			Node:          get("node"),
			Sensor:        get("sensor"),
			Stream:        get("stream"),
			Method:        get("method"),
			Parameters:    get("parameters"),
			BeginDate:     get("beginDate"),
			EndDate:       get("endDate"),
			ExclusionFlag: get("exclusionFlag"),
			QCFlag:        get("qcFlag"),
			Source:        get("source"),
			Annotation:    get("annotation"),
		}
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(r Row) bool {
	for _, v := range r.values() {
		if v != "" {
			return false
		}
	}
	return true
}

// RunPath is where the results of pushing path are written: "<base>_run.csv".
func RunPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_run.csv"
}
