// Package sheet loads ingestion sheets (CSV or XLSX) into candidate rows.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ooi-datateam/ingestctl/internal/ingest"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// ErrUnsupportedFormat is returned for files that are neither .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported sheet format")

// column header aliases, lower-cased
var (
	refDesHeaders     = []string{"reference_designator", "refdes"}
	fileMaskHeaders   = []string{"filename_mask", "filemask"}
	dataSourceHeaders = []string{"data_source", "datasource"}
	parserHeaders     = []string{"parser", "parserdriver", "uframe_route"}
	deploymentHeaders = []string{"deployment"}
)

var trailingDigits = regexp.MustCompile(`([0-9]*)$`)

// RowDefaults are the run-scoped fields applied to every row of a sheet.
type RowDefaults struct {
	Username      string
	Type          model.IngestType
	State         model.JobState
	Priority      int
	BeginFileDate *time.Time
	EndFileDate   *time.Time
}

// Load reads one sheet. When defaults.Type is empty it is taken from the file name.
// Rows without a file mask are dropped; commented parser rows are kept for the
// reconciler to screen.
func Load(path string, defaults RowDefaults) ([]ingest.CandidateRow, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: sheet is empty", path)
	}

	if defaults.Type == "" {
		t, ok := TypeFromFilename(path)
		if !ok {
			return nil, fmt.Errorf("%s: cannot tell telemetered from recovered; name must contain D000 or R000, or pass a type", path)
		}
		defaults.Type = t
	}
	if defaults.State == "" {
		defaults.State = model.JobStateRun
	}
	if defaults.Priority == 0 {
		defaults.Priority = ingest.DefaultPriority
	}

	cols, err := mapColumns(records[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	fileDeployment, fileDeploymentErr := DeploymentFromFilename(path)
	logger := slog.Default().With("component", "sheet", "path", path)

	var rows []ingest.CandidateRow
	for i, rec := range records[1:] {
		line := i + 2
		get := func(idx int) string {
			if idx < 0 || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}

		row := ingest.CandidateRow{
			RefDes:        get(cols.refDes),
			ParserDriver:  get(cols.parser),
			FileMask:      get(cols.fileMask),
			DataSource:    get(cols.dataSource),
			Type:          defaults.Type,
			State:         defaults.State,
			Username:      defaults.Username,
			Priority:      defaults.Priority,
			BeginFileDate: defaults.BeginFileDate,
			EndFileDate:   defaults.EndFileDate,
			Source:        fmt.Sprintf("%s:%d", filepath.Base(path), line),
		}
		if row.RefDes == "" && row.FileMask == "" && row.ParserDriver == "" {
			continue
		}
		if row.FileMask == "" {
			logger.Debug("row dropped: no filename mask", "line", line, "ref_des", row.RefDes)
			continue
		}

		if v := get(cols.deployment); v != "" {
			d, err := strconv.Atoi(strings.TrimSuffix(v, ".0"))
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid deployment %q", path, line, v)
			}
			row.Deployment = d
		} else {
			if fileDeploymentErr != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, fileDeploymentErr)
			}
			row.Deployment = fileDeployment
		}
		rows = append(rows, row)
	}

	logger.Info("sheet loaded", "rows", len(rows), "type", defaults.Type)
	return rows, nil
}

// LoadAll loads several sheets in order and concatenates their rows.
func LoadAll(paths []string, defaults RowDefaults) ([]ingest.CandidateRow, error) {
	var all []ingest.CandidateRow
	for _, p := range paths {
		rows, err := Load(p, defaults)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// DeploymentFromFilename returns the trailing digits of the second "_"-separated
// token of the file name: CE01ISSM_D00005_ingest.csv is deployment 5.
func DeploymentFromFilename(path string) (int, error) {
	base := filepath.Base(path)
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return 0, fmt.Errorf("cannot derive deployment from %q: expected <platform>_<deployment>_...", base)
	}
	token := strings.TrimSuffix(parts[1], filepath.Ext(parts[1]))
	digits := trailingDigits.FindString(token)
	if digits == "" {
		return 0, fmt.Errorf("cannot derive deployment from %q: no digits in %q", base, token)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("cannot derive deployment from %q: %w", base, err)
	}
	return n, nil
}

// TypeFromFilename maps D000 to TELEMETERED and R000 to RECOVERED.
func TypeFromFilename(path string) (model.IngestType, bool) {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "D000"):
		return model.IngestTypeTelemetered, true
	case strings.Contains(base, "R000"):
		return model.IngestTypeRecovered, true
	}
	return "", false
}

// SortSheets lists telemetered sheets latest deployment first, then recovered sheets
// in name order, then sheets whose name carries neither D000 nor R000 in the order
// given.
func SortSheets(paths []string) []string {
	var telemetered, recovered, other []string
	for _, p := range paths {
		switch t, _ := TypeFromFilename(p); t {
		case model.IngestTypeTelemetered:
			telemetered = append(telemetered, p)
		case model.IngestTypeRecovered:
			recovered = append(recovered, p)
		default:
			other = append(other, p)
		}
	}
	sort.SliceStable(telemetered, func(i, j int) bool {
		di, _ := DeploymentFromFilename(telemetered[i])
		dj, _ := DeploymentFromFilename(telemetered[j])
		if di != dj {
			return di > dj
		}
		return telemetered[i] < telemetered[j]
	})
	sort.Strings(recovered)
	sorted := append(telemetered, recovered...)
	return append(sorted, other...)
}

// Find walks root for D000/R000 sheets whose path contains any of the filters
// (all when empty).
func Find(root string, filters []string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".csv" && ext != ".xlsx" {
			return nil
		}
		// directory scans only pick up named deployment sheets
		if _, ok := TypeFromFilename(p); !ok {
			return nil
		}
		if len(filters) == 0 {
			found = append(found, p)
			return nil
		}
		for _, f := range filters {
			if f != "" && strings.Contains(strings.ToUpper(p), strings.ToUpper(f)) {
				found = append(found, p)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return SortSheets(found), nil
}

type columns struct {
	refDes, fileMask, dataSource, parser, deployment int
}

func mapColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := idx[a]; ok {
				return i
			}
		}
		return -1
	}
	c := columns{
		refDes:     find(refDesHeaders),
		fileMask:   find(fileMaskHeaders),
		dataSource: find(dataSourceHeaders),
		parser:     find(parserHeaders),
		deployment: find(deploymentHeaders),
	}
	var missing []string
	if c.refDes < 0 {
		missing = append(missing, "reference_designator")
	}
	if c.fileMask < 0 {
		missing = append(missing, "filename_mask")
	}
	if c.parser < 0 {
		missing = append(missing, "parser")
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("missing column(s): %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func readRecords(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sheet: %w", err)
		}
		defer f.Close()
		return readCSV(f)
	case ".xlsx":
		return readXLSX(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return records, nil
}

// readXLSX reads the first worksheet.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	return rows, nil
}
