package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ooi-datateam/ingestctl/internal/model"
)

const reportSheet = "report"

// ReportFileName is the default report name for a run started at stamp (yyyymmdd_hhmmss).
func ReportFileName(stamp, runID string) string {
	return fmt.Sprintf("%s_%s_ingest_report.csv", stamp, runID)
}

// WriteReport writes one line per report row under model.ReportColumns. The format
// follows the extension: .xlsx writes a workbook, anything else CSV.
func WriteReport(path string, rows []model.ReportRow) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeReportXLSX(path, rows)
	}
	return writeReportCSV(path, rows)
}

func reportValues(r model.ReportRow) []string {
	values := []string{
		r.RefDes,
		r.ActionKind,
		strconv.Itoa(r.HTTPStatus),
		r.RemoteID,
		r.Message,
		strconv.FormatBool(r.Succeeded),
		"",
		r.Type,
		"",
	}
	if r.Deployment != 0 {
		values[6] = strconv.Itoa(r.Deployment)
	}
	if r.Priority != 0 {
		values[8] = strconv.Itoa(r.Priority)
	}
	return values
}

func writeReportCSV(path string, rows []model.ReportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(model.ReportColumns); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(reportValues(r)); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return f.Close()
}

func writeReportXLSX(path string, rows []model.ReportRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), reportSheet); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}
	if err := setRow(f, 1, model.ReportColumns); err != nil {
		return err
	}
	for i, r := range rows {
		if err := setRow(f, i+2, reportValues(r)); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(reportSheet, cell, &vals); err != nil {
		return fmt.Errorf("failed to write report row %d: %w", row, err)
	}
	return nil
}
