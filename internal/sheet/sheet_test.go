package sheet

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

const ingestCSV = `parser,filename_mask,reference_designator,data_source
mi.dataset.driver.adcpt_m,/omc_data/whoi/OMC/CE01ISSM/D00005/adcpt/*.DAT,CE01ISSM-MFD35-04-ADCPTM000,telemetered_host
#mi.dataset.driver.ctdbp_cdef,/omc_data/whoi/OMC/CE01ISSM/D00005/ctdbp/*.log,CE01ISSM-RID16-03-CTDBPC000,telemetered_host
mi.dataset.driver.presf,,CE01ISSM-MFD35-02-PRESFA000,telemetered_host

`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "CE01ISSM_D00005_ingest.csv", ingestCSV)
	begin := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	rows, err := Load(path, RowDefaults{Username: "datateam", BeginFileDate: &begin})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (row without mask dropped)", len(rows))
	}
	r := rows[0]
	if r.RefDes != "CE01ISSM-MFD35-04-ADCPTM000" || r.ParserDriver != "mi.dataset.driver.adcpt_m" || r.DataSource != "telemetered_host" {
		t.Fatalf("unexpected row: %+v", r)
	}
	if r.Deployment != 5 || r.Type != model.IngestTypeTelemetered || r.State != model.JobStateRun || r.Priority != 3 {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	if r.Username != "datateam" || r.BeginFileDate == nil || !r.BeginFileDate.Equal(begin) {
		t.Fatalf("run-scoped fields not applied: %+v", r)
	}
	if r.Source != "CE01ISSM_D00005_ingest.csv:2" {
		t.Fatalf("Source = %q", r.Source)
	}
	if rows[1].ParserDriver != "#mi.dataset.driver.ctdbp_cdef" {
		t.Fatalf("commented row should be kept for screening: %+v", rows[1])
	}
}

func TestLoadDeploymentColumnOverridesFilename(t *testing.T) {
	content := "reference_designator,filename_mask,data_source,parser,deployment\nCE01ISSM-MFD35-04-ADCPTM000,*.DAT,recovered_host,mi.dataset.driver.adcpt_m,7\n"
	path := writeFile(t, t.TempDir(), "CE01ISSM_R00005_ingest.csv", content)
	rows, err := Load(path, RowDefaults{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rows[0].Deployment != 7 || rows[0].Type != model.IngestTypeRecovered {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(writeFile(t, dir, "CE01ISSM_D00005.csv", "a,b\n1,2\n"), RowDefaults{}); err == nil {
		t.Fatalf("expected missing column error")
	}
	if _, err := Load(writeFile(t, dir, "notes.csv", ingestCSV), RowDefaults{}); err == nil {
		t.Fatalf("expected type detection error")
	}
	if _, err := Load(writeFile(t, dir, "CE01ISSM_D00005.txt", ingestCSV), RowDefaults{}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := Load(writeFile(t, dir, "CE01ISSM-D0000X.csv", ingestCSV), RowDefaults{Type: model.IngestTypeRecovered}); err == nil {
		t.Fatalf("expected deployment error")
	}
	if _, err := Load(filepath.Join(dir, "missing_D00001.csv"), RowDefaults{}); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	data := [][]string{
		{"parser", "filename_mask", "reference_designator", "data_source"},
		{"mi.dataset.driver.ctdmo_ghqr_sio", "/omc_data/GA03FLMA/D00003/*.ctdmo.dat", "GA03FLMA-RIM01-02-CTDMOG000", "recovered_host"},
	}
	for r, row := range data {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				t.Fatalf("failed to set cell: %v", err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "GA03FLMA_R00003_ingest.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}

	rows, err := Load(path, RowDefaults{Username: "datateam"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Deployment != 3 || rows[0].Type != model.IngestTypeRecovered || rows[0].RefDes != "GA03FLMA-RIM01-02-CTDMOG000" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDeploymentFromFilename(t *testing.T) {
	tests := []struct {
		path    string
		want    int
		wantErr bool
	}{
		{path: "CE01ISSM_D00005_ingest.csv", want: 5},
		{path: "/data/with_underscore/GP03FLMA_R00012.csv", want: 12},
		{path: "CE01ISSM_D00005.xlsx", want: 5},
		{path: "CE01ISSM.csv", wantErr: true},
		{path: "CE01ISSM_DX_ingest.csv", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DeploymentFromFilename(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("DeploymentFromFilename(%q) error = nil", tt.path)
			}
			continue
		}
		if err != nil {
			t.Fatalf("DeploymentFromFilename(%q) error = %v", tt.path, err)
		}
		if got != tt.want {
			t.Fatalf("DeploymentFromFilename(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestSortSheets(t *testing.T) {
	in := []string{
		"CE01ISSM_R00002.csv",
		"CE01ISSM_D00003.csv",
		"CE01ISSM_ingest_recovered.csv",
		"CE01ISSM_R00001.csv",
		"CE01ISSM_D00005.csv",
		"extra.xlsx",
	}
	want := []string{
		"CE01ISSM_D00005.csv",
		"CE01ISSM_D00003.csv",
		"CE01ISSM_R00001.csv",
		"CE01ISSM_R00002.csv",
		"CE01ISSM_ingest_recovered.csv",
		"extra.xlsx",
	}
	if got := SortSheets(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("SortSheets() = %v, want %v", got, want)
	}
}

func TestSortSheetsOrdersByDeploymentAcrossDirectories(t *testing.T) {
	in := []string{
		"z/CE01ISSM_D00002.csv",
		"a/CE01ISSM_D00007.csv",
		"m/CE01ISSM_D00004.csv",
	}
	want := []string{
		"a/CE01ISSM_D00007.csv",
		"m/CE01ISSM_D00004.csv",
		"z/CE01ISSM_D00002.csv",
	}
	if got := SortSheets(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("SortSheets() = %v, want %v", got, want)
	}
}

func TestFindFiltersByPlatform(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"CE01ISSM", "GA03FLMA"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}
	writeFile(t, filepath.Join(root, "CE01ISSM"), "CE01ISSM_D00005_ingest.csv", ingestCSV)
	writeFile(t, filepath.Join(root, "CE01ISSM"), "notes.txt", "x")
	writeFile(t, filepath.Join(root, "CE01ISSM"), "CE01ISSM_summary.csv", ingestCSV)
	writeFile(t, filepath.Join(root, "GA03FLMA"), "GA03FLMA_R00003_ingest.csv", ingestCSV)

	got, err := Find(root, []string{"ce01"})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "CE01ISSM_D00005_ingest.csv" {
		t.Fatalf("Find() = %v", got)
	}
}
