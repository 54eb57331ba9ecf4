package m2mstub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ooi-datateam/ingestctl/pkg/model"
)

func newTestServer(t *testing.T, opts Options) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	s, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s, s.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body error: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func validRequest() model.IngestRequest {
	return model.IngestRequest{
		Username: "ooi-ingest",
		State:    model.JobStateRun,
		Type:     model.IngestTypeRecovered,
		Priority: 3,
		FileMasks: []model.IngestFileMask{{
			ParserDriver: "mi.dataset.driver.ctdbp_cdef.ctdbp_cdef_recovered_driver",
			FileMask:     "/omc_data/whoi/OMC/CE01ISSM/R00001/ctdbp/*.hex",
			DataSource:   "recovered_host",
			Deployment:   1,
			RefDes:       "CE01ISSM-MFD37-03-CTDBPC000",
			RefDesFinal:  "false",
		}},
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	_, h := newTestServer(t, Options{Credentials: map[string]string{"OOIAPI-KEY": "secret"}})
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	_, h := newTestServer(t, Options{Credentials: map[string]string{"OOIAPI-KEY": "secret"}})

	w := doJSON(t, h, http.MethodGet, IngestRequestPath+"/", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without credentials, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, IngestRequestPath+"/", nil)
	req.SetBasicAuth("OOIAPI-KEY", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, IngestRequestPath+"/", nil)
	req.SetBasicAuth("OOIAPI-KEY", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 with valid credentials, got %d", w.Code)
	}
}

func TestCreateListAndChangeState(t *testing.T) {
	s, h := newTestServer(t, Options{})

	w := doJSON(t, h, http.MethodPost, IngestRequestPath+"/", validRequest())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created model.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response error: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected id 1, got %d", created.ID)
	}

	w = doJSON(t, h, http.MethodGet, IngestRequestPath+"/", nil)
	var listed []model.IngestRequestRecord
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list response error: %v", err)
	}
	if len(listed) != 1 || listed[0].FileMasks[0].RefDes.Sensor != "03-CTDBPC000" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	w = doJSON(t, h, http.MethodPut, IngestRequestPath+"/1", model.StateChangeRequest{ID: 1, State: model.JobStateCancel})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := s.Requests()[0].State; got != model.JobStateCancel {
		t.Fatalf("expected state CANCEL, got %s", got)
	}

	w = doJSON(t, h, http.MethodPut, IngestRequestPath+"/99", model.StateChangeRequest{ID: 99, State: model.JobStateCancel})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown id, got %d", w.Code)
	}
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	_, h := newTestServer(t, Options{})

	req := validRequest()
	req.FileMasks[0].RefDesFinal = "maybe"
	w := doJSON(t, h, http.MethodPost, IngestRequestPath+"/", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	req = validRequest()
	req.FileMasks = nil
	w = doJSON(t, h, http.MethodPost, IngestRequestPath+"/", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty masks, got %d", w.Code)
	}
}

func TestPurgeAndJobCounts(t *testing.T) {
	s, h := newTestServer(t, Options{Seed: []model.IngestRequestRecord{{ID: 7, State: model.JobStateRun}}})

	w := doJSON(t, h, http.MethodPut, IngestRequestPath+"/purgerecords", model.PurgeRequest{Subsite: "CE01ISSM", Node: "MFD37", Sensor: "03-CTDBPC000"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if purges := s.Purges(); len(purges) != 1 || purges[0].Node != "MFD37" {
		t.Fatalf("unexpected purges: %+v", purges)
	}

	s.SetJobCounts(7, model.JobCounts{"COMPLETE": 4, "ERROR": 1})
	w = doJSON(t, h, http.MethodGet, IngestRequestPath+"/jobcounts?ingestRequestId=7&groupBy=status", nil)
	var counts model.JobCounts
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode jobcounts error: %v", err)
	}
	if counts["COMPLETE"] != 4 || counts["ERROR"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	w = doJSON(t, h, http.MethodGet, IngestRequestPath+"/jobcounts?ingestRequestId=8", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestFaultInjection(t *testing.T) {
	srv, h := newTestServer(t, Options{})
	srv.InjectFault(Fault{Method: http.MethodPost, Status: http.StatusInternalServerError, Message: "parser driver not found", Times: 1})

	w := doJSON(t, h, http.MethodPost, IngestRequestPath+"/", validRequest())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "parser driver not found" {
		t.Fatalf("unexpected message: %v", body)
	}

	w = doJSON(t, h, http.MethodPost, IngestRequestPath+"/", validRequest())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected fault to expire after one request, got %d", w.Code)
	}
}

func TestAnnotationCreateAndUpdate(t *testing.T) {
	s, h := newTestServer(t, Options{})
	subsite := "CE01ISSM"
	rec := model.AnnotationRecord{Class: model.AnnotationClass, Subsite: &subsite, BeginDT: 1000, Annotation: "bad data"}

	w := doJSON(t, h, http.MethodPost, AnnotationPath+"/", rec)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPut, AnnotationPath+"/42", rec)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown annotation, got %d", w.Code)
	}

	s.SeedAnnotation(42)
	rec.Annotation = "revised"
	w = doJSON(t, h, http.MethodPut, AnnotationPath+"/42", rec)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	got, ok := s.Annotation(42)
	if !ok || got.Annotation != "revised" {
		t.Fatalf("unexpected annotation: %+v", got)
	}

	end := int64(10)
	rec.EndDT = &end
	w = doJSON(t, h, http.MethodPost, AnnotationPath+"/", rec)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for end before begin, got %d", w.Code)
	}
}
