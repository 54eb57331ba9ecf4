package m2m

import (
	"context"
	"net/http"
	"strconv"
)

// IngestService handles ingest request operations.
type IngestService struct {
	client *Client
}

// List retrieves every ingest request known to the system.
func (s *IngestService) List(ctx context.Context) ([]IngestRequestRecord, error) {
	var result []IngestRequestRecord
	if err := s.client.doJSON(ctx, http.MethodGet, ingestRequestPath, nil, &result, nil); err != nil {
		return nil, err
	}
	if result == nil {
		result = []IngestRequestRecord{}
	}
	return result, nil
}

// Get retrieves a single ingest request by ID.
func (s *IngestService) Get(ctx context.Context, id int64) (*IngestRequestRecord, error) {
	var result IngestRequestRecord
	if err := s.client.doJSON(ctx, http.MethodGet, ingestRequestPath+strconv.FormatInt(id, 10), nil, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit creates a new ingest request.
func (s *IngestService) Submit(ctx context.Context, req *IngestRequest) (*APIResponse, error) {
	return s.client.doWrite(ctx, http.MethodPost, ingestRequestPath, req)
}

// ChangeState moves an ingest request to the given state (RUN, SUSPEND, CANCEL).
func (s *IngestService) ChangeState(ctx context.Context, id int64, state JobState) (*APIResponse, error) {
	req := &StateChangeRequest{ID: id, State: state}
	return s.client.doWrite(ctx, http.MethodPut, ingestRequestPath+strconv.FormatInt(id, 10), req)
}

// Purge deletes the historical ingestion records of one reference designator.
func (s *IngestService) Purge(ctx context.Context, req PurgeRequest) (*APIResponse, error) {
	return s.client.doWrite(ctx, http.MethodPut, ingestRequestPath+"purgerecords", &req)
}

// JobCounts returns the number of files per status for one ingest request.
func (s *IngestService) JobCounts(ctx context.Context, id int64) (JobCounts, error) {
	queryParams := map[string]string{
		"ingestRequestId": strconv.FormatInt(id, 10),
		"groupBy":         "status",
	}
	result := JobCounts{}
	if err := s.client.doJSON(ctx, http.MethodGet, ingestRequestPath+"jobcounts", nil, &result, queryParams); err != nil {
		return nil, err
	}
	return result, nil
}
