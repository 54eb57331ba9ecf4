package service

import (
	"context"
	"errors"

	"github.com/ooi-datateam/ingestctl/internal/model"
	"github.com/ooi-datateam/ingestctl/internal/store"
)

// ErrRunNotFound is returned by HistoryService.Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// HistoryReader reads recorded runs. *store.RunStore implements it.
type HistoryReader interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetRun(ctx context.Context, id string) (*store.RunRecord, error)
	ListItems(ctx context.Context, runID string) ([]store.RunItemRecord, error)
}

// HistoryService serves the run audit trail.
type HistoryService struct {
	reader HistoryReader
}

func NewHistoryService(reader HistoryReader) *HistoryService {
	return &HistoryService{reader: reader}
}

// List returns the most recent runs, newest first.
func (s *HistoryService) List(ctx context.Context, limit int) (*model.IngestRunListResponse, error) {
	records, err := s.reader.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]model.IngestRun, 0, len(records))
	for _, r := range records {
		items = append(items, toModelRun(r))
	}
	return &model.IngestRunListResponse{Items: items}, nil
}

// Get returns one run with its report rows.
func (s *HistoryService) Get(ctx context.Context, id string) (*model.IngestRunDetailResponse, error) {
	rec, err := s.reader.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRunNotFound
	}
	items, err := s.reader.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	rows := make([]model.ReportRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, model.ReportRow{
			RefDes:     it.RefDes,
			ActionKind: it.ActionKind,
			HTTPStatus: it.HTTPStatus,
			RemoteID:   it.RemoteID,
			Message:    it.Message,
			Succeeded:  it.Succeeded,
			Deployment: it.Deployment,
			Type:       it.IngestType,
			Priority:   it.Priority,
			JobID:      it.JobID,
			FileMask:   it.FileMask,
			ErrorKind:  it.ErrorKind,
			At:         it.CreatedAt,
		})
	}
	return &model.IngestRunDetailResponse{Run: toModelRun(*rec), Items: rows}, nil
}

func toModelRun(r store.RunRecord) model.IngestRun {
	return model.IngestRun{
		ID:            r.ID,
		TriggerType:   r.TriggerType,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		CandidateRows: r.CandidateRows,
		ExcludedCount: r.ExcludedCount,
		SkippedCount:  r.SkippedCount,
		ActionCount:   r.ActionCount,
		FailedCount:   r.FailedCount,
		Status:        r.Status,
		Error:         r.Error,
		ReportPath:    r.ReportPath,
	}
}
