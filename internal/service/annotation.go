package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/ooi-datateam/ingestctl/internal/annotation"
	"github.com/ooi-datateam/ingestctl/pkg/m2m"
	pkgmodel "github.com/ooi-datateam/ingestctl/pkg/model"
)

// AnnotationWriter is the subset of the M2M annotation API the pusher needs.
type AnnotationWriter interface {
	Create(ctx context.Context, rec *pkgmodel.AnnotationRecord) (*pkgmodel.APIResponse, error)
	Update(ctx context.Context, id int64, rec *pkgmodel.AnnotationRecord) (*pkgmodel.APIResponse, error)
}

// AnnotationService pushes annotation rows one at a time.
type AnnotationService struct {
	writer        AnnotationWriter
	defaultSource string
}

func NewAnnotationService(writer AnnotationWriter, defaultSource string) *AnnotationService {
	return &AnnotationService{writer: writer, defaultSource: defaultSource}
}

// Push creates or updates each row and returns one result per row, in order.
// A row that fails to build is reported without calling the remote system.
func (s *AnnotationService) Push(ctx context.Context, rows []annotation.Row) []annotation.Result {
	logger := slog.Default().With("component", "annotations")
	results := make([]annotation.Result, 0, len(rows))
	for _, row := range rows {
		res := annotation.Result{Row: row}
		req, err := annotation.Build(row, s.defaultSource)
		if err != nil {
			res.Message = err.Error()
			logger.Warn("annotation row rejected", "line", row.Line, "error", err)
			results = append(results, res)
			continue
		}

		var resp *pkgmodel.APIResponse
		if req.UpdateID > 0 {
			resp, err = s.writer.Update(ctx, req.UpdateID, req.Record)
		} else {
			resp, err = s.writer.Create(ctx, req.Record)
		}
		if err != nil {
			var apiErr *m2m.APIError
			if errors.As(err, &apiErr) {
				res.StatusCode = apiErr.StatusCode
				res.Message = apiErr.Message
			} else {
				res.Message = ErrTransportFailure.Error() + ": " + err.Error()
			}
			logger.Warn("annotation push failed", "line", row.Line, "status", res.StatusCode, "message", res.Message)
			results = append(results, res)
			continue
		}

		res.Succeeded = true
		res.StatusCode = resp.HTTPStatus
		res.Message = resp.Message
		switch {
		case resp.ID != 0:
			res.ID = strconv.FormatInt(resp.ID, 10)
		case req.UpdateID > 0:
			res.ID = strconv.FormatInt(req.UpdateID, 10)
		}
		logger.Info("annotation pushed", "line", row.Line, "status", res.StatusCode, "id", res.ID)
		results = append(results, res)
	}
	return results
}
