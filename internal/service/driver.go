package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ooi-datateam/ingestctl/internal/ingest"
	"github.com/ooi-datateam/ingestctl/internal/model"
	"github.com/ooi-datateam/ingestctl/internal/reconcile"
	"github.com/ooi-datateam/ingestctl/pkg/m2m"
	pkgmodel "github.com/ooi-datateam/ingestctl/pkg/model"
)

var (
	// ErrRemoteRejected marks a call the remote system answered outside 2xx.
	ErrRemoteRejected = errors.New("remote rejected")
	// ErrTransportFailure marks a call that never produced an HTTP response.
	ErrTransportFailure = errors.New("transport failure")
)

// JobQueue is the subset of the M2M ingest API a run needs.
type JobQueue interface {
	List(ctx context.Context) ([]pkgmodel.IngestRequestRecord, error)
	Submit(ctx context.Context, req *pkgmodel.IngestRequest) (*pkgmodel.APIResponse, error)
	ChangeState(ctx context.Context, id int64, state pkgmodel.JobState) (*pkgmodel.APIResponse, error)
	Purge(ctx context.Context, req pkgmodel.PurgeRequest) (*pkgmodel.APIResponse, error)
}

// Driver performs planned actions against the job queue, one call per action.
type Driver struct {
	queue JobQueue
	now   func() time.Time
}

func NewDriver(queue JobQueue) *Driver {
	return &Driver{queue: queue, now: time.Now}
}

// Execute performs action and reports its outcome. Failures become report rows;
// Execute never returns an error and never retries.
func (d *Driver) Execute(ctx context.Context, action reconcile.Action) model.ReportRow {
	row := d.baseRow(action)
	logger := slog.Default().With("component", "driver", "action", string(action.Kind), "ref_des", action.RefDes)

	if action.Declined {
		row.ErrorKind = model.ErrorKindDeclined
		row.Message = declinedMessage
		logger.Info("request declined at review")
		return row
	}
	if action.BuildErr != nil {
		row.ErrorKind = model.ErrorKindValidation
		row.Message = action.BuildErr.Error()
		logger.Warn("request not sent", "error", action.BuildErr)
		return row
	}

	var (
		resp *pkgmodel.APIResponse
		err  error
	)
	switch action.Kind {
	case reconcile.ActionTransition:
		resp, err = d.queue.ChangeState(ctx, action.JobID, action.TargetState)
	case reconcile.ActionPurge:
		resp, err = d.queue.Purge(ctx, action.Purge)
	case reconcile.ActionSubmit:
		if action.Payload == nil {
			row.ErrorKind = model.ErrorKindValidation
			row.Message = "no request payload"
			return row
		}
		resp, err = d.queue.Submit(ctx, action.Payload)
	default:
		row.ErrorKind = model.ErrorKindValidation
		row.Message = fmt.Sprintf("unknown action kind %q", action.Kind)
		return row
	}

	if err != nil {
		fillFailure(&row, err)
		logger.Warn("action failed", "status", row.HTTPStatus, "error_kind", row.ErrorKind, "message", row.Message)
		return row
	}

	row.Succeeded = true
	row.HTTPStatus = resp.HTTPStatus
	row.Message = resp.Message
	if resp.ID != 0 {
		row.RemoteID = strconv.FormatInt(resp.ID, 10)
	} else if action.Kind == reconcile.ActionTransition {
		row.RemoteID = strconv.FormatInt(action.JobID, 10)
	}
	logger.Debug("action succeeded", "status", row.HTTPStatus, "remote_id", row.RemoteID)
	return row
}

// Skip records an action that was not attempted because the run is draining.
func (d *Driver) Skip(action reconcile.Action, reason string) model.ReportRow {
	row := d.baseRow(action)
	row.ErrorKind = model.ErrorKindSkipped
	row.Message = reason
	return row
}

func (d *Driver) baseRow(action reconcile.Action) model.ReportRow {
	row := model.ReportRow{
		RefDes:     action.RefDes,
		ActionKind: string(action.Kind),
		At:         d.now().UTC(),
	}
	switch action.Kind {
	case reconcile.ActionTransition:
		row.JobID = action.JobID
		row.Message = string(action.TargetState)
	case reconcile.ActionSubmit:
		if action.Row != nil {
			fillFromRow(&row, action.Row)
		}
	}
	return row
}

func fillFromRow(row *model.ReportRow, r *ingest.CandidateRow) {
	row.Deployment = r.Deployment
	row.Type = string(r.Type)
	row.Priority = r.Priority
	if row.Priority == 0 {
		row.Priority = ingest.DefaultPriority
	}
	row.FileMask = r.FileMask
}

// fillFailure maps a client error onto the report row. An *m2m.APIError carries the
// remote status; anything else never reached the server.
func fillFailure(row *model.ReportRow, err error) {
	var apiErr *m2m.APIError
	if errors.As(err, &apiErr) {
		row.HTTPStatus = apiErr.StatusCode
		row.Message = apiErr.Message
		row.ErrorKind = model.ErrorKindRemote
		return
	}
	row.HTTPStatus = 0
	row.Message = fmt.Sprintf("%v: %v", ErrTransportFailure, err)
	row.ErrorKind = model.ErrorKindTransport
}

// RowError converts a failed report row back into an error matching the taxonomy
// sentinels. It returns nil for successful rows.
func RowError(row model.ReportRow) error {
	if row.Succeeded {
		return nil
	}
	switch row.ErrorKind {
	case model.ErrorKindValidation:
		return fmt.Errorf("%w: %s", ingest.ErrValidation, row.Message)
	case model.ErrorKindRemote:
		return fmt.Errorf("%w (HTTP %d): %s", ErrRemoteRejected, row.HTTPStatus, row.Message)
	case model.ErrorKindTransport:
		return fmt.Errorf("%w: %s", ErrTransportFailure, strings.TrimPrefix(row.Message, ErrTransportFailure.Error()+": "))
	}
	return errors.New(row.Message)
}
