package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ooi-datateam/ingestctl/internal/lifecycle"
	"github.com/ooi-datateam/ingestctl/internal/logx"
	"github.com/ooi-datateam/ingestctl/internal/model"
	"github.com/ooi-datateam/ingestctl/internal/reconcile"
	"github.com/ooi-datateam/ingestctl/internal/store"
)

const (
	drainedMessage  = "not attempted: run interrupted"
	declinedMessage = "declined at review"
)

// RunRecorder persists the audit trail of a run. *store.RunStore implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *store.RunRecord) error
	AddItem(ctx context.Context, item *store.RunItemRecord) error
	FinishRun(ctx context.Context, id string, f store.RunFinish) error
}

// RunService executes reconciliation plans against the job queue.
type RunService struct {
	queue       JobQueue
	driver      *Driver
	recorder    RunRecorder
	drain       *lifecycle.DrainManager
	concurrency int
}

// RunServiceOption configures a RunService.
type RunServiceOption func(*RunService)

// WithRecorder records every run and its report rows.
func WithRecorder(r RunRecorder) RunServiceOption {
	return func(s *RunService) {
		s.recorder = r
	}
}

// WithDrainManager lets the caller stop a run between actions.
func WithDrainManager(m *lifecycle.DrainManager) RunServiceOption {
	return func(s *RunService) {
		s.drain = m
	}
}

// WithConcurrency sets how many designator groups run at once. Values below 1 mean 1.
func WithConcurrency(n int) RunServiceOption {
	return func(s *RunService) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

func NewRunService(queue JobQueue, opts ...RunServiceOption) *RunService {
	s := &RunService{
		queue:       queue,
		driver:      NewDriver(queue),
		drain:       lifecycle.NewDrainManager(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the driver used for single actions.
func (s *RunService) Driver() *Driver {
	return s.driver
}

// LoadIndex lists every ingest request and indexes its file masks. Any error is
// fatal to the run.
func (s *RunService) LoadIndex(ctx context.Context) (*reconcile.Index, error) {
	records, err := s.queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest requests: %w", err)
	}
	ix := reconcile.NewIndex(reconcile.FlattenRecords(records))
	logx.LoggerWithRunID(ctx).Info("active job index built", "requests", len(records), "file_masks", ix.Len(), "ref_des", ix.RefDesCount())
	return ix, nil
}

// RunInfo describes a run for the history record.
type RunInfo struct {
	ID            string
	Trigger       string
	CandidateRows int
	ReportPath    string
}

// RunResult is the outcome of Execute.
type RunResult struct {
	Run    model.IngestRun
	Report *model.Report
}

// Execute runs every group of plan. Groups run through a bounded errgroup; actions
// inside a group always run in order. Once draining starts, actions not yet begun
// are recorded as not attempted.
func (s *RunService) Execute(ctx context.Context, plan *reconcile.Plan, info RunInfo) (*RunResult, error) {
	if info.ID == "" {
		info.ID = logx.NewRunID()
	}
	ctx = logx.WithRunID(ctx, info.ID)
	logger := logx.LoggerWithRunID(ctx).With("component", "run")

	run := model.IngestRun{
		ID:            info.ID,
		TriggerType:   info.Trigger,
		StartedAt:     time.Now().UTC(),
		CandidateRows: info.CandidateRows,
		ExcludedCount: len(plan.Excluded),
		SkippedCount:  len(plan.Skipped),
		Status:        model.RunStatusRunning,
		ReportPath:    info.ReportPath,
	}
	if s.recorder != nil {
		if err := s.recorder.CreateRun(ctx, &store.RunRecord{
			ID:            run.ID,
			TriggerType:   run.TriggerType,
			StartedAt:     run.StartedAt,
			CandidateRows: run.CandidateRows,
			ExcludedCount: run.ExcludedCount,
			SkippedCount:  run.SkippedCount,
			Status:        run.Status,
		}); err != nil {
			return nil, err
		}
	}

	report := model.NewReport(info.ID)
	logger.Info("run started", "groups", len(plan.Groups), "actions", len(plan.Actions()), "concurrency", s.concurrency)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, group := range plan.Groups {
		group := group
		g.Go(func() error {
			s.executeGroup(ctx, group, report)
			return nil
		})
	}
	_ = g.Wait()

	summary := report.Summary()
	run.ActionCount = summary.Total
	run.FailedCount = summary.Failed
	run.Status = model.RunStatusCompleted
	if s.drain.IsDraining() {
		run.Status = model.RunStatusInterrupted
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	if s.recorder != nil {
		s.record(ctx, run, report)
	}

	logger.Info("run finished",
		"status", run.Status,
		"actions", summary.Total,
		"failed", summary.Failed,
		"submitted", summary.Submissions.Succeeded,
		"duration_ms", finished.Sub(run.StartedAt).Milliseconds(),
	)
	return &RunResult{Run: run, Report: report}, nil
}

func (s *RunService) executeGroup(ctx context.Context, group *reconcile.Group, report *model.Report) {
	release := s.drain.TrackGroup()
	defer release()

	logger := logx.LoggerWithRunID(ctx).With("component", "run", "ref_des", group.RefDes)
	drained := false
	for _, action := range group.Actions {
		if s.drain.IsDraining() {
			drained = true
			report.Append(s.driver.Skip(action, drainedMessage))
			continue
		}
		row := s.driver.Execute(ctx, action)
		report.Append(row)
		logger.Info("action executed", "action", action.String(), "status", row.HTTPStatus, "succeeded", row.Succeeded)
	}
	if drained {
		logger.Warn("group interrupted", "state", group.State.String())
		return
	}
	if err := group.Advance(reconcile.StateSubmitted); err != nil {
		logger.Warn("group state not advanced", "error", err)
	}
}

// record writes the history. Failures are logged; the report file is the primary output.
func (s *RunService) record(ctx context.Context, run model.IngestRun, report *model.Report) {
	logger := logx.LoggerWithRunID(ctx).With("component", "history")
	for _, row := range report.Rows() {
		item := &store.RunItemRecord{
			RunID:      run.ID,
			RefDes:     row.RefDes,
			ActionKind: row.ActionKind,
			HTTPStatus: row.HTTPStatus,
			RemoteID:   row.RemoteID,
			Message:    row.Message,
			Succeeded:  row.Succeeded,
			Deployment: row.Deployment,
			IngestType: row.Type,
			Priority:   row.Priority,
			JobID:      row.JobID,
			FileMask:   row.FileMask,
			ErrorKind:  row.ErrorKind,
			CreatedAt:  row.At,
		}
		if err := s.recorder.AddItem(ctx, item); err != nil {
			logger.Warn("failed to record run item", "error", err)
		}
	}
	if err := s.recorder.FinishRun(ctx, run.ID, store.RunFinish{
		Status:      run.Status,
		ActionCount: run.ActionCount,
		FailedCount: run.FailedCount,
		ReportPath:  run.ReportPath,
		FinishedAt:  *run.FinishedAt,
	}); err != nil {
		logger.Warn("failed to finish run record", "error", err)
	}
}
