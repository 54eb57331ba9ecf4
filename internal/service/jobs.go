package service

import (
	"strings"

	"github.com/ooi-datateam/ingestctl/internal/reconcile"
	pkgmodel "github.com/ooi-datateam/ingestctl/pkg/model"
)

// JobFilter narrows a job listing. Empty fields match everything; RefDes matches by prefix.
type JobFilter struct {
	RefDes string
	State  pkgmodel.JobState
	Type   pkgmodel.IngestType
}

// FilterJobs flattens records into file-mask jobs and keeps those matching f, in listing order.
func FilterJobs(records []pkgmodel.IngestRequestRecord, f JobFilter) []reconcile.ActiveJob {
	jobs := reconcile.FlattenRecords(records)
	out := make([]reconcile.ActiveJob, 0, len(jobs))
	for _, j := range jobs {
		if f.RefDes != "" && !strings.HasPrefix(j.RefDes, strings.ToUpper(f.RefDes)) {
			continue
		}
		if f.State != "" && j.State != f.State {
			continue
		}
		if f.Type != "" && j.Type != f.Type {
			continue
		}
		out = append(out, j)
	}
	return out
}

// TransitionActions plans a state change for each job id, outside any sheet run.
func TransitionActions(ids []int64, state pkgmodel.JobState) []reconcile.Action {
	actions := make([]reconcile.Action, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, reconcile.Action{Kind: reconcile.ActionTransition, JobID: id, TargetState: state})
	}
	return actions
}
