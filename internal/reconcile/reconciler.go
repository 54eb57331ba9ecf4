// Package reconcile matches candidate ingest rows against the jobs already active on
// the remote system and produces the ordered actions of a run.
package reconcile

import (
	"sort"

	"github.com/ooi-datateam/ingestctl/internal/ingest"
	"github.com/ooi-datateam/ingestctl/internal/refdes"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// Reconciler plans a run. It never calls the remote system and never prompts.
type Reconciler struct {
	classifier    *refdes.Classifier
	recurringType model.IngestType
}

// New creates a reconciler that treats RUN jobs of type TELEMETERED as recurring.
func New(classifier *refdes.Classifier) *Reconciler {
	if classifier == nil {
		classifier = refdes.DefaultClassifier()
	}
	return &Reconciler{classifier: classifier, recurringType: model.IngestTypeTelemetered}
}

// Screen drops commented rows and excluded designators and marks wildcard rows.
// Candidates keep their load order.
func (r *Reconciler) Screen(rows []ingest.CandidateRow) Screening {
	var s Screening
	excluded := make(map[string]struct{})
	for _, row := range rows {
		if ingest.IsCommented(row.ParserDriver) {
			s.Skipped = append(s.Skipped, SkippedRow{Row: row, Reason: "parser is empty or commented out"})
			continue
		}
		c := r.classifier.Classify(row.RefDes)
		if c.Excluded {
			excluded[row.RefDes] = struct{}{}
			continue
		}
		row.WildcardDecoder = c.WildcardDecoder
		s.Candidates = append(s.Candidates, row)
	}
	s.Excluded = sortedKeys(excluded)
	return s
}

// Recurring returns, per candidate designator, the recurring jobs found in the index.
// Designators without recurring jobs are absent from the map.
func (r *Reconciler) Recurring(s Screening, ix *Index) map[string][]ActiveJob {
	out := make(map[string][]ActiveJob)
	for _, rd := range uniqueRefDes(s.Candidates) {
		if jobs := dedupeJobs(ix.RecurringFor(rd, r.recurringType)); len(jobs) > 0 {
			out[rd] = jobs
		}
	}
	return out
}

// Plan builds one group per candidate designator, in sorted order. Every candidate row
// becomes exactly one submit action, whatever the transitions and purges planned before it.
func (r *Reconciler) Plan(s Screening, ix *Index, d Decisions) *Plan {
	plan := &Plan{
		Excluded:  s.Excluded,
		Skipped:   s.Skipped,
		Decisions: d,
	}

	rowsByRefDes := make(map[string][]ingest.CandidateRow)
	for _, row := range s.Candidates {
		rowsByRefDes[row.RefDes] = append(rowsByRefDes[row.RefDes], row)
	}

	claimed := make(map[int64]struct{})
	for _, rd := range uniqueRefDes(s.Candidates) {
		g := &Group{RefDes: rd, State: StateNew, Disposition: d.For(rd)}

		for _, job := range dedupeJobs(ix.RecurringFor(rd, r.recurringType)) {
			if _, ok := claimed[job.JobID]; ok {
				continue
			}
			g.Recurring = append(g.Recurring, job)
		}
		if len(g.Recurring) > 0 {
			g.State = StateMatchedRecurring
		}

		if target, ok := g.Disposition.TargetState(); ok {
			for _, job := range g.Recurring {
				claimed[job.JobID] = struct{}{}
				g.Actions = append(g.Actions, Action{
					Kind:        ActionTransition,
					RefDes:      rd,
					JobID:       job.JobID,
					TargetState: target,
				})
			}
		}

		if d.Purge {
			purge, err := purgeRequestFor(rd)
			g.Actions = append(g.Actions, Action{Kind: ActionPurge, RefDes: rd, Purge: purge, BuildErr: err})
		}

		for _, row := range rowsByRefDes[rd] {
			row := row
			payload, err := ingest.Build(row)
			g.Actions = append(g.Actions, Action{
				Kind:     ActionSubmit,
				RefDes:   rd,
				Row:      &row,
				Payload:  payload,
				BuildErr: err,
			})
		}

		_ = g.Advance(StateResolved)
		plan.Groups = append(plan.Groups, g)
	}

	return plan
}

func uniqueRefDes(rows []ingest.CandidateRow) []string {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.RefDes] = struct{}{}
	}
	return sortedKeys(seen)
}

// dedupeJobs keeps the first entry per job id; a request with two masks for the
// same designator is still one job to transition.
func dedupeJobs(jobs []ActiveJob) []ActiveJob {
	seen := make(map[int64]struct{}, len(jobs))
	out := jobs[:0:0]
	for _, job := range jobs {
		if _, ok := seen[job.JobID]; ok {
			continue
		}
		seen[job.JobID] = struct{}{}
		out = append(out, job)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
