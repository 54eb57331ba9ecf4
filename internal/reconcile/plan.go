package reconcile

import (
	"fmt"
	"strings"

	"github.com/ooi-datateam/ingestctl/internal/ingest"
	"github.com/ooi-datateam/ingestctl/internal/refdes"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

// Disposition is what happens to recurring jobs found for a designator.
type Disposition string

const (
	DispositionPersist Disposition = "persist"
	DispositionCancel  Disposition = "cancel"
	DispositionSuspend Disposition = "suspend"
)

// ParseDisposition accepts persist, cancel or suspend in any case. Empty means persist.
func ParseDisposition(s string) (Disposition, error) {
	switch d := Disposition(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DispositionPersist:
		return DispositionPersist, nil
	case DispositionCancel, DispositionSuspend:
		return d, nil
	}
	return "", fmt.Errorf("unknown disposition %q (want persist, cancel or suspend)", s)
}

// TargetState is the job state a disposition transitions to; ok is false for persist.
func (d Disposition) TargetState() (model.JobState, bool) {
	switch d {
	case DispositionCancel:
		return model.JobStateCancel, true
	case DispositionSuspend:
		return model.JobStateSuspend, true
	}
	return "", false
}

// Decisions are the operator choices fed into Plan.
type Decisions struct {
	// Default applies to every designator without an entry in PerRefDes.
	Default   Disposition
	PerRefDes map[string]Disposition
	// Purge removes historical records for every candidate designator before submitting.
	Purge bool
}

// For returns the disposition that applies to refDes.
func (d Decisions) For(refDes string) Disposition {
	if disp, ok := d.PerRefDes[refDes]; ok && disp != "" {
		return disp
	}
	if d.Default == "" {
		return DispositionPersist
	}
	return d.Default
}

// ActionKind names the outward call an Action makes.
type ActionKind string

const (
	ActionTransition ActionKind = "transition"
	ActionPurge      ActionKind = "purge"
	ActionSubmit     ActionKind = "submit"
)

// Action is one planned outward call. Exactly one of the kind-specific field sets is used.
type Action struct {
	Kind   ActionKind
	RefDes string

	// transition
	JobID       int64
	TargetState model.JobState

	// purge
	Purge model.PurgeRequest

	// submit
	Row     *ingest.CandidateRow
	Payload *model.IngestRequest

	// BuildErr is set when the request body could not be formed; the driver
	// records it without calling the remote system.
	BuildErr error

	// Declined marks a submission the operator turned down at review.
	Declined bool
}

// String renders a short operator-facing description.
func (a Action) String() string {
	switch a.Kind {
	case ActionTransition:
		return fmt.Sprintf("%s job %d -> %s (%s)", a.Kind, a.JobID, a.TargetState, a.RefDes)
	case ActionPurge:
		return fmt.Sprintf("%s %s", a.Kind, a.RefDes)
	case ActionSubmit:
		if a.Row != nil {
			return fmt.Sprintf("%s %s %s deployment %d", a.Kind, a.RefDes, a.Row.FileMask, a.Row.Deployment)
		}
	}
	return fmt.Sprintf("%s %s", a.Kind, a.RefDes)
}

// GroupState tracks one designator through a run. States only move forward.
type GroupState int

const (
	StateNew GroupState = iota
	StateMatchedRecurring
	StateResolved
	StateSubmitted
)

func (s GroupState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateMatchedRecurring:
		return "MATCHED_RECURRING"
	case StateResolved:
		return "RESOLVED"
	case StateSubmitted:
		return "SUBMITTED"
	}
	return fmt.Sprintf("GroupState(%d)", int(s))
}

// Group is the unit of independent work: every action for one designator, in order
// (transitions, purge, submissions).
type Group struct {
	RefDes      string
	State       GroupState
	Recurring   []ActiveJob
	Disposition Disposition
	Actions     []Action
}

// Advance moves the group to next. Moving backwards or staying put is an error.
func (g *Group) Advance(next GroupState) error {
	if next <= g.State {
		return fmt.Errorf("refdes %s: cannot move from %s to %s", g.RefDes, g.State, next)
	}
	g.State = next
	return nil
}

// SkippedRow is a row dropped before planning because its parser is empty or commented out.
type SkippedRow struct {
	Row    ingest.CandidateRow
	Reason string
}

// Screening is the result of Screen.
type Screening struct {
	Candidates []ingest.CandidateRow
	Excluded   []string
	Skipped    []SkippedRow
}

// Plan is the ordered action list of a run.
type Plan struct {
	Groups    []*Group
	Excluded  []string
	Skipped   []SkippedRow
	Decisions Decisions
}

// Actions flattens every group's actions in execution order.
func (p *Plan) Actions() []Action {
	var out []Action
	for _, g := range p.Groups {
		out = append(out, g.Actions...)
	}
	return out
}

// Count returns the number of planned actions of the given kind.
func (p *Plan) Count(kind ActionKind) int {
	n := 0
	for _, g := range p.Groups {
		for _, a := range g.Actions {
			if a.Kind == kind {
				n++
			}
		}
	}
	return n
}

func purgeRequestFor(refDes string) (model.PurgeRequest, error) {
	rd, err := refdes.Parse(refDes)
	if err != nil {
		return model.PurgeRequest{}, err
	}
	return rd.PurgeRequest(), nil
}
