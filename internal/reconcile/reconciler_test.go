package reconcile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ooi-datateam/ingestctl/internal/ingest"
	"github.com/ooi-datateam/ingestctl/internal/refdes"
	"github.com/ooi-datateam/ingestctl/pkg/model"
)

func row(rd, parser, mask string) ingest.CandidateRow {
	return ingest.CandidateRow{
		RefDes:       rd,
		ParserDriver: parser,
		FileMask:     mask,
		DataSource:   "telemetered_host",
		Deployment:   5,
		Type:         model.IngestTypeTelemetered,
		State:        model.JobStateRun,
		Username:     "datateam",
		Priority:     3,
	}
}

func sampleRows() []ingest.CandidateRow {
	return []ingest.CandidateRow{
		row("GA03FLMA-RIM01-02-CTDMOG000", "ctdmo_ghqr_sio_mule", "*.dat"),
		row("CE01ISSM-MFD35-04-ADCPTM000", "mi.dataset.driver.adcpt_m", "adcpt/*.DAT"),
		row("CE01ISSM-MFD35-04-ADCPTM000", "mi.dataset.driver.adcpt_m_log9", "adcpt/*.LOG"),
		row("CE02SHBP-LJ01D-06-CTDBPN106", "mi.dataset.driver.ctdbp", "*.bin"),
		row("CE01ISSM-RID16-03-CTDBPC000", "#mi.dataset.driver.ctdbp_cdef", "ctdbp/*.log"),
		row("CE01ISSM-RID16-03-CTDBPC000", "", "ctdbp/*.txt"),
	}
}

func TestScreenDropsCommentedAndExcluded(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	s := r.Screen(sampleRows())

	if len(s.Candidates) != 3 {
		t.Fatalf("len(Candidates) = %d, want 3", len(s.Candidates))
	}
	if !reflect.DeepEqual(s.Excluded, []string{"CE02SHBP-LJ01D-06-CTDBPN106"}) {
		t.Fatalf("Excluded = %v", s.Excluded)
	}
	if len(s.Skipped) != 2 {
		t.Fatalf("len(Skipped) = %d, want 2", len(s.Skipped))
	}
	if !s.Candidates[0].WildcardDecoder || s.Candidates[1].WildcardDecoder {
		t.Fatalf("wildcard flag not applied: %+v", s.Candidates)
	}
}

func TestPlanExcludedDesignatorProducesNoActions(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	rows := []ingest.CandidateRow{row("CE02SHBP-LJ01D-06-CTDBPN106", "mi.dataset.driver.ctdbp", "*.bin")}
	plan := r.Plan(r.Screen(rows), NewIndex(nil), Decisions{Default: DispositionCancel, Purge: true})
	if len(plan.Actions()) != 0 {
		t.Fatalf("expected zero actions, got %v", plan.Actions())
	}
	if len(plan.Excluded) != 1 {
		t.Fatalf("Excluded = %v", plan.Excluded)
	}
}

func TestPlanSubmitCountMatchesCandidates(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	ix := NewIndex(FlattenRecords([]model.IngestRequestRecord{
		record(10, model.JobStateRun, model.IngestTypeTelemetered, adcpt),
	}))
	for _, d := range []Decisions{
		{Default: DispositionPersist},
		{Default: DispositionCancel},
		{Default: DispositionSuspend, Purge: true},
	} {
		plan := r.Plan(r.Screen(sampleRows()), ix, d)
		if got := plan.Count(ActionSubmit); got != 3 {
			t.Fatalf("decisions %+v: submit count = %d, want 3", d, got)
		}
	}
}

func TestPlanCancelOrdersTransitionBeforeSubmits(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	ix := NewIndex(FlattenRecords([]model.IngestRequestRecord{
		record(10, model.JobStateRun, model.IngestTypeTelemetered, adcpt),
	}))
	plan := r.Plan(r.Screen(sampleRows()), ix, Decisions{Default: DispositionCancel})

	var group *Group
	for _, g := range plan.Groups {
		if g.RefDes == adcpt.String() {
			group = g
		}
	}
	if group == nil {
		t.Fatalf("no group for %s", adcpt.String())
	}
	if len(group.Actions) != 3 {
		t.Fatalf("len(Actions) = %d, want 3", len(group.Actions))
	}
	first := group.Actions[0]
	if first.Kind != ActionTransition || first.JobID != 10 || first.TargetState != model.JobStateCancel {
		t.Fatalf("unexpected first action: %+v", first)
	}
	for _, a := range group.Actions[1:] {
		if a.Kind != ActionSubmit || a.Payload == nil || a.BuildErr != nil {
			t.Fatalf("unexpected follow-up action: %+v", a)
		}
	}
	if len(group.Recurring) != 1 || group.State != StateResolved {
		t.Fatalf("unexpected group state: %+v", group)
	}
}

func TestPlanPersistMatchesRunWithoutRecurringJobs(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	s := r.Screen(sampleRows())
	withJobs := NewIndex(FlattenRecords([]model.IngestRequestRecord{
		record(10, model.JobStateRun, model.IngestTypeTelemetered, adcpt),
		record(11, model.JobStateRun, model.IngestTypeTelemetered, ctdmo),
	}))

	persisted := r.Plan(s, withJobs, Decisions{Default: DispositionPersist})
	empty := r.Plan(s, NewIndex(nil), Decisions{Default: DispositionCancel})

	if !reflect.DeepEqual(submitPayloads(persisted), submitPayloads(empty)) {
		t.Fatalf("persist plan differs from plan without recurring jobs")
	}
	if persisted.Count(ActionTransition) != 0 {
		t.Fatalf("persist must not transition jobs")
	}
}

func TestPlanPurgeCoversEveryCandidateDesignator(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	plan := r.Plan(r.Screen(sampleRows()), NewIndex(nil), Decisions{Purge: true})
	if got := plan.Count(ActionPurge); got != 2 {
		t.Fatalf("purge count = %d, want 2", got)
	}
	for _, g := range plan.Groups {
		if g.Actions[0].Kind != ActionPurge {
			t.Fatalf("group %s should start with purge: %+v", g.RefDes, g.Actions[0])
		}
		if g.Actions[0].Purge.Subsite == "" {
			t.Fatalf("purge body not filled: %+v", g.Actions[0])
		}
	}
}

func TestPlanPerRefDesDecisionOverridesDefault(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	ix := NewIndex(FlattenRecords([]model.IngestRequestRecord{
		record(10, model.JobStateRun, model.IngestTypeTelemetered, adcpt),
		record(11, model.JobStateRun, model.IngestTypeTelemetered, ctdmo),
	}))
	plan := r.Plan(r.Screen(sampleRows()), ix, Decisions{
		Default:   DispositionPersist,
		PerRefDes: map[string]Disposition{ctdmo.String(): DispositionSuspend},
	})
	if plan.Count(ActionTransition) != 1 {
		t.Fatalf("transition count = %d, want 1", plan.Count(ActionTransition))
	}
	for _, a := range plan.Actions() {
		if a.Kind == ActionTransition && (a.JobID != 11 || a.TargetState != model.JobStateSuspend) {
			t.Fatalf("unexpected transition: %+v", a)
		}
	}
}

func TestPlanTransitionsSharedJobOnce(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	ix := NewIndex(FlattenRecords([]model.IngestRequestRecord{
		record(20, model.JobStateRun, model.IngestTypeTelemetered, adcpt, adcpt, ctdmo),
	}))
	plan := r.Plan(r.Screen(sampleRows()), ix, Decisions{Default: DispositionCancel})
	if got := plan.Count(ActionTransition); got != 1 {
		t.Fatalf("transition count = %d, want 1", got)
	}
}

func TestPlanCarriesBuildErrors(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	rows := []ingest.CandidateRow{row("CE01ISSM", "mi.dataset.driver.adcpt_m", "*.DAT")}
	plan := r.Plan(r.Screen(rows), NewIndex(nil), Decisions{Purge: true})
	actions := plan.Actions()
	if len(actions) != 2 {
		t.Fatalf("len(actions) = %d, want 2", len(actions))
	}
	for _, a := range actions {
		if a.BuildErr == nil {
			t.Fatalf("expected build error on %+v", a)
		}
	}
	if !errors.Is(actions[1].BuildErr, ingest.ErrValidation) {
		t.Fatalf("submit error should be a validation error: %v", actions[1].BuildErr)
	}
}

func TestPlanKeepsLoadOrderForConflictingRows(t *testing.T) {
	r := New(refdes.DefaultClassifier())
	first := row("CE01ISSM-MFD35-04-ADCPTM000", "mi.dataset.driver.adcpt_m", "adcpt/*.DAT")
	second := first
	second.Deployment = 6
	plan := r.Plan(r.Screen([]ingest.CandidateRow{first, second}), NewIndex(nil), Decisions{})
	actions := plan.Actions()
	if len(actions) != 2 || actions[0].Row.Deployment != 5 || actions[1].Row.Deployment != 6 {
		t.Fatalf("unexpected submit order: %+v", actions)
	}
}

func TestGroupAdvanceOnlyMovesForward(t *testing.T) {
	g := &Group{RefDes: "X-Y-Z"}
	if err := g.Advance(StateMatchedRecurring); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := g.Advance(StateSubmitted); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := g.Advance(StateResolved); err == nil {
		t.Fatalf("expected error moving backwards")
	}
	if err := g.Advance(StateSubmitted); err == nil {
		t.Fatalf("expected error re-entering the same state")
	}
}

func TestParseDisposition(t *testing.T) {
	cases := map[string]Disposition{"": DispositionPersist, "Persist": DispositionPersist, "CANCEL": DispositionCancel, " suspend ": DispositionSuspend}
	for in, want := range cases {
		got, err := ParseDisposition(in)
		if err != nil || got != want {
			t.Fatalf("ParseDisposition(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDisposition("delete"); err == nil {
		t.Fatalf("expected error for unknown disposition")
	}
	if _, ok := DispositionPersist.TargetState(); ok {
		t.Fatalf("persist must not have a target state")
	}
}

func submitPayloads(p *Plan) []*model.IngestRequest {
	var out []*model.IngestRequest
	for _, a := range p.Actions() {
		if a.Kind == ActionSubmit {
			out = append(out, a.Payload)
		}
	}
	return out
}
