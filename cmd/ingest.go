package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ooi-datateam/ingestctl/internal/ingest"
	"github.com/ooi-datateam/ingestctl/internal/lifecycle"
	"github.com/ooi-datateam/ingestctl/internal/logx"
	"github.com/ooi-datateam/ingestctl/internal/model"
	"github.com/ooi-datateam/ingestctl/internal/output"
	"github.com/ooi-datateam/ingestctl/internal/reconcile"
	"github.com/ooi-datateam/ingestctl/internal/service"
	"github.com/ooi-datateam/ingestctl/internal/sheet"
	"github.com/ooi-datateam/ingestctl/internal/store"
	pkgmodel "github.com/ooi-datateam/ingestctl/pkg/model"
)

const recurringAsk = "ask"

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Reconcile ingestion sheets and submit ingest requests",
}

var (
	ingestDir         string
	ingestFilters     []string
	ingestType        string
	ingestUsername    string
	ingestPriority    int
	ingestBeginDate   string
	ingestEndDate     string
	ingestRecurring   string
	ingestPurge       bool
	ingestReview      bool
	ingestDryRun      bool
	ingestReport      string
	ingestConcurrency int
	ingestNoHistory   bool
)

var ingestRunCmd = &cobra.Command{
	Use:   "run [sheet...]",
	Short: "Run one reconciliation pass over ingestion sheets",
	Long: `Load ingestion sheets, compare them with the ingest jobs already known to M2M,
resolve recurring jobs, then purge and submit.

Recurring jobs (state RUN, same type) for a designator are kept, cancelled or
suspended before the new requests are submitted. With --recurring ask the choice
is made per designator at the terminal; without a terminal it falls back to persist.`,
	Example: `  # Submit two telemetered sheets, cancelling recurring jobs
  ingestctl ingest run CE01ISSM_D00005_ingest.csv CE01ISSM_D00006_ingest.csv --recurring cancel

  # Find recovered sheets for a platform and only show the plan
  ingestctl ingest run --dir ./ingestion_csvs --filter CE02SHSM --type recovered --dry-run

  # Restrict the file dates and purge before submitting
  ingestctl ingest run GA03FLMA_D00004_ingest.xlsx --begin-date 2019-01-01 --purge`,
	RunE: runIngest,
}

var ingestRecurringCmd = &cobra.Command{
	Use:   "recurring [sheet...]",
	Short: "List recurring jobs for the designators of ingestion sheets",
	RunE:  runIngestRecurring,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	for _, c := range []*cobra.Command{ingestRunCmd, ingestRecurringCmd} {
		c.Flags().StringVar(&ingestDir, "dir", "", "Directory to search for sheets")
		c.Flags().StringSliceVar(&ingestFilters, "filter", nil, "Only sheets whose path contains one of these strings (with --dir)")
		c.Flags().StringVar(&ingestType, "type", "", "Ingest type: telemetered or recovered (default: from the file name)")
		c.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	}

	ingestRunCmd.Flags().StringVar(&ingestUsername, "username", "", "Username written into ingest requests (default: netrc account)")
	ingestRunCmd.Flags().IntVar(&ingestPriority, "priority", ingest.DefaultPriority, "Ingest request priority")
	ingestRunCmd.Flags().StringVar(&ingestBeginDate, "begin-date", "", "Only ingest files dated on or after yyyy-mm-dd")
	ingestRunCmd.Flags().StringVar(&ingestEndDate, "end-date", "", "Only ingest files dated on or before yyyy-mm-dd")
	ingestRunCmd.Flags().StringVar(&ingestRecurring, "recurring", recurringAsk, "Recurring job handling: ask, persist, cancel, suspend")
	ingestRunCmd.Flags().BoolVar(&ingestPurge, "purge", false, "Purge existing records of every designator before submitting")
	ingestRunCmd.Flags().BoolVar(&ingestReview, "review", false, "Confirm each ingest request before it is sent")
	ingestRunCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Print the plan without calling M2M write endpoints")
	ingestRunCmd.Flags().StringVar(&ingestReport, "report", "", "Report path, .csv or .xlsx (default: <timestamp>_<run>_ingest_report.csv)")
	ingestRunCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "Designator groups processed at once (default from config, 1)")
	ingestRunCmd.Flags().BoolVar(&ingestNoHistory, "no-history", false, "Do not record the run in the history database")
	viper.BindPFlag("concurrency", ingestRunCmd.Flags().Lookup("concurrency"))
	ingestCmd.AddCommand(ingestRunCmd)
	ingestCmd.AddCommand(ingestRecurringCmd)
}

// resolveSheets returns the sheet paths from args and --dir, ordered with SortSheets.
func resolveSheets(args []string) ([]string, error) {
	paths := append([]string{}, args...)
	if ingestDir != "" {
		found, err := sheet.Find(ingestDir, ingestFilters)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no sheets given: pass sheet paths or --dir")
	}
	return sheet.SortSheets(paths), nil
}

func rowDefaults(username string) (sheet.RowDefaults, error) {
	d := sheet.RowDefaults{
		Username: username,
		State:    pkgmodel.JobStateRun,
		Priority: ingestPriority,
	}
	if ingestType != "" {
		t, err := pkgmodel.ParseIngestType(ingestType)
		if err != nil {
			return d, err
		}
		d.Type = t
	}
	begin, err := ingest.ParseDate(ingestBeginDate)
	if err != nil {
		return d, fmt.Errorf("--begin-date: %w", err)
	}
	end, err := ingest.ParseDate(ingestEndDate)
	if err != nil {
		return d, fmt.Errorf("--end-date: %w", err)
	}
	if begin != nil && end != nil && end.Before(*begin) {
		return d, errors.New("--end-date is before --begin-date")
	}
	d.BeginFileDate = begin
	d.EndFileDate = end
	return d, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	mode := strings.ToLower(strings.TrimSpace(ingestRecurring))
	var defaultDisposition reconcile.Disposition
	if mode != recurringAsk {
		d, err := reconcile.ParseDisposition(mode)
		if err != nil {
			return err
		}
		defaultDisposition = d
	}

	paths, err := resolveSheets(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, creds, err := getAPIClient(cfg)
	if err != nil {
		return err
	}
	username := ingestUsername
	if username == "" {
		username = cfg.IngestUsername(creds)
	}
	if username == "" {
		return errors.New("no ingest username: set --username, username in config, or the netrc account")
	}
	defaults, err := rowDefaults(username)
	if err != nil {
		return err
	}

	// Sheet and index errors are fatal before any write call.
	rows, err := sheet.LoadAll(paths, defaults)
	if err != nil {
		return err
	}

	runID := logx.NewRunID()
	ctx := logx.WithRunID(context.Background(), runID)
	logger := logx.LoggerWithRunID(ctx).With("component", "cli")
	logger.Info("sheets loaded", "sheets", len(paths), "rows", len(rows))

	drain := lifecycle.NewDrainManager()
	opts := []service.RunServiceOption{
		service.WithDrainManager(drain),
		service.WithConcurrency(cfg.Concurrency),
	}
	if !ingestNoHistory && !ingestDryRun {
		if err := store.InitDB(cfg.HistoryDB); err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			defer store.CloseDB()
			opts = append(opts, service.WithRecorder(store.NewRunStore()))
		}
	}
	runSvc := service.NewRunService(client.Ingest, opts...)

	index, err := runSvc.LoadIndex(ctx)
	if err != nil {
		return err
	}

	r := reconcile.New(cfg.Classifier())
	screening := r.Screen(rows)
	printScreening(out, screening)

	recurring := r.Recurring(screening, index)
	decisions := reconcile.Decisions{Default: defaultDisposition, Purge: ingestPurge}
	if len(recurring) > 0 {
		printRecurring(out, recurring)
	}

	ask := mode == recurringAsk && interactive()
	if mode == recurringAsk && !interactive() {
		logger.Info("no terminal, recurring jobs persist")
	}
	if ask {
		p := newPrompter(cmd.InOrStdin(), out)
		decisions.PerRefDes = askDispositions(p, recurring)
		if !ingestPurge && len(screening.Candidates) > 0 {
			decisions.Purge = p.confirm("Purge existing records for every designator before submitting?")
		}
	}

	plan := r.Plan(screening, index, decisions)

	if ingestReview {
		if !interactive() {
			return errors.New("--review needs a terminal")
		}
		reviewPlan(newPrompter(cmd.InOrStdin(), out), plan)
	}

	if ingestDryRun {
		return printPlan(out, plan)
	}
	if len(plan.Actions()) == 0 {
		fmt.Fprintln(out, "Nothing to do")
		return nil
	}

	reportPath := ingestReport
	if reportPath == "" {
		reportPath = output.ReportFileName(time.Now().UTC().Format("20060102_150405"), runID)
	}
	if abs, err := filepath.Abs(reportPath); err == nil {
		reportPath = abs
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		drain.StartDraining()
		logger.Warn("interrupt received, finishing in-flight actions", "active_groups", drain.ActiveGroups())
		waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := drain.WaitGroups(waitCtx); err != nil {
			logger.Error("in-flight groups still running", "active_groups", drain.ActiveGroups(), "error", err)
		}
	}()

	result, err := runSvc.Execute(ctx, plan, service.RunInfo{
		ID:            runID,
		Trigger:       "cli",
		CandidateRows: len(rows),
		ReportPath:    reportPath,
	})
	if err != nil {
		return err
	}

	if err := output.WriteReport(reportPath, result.Report.Rows()); err != nil {
		return err
	}
	summary := result.Report.Summary()
	printSummary(out, result.Run, summary)
	fmt.Fprintf(out, "Report written to %s\n", reportPath)

	if result.Run.Status == model.RunStatusInterrupted {
		return errors.New("run interrupted; remaining actions were not attempted")
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d actions failed, see %s", summary.Failed, summary.Total, reportPath)
	}
	return nil
}

func runIngestRecurring(cmd *cobra.Command, args []string) error {
	paths, err := resolveSheets(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, _, err := getAPIClient(cfg)
	if err != nil {
		return err
	}
	defaults, err := rowDefaults("")
	if err != nil {
		return err
	}
	rows, err := sheet.LoadAll(paths, defaults)
	if err != nil {
		return err
	}

	ctx, cancel := getContext()
	defer cancel()
	index, err := service.NewRunService(client.Ingest).LoadIndex(ctx)
	if err != nil {
		return err
	}
	r := reconcile.New(cfg.Classifier())
	recurring := r.Recurring(r.Screen(rows), index)

	var jobs []reconcile.ActiveJob
	for _, rd := range sortedRefDes(recurring) {
		jobs = append(jobs, recurring[rd]...)
	}
	return jobFormatter().Write(cmd.OutOrStdout(), jobs)
}

func askDispositions(p *prompter, recurring map[string][]reconcile.ActiveJob) map[string]reconcile.Disposition {
	choices := []string{string(reconcile.DispositionPersist), string(reconcile.DispositionCancel), string(reconcile.DispositionSuspend)}
	out := make(map[string]reconcile.Disposition, len(recurring))
	for _, rd := range sortedRefDes(recurring) {
		answer := p.choose(fmt.Sprintf("%s has %d recurring job(s)", rd, len(recurring[rd])), choices, string(reconcile.DispositionPersist))
		out[rd] = reconcile.Disposition(answer)
	}
	return out
}

// reviewPlan drops submissions the operator declines. Transitions and purges are kept.
// reviewPlan asks for every well-formed submission. Declined ones stay in the
// plan so the report keeps a row for them.
func reviewPlan(p *prompter, plan *reconcile.Plan) {
	for _, g := range plan.Groups {
		for i := range g.Actions {
			a := &g.Actions[i]
			if a.Kind != reconcile.ActionSubmit || a.BuildErr != nil {
				continue
			}
			if !p.confirm("Send " + a.String() + "?") {
				a.Declined = true
				slog.Info("submission declined", "ref_des", a.RefDes, "file_mask", a.Row.FileMask)
			}
		}
	}
}

func printScreening(w io.Writer, s reconcile.Screening) {
	fmt.Fprintf(w, "Candidate rows: %d\n", len(s.Candidates))
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped rows (no parser or commented out): %d\n", len(s.Skipped))
	}
	if len(s.Excluded) > 0 {
		fmt.Fprintf(w, "Excluded designators: %s\n", strings.Join(s.Excluded, ", "))
	}
}

func printRecurring(w io.Writer, recurring map[string][]reconcile.ActiveJob) {
	fmt.Fprintln(w, "Recurring jobs:")
	var jobs []reconcile.ActiveJob
	for _, rd := range sortedRefDes(recurring) {
		jobs = append(jobs, recurring[rd]...)
	}
	if err := jobFormatter().Write(w, jobs); err != nil {
		slog.Warn("failed to print recurring jobs", "error", err)
	}
}

type planLine struct {
	RefDes string `json:"refDes"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Error  string `json:"error,omitempty"`
}

func printPlan(w io.Writer, plan *reconcile.Plan) error {
	lines := make([]planLine, 0, len(plan.Actions()))
	for _, a := range plan.Actions() {
		line := planLine{RefDes: a.RefDes, Kind: string(a.Kind), Detail: a.String()}
		if a.BuildErr != nil {
			line.Error = a.BuildErr.Error()
		} else if a.Declined {
			line.Error = "declined at review"
		}
		lines = append(lines, line)
	}
	formatter := output.NewFormatter(output.ParseFormat(outputFormat),
		[]string{"refDes", "kind", "detail", "error"},
		map[string]string{"refDes": "REFDES", "kind": "ACTION", "detail": "DETAIL", "error": "ERROR"},
	)
	return formatter.Write(w, lines)
}

func printSummary(w io.Writer, run model.IngestRun, s model.ReportSummary) {
	fmt.Fprintf(w, "Run %s %s: %d actions, %d failed\n", run.ID, run.Status, s.Total, s.Failed)
	fmt.Fprintf(w, "  transitions: %d ok, %d failed\n", s.Transitions.Succeeded, s.Transitions.Failed)
	fmt.Fprintf(w, "  purges:      %d ok, %d failed\n", s.Purges.Succeeded, s.Purges.Failed)
	fmt.Fprintf(w, "  submissions: %d ok, %d failed\n", s.Submissions.Succeeded, s.Submissions.Failed)
	if s.Declined > 0 {
		fmt.Fprintf(w, "  declined:    %d\n", s.Declined)
	}
}

func sortedRefDes(m map[string][]reconcile.ActiveJob) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
