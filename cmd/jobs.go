package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ooi-datateam/ingestctl/internal/model"
	"github.com/ooi-datateam/ingestctl/internal/output"
	"github.com/ooi-datateam/ingestctl/internal/service"
	pkgmodel "github.com/ooi-datateam/ingestctl/pkg/model"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and change M2M ingest jobs",
}

var (
	jobsRefDes string
	jobsState  string
	jobsType   string
)

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingest jobs, one line per file mask",
	Example: `  # Every running telemetered job of a mooring
  ingestctl jobs list --refdes CE01ISSM --state run --type telemetered`,
	RunE: runJobsList,
}

var jobsGetCmd = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get an ingest request",
	Args:    cobra.ExactArgs(1),
	Example: `  ingestctl jobs get 52318`,
	RunE:    runJobsGet,
}

var jobsStatusCmd = &cobra.Command{
	Use:     "status <id>",
	Short:   "Show file counts per status for an ingest request",
	Args:    cobra.ExactArgs(1),
	Example: `  ingestctl jobs status 52318`,
	RunE:    runJobsStatus,
}

func newTransitionCmd(use string, state pkgmodel.JobState) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <id>...",
		Short:   fmt.Sprintf("Move ingest requests to %s", state),
		Args:    cobra.MinimumNArgs(1),
		Example: fmt.Sprintf("  ingestctl jobs %s 52318 52319", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsTransition(cmd, args, state)
		},
	}
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	// List command
	jobsListCmd.Flags().StringVar(&jobsRefDes, "refdes", "", "Reference designator prefix")
	jobsListCmd.Flags().StringVar(&jobsState, "state", "", "Job state (run, suspend, cancel)")
	jobsListCmd.Flags().StringVar(&jobsType, "type", "", "Ingest type (telemetered, recovered)")
	jobsListCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	jobsCmd.AddCommand(jobsListCmd)

	jobsGetCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	jobsCmd.AddCommand(jobsGetCmd)

	jobsStatusCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table prints json, json, yaml)")
	jobsCmd.AddCommand(jobsStatusCmd)

	for _, c := range []*cobra.Command{
		newTransitionCmd("cancel", pkgmodel.JobStateCancel),
		newTransitionCmd("suspend", pkgmodel.JobStateSuspend),
		newTransitionCmd("resume", pkgmodel.JobStateRun),
	} {
		c.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
		jobsCmd.AddCommand(c)
	}
}

func jobFormatter() output.Formatter {
	return output.NewFormatter(output.ParseFormat(outputFormat),
		[]string{"jobId", "refDes", "type", "state", "status", "deployment", "fileMask", "modifiedTime"},
		map[string]string{
			"jobId":        "ID",
			"refDes":       "REFDES",
			"type":         "TYPE",
			"state":        "STATE",
			"status":       "STATUS",
			"deployment":   "DEPLOYMENT",
			"fileMask":     "FILE MASK",
			"modifiedTime": "MODIFIED",
		},
	)
}

func reportFormatter() output.Formatter {
	return output.NewFormatter(output.ParseFormat(outputFormat),
		[]string{"refDes", "actionKind", "httpStatus", "remoteId", "succeeded", "message"},
		map[string]string{
			"refDes":     "REFDES",
			"actionKind": "ACTION",
			"httpStatus": "HTTP",
			"remoteId":   "ID",
			"succeeded":  "OK",
			"message":    "MESSAGE",
		},
	)
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	filter := service.JobFilter{RefDes: jobsRefDes}
	if jobsState != "" {
		state, err := pkgmodel.ParseJobState(jobsState)
		if err != nil {
			return err
		}
		filter.State = state
	}
	if jobsType != "" {
		t, err := pkgmodel.ParseIngestType(jobsType)
		if err != nil {
			return err
		}
		filter.Type = t
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, _, err := getAPIClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := getContext()
	defer cancel()

	records, err := client.Ingest.List(ctx)
	if err != nil {
		return err
	}
	return jobFormatter().Write(cmd.OutOrStdout(), service.FilterJobs(records, filter))
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	ids, err := parseJobIDs(args)
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
	ctx, cancel := getContext()
	defer cancel()

	rec, err := client.Ingest.Get(ctx, ids[0])
	if err != nil {
		return err
	}
	if output.ParseFormat(outputFormat) == output.FormatTable {
		return jobFormatter().Write(cmd.OutOrStdout(), service.FilterJobs([]pkgmodel.IngestRequestRecord{*rec}, service.JobFilter{}))
	}
	return output.NewFormatter(output.ParseFormat(outputFormat), nil, nil).Write(cmd.OutOrStdout(), rec)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ids, err := parseJobIDs(args)
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
	ctx, cancel := getContext()
	defer cancel()

	counts, err := client.Ingest.JobCounts(ctx, ids[0])
	if err != nil {
		return err
	}
	format := output.ParseFormat(outputFormat)
	if format == output.FormatTable {
		format = output.FormatJSON
	}
	return output.NewFormatter(format, nil, nil).Write(cmd.OutOrStdout(), counts)
}

func runJobsTransition(cmd *cobra.Command, args []string, state pkgmodel.JobState) error {
	ids, err := parseJobIDs(args)
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
	ctx, cancel := getContext()
	defer cancel()

	driver := service.NewDriver(client.Ingest)
	rows := make([]model.ReportRow, 0, len(ids))
	failed := 0
	for _, action := range service.TransitionActions(ids, state) {
		row := driver.Execute(ctx, action)
		if err := service.RowError(row); err != nil {
			failed++
			slog.Warn("state change failed", "job_id", row.JobID, "error", err)
		}
		rows = append(rows, row)
	}
	if err := reportFormatter().Write(cmd.OutOrStdout(), rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d state changes failed", failed, len(rows))
	}
	return nil
}
