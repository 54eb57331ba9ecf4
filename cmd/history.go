package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ooi-datateam/ingestctl/internal/output"
	"github.com/ooi-datateam/ingestctl/internal/service"
	"github.com/ooi-datateam/ingestctl/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded ingest runs",
	Long: `Show the audit trail of previous ingest runs. The history is informational only;
every run plans from the live M2M listing.`,
}

var historyLimit int

var historyListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List recent runs",
	Example: `  ingestctl history list --limit 5`,
	RunE:    runHistoryList,
}

var historyGetCmd = &cobra.Command{
	Use:     "get <run-id>",
	Short:   "Show a run and every action it made",
	Args:    cobra.ExactArgs(1),
	Example: `  ingestctl history get run-1a2b3c4d`,
	RunE:    runHistoryGet,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs")
	historyListCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	historyCmd.AddCommand(historyListCmd)

	historyGetCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	historyCmd.AddCommand(historyGetCmd)
}

func openHistory() (*service.HistoryService, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.HistoryDB); errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("no run history at %s", cfg.HistoryDB)
	}
	if err := store.InitDB(cfg.HistoryDB); err != nil {
		return nil, nil, err
	}
	return service.NewHistoryService(store.NewRunStore()), func() { _ = store.CloseDB() }, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	history, closeDB, err := openHistory()
	if err != nil {
		return err
	}
	defer closeDB()
	ctx, cancel := getContext()
	defer cancel()

	resp, err := history.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	formatter := output.NewFormatter(output.ParseFormat(outputFormat),
		[]string{"id", "status", "started_at", "candidate_rows", "action_count", "failed_count", "report_path"},
		map[string]string{
			"id":             "RUN",
			"status":         "STATUS",
			"started_at":     "STARTED",
			"candidate_rows": "ROWS",
			"action_count":   "ACTIONS",
			"failed_count":   "FAILED",
			"report_path":    "REPORT",
		},
	)
	return formatter.Write(cmd.OutOrStdout(), resp.Items)
}

func runHistoryGet(cmd *cobra.Command, args []string) error {
	history, closeDB, err := openHistory()
	if err != nil {
		return err
	}
	defer closeDB()
	ctx, cancel := getContext()
	defer cancel()

	detail, err := history.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if output.ParseFormat(outputFormat) != output.FormatTable {
		return output.NewFormatter(output.ParseFormat(outputFormat), nil, nil).Write(cmd.OutOrStdout(), detail)
	}
	run := detail.Run
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s), started %s, %d actions, %d failed\n",
		run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), run.ActionCount, run.FailedCount)
	return reportFormatter().Write(cmd.OutOrStdout(), detail.Items)
}
