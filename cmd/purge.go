package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ooi-datateam/ingestctl/internal/model"
	"github.com/ooi-datateam/ingestctl/internal/reconcile"
	"github.com/ooi-datateam/ingestctl/internal/refdes"
	"github.com/ooi-datateam/ingestctl/internal/service"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <refdes>...",
	Short: "Purge the ingested records of reference designators",
	Args:  cobra.MinimumNArgs(1),
	Example: `  # Purge with confirmation
  ingestctl purge CE01ISSM-MFD35-04-ADCPTM000

  # Force purge without confirmation
  ingestctl purge CE01ISSM-MFD35-04-ADCPTM000 CE01ISSM-MFD37-03-CTDBPC000 --force`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Skip confirmation")
	purgeCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
}

func runPurge(cmd *cobra.Command, args []string) error {
	actions := make([]reconcile.Action, 0, len(args))
	for _, a := range args {
		rd, err := refdes.Parse(strings.TrimSpace(a))
		if err != nil {
			return err
		}
		actions = append(actions, reconcile.Action{Kind: reconcile.ActionPurge, RefDes: rd.String(), Purge: rd.PurgeRequest()})
	}

	if !forceFlag {
		if !interactive() {
			return fmt.Errorf("refusing to purge without a terminal; pass --force")
		}
		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		if !p.confirm(fmt.Sprintf("Purge all ingested records of %s?", strings.Join(args, ", "))) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
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
	rows := make([]model.ReportRow, 0, len(actions))
	failed := 0
	for _, a := range actions {
		row := driver.Execute(ctx, a)
		if err := service.RowError(row); err != nil {
			failed++
			slog.Warn("purge failed", "ref_des", row.RefDes, "error", err)
		}
		rows = append(rows, row)
	}
	if err := reportFormatter().Write(cmd.OutOrStdout(), rows); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d purges failed", failed, len(rows))
	}
	return nil
}
