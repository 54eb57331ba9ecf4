package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ooi-datateam/ingestctl/internal/annotation"
	"github.com/ooi-datateam/ingestctl/internal/output"
	"github.com/ooi-datateam/ingestctl/internal/service"
)

var annotationsCmd = &cobra.Command{
	Use:   "annotations",
	Short: "Create and update M2M annotations",
}

var annotationsSource string

var annotationsPushCmd = &cobra.Command{
	Use:   "push <csv>",
	Short: "Push annotation rows from a CSV file",
	Long: `Push every row of an annotation CSV. Rows with a positive integer id update
that annotation; rows with an empty or zero id create a new one.

The outcome of every row is written next to the input as <name>_run.csv, with the
id column set to the id M2M returned so the file can be edited and pushed again.`,
	Args:    cobra.ExactArgs(1),
	Example: `  ingestctl annotations push CE01ISSM_annotations.csv --source jdoe@example.org`,
	RunE:    runAnnotationsPush,
}

func init() {
	rootCmd.AddCommand(annotationsCmd)
	annotationsPushCmd.Flags().StringVar(&annotationsSource, "source", "", "Source for rows without one (default: netrc account)")
	annotationsPushCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	annotationsCmd.AddCommand(annotationsPushCmd)
}

type annotationLine struct {
	Line       int    `json:"line"`
	Subsite    string `json:"subsite"`
	StatusCode int    `json:"statusCode"`
	ID         string `json:"id"`
	Succeeded  bool   `json:"succeeded"`
	Message    string `json:"message"`
}

func runAnnotationsPush(cmd *cobra.Command, args []string) error {
	rows, err := annotation.Load(args[0])
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
	source := annotationsSource
	if source == "" {
		source = creds.Account
	}

	results := service.NewAnnotationService(client.Annotation, source).Push(context.Background(), rows)

	runPath := annotation.RunPath(args[0])
	if err := annotation.WriteResults(runPath, results); err != nil {
		return err
	}

	lines := make([]annotationLine, 0, len(results))
	failed := 0
	for _, res := range results {
		if !res.Succeeded {
			failed++
		}
		lines = append(lines, annotationLine{
			Line:       res.Row.Line,
			Subsite:    res.Row.Subsite,
			StatusCode: res.StatusCode,
			ID:         res.ID,
			Succeeded:  res.Succeeded,
			Message:    res.Message,
		})
	}
	formatter := output.NewFormatter(output.ParseFormat(outputFormat),
		[]string{"line", "subsite", "statusCode", "id", "succeeded", "message"},
		map[string]string{"line": "LINE", "subsite": "SUBSITE", "statusCode": "HTTP", "id": "ID", "succeeded": "OK", "message": "MESSAGE"},
	)
	if err := formatter.Write(cmd.OutOrStdout(), lines); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", runPath)
	if failed > 0 {
		return fmt.Errorf("%d of %d annotation rows failed", failed, len(results))
	}
	return nil
}
