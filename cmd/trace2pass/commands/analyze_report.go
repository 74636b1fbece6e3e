package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeReportCmd = &cobra.Command{
	Use:   "analyze-report <record-id>",
	Short: "Show a Collector record's current diagnosis state",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeReport,
}

func runAnalyzeReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := getStore()
	if err != nil {
		return err
	}
	defer store.Close()

	d := buildDiagnoser(store)

	v, err := d.AnalyzeReport(ctx, args[0])
	if err != nil {
		return fmt.Errorf("analyze-report: %w", err)
	}

	return printVerdict(v)
}
