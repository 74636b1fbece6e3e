package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var fullPipelineCmd = &cobra.Command{
	Use:   "full-pipeline <record-id>",
	Short: "Drive a record through UB Detector, Version Bisector, and Pass Bisector end to end",
	Args:  cobra.ExactArgs(1),
	RunE:  runFullPipeline,
}

func runFullPipeline(cmd *cobra.Command, args []string) error {
	if sourcePath == "" {
		return fmt.Errorf("full-pipeline: --source is required")
	}
	if primaryCompiler == "" {
		return fmt.Errorf("full-pipeline: --compiler is required")
	}

	ctx := context.Background()

	store, err := getStore()
	if err != nil {
		return err
	}
	defer store.Close()

	d := buildDiagnoser(store)

	v, err := d.FullPipeline(ctx, args[0])
	if err != nil {
		return fmt.Errorf("full-pipeline: %w", err)
	}

	return printVerdict(v)
}
