package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var ubDetectCmd = &cobra.Command{
	Use:   "ub-detect [record-id]",
	Short: "Run the UB Detector against --source, optionally persisting to record-id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUBDetect,
}

func runUBDetect(cmd *cobra.Command, args []string) error {
	if sourcePath == "" {
		return fmt.Errorf("ub-detect: --source is required")
	}
	if primaryCompiler == "" {
		return fmt.Errorf("ub-detect: --compiler is required")
	}

	ctx := context.Background()

	store, err := getStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var recordID string
	if len(args) == 1 {
		recordID = args[0]
	}

	d := buildDiagnoser(store)

	v, err := d.UBDetect(ctx, recordID)
	if err != nil {
		return fmt.Errorf("ub-detect: %w", err)
	}

	return printVerdict(v)
}
