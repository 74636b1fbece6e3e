package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var passBisectVersion string

var passBisectCmd = &cobra.Command{
	Use:   "pass-bisect [record-id]",
	Short: "Binary search the optimizer pipeline at --pass-version to find the culprit pass",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPassBisect,
}

func init() {
	passBisectCmd.Flags().StringVar(
		&passBisectVersion, "pass-version", "",
		"Single compiler version to extract the pass pipeline from",
	)
}

func runPassBisect(cmd *cobra.Command, args []string) error {
	if passBisectVersion == "" {
		return fmt.Errorf("pass-bisect: --pass-version is required")
	}
	if sourcePath == "" {
		return fmt.Errorf("pass-bisect: --source is required")
	}
	if oracleCmdStr == "" {
		return fmt.Errorf("pass-bisect: --oracle is required")
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

	v, err := d.PassBisect(ctx, recordID, passBisectVersion)
	if err != nil {
		return fmt.Errorf("pass-bisect: %w", err)
	}

	return printVerdict(v)
}
