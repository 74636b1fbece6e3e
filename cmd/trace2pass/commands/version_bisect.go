package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var versionBisectCmd = &cobra.Command{
	Use:   "version-bisect [record-id]",
	Short: "Binary search --versions with --oracle to find the first bad version",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVersionBisect,
}

func runVersionBisect(cmd *cobra.Command, args []string) error {
	if len(versions) == 0 {
		return fmt.Errorf("version-bisect: --versions is required")
	}
	if oracleCmdStr == "" {
		return fmt.Errorf("version-bisect: --oracle is required")
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

	v, err := d.VersionBisect(ctx, recordID)
	if err != nil {
		return fmt.Errorf("version-bisect: %w", err)
	}

	return printVerdict(v)
}
