package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trace2pass/trace2pass/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("trace2pass version %s", build.Version())

	if build.Commit != "" {
		fmt.Printf(" commit=%s", build.Commit)
	} else if hash := build.CommitHash(); hash != "" {
		fmt.Printf(" commit=%s", hash)
	}

	if build.GoVersion != "" {
		fmt.Printf(" go=%s", build.GoVersion)
	}

	fmt.Println()
}
