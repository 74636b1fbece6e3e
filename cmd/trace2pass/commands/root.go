package commands

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// dbPath is the path to the collector's sqlite database.
	dbPath string

	// sourcePath is the minimized reproducer source fed to every
	// compiler invocation across all three diagnosis stages.
	sourcePath string

	// workDir is the scratch directory diagnosis subprocesses run in.
	workDir string

	// timeout bounds each diagnosis subprocess invocation.
	timeout time.Duration

	// primaryCompiler/secondaryCompiler name the toolchains used by
	// the UB Detector's three signals.
	primaryCompiler   string
	secondaryCompiler string

	// versions is the ordered (oldest to newest) compiler version list
	// the Version Bisector searches over.
	versions []string

	// oracleCmdStr is a literal argv (whitespace-separated, no shell
	// quoting) run once per bisection probe; "{{version}}" or
	// "{{prefix}}" in it is substituted with the probed value.
	oracleCmdStr string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "trace2pass",
	Short: "Localize compiler miscompilations to a version and optimization pass",
	Long: `trace2pass drives the Diagnoser command interface: given a queued
Collector report, it runs the UB Detector, Version Bisector, and Pass
Bisector (standalone or chained end to end) and prints a structured
JSON verdict.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to the collector sqlite database (default: ~/.trace2pass/collector.db)",
	)
	rootCmd.PersistentFlags().StringVar(
		&sourcePath, "source", "",
		"Path to the minimized reproducer source",
	)
	rootCmd.PersistentFlags().StringVar(
		&workDir, "workdir", "",
		"Scratch directory for diagnosis subprocesses (default: a temp dir)",
	)
	rootCmd.PersistentFlags().DurationVar(
		&timeout, "timeout", 2*time.Minute,
		"Timeout for each diagnosis subprocess invocation",
	)
	rootCmd.PersistentFlags().StringVar(
		&primaryCompiler, "compiler", "",
		"Path to the primary compiler toolchain",
	)
	rootCmd.PersistentFlags().StringVar(
		&secondaryCompiler, "secondary-compiler", "",
		"Path to an independent compiler toolchain, for the UB Detector's cross-compiler signal",
	)
	rootCmd.PersistentFlags().StringSliceVar(
		&versions, "versions", nil,
		"Ordered (oldest to newest) compiler versions for the Version Bisector",
	)
	rootCmd.PersistentFlags().StringVar(
		&oracleCmdStr, "oracle", "",
		`Literal argv run per bisection probe, e.g. "./is-bad.sh {{version}}"`,
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeReportCmd)
	rootCmd.AddCommand(ubDetectCmd)
	rootCmd.AddCommand(versionBisectCmd)
	rootCmd.AddCommand(passBisectCmd)
	rootCmd.AddCommand(fullPipelineCmd)
}
