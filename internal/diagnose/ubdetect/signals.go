package ubdetect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trace2pass/trace2pass/internal/report"
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

// sanitizerDiagnosticMarkers are well-known substrings UBSan/ASan emit
// to stderr when a diagnostic fires at runtime.
var sanitizerDiagnosticMarkers = []string{
	"runtime error:",
	"ERROR: AddressSanitizer",
	"ERROR: UndefinedBehaviorSanitizer",
	"SUMMARY: UndefinedBehaviorSanitizer",
}

func containsSanitizerDiagnostic(stderr string) bool {
	for _, marker := range sanitizerDiagnosticMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// sanitizerCleanSignal compiles the reproducer with the undefined-
// behavior sanitizer and classifies whether a diagnostic fired.
func (d *Detector) sanitizerCleanSignal(ctx context.Context,
	repro Reproducer) (report.Signal, error) {

	dir := repro.scratchDir("sanitizer")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.Signal{}, err
	}
	defer os.RemoveAll(dir)

	binPath := filepath.Join(dir, "repro")
	compile, err := d.spawner.Spawn(ctx, "ubdetect-sanitizer-compile",
		[]string{
			d.PrimaryCompiler, "-fsanitize=undefined,address", "-g",
			repro.SourcePath, "-o", binPath,
		},
		toolchain.WithWorkDir(dir), toolchain.WithTimeout(repro.timeout()),
	)
	if err != nil {
		return report.Signal{}, fmt.Errorf("ubdetect: sanitizer compile: %w", err)
	}
	if compile.TimedOut || compile.ExitCode != 0 {
		return report.Signal{Available: false, Detail: "sanitizer build failed"}, nil
	}

	run, err := d.spawner.Spawn(ctx, "ubdetect-sanitizer-run",
		append([]string{binPath}, repro.RunArgs...),
		toolchain.WithWorkDir(dir), toolchain.WithTimeout(repro.timeout()),
	)
	if err != nil {
		return report.Signal{}, fmt.Errorf("ubdetect: sanitizer run: %w", err)
	}

	if containsSanitizerDiagnostic(run.Stderr) {
		return report.Signal{
			Available:         true,
			TowardCompilerBug: -1,
			Weight:            WeightSanitizerClean,
			Detail:            "sanitizer diagnostic fired at anomaly site",
		}, nil
	}

	return report.Signal{
		Available:         true,
		TowardCompilerBug: 1,
		Weight:            WeightSanitizerClean,
		Detail:            "execution completed without sanitizer diagnostics",
	}, nil
}

// optimizationSensitivitySignal compiles the reproducer at every
// configured optimization level with the primary compiler and compares
// observable output.
func (d *Detector) optimizationSensitivitySignal(ctx context.Context,
	repro Reproducer) (report.Signal, error) {

	dir := repro.scratchDir("opt-sensitivity")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.Signal{}, err
	}
	defer os.RemoveAll(dir)

	var outputs []string
	for _, level := range d.OptLevels {
		binPath := filepath.Join(dir, "repro-"+strings.TrimPrefix(level, "-"))

		compile, err := d.spawner.Spawn(ctx, "ubdetect-opt-compile-"+level,
			[]string{d.PrimaryCompiler, level, repro.SourcePath, "-o", binPath},
			toolchain.WithWorkDir(dir), toolchain.WithTimeout(repro.timeout()),
		)
		if err != nil {
			return report.Signal{}, fmt.Errorf(
				"ubdetect: opt-level %s compile: %w", level, err,
			)
		}
		if compile.TimedOut || compile.ExitCode != 0 {
			continue
		}

		run, err := d.spawner.Spawn(ctx, "ubdetect-opt-run-"+level,
			append([]string{binPath}, repro.RunArgs...),
			toolchain.WithWorkDir(dir), toolchain.WithTimeout(repro.timeout()),
		)
		if err != nil {
			return report.Signal{}, fmt.Errorf(
				"ubdetect: opt-level %s run: %w", level, err,
			)
		}
		outputs = append(outputs, run.Stdout)
	}

	if len(outputs) < 2 {
		return report.Signal{
			Available: false,
			Detail:    "fewer than two optimization levels built successfully",
		}, nil
	}

	if outputsDiverge(outputs) {
		return report.Signal{
			Available:         true,
			TowardCompilerBug: 1,
			Weight:            WeightOptimizationSensitivity,
			Detail:            "output differs across optimization levels",
		}, nil
	}

	return report.Signal{
		Available:         true,
		TowardCompilerBug: -1,
		Weight:            WeightOptimizationSensitivity,
		Detail:            "output stable across optimization levels",
	}, nil
}

// crossCompilerSignal compiles the reproducer with two independent
// toolchains at comparable optimization and compares output.
// Unavailable (contributes zero) when no secondary compiler is
// configured.
func (d *Detector) crossCompilerSignal(ctx context.Context,
	repro Reproducer) (report.Signal, error) {

	if d.SecondaryCompiler == "" {
		return report.Signal{
			Available: false,
			Detail:    "no second compiler toolchain installed",
		}, nil
	}

	dir := repro.scratchDir("cross-compiler")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.Signal{}, err
	}
	defer os.RemoveAll(dir)

	var outputs []string
	for _, compiler := range []string{d.PrimaryCompiler, d.SecondaryCompiler} {
		binPath := filepath.Join(dir, "repro-"+filepath.Base(compiler))

		compile, err := d.spawner.Spawn(ctx, "ubdetect-cross-compile-"+compiler,
			[]string{
				compiler, d.ComparisonOptLevel, repro.SourcePath, "-o", binPath,
			},
			toolchain.WithWorkDir(dir), toolchain.WithTimeout(repro.timeout()),
		)
		if err != nil {
			return report.Signal{}, fmt.Errorf(
				"ubdetect: cross-compiler %s compile: %w", compiler, err,
			)
		}
		if compile.TimedOut || compile.ExitCode != 0 {
			return report.Signal{
				Available: false,
				Detail:    fmt.Sprintf("%s failed to build the reproducer", compiler),
			}, nil
		}

		run, err := d.spawner.Spawn(ctx, "ubdetect-cross-run-"+compiler,
			append([]string{binPath}, repro.RunArgs...),
			toolchain.WithWorkDir(dir), toolchain.WithTimeout(repro.timeout()),
		)
		if err != nil {
			return report.Signal{}, fmt.Errorf(
				"ubdetect: cross-compiler %s run: %w", compiler, err,
			)
		}
		outputs = append(outputs, run.Stdout)
	}

	if outputsDiverge(outputs) {
		return report.Signal{
			Available:         true,
			TowardCompilerBug: 1,
			Weight:            WeightCrossCompilerDiff,
			Detail:            "compilers disagree on output",
		}, nil
	}

	return report.Signal{
		Available:         true,
		TowardCompilerBug: -1,
		Weight:            WeightCrossCompilerDiff,
		Detail:            "compilers agree on output",
	}, nil
}

func outputsDiverge(outputs []string) bool {
	for i := 1; i < len(outputs); i++ {
		if outputs[i] != outputs[0] {
			return true
		}
	}
	return false
}
