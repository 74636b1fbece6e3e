// Package ubdetect implements the UB Detector: given a reproducer, it
// decides compiler_bug/user_ub/inconclusive by combining three
// independently-gathered signals into a weighted vote.
package ubdetect

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trace2pass/trace2pass/internal/report"
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

// Signal weights sum to ~1.0; the sanitizer-clean signal is weighted
// most heavily since a firing sanitizer is near-conclusive evidence of
// user UB.
const (
	WeightSanitizerClean          = 0.4
	WeightOptimizationSensitivity = 0.3
	WeightCrossCompilerDiff       = 0.3

	// Verdict thresholds.
	compilerBugThreshold = 0.6
	userUBThreshold      = 0.3
)

// Reproducer names the minimized source, its inputs, and the working
// directory the detector may use for scratch compiles. One Reproducer
// is consumed by exactly one Detect call.
type Reproducer struct {
	SourcePath string
	RunArgs    []string
	WorkDir    string
	Timeout    time.Duration
}

// Detector gathers the three UB signals via toolchain.Spawner and
// combines them into a verdict.
type Detector struct {
	spawner *toolchain.Spawner

	// PrimaryCompiler is the compiler used for the sanitizer-clean and
	// optimization-sensitivity signals.
	PrimaryCompiler string

	// SecondaryCompiler is the independent toolchain used for the
	// cross-compiler differential signal. Empty means unavailable.
	SecondaryCompiler string

	// OptLevels are compared pairwise for the optimization-sensitivity
	// signal, e.g. none, light, standard, aggressive.
	OptLevels []string

	// ComparisonOptLevel is the flag both compilers use for the
	// cross-compiler differential signal ("comparable optimization").
	ComparisonOptLevel string
}

// NewDetector returns a Detector with a sane default optimization
// ladder and comparison level.
func NewDetector(spawner *toolchain.Spawner, primaryCompiler string) *Detector {
	return &Detector{
		spawner:            spawner,
		PrimaryCompiler:    primaryCompiler,
		OptLevels:          []string{"-O0", "-O1", "-O2", "-O3"},
		ComparisonOptLevel: "-O2",
	}
}

// Detect runs all three signals concurrently, combining them into a
// weighted vote. The fan-out is confined to gathering the detector's
// own signals, never crossing the pipeline's single-threaded-driver
// boundary, and returns the combined verdict.
func (d *Detector) Detect(ctx context.Context,
	repro Reproducer) (report.UBVerdict, float64, report.SignalBreakdown, error) {

	var signals report.SignalBreakdown

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sig, err := d.sanitizerCleanSignal(gctx, repro)
		if err != nil {
			return err
		}
		signals.SanitizerClean = sig
		return nil
	})

	g.Go(func() error {
		sig, err := d.optimizationSensitivitySignal(gctx, repro)
		if err != nil {
			return err
		}
		signals.OptimizationSensitivity = sig
		return nil
	})

	g.Go(func() error {
		sig, err := d.crossCompilerSignal(gctx, repro)
		if err != nil {
			return err
		}
		signals.CrossCompilerDifferential = sig
		return nil
	})

	if err := g.Wait(); err != nil {
		return report.VerdictInconclusive, 0, signals, err
	}

	confidence := signals.SanitizerClean.Confidence() +
		signals.OptimizationSensitivity.Confidence() +
		signals.CrossCompilerDifferential.Confidence()

	return verdictFor(confidence), confidence, signals, nil
}

// verdictFor maps cumulative confidence to a verdict.
func verdictFor(confidence float64) report.UBVerdict {
	switch {
	case confidence >= compilerBugThreshold:
		return report.VerdictCompilerBug
	case confidence <= userUBThreshold:
		return report.VerdictUserUB
	default:
		return report.VerdictInconclusive
	}
}

func (r Reproducer) scratchDir(name string) string {
	return filepath.Join(r.WorkDir, name)
}

func (r Reproducer) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 30 * time.Second
}
