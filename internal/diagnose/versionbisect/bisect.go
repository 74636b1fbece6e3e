// Package versionbisect implements the Version Bisector: binary search
// over an ordered list of compiler versions to find the first one that
// reproduces a bug.
package versionbisect

import (
	"context"
	"fmt"

	"github.com/trace2pass/trace2pass/internal/report"
)

// Oracle builds the reproducer with Versions[idx] and runs the
// caller-supplied test, classifying the result.
type Oracle func(ctx context.Context, versionIndex int) (report.OracleResult, error)

// Bisector finds the first bad version among an ordered (oldest to
// newest) list of installable compiler versions.
type Bisector struct {
	// Versions is ordered oldest to newest; indices are what the
	// Oracle and BisectionState operate over.
	Versions []string
}

// Result is the outcome of one Bisect call.
type Result struct {
	State           report.BisectionState
	Outcome         report.Outcome
	FirstBadVersion string
	LastGoodVersion string
}

// Bisect runs a binary search over the version list. `skip` results
// (legitimate diagnostic errors unrelated to the oracle's pass/fail
// axis) are excluded from the search: when the midpoint of the current
// search window is skip, probeNonSkip widens outward from the
// midpoint, alternating toward each bound, until it finds a resolvable
// index or exhausts the window (DESIGN.md records this choice).
func (b *Bisector) Bisect(ctx context.Context, oracle Oracle) (Result, error) {
	n := len(b.Versions)
	if n == 0 {
		return Result{Outcome: report.OutcomeError},
			fmt.Errorf("versionbisect: empty version list")
	}

	state := report.BisectionState{Low: -1, High: n}

	resolve := func(idx int) (report.OracleResult, int, bool, error) {
		return probeNonSkip(ctx, oracle, &state, idx, 0, n-1)
	}

	firstRes, _, ok, err := resolve(0)
	if err != nil {
		state.Verdict = report.OutcomeError
		return Result{State: state, Outcome: report.OutcomeError}, err
	}
	if !ok {
		state.Verdict = report.OutcomeError
		return Result{State: state, Outcome: report.OutcomeError},
			fmt.Errorf("versionbisect: every version near index 0 was skipped")
	}
	if firstRes == report.OracleResultFail || firstRes == report.OracleResultICE {
		state.Verdict = report.OutcomeAllFail
		return Result{State: state, Outcome: report.OutcomeAllFail}, nil
	}

	lastRes, _, ok, err := resolve(n - 1)
	if err != nil {
		state.Verdict = report.OutcomeError
		return Result{State: state, Outcome: report.OutcomeError}, err
	}
	if !ok {
		state.Verdict = report.OutcomeError
		return Result{State: state, Outcome: report.OutcomeError},
			fmt.Errorf("versionbisect: every version near the newest index was skipped")
	}
	if lastRes == report.OracleResultPass {
		state.Verdict = report.OutcomeAllPass
		return Result{State: state, Outcome: report.OutcomeAllPass}, nil
	}

	low, high := 0, n-1
	for high-low > 1 {
		mid := (low + high) / 2

		res, resolved, ok, err := probeNonSkip(ctx, oracle, &state, mid, low+1, high-1)
		if err != nil {
			state.Verdict = report.OutcomeError
			return Result{State: state, Outcome: report.OutcomeError}, err
		}
		if !ok {
			state.Verdict = report.OutcomeError
			return Result{State: state, Outcome: report.OutcomeError}, fmt.Errorf(
				"versionbisect: every version strictly between %d and %d was skipped",
				low, high,
			)
		}

		if res == report.OracleResultPass {
			low = resolved
		} else {
			high = resolved
		}
	}

	state.Low = low
	state.High = high
	state.Verdict = report.OutcomeBisected

	return Result{
		State:           state,
		Outcome:         report.OutcomeBisected,
		FirstBadVersion: b.Versions[high],
		LastGoodVersion: b.Versions[low],
	}, nil
}

// probeNonSkip resolves the oracle at idx, treating ice as fail and
// recording every observation (including skips) in state. If idx
// itself is skip, it widens outward within [lowBound, highBound]
// until a resolvable index is found.
func probeNonSkip(ctx context.Context, oracle Oracle, state *report.BisectionState,
	idx, lowBound, highBound int) (report.OracleResult, int, bool, error) {

	if lowBound > highBound {
		return "", 0, false, nil
	}

	for offset := 0; ; offset++ {
		candidates := []int{idx + offset}
		if offset != 0 {
			candidates = append(candidates, idx-offset)
		}

		tried := false

		for _, candidate := range candidates {
			if candidate < lowBound || candidate > highBound {
				continue
			}
			tried = true

			res, err := oracle(ctx, candidate)
			if err != nil {
				return "", 0, false, err
			}

			note := ""
			effective := res
			if res == report.OracleResultICE {
				note = "internal compiler error, treated as fail"
				effective = report.OracleResultFail
			}
			state.Record(candidate, res, note)

			if effective != report.OracleResultSkip {
				return effective, candidate, true, nil
			}
		}

		if !tried {
			return "", 0, false, nil
		}
	}
}
