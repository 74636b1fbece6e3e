package passbisect

import (
	"context"
	"fmt"

	"github.com/trace2pass/trace2pass/internal/report"
)

// Oracle builds the reproducer using Pipeline.Prefix(n) passes and
// runs the caller-supplied test, classifying the result.
type Oracle func(ctx context.Context, n int) (report.OracleResult, error)

// Bisector finds the lowest prefix length N such that passes [0,N)
// reproduce the bug, while [0,N-1) does not.
type Bisector struct {
	Pipeline report.PassPipeline

	// Versions is always validated before the search starts (unset
	// versions are rejected) so a tool-version mismatch is reported as a
	// precondition failure rather than an unexplained bisection error
	// partway through.
	Versions ToolVersions
}

// Result is the outcome of one Bisect call.
type Result struct {
	State   report.BisectionState
	Outcome report.Outcome

	// CulpritIndex is the index into Pipeline.Passes of the pass whose
	// inclusion first causes failure (N*-1), valid only when Outcome
	// is OutcomeBisected.
	CulpritIndex int
	CulpritPass  string

	// ContextBefore/ContextAfter are up to two neighboring pass names
	// on either side of the culprit, reported for context.
	ContextBefore []string
	ContextAfter  []string
}

// Bisect runs a binary search over pipeline prefix lengths to find the
// culprit pass.
func (b *Bisector) Bisect(ctx context.Context, oracle Oracle) (Result, error) {
	if err := b.Versions.Validate(); err != nil {
		return Result{Outcome: report.OutcomeError}, err
	}

	total := b.Pipeline.Len()
	if total == 0 {
		return Result{Outcome: report.OutcomeError},
			fmt.Errorf("passbisect: empty pass pipeline")
	}

	state := report.BisectionState{Low: -1, High: total}

	call := func(n int) (report.OracleResult, error) {
		res, err := oracle(ctx, n)
		if err != nil {
			return "", err
		}
		state.Record(n, res, "")
		return res, nil
	}

	baseline, err := call(0)
	if err != nil {
		state.Verdict = report.OutcomeError
		return Result{State: state, Outcome: report.OutcomeError}, err
	}
	if baseline == report.OracleResultFail || baseline == report.OracleResultICE {
		state.Verdict = report.OutcomeBaselineFail
		return Result{State: state, Outcome: report.OutcomeBaselineFail}, nil
	}

	full, err := call(total)
	if err != nil {
		state.Verdict = report.OutcomeError
		return Result{State: state, Outcome: report.OutcomeError}, err
	}
	if full == report.OracleResultPass {
		state.Verdict = report.OutcomeFullPasses
		return Result{State: state, Outcome: report.OutcomeFullPasses}, nil
	}

	low, high := 0, total
	for high-low > 1 {
		mid := (low + high) / 2

		res, err := call(mid)
		if err != nil {
			state.Verdict = report.OutcomeError
			return Result{State: state, Outcome: report.OutcomeError}, err
		}

		switch res {
		case report.OracleResultPass:
			low = mid
		case report.OracleResultFail, report.OracleResultICE:
			high = mid
		case report.OracleResultSkip:
			state.Verdict = report.OutcomeError
			return Result{State: state, Outcome: report.OutcomeError}, fmt.Errorf(
				"passbisect: prefix length %d was skipped; pass pipeline "+
					"bisection has no non-pass/fail axis to exclude it on", mid,
			)
		}
	}

	state.Low = low
	state.High = high
	state.Verdict = report.OutcomeBisected

	culpritIdx := low
	result := Result{
		State:         state,
		Outcome:       report.OutcomeBisected,
		CulpritIndex:  culpritIdx,
		CulpritPass:   b.Pipeline.Passes[culpritIdx],
		ContextBefore: contextSlice(b.Pipeline.Passes, culpritIdx-2, culpritIdx),
		ContextAfter:  contextSlice(b.Pipeline.Passes, culpritIdx+1, culpritIdx+3),
	}
	return result, nil
}

// contextSlice returns passes[max(0,from):min(len,to)], clamped to the
// slice's bounds.
func contextSlice(passes []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(passes) {
		to = len(passes)
	}
	if from >= to {
		return nil
	}
	out := make([]string, to-from)
	copy(out, passes[from:to])
	return out
}
