package report

// PassPipeline is the ordered sequence of optimizer pass identifiers
// extracted from a compiler's plan at a chosen optimization level.
// Order is significant and must never be reordered; the pass bisector
// only varies the prefix length N.
type PassPipeline struct {
	// CompilerVersion names the toolchain this pipeline was extracted
	// from (e.g. "clang-17.0.3").
	CompilerVersion string

	// OptLevel is the optimization level the pipeline was extracted at
	// (e.g. "-O2").
	OptLevel string

	// Passes is the flattened top-level sequence of pass identifiers.
	// Nested pass-manager groups (function-scope, call-graph-scope,
	// loop-scope) are flattened into this single sequence; their nested
	// detail is preserved opaquely in NestedText at the same index.
	Passes []string

	// NestedText holds, for each top-level position, the verbatim
	// nested-group text the optimizer's "print pipeline" mode emitted
	// there, so that the exact prefix string can be reconstructed when
	// invoking the optimizer with passes [0, N).
	NestedText []string
}

// Len returns the number of top-level passes.
func (p PassPipeline) Len() int {
	return len(p.Passes)
}

// Prefix reconstructs the exact pipeline-description string the
// optimizer should be invoked with to run only passes [0, n).
func (p PassPipeline) Prefix(n int) string {
	if n < 0 {
		n = 0
	}
	if n > len(p.Passes) {
		n = len(p.Passes)
	}

	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		if p.NestedText != nil && i < len(p.NestedText) && p.NestedText[i] != "" {
			out += p.NestedText[i]
			continue
		}
		out += p.Passes[i]
	}
	return out
}

// Outcome is a terminal verdict for either bisector.
type Outcome string

const (
	OutcomeBisected     Outcome = "bisected"
	OutcomeBaselineFail Outcome = "baseline_fails"
	OutcomeFullPasses   Outcome = "full_passes"
	OutcomeAllPass      Outcome = "all_pass"
	OutcomeAllFail      Outcome = "all_fail"
	OutcomeError        Outcome = "error"
)

// OracleResult is one outcome of invoking the caller-supplied oracle at
// a single tested index (version or prefix length).
type OracleResult string

const (
	OracleResultPass OracleResult = "pass"
	OracleResultFail OracleResult = "fail"
	OracleResultSkip OracleResult = "skip"
	OracleResultICE  OracleResult = "ice"
)

// Observation records one oracle call made during a bisection.
type Observation struct {
	Index  int
	Result OracleResult
	Note   string
}

// BisectionState is the per-diagnosis bisection state shared by both
// bisectors.
type BisectionState struct {
	// Low is the largest index known to produce a correct binary.
	Low int

	// High is the smallest index known to reproduce the bug.
	High int

	Observations []Observation
	Verdict      Outcome
}

// Record appends an observation to the bisection's history.
func (b *BisectionState) Record(index int, result OracleResult, note string) {
	b.Observations = append(b.Observations, Observation{
		Index: index, Result: result, Note: note,
	})
}
