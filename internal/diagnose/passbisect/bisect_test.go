package passbisect

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/trace2pass/trace2pass/internal/report"
)

func testPipeline(passes ...string) report.PassPipeline {
	return report.PassPipeline{
		CompilerVersion: "clang-17.0.3",
		OptLevel:        "-O2",
		Passes:          passes,
		NestedText:      make([]string, len(passes)),
	}
}

func testVersions() ToolVersions {
	return ToolVersions{FrontEnd: "17.0.3", Optimizer: "17.0.3", Lowerer: "17.0.3"}
}

// monotoneOracle fails once the prefix includes badAt or more passes.
func monotoneOracle(badAt int) Oracle {
	return func(_ context.Context, n int) (report.OracleResult, error) {
		if n < badAt {
			return report.OracleResultPass, nil
		}
		return report.OracleResultFail, nil
	}
}

func TestBisectBaselineFailsWhenEmptyPrefixAlreadyFails(t *testing.T) {
	t.Parallel()

	b := &Bisector{Pipeline: testPipeline("a", "b", "c"), Versions: testVersions()}
	res, err := b.Bisect(context.Background(), monotoneOracle(0))
	require.NoError(t, err)
	require.Equal(t, report.OutcomeBaselineFail, res.Outcome)
}

func TestBisectFullPassesWhenWholePipelinePasses(t *testing.T) {
	t.Parallel()

	pipeline := testPipeline("a", "b", "c")
	b := &Bisector{Pipeline: pipeline, Versions: testVersions()}
	res, err := b.Bisect(context.Background(), monotoneOracle(pipeline.Len()+1))
	require.NoError(t, err)
	require.Equal(t, report.OutcomeFullPasses, res.Outcome)
}

func TestBisectFindsCulpritPass(t *testing.T) {
	t.Parallel()

	pipeline := testPipeline(
		"sroa", "early-cse", "instcombine", "simplifycfg", "gvn", "licm",
		"loop-unroll", "dce",
	)
	b := &Bisector{Pipeline: pipeline, Versions: testVersions()}

	// Bug appears once "gvn" (index 4) is included: prefix length 5
	// fails, prefix length 4 passes.
	badAt := 5
	res, err := b.Bisect(context.Background(), monotoneOracle(badAt))
	require.NoError(t, err)
	require.Equal(t, report.OutcomeBisected, res.Outcome)
	require.Equal(t, badAt-1, res.CulpritIndex)
	require.Equal(t, "gvn", res.CulpritPass)
	require.Equal(t, []string{"instcombine", "simplifycfg"}, res.ContextBefore)
	require.Equal(t, []string{"licm", "loop-unroll"}, res.ContextAfter)
}

func TestBisectCulpritAtPipelineBoundaryHasPartialContext(t *testing.T) {
	t.Parallel()

	pipeline := testPipeline("sroa", "early-cse")
	b := &Bisector{Pipeline: pipeline, Versions: testVersions()}

	res, err := b.Bisect(context.Background(), monotoneOracle(1))
	require.NoError(t, err)
	require.Equal(t, report.OutcomeBisected, res.Outcome)
	require.Equal(t, 0, res.CulpritIndex)
	require.Equal(t, "sroa", res.CulpritPass)
	require.Empty(t, res.ContextBefore)
	require.Equal(t, []string{"early-cse"}, res.ContextAfter)
}

func TestBisectRejectsMismatchedToolVersions(t *testing.T) {
	t.Parallel()

	b := &Bisector{
		Pipeline: testPipeline("a", "b"),
		Versions: ToolVersions{FrontEnd: "17.0.3", Optimizer: "17.0.2", Lowerer: "17.0.3"},
	}
	res, err := b.Bisect(context.Background(), monotoneOracle(1))
	require.Error(t, err)
	require.Equal(t, report.OutcomeError, res.Outcome)
}

func TestBisectRejectsUnsetToolVersions(t *testing.T) {
	t.Parallel()

	b := &Bisector{Pipeline: testPipeline("a", "b")}
	_, err := b.Bisect(context.Background(), monotoneOracle(1))
	require.Error(t, err)
}

func TestBisectEmptyPipelineIsError(t *testing.T) {
	t.Parallel()

	b := &Bisector{Versions: testVersions()}
	_, err := b.Bisect(context.Background(), monotoneOracle(0))
	require.Error(t, err)
}

func TestBisectPropagatesOracleError(t *testing.T) {
	t.Parallel()

	boom := errors.New("compile infrastructure failure")
	b := &Bisector{Pipeline: testPipeline("a", "b", "c"), Versions: testVersions()}

	oracle := func(_ context.Context, n int) (report.OracleResult, error) {
		return "", boom
	}

	res, err := b.Bisect(context.Background(), oracle)
	require.ErrorIs(t, err, boom)
	require.Equal(t, report.OutcomeError, res.Outcome)
}

// TestBisectResolvesWithinLogBound is a property test of the bisection
// call-count bound: for any monotone pass/fail oracle over a pipeline
// of length n, Bisect resolves within ceil(log2(n+1))+2 oracle calls.
func TestBisectResolvesWithinLogBound(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n")
		badAt := rapid.IntRange(0, n+1).Draw(t, "badAt")

		passes := make([]string, n)
		for i := range passes {
			passes[i] = rapid.StringMatching(`[a-z][a-z-]{2,12}`).Draw(t, "pass")
		}

		b := &Bisector{Pipeline: testPipeline(passes...), Versions: testVersions()}
		res, err := b.Bisect(context.Background(), monotoneOracle(badAt))
		require.NoError(t, err)

		switch {
		case badAt == 0:
			require.Equal(t, report.OutcomeBaselineFail, res.Outcome)
		case badAt > n:
			require.Equal(t, report.OutcomeFullPasses, res.Outcome)
		default:
			require.Equal(t, report.OutcomeBisected, res.Outcome)
			require.Equal(t, badAt-1, res.CulpritIndex)
		}

		maxCalls := int(math.Ceil(math.Log2(float64(n+1)))) + 2
		require.LessOrEqual(t, len(res.State.Observations), maxCalls)
	})
}
