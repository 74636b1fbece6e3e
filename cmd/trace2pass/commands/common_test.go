package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trace2pass/trace2pass/internal/diagnose/diagnoser"
)

func TestSplitFields(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"./is-bad.sh", "{{version}}"},
		splitFields("./is-bad.sh {{version}}"))
	require.Nil(t, splitFields(""))
	require.Equal(t, []string{"a"}, splitFields("  a  "))
}

func TestPrintVerdictErrorsOnNonSuccessVerdict(t *testing.T) {
	t.Parallel()

	err := printVerdict(diagnoser.Verdict{Operation: "ub-detect", Verdict: "error"})
	require.Error(t, err)

	err = printVerdict(diagnoser.Verdict{Operation: "ub-detect", Verdict: "compiler_bug"})
	require.NoError(t, err)
}
