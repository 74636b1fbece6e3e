package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trace2pass/trace2pass/internal/report"
)

func TestDedupSetFlagsRepeat(t *testing.T) {
	d := newDedupSet()
	fp := report.Fingerprint("abcdef0123456789")

	require.False(t, d.seenBefore(fp))
	require.True(t, d.seenBefore(fp))
}

func TestDedupSetDistinguishesRealFingerprints(t *testing.T) {
	d := newDedupSet()

	// Two full-length (sha256, hex-encoded) fingerprints: decoding
	// before slotting must spread these across independent slots
	// rather than clustering on the 22-value ASCII alphabet hex digits
	// are drawn from.
	fpA := report.Fingerprint("d74a1ffe00242cd0fcc9bdbbf699eb6cad7708c2ceff66d9dd6d425cc6a37203")
	fpB := report.Fingerprint("18fb20d616bcd0c7d98c016f11e9cf6603f0aff361a37f12ae019ba1e9a2e72f")

	require.False(t, d.seenBefore(fpA))
	require.False(t, d.seenBefore(fpB))

	require.True(t, d.seenBefore(fpA))
	require.True(t, d.seenBefore(fpB))
}

func TestSamplerBoundaryRates(t *testing.T) {
	always := newSampler(1)
	for i := 0; i < 100; i++ {
		require.True(t, always.shouldSample())
	}

	never := newSampler(0)
	for i := 0; i < 100; i++ {
		require.False(t, never.shouldSample())
	}
}

func TestPureCacheFlagsMismatch(t *testing.T) {
	c := newPureCache()

	require.False(t, c.observe("square", []int64{4}, 16))
	require.False(t, c.observe("square", []int64{4}, 16))
	require.True(t, c.observe("square", []int64{4}, 17))
}

func TestLoopCounterReportsOnceAtThreshold(t *testing.T) {
	id := "unique-loop-counter-test-id"

	var crossings int
	for i := 0; i < 5; i++ {
		count := tickLoopCounter(id)
		if crossedThresholdFirstTime(id, count, 3) {
			crossings++
		}
	}
	require.Equal(t, 1, crossings)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv(envSampleRate, "")
	t.Setenv(envOutput, "")
	t.Setenv(envCollectorURL, "")
	t.Setenv(envEnableAllChecks, "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, "stderr", cfg.Output)
	require.False(t, cfg.AllChecks)
}

func TestConfigFromEnvRejectsOutOfRangeSampleRate(t *testing.T) {
	t.Setenv(envSampleRate, "1.5")

	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestReporterDeduplicatesIdenticalAnomalies(t *testing.T) {
	r, err := New(Config{SampleRate: 1, Output: t.TempDir() + "/out.jsonl"})
	require.NoError(t, err)
	defer r.Close()

	a := report.Anomaly{
		Kind: report.KindDivByZero,
		Source: report.SourceLocation{
			File: "main.c", Line: 5, Function: "f",
		},
	}

	require.True(t, r.Report(a))
	require.False(t, r.Report(a))
}
