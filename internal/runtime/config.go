// Package runtime is the library an instrumented binary links against:
// it receives the calls internal/instrument inserted and turns them
// into deduplicated, sampled Anomaly Reports emitted to a diagnostic
// stream and, optionally, a Collector.
package runtime

import (
	"fmt"
	"os"
	"strconv"
)

const (
	envSampleRate      = "TRACE2PASS_SAMPLE_RATE"
	envOutput          = "TRACE2PASS_OUTPUT"
	envCollectorURL    = "TRACE2PASS_COLLECTOR_URL"
	envEnableAllChecks = "TRACE2PASS_ENABLE_ALL_CHECKS"
)

// Config holds the environment-derived settings a Reporter is built
// from. Values are read once, at process start, mirroring the
// teacher's flag-and-env Config structs (e.g. internal/web.Config)
// rather than re-reading the environment on every call.
type Config struct {
	// SampleRate is the fraction of would-be reports that are actually
	// emitted, in [0, 1]. 1 means every detected anomaly is reported.
	SampleRate float64

	// Output selects the diagnostic-stream sink: "stderr" (default),
	// "stdout", or a file path.
	Output string

	// CollectorURL, if non-empty, is POSTed a copy of every sampled
	// report, best-effort and non-blocking.
	CollectorURL string

	// AllChecks mirrors instrument.ModeAllChecks so a deployment can
	// flip every instrumented binary into validation mode via the
	// environment rather than a recompile.
	AllChecks bool
}

// ConfigFromEnv builds a Config from the process environment, applying
// the documented defaults when a variable is unset or invalid.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		SampleRate: 1.0,
		Output:     "stderr",
	}

	if v, ok := os.LookupEnv(envSampleRate); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envSampleRate, err)
		}
		if rate < 0 || rate > 1 {
			return Config{}, fmt.Errorf(
				"%s: %v out of range [0, 1]", envSampleRate, rate,
			)
		}
		cfg.SampleRate = rate
	}

	if v, ok := os.LookupEnv(envOutput); ok && v != "" {
		cfg.Output = v
	}

	cfg.CollectorURL = os.Getenv(envCollectorURL)

	if v, ok := os.LookupEnv(envEnableAllChecks); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envEnableAllChecks, err)
		}
		cfg.AllChecks = enabled
	}

	return cfg, nil
}
