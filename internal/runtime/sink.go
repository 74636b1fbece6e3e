package runtime

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/trace2pass/trace2pass/internal/report"
)

// postTimeout bounds the optional Collector POST so a slow or
// unreachable Collector never backs up the instrumented process.
const postTimeout = 2 * time.Second

// sink is the dual-emission target each Reporter owns one of: the
// diagnostic stream (always) and, if configured, a Collector endpoint
// (best-effort). One small struct holding the wiring, methods doing
// the work.
type sink struct {
	w            io.Writer
	closer       io.Closer
	client       *http.Client
	collectorURL string
}

func newSink(cfg Config) (*sink, error) {
	s := &sink{collectorURL: cfg.CollectorURL}

	switch cfg.Output {
	case "", "stderr":
		s.w = os.Stderr
	case "stdout":
		s.w = os.Stdout
	default:
		f, err := os.OpenFile(
			cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644,
		)
		if err != nil {
			return nil, err
		}
		s.w = f
		s.closer = f
	}

	if s.collectorURL != "" {
		s.client = &http.Client{Timeout: postTimeout}
	}

	return s, nil
}

func (s *sink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// emit writes a to the diagnostic stream synchronously and, if a
// Collector is configured, fires a best-effort asynchronous POST. A
// Collector failure never affects the diagnostic-stream write or the
// caller in any way.
func (s *sink) emit(a report.Anomaly) {
	line, err := json.Marshal(a)
	if err == nil {
		line = append(line, '\n')
		_, _ = s.w.Write(line)
	}

	if s.client == nil {
		return
	}

	go s.postToCollector(line)
}

func (s *sink) postToCollector(body []byte) {
	req, err := http.NewRequest(
		http.MethodPost, s.collectorURL, bytes.NewReader(body),
	)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
}
