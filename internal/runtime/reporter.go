package runtime

import (
	"time"

	"github.com/trace2pass/trace2pass/internal/report"
)

// loopIterationThreshold mirrors instrument.loopIterationThreshold; it
// is redeclared here (rather than imported) to keep this package free
// of a dependency on the instrumentation engine — the runtime library
// ships inside the instrumented binary, the engine does not.
const loopIterationThreshold = 10_000_000

// Reporter is the per-goroutine handle an instrumented binary calls
// into. Go has no thread-local-storage equivalent to the original
// per-thread runtime state this library's design is modeled on, so
// Reporter makes that state an explicit value the caller holds (e.g.
// in a goroutine-local variable seeded at goroutine start) rather than
// something the library locates implicitly (see DESIGN.md's Open
// Question decision).
type Reporter struct {
	cfg       Config
	dedup     *dedupSet
	sampler   *sampler
	pureCache *pureCache
	sink      *sink
}

// New builds a Reporter from cfg. Every Reporter opens its own sink
// (the diagnostic-stream file handle, if Output names a path); callers
// that want many goroutines sharing one log file should pass a Config
// with Output set to "stderr"/"stdout", or arrange their own fan-in.
func New(cfg Config) (*Reporter, error) {
	s, err := newSink(cfg)
	if err != nil {
		return nil, err
	}

	return &Reporter{
		cfg:       cfg,
		dedup:     newDedupSet(),
		sampler:   newSampler(cfg.SampleRate),
		pureCache: newPureCache(),
		sink:      s,
	}, nil
}

// Close releases the Reporter's sink resources.
func (r *Reporter) Close() error {
	return r.sink.Close()
}

// Report runs a through sampling and dedup and, if it survives both,
// emits it. It returns whether the anomaly was actually emitted.
func (r *Reporter) Report(a report.Anomaly) bool {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	if !r.sampler.shouldSample() {
		return false
	}
	if r.dedup.seenBefore(a.Fingerprint()) {
		return false
	}

	r.sink.emit(a)
	return true
}

// ReportArithOverflow is the entry point the Instrumentation Engine's
// inserted overflow-check call targets.
func (r *Reporter) ReportArithOverflow(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
	op string, operand1, operand2, result int64,
) bool {
	return r.Report(report.Anomaly{
		Kind:   report.KindArithOverflow,
		PC:     pc,
		Source: src,
		Build:  build,
		Details: report.Details{
			OperationName:  op,
			Operand1:       operand1,
			Operand2:       operand2,
			ObservedResult: result,
		},
	})
}

// ReportShiftOverflow is the entry point the shift-overflow check
// targets.
func (r *Reporter) ReportShiftOverflow(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
	shiftAmount int64, width int,
) bool {
	return r.Report(report.Anomaly{
		Kind:   report.KindShiftOverflow,
		PC:     pc,
		Source: src,
		Build:  build,
		Details: report.Details{
			OperationName: "shl",
			Operand1:      shiftAmount,
			SourceWidth:   width,
		},
	})
}

// ReportUnreachable is the entry point the unreachable-execution check
// targets.
func (r *Reporter) ReportUnreachable(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
) bool {
	return r.Report(report.Anomaly{
		Kind:   report.KindUnreachable,
		PC:     pc,
		Source: src,
		Build:  build,
	})
}

// ReportDivByZero is the entry point the division-by-zero check
// targets.
func (r *Reporter) ReportDivByZero(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
) bool {
	return r.Report(report.Anomaly{
		Kind:   report.KindDivByZero,
		PC:     pc,
		Source: src,
		Build:  build,
	})
}

// ReportSignConversion is the entry point the sign-conversion check
// targets.
func (r *Reporter) ReportSignConversion(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
	sourceWidth, destWidth int,
) bool {
	return r.Report(report.Anomaly{
		Kind:   report.KindSignConversion,
		PC:     pc,
		Source: src,
		Build:  build,
		Details: report.Details{
			SourceWidth: sourceWidth,
			DestWidth:   destWidth,
		},
	})
}

// ReportBoundsViolation is the entry point the memory-bounds check
// targets.
func (r *Reporter) ReportBoundsViolation(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
	base uintptr, offset int64,
) bool {
	return r.Report(report.Anomaly{
		Kind:   report.KindBoundsViolation,
		PC:     pc,
		Source: src,
		Build:  build,
		Details: report.Details{
			PointerBase: base,
			Offset:      offset,
		},
	})
}

// CheckPureConsistency is the entry point the pure-function check
// targets. Unlike the others it decides for itself, via the
// per-goroutine cache, whether this call contradicts a prior
// observation, and only reports when it does.
func (r *Reporter) CheckPureConsistency(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
	funcName string, args []int64, result int64,
) bool {
	if !r.pureCache.observe(funcName, args, result) {
		return false
	}

	return r.Report(report.Anomaly{
		Kind:   report.KindPureInconsistency,
		PC:     pc,
		Source: src,
		Build:  build,
		Details: report.Details{
			FunctionName:   funcName,
			ObservedResult: result,
		},
	})
}

// TickLoopCounter is the entry point the loop-iteration-bound check
// targets. It increments the process-global counter for counterID and
// reports exactly once, the first time it crosses
// loopIterationThreshold.
func (r *Reporter) TickLoopCounter(
	pc uintptr, src report.SourceLocation, build report.BuildMetadata,
	counterID string,
) bool {
	count := tickLoopCounter(counterID)
	if !crossedThresholdFirstTime(counterID, count, loopIterationThreshold) {
		return false
	}

	return r.Report(report.Anomaly{
		Kind:   report.KindLoopBoundExceeded,
		PC:     pc,
		Source: src,
		Build:  build,
		Details: report.Details{
			IterationCount: count,
			Threshold:      loopIterationThreshold,
		},
	})
}
