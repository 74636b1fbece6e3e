package pipeline

import "github.com/trace2pass/trace2pass/internal/report"

// Event is the sealed interface for events that drive the diagnosis
// FSM. All event types must implement the unexported isEvent() method.
type Event interface {
	isEvent()
}

func (DequeueEvent) isEvent()         {}
func (UBDetectedEvent) isEvent()      {}
func (VersionBisectedEvent) isEvent() {}
func (PassBisectedEvent) isEvent()    {}
func (DismissEvent) isEvent()         {}

// DequeueEvent is sent when the Diagnoser picks a New record off the
// triage queue and begins diagnosis.
type DequeueEvent struct{}

// UBDetectedEvent carries the UB Detector's completed verdict.
type UBDetectedEvent struct {
	Verdict    report.UBVerdict
	Confidence float64
	Signals    report.SignalBreakdown
}

// VersionBisectedEvent carries the Version Bisector's completed result,
// run only when UBDetectedEvent's verdict was compiler_bug.
type VersionBisectedEvent struct {
	Outcome         report.Outcome
	State           report.BisectionState
	FirstBadVersion string
	LastGoodVersion string
}

// PassBisectedEvent carries the Pass Bisector's completed result, run
// only when VersionBisectedEvent's outcome was bisected.
type PassBisectedEvent struct {
	Outcome      report.Outcome
	State        report.BisectionState
	CulpritPass  string
	CulpritIndex int
}

// DismissEvent is sent when an operator dismisses a record (e.g. known
// duplicate, not worth diagnosing) from any non-terminal state.
type DismissEvent struct {
	Reason string
}
