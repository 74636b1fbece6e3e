package pipeline

import "github.com/trace2pass/trace2pass/internal/report"

// OutboxEvent is the sealed interface for events emitted by the
// diagnosis FSM to external collaborators. These trigger side effects
// like database persistence, UI notification, and invoking the next
// Diagnoser stage.
type OutboxEvent interface {
	isOutboxEvent()
}

func (PersistTriageState) isOutboxEvent()   {}
func (PersistPipelineState) isOutboxEvent() {}
func (PersistDiagnosis) isOutboxEvent()     {}
func (NotifyStageChange) isOutboxEvent()    {}
func (RunUBDetect) isOutboxEvent()          {}
func (RunVersionBisect) isOutboxEvent()     {}
func (RunPassBisect) isOutboxEvent()        {}

// PersistTriageState requests an update of the record's coarse
// report.TriageState ({new, under-diagnosis, diagnosed, dismissed}).
type PersistTriageState struct {
	RecordID string
	NewState report.TriageState
}

// PersistPipelineState requests persistence of the FSM's fine-grained
// sub-stage string, for crash recovery (see collectorstore's
// pipeline_state column).
type PersistPipelineState struct {
	RecordID string
	NewState string
}

// PersistDiagnosis requests persistence of the (possibly partial)
// Diagnosis accumulated so far.
type PersistDiagnosis struct {
	RecordID  string
	Diagnosis report.Diagnosis
}

// NotifyStageChange notifies subscribers (the Collector's websocket
// live feed) of a diagnosis sub-stage transition.
type NotifyStageChange struct {
	RecordID string
	OldStage string
	NewStage string
}

// RunUBDetect requests that the Diagnoser invoke the UB Detector for
// RecordID and feed back a UBDetectedEvent.
type RunUBDetect struct {
	RecordID string
}

// RunVersionBisect requests that the Diagnoser invoke the Version
// Bisector for RecordID and feed back a VersionBisectedEvent.
type RunVersionBisect struct {
	RecordID string
}

// RunPassBisect requests that the Diagnoser invoke the Pass Bisector
// for RecordID and feed back a PassBisectedEvent.
type RunPassBisect struct {
	RecordID string
}
