package pipeline

import (
	"context"
	"fmt"

	"github.com/trace2pass/trace2pass/internal/report"
)

// State is the sealed interface for all diagnosis FSM states. Each
// state handles incoming events and returns a transition with optional
// outbox events for side effects.
type State interface {
	ProcessEvent(ctx context.Context, event Event,
		env *Environment) (*Transition, error)

	IsTerminal() bool
	String() string

	isState()
}

// Transition is the result of processing one event.
type Transition struct {
	NextState    State
	OutboxEvents []OutboxEvent
}

// Environment carries the one record being diagnosed plus whatever
// partial Diagnosis has accumulated so far, so a terminal state can
// assemble the final report.Diagnosis regardless of which stage it
// terminated at.
type Environment struct {
	RecordID string

	Diagnosis report.Diagnosis
}

var (
	_ State = (*StateNew)(nil)
	_ State = (*StateUBDetecting)(nil)
	_ State = (*StateVersionBisecting)(nil)
	_ State = (*StatePassBisecting)(nil)
	_ State = (*StateDiagnosed)(nil)
	_ State = (*StateDismissed)(nil)
)

// StateFromString reconstructs a State from its persisted string
// representation (collectorstore's pipeline_state column), used when
// recovering in-flight diagnoses on restart.
func StateFromString(s string) State {
	switch s {
	case "new":
		return &StateNew{}
	case "ub_detecting":
		return &StateUBDetecting{}
	case "version_bisecting":
		return &StateVersionBisecting{}
	case "pass_bisecting":
		return &StatePassBisecting{}
	case "diagnosed":
		return &StateDiagnosed{}
	case "dismissed":
		return &StateDismissed{}
	default:
		return &StateNew{}
	}
}

// =============================================================================
// StateNew: record is queued but diagnosis has not started.
// =============================================================================

type StateNew struct{}

func (s *StateNew) ProcessEvent(_ context.Context, event Event,
	env *Environment) (*Transition, error) {

	switch event.(type) {
	case DequeueEvent:
		return &Transition{
			NextState: &StateUBDetecting{},
			OutboxEvents: []OutboxEvent{
				PersistTriageState{RecordID: env.RecordID, NewState: report.TriageUnderDiagnosis},
				PersistPipelineState{RecordID: env.RecordID, NewState: "ub_detecting"},
				NotifyStageChange{RecordID: env.RecordID, OldStage: "new", NewStage: "ub_detecting"},
				RunUBDetect{RecordID: env.RecordID},
			},
		}, nil

	case DismissEvent:
		return dismiss(env, "new")

	default:
		return nil, fmt.Errorf("pipeline: unexpected event %T in state New", event)
	}
}

func (s *StateNew) IsTerminal() bool { return false }
func (s *StateNew) String() string   { return "new" }
func (s *StateNew) isState()         {}

// =============================================================================
// StateUBDetecting: the UB Detector is running.
// =============================================================================

type StateUBDetecting struct{}

func (s *StateUBDetecting) ProcessEvent(_ context.Context, event Event,
	env *Environment) (*Transition, error) {

	switch e := event.(type) {
	case UBDetectedEvent:
		env.Diagnosis.ReportID = env.RecordID
		env.Diagnosis.UBVerdict = e.Verdict
		env.Diagnosis.UBConfidence = e.Confidence
		env.Diagnosis.UBSignals = e.Signals

		if e.Verdict != report.VerdictCompilerBug {
			return diagnosed(env, "ub_detecting")
		}

		return &Transition{
			NextState: &StateVersionBisecting{},
			OutboxEvents: []OutboxEvent{
				PersistPipelineState{RecordID: env.RecordID, NewState: "version_bisecting"},
				NotifyStageChange{
					RecordID: env.RecordID, OldStage: "ub_detecting",
					NewStage: "version_bisecting",
				},
				RunVersionBisect{RecordID: env.RecordID},
			},
		}, nil

	case DismissEvent:
		return dismiss(env, "ub_detecting")

	default:
		return nil, fmt.Errorf(
			"pipeline: unexpected event %T in state UBDetecting", event,
		)
	}
}

func (s *StateUBDetecting) IsTerminal() bool { return false }
func (s *StateUBDetecting) String() string   { return "ub_detecting" }
func (s *StateUBDetecting) isState()         {}

// =============================================================================
// StateVersionBisecting: the Version Bisector is running.
// =============================================================================

type StateVersionBisecting struct{}

func (s *StateVersionBisecting) ProcessEvent(_ context.Context, event Event,
	env *Environment) (*Transition, error) {

	switch e := event.(type) {
	case VersionBisectedEvent:
		env.Diagnosis.VersionState = e.State
		env.Diagnosis.FirstBadVersion = e.FirstBadVersion
		env.Diagnosis.LastGoodVersion = e.LastGoodVersion

		if e.Outcome != report.OutcomeBisected {
			return diagnosed(env, "version_bisecting")
		}

		return &Transition{
			NextState: &StatePassBisecting{},
			OutboxEvents: []OutboxEvent{
				PersistPipelineState{RecordID: env.RecordID, NewState: "pass_bisecting"},
				NotifyStageChange{
					RecordID: env.RecordID, OldStage: "version_bisecting",
					NewStage: "pass_bisecting",
				},
				RunPassBisect{RecordID: env.RecordID},
			},
		}, nil

	case DismissEvent:
		return dismiss(env, "version_bisecting")

	default:
		return nil, fmt.Errorf(
			"pipeline: unexpected event %T in state VersionBisecting", event,
		)
	}
}

func (s *StateVersionBisecting) IsTerminal() bool { return false }
func (s *StateVersionBisecting) String() string   { return "version_bisecting" }
func (s *StateVersionBisecting) isState()         {}

// =============================================================================
// StatePassBisecting: the Pass Bisector is running.
// =============================================================================

type StatePassBisecting struct{}

func (s *StatePassBisecting) ProcessEvent(_ context.Context, event Event,
	env *Environment) (*Transition, error) {

	switch e := event.(type) {
	case PassBisectedEvent:
		env.Diagnosis.PassState = e.State
		env.Diagnosis.CulpritPass = e.CulpritPass
		env.Diagnosis.CulpritIndex = e.CulpritIndex

		return diagnosed(env, "pass_bisecting")

	case DismissEvent:
		return dismiss(env, "pass_bisecting")

	default:
		return nil, fmt.Errorf(
			"pipeline: unexpected event %T in state PassBisecting", event,
		)
	}
}

func (s *StatePassBisecting) IsTerminal() bool { return false }
func (s *StatePassBisecting) String() string   { return "pass_bisecting" }
func (s *StatePassBisecting) isState()         {}

// =============================================================================
// StateDiagnosed: terminal. Final Diagnosis has been assembled.
// =============================================================================

type StateDiagnosed struct{}

func (s *StateDiagnosed) ProcessEvent(_ context.Context, event Event,
	_ *Environment) (*Transition, error) {

	return nil, fmt.Errorf(
		"pipeline: state Diagnosed is terminal, got event %T", event,
	)
}

func (s *StateDiagnosed) IsTerminal() bool { return true }
func (s *StateDiagnosed) String() string   { return "diagnosed" }
func (s *StateDiagnosed) isState()         {}

// =============================================================================
// StateDismissed: terminal. No diagnosis was produced.
// =============================================================================

type StateDismissed struct{}

func (s *StateDismissed) ProcessEvent(_ context.Context, event Event,
	_ *Environment) (*Transition, error) {

	return nil, fmt.Errorf(
		"pipeline: state Dismissed is terminal, got event %T", event,
	)
}

func (s *StateDismissed) IsTerminal() bool { return true }
func (s *StateDismissed) String() string   { return "dismissed" }
func (s *StateDismissed) isState()         {}

// diagnosed builds the shared terminal transition into StateDiagnosed,
// persisting both the coarse triage state and the accumulated
// Diagnosis.
func diagnosed(env *Environment, fromStage string) (*Transition, error) {
	return &Transition{
		NextState: &StateDiagnosed{},
		OutboxEvents: []OutboxEvent{
			PersistPipelineState{RecordID: env.RecordID, NewState: "diagnosed"},
			PersistTriageState{RecordID: env.RecordID, NewState: report.TriageDiagnosed},
			PersistDiagnosis{RecordID: env.RecordID, Diagnosis: env.Diagnosis},
			NotifyStageChange{RecordID: env.RecordID, OldStage: fromStage, NewStage: "diagnosed"},
		},
	}, nil
}

// dismiss builds the shared terminal transition into StateDismissed.
func dismiss(env *Environment, fromStage string) (*Transition, error) {
	return &Transition{
		NextState: &StateDismissed{},
		OutboxEvents: []OutboxEvent{
			PersistPipelineState{RecordID: env.RecordID, NewState: "dismissed"},
			PersistTriageState{RecordID: env.RecordID, NewState: report.TriageDismissed},
			NotifyStageChange{RecordID: env.RecordID, OldStage: fromStage, NewStage: "dismissed"},
		},
	}, nil
}
