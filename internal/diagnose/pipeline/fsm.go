// Package pipeline implements the full-pipeline diagnosis FSM (New →
// UBDetecting → VersionBisecting → PassBisecting → {Diagnosed,
// Dismissed}) that drives one Collector Record from dequeue through
// final diagnosis, using a ProcessEvent/outbox-events idiom: states
// decide, outbox events carry out the side effects.
package pipeline

import (
	"context"
	"fmt"
)

// FSM manages diagnosis state transitions using the ProcessEvent
// pattern.
type FSM struct {
	state State
	env   *Environment
}

// New creates a diagnosis FSM for recordID, starting in State New.
func New(recordID string) *FSM {
	return &FSM{
		state: &StateNew{},
		env:   &Environment{RecordID: recordID},
	}
}

// FromPersisted recreates a diagnosis FSM from a persisted
// pipeline_state string, for resuming an in-flight diagnosis after a
// restart.
func FromPersisted(recordID, stateStr string) *FSM {
	return &FSM{
		state: StateFromString(stateStr),
		env:   &Environment{RecordID: recordID},
	}
}

// ProcessEvent processes an event and returns the outbox events that
// should be dispatched to external collaborators.
func (f *FSM) ProcessEvent(ctx context.Context, event Event) ([]OutboxEvent, error) {
	transition, err := f.state.ProcessEvent(ctx, event, f.env)
	if err != nil {
		return nil, fmt.Errorf("pipeline: process event %T: %w", event, err)
	}

	f.state = transition.NextState

	return transition.OutboxEvents, nil
}

// CurrentState returns the FSM's current state name.
func (f *FSM) CurrentState() string { return f.state.String() }

// State returns the current State value.
func (f *FSM) State() State { return f.state }

// IsTerminal reports whether the diagnosis has reached a terminal state.
func (f *FSM) IsTerminal() bool { return f.state.IsTerminal() }

// Environment returns the FSM's environment, including whatever
// Diagnosis has accumulated so far.
func (f *FSM) Environment() *Environment { return f.env }
