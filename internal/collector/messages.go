package collector

import (
	"github.com/trace2pass/trace2pass/internal/baselib/actor"
	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/report"
)

// ServiceKey is the actor service key for the collector. Every Submit
// call from an instrumented process resolves to a Tell/Ask against the
// actor registered under this key, so concurrent submissions are
// serialized through the actor's mailbox in arrival order.
var ServiceKey = actor.NewServiceKey[Request, Response]("collector-service")

// Request is the sealed union of messages the collector actor accepts.
type Request interface {
	actor.Message
	isRequest()
}

func (SubmitReportRequest) isRequest()     {}
func (ListQueueRequest) isRequest()        {}
func (GetRecordRequest) isRequest()        {}
func (SetTriageRequest) isRequest()        {}
func (DeleteRecordRequest) isRequest()     {}
func (DeleteAllRecordsRequest) isRequest() {}
func (StatsRequest) isRequest()            {}
func (GetDiagnosisRequest) isRequest()     {}
func (UpsertDiagnosisRequest) isRequest()  {}

// MessageType implements actor.Message.
func (SubmitReportRequest) MessageType() string     { return "SubmitReportRequest" }
func (ListQueueRequest) MessageType() string        { return "ListQueueRequest" }
func (GetRecordRequest) MessageType() string        { return "GetRecordRequest" }
func (SetTriageRequest) MessageType() string        { return "SetTriageRequest" }
func (DeleteRecordRequest) MessageType() string     { return "DeleteRecordRequest" }
func (DeleteAllRecordsRequest) MessageType() string { return "DeleteAllRecordsRequest" }
func (StatsRequest) MessageType() string            { return "StatsRequest" }
func (GetDiagnosisRequest) MessageType() string     { return "GetDiagnosisRequest" }
func (UpsertDiagnosisRequest) MessageType() string  { return "UpsertDiagnosisRequest" }

// Response is the sealed union of messages the collector actor returns.
type Response interface {
	isResponse()
}

func (SubmitReportResponse) isResponse()     {}
func (ListQueueResponse) isResponse()        {}
func (GetRecordResponse) isResponse()        {}
func (SetTriageResponse) isResponse()        {}
func (DeleteRecordResponse) isResponse()     {}
func (DeleteAllRecordsResponse) isResponse() {}
func (StatsResponse) isResponse()            {}
func (GetDiagnosisResponse) isResponse()     {}
func (UpsertDiagnosisResponse) isResponse()  {}

// SubmitReportRequest ingests one Anomaly, folding it into its
// fingerprint's Record if one already exists.
type SubmitReportRequest struct {
	actor.BaseMessage
	Anomaly report.Anomaly
}

type SubmitReportResponse struct {
	Record report.Record
}

// ListQueueRequest lists every Record whose triage state is in States.
// An empty States lists every Record regardless of state.
type ListQueueRequest struct {
	actor.BaseMessage
	States []report.TriageState
}

type ListQueueResponse struct {
	Records []report.Record
}

// GetRecordRequest fetches a single Record by ID.
type GetRecordRequest struct {
	actor.BaseMessage
	ID string
}

type GetRecordResponse struct {
	Record report.Record
	Found  bool
}

// SetTriageRequest transitions a Record's triage state, e.g. when the
// diagnosis pipeline dequeues a Record for diagnosis or an operator
// dismisses one.
type SetTriageRequest struct {
	actor.BaseMessage
	ID    string
	State report.TriageState
}

type SetTriageResponse struct {
	Err error
}

// DeleteRecordRequest removes one Record (and its diagnosis, if any).
type DeleteRecordRequest struct {
	actor.BaseMessage
	ID string
}

type DeleteRecordResponse struct {
	Err error
}

// DeleteAllRecordsRequest clears the store, for test fixtures and
// operator-triggered resets.
type DeleteAllRecordsRequest struct {
	actor.BaseMessage
}

type DeleteAllRecordsResponse struct {
	Err error
}

// StatsRequest asks for the aggregate queue statistics shown on
// /api/v1/stats.
type StatsRequest struct {
	actor.BaseMessage
}

type StatsResponse struct {
	Stats collectorstore.Stats
}

// GetDiagnosisRequest fetches the completed Diagnosis for a Record, if
// the pipeline has produced one.
type GetDiagnosisRequest struct {
	actor.BaseMessage
	ReportID string
}

type GetDiagnosisResponse struct {
	Diagnosis report.Diagnosis
	Found     bool
}

// UpsertDiagnosisRequest persists a pipeline-produced Diagnosis,
// replacing any prior diagnosis for the same ReportID.
type UpsertDiagnosisRequest struct {
	actor.BaseMessage
	Diagnosis report.Diagnosis
}

type UpsertDiagnosisResponse struct {
	Err error
}
