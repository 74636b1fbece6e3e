package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/report"
)

// Service is the collector actor behavior: every Submit, triage-state
// change, and queue read is dispatched here, one at a time, off the
// actor's mailbox.
type Service struct {
	store *collectorstore.Store
}

// NewService creates a collector service backed by store.
func NewService(store *collectorstore.Store) *Service {
	return &Service{store: store}
}

// Receive implements actor.ActorBehavior by dispatching to
// type-specific handlers.
func (s *Service) Receive(ctx context.Context, msg Request) fn.Result[Response] {
	switch m := msg.(type) {
	case SubmitReportRequest:
		resp, err := s.handleSubmitReport(ctx, m)
		if err != nil {
			return fn.Err[Response](err)
		}
		return fn.Ok[Response](resp)

	case ListQueueRequest:
		resp, err := s.handleListQueue(ctx, m)
		if err != nil {
			return fn.Err[Response](err)
		}
		return fn.Ok[Response](resp)

	case GetRecordRequest:
		return fn.Ok[Response](s.handleGetRecord(ctx, m))

	case SetTriageRequest:
		return fn.Ok[Response](s.handleSetTriage(ctx, m))

	case DeleteRecordRequest:
		return fn.Ok[Response](s.handleDeleteRecord(ctx, m))

	case DeleteAllRecordsRequest:
		return fn.Ok[Response](s.handleDeleteAllRecords(ctx))

	case StatsRequest:
		resp, err := s.handleStats(ctx)
		if err != nil {
			return fn.Err[Response](err)
		}
		return fn.Ok[Response](resp)

	case GetDiagnosisRequest:
		return fn.Ok[Response](s.handleGetDiagnosis(ctx, m))

	case UpsertDiagnosisRequest:
		return fn.Ok[Response](s.handleUpsertDiagnosis(ctx, m))

	default:
		return fn.Err[Response](fmt.Errorf(
			"collector: unknown message type: %T", msg,
		))
	}
}

func (s *Service) handleSubmitReport(ctx context.Context,
	req SubmitReportRequest) (SubmitReportResponse, error) {

	var rec report.Record
	err := s.store.WithTx(ctx, func(ctx context.Context,
		q *collectorstore.Queries) error {

		var err error
		rec, err = q.UpsertRecord(ctx, req.Anomaly, req.Anomaly.Kind.Weight())
		return err
	})
	if err != nil {
		return SubmitReportResponse{}, fmt.Errorf(
			"collector: submit report: %w", err)
	}
	return SubmitReportResponse{Record: rec}, nil
}

func (s *Service) handleListQueue(ctx context.Context,
	req ListQueueRequest) (ListQueueResponse, error) {

	recs, err := s.store.ListRecords(ctx, req.States)
	if err != nil {
		return ListQueueResponse{}, fmt.Errorf(
			"collector: list queue: %w", err)
	}
	return ListQueueResponse{Records: recs}, nil
}

func (s *Service) handleGetRecord(ctx context.Context,
	req GetRecordRequest) GetRecordResponse {

	rec, err := s.store.GetRecord(ctx, req.ID)
	if errors.Is(err, collectorstore.ErrNotFound) {
		return GetRecordResponse{Found: false}
	}
	if err != nil {
		return GetRecordResponse{Found: false}
	}
	return GetRecordResponse{Record: rec, Found: true}
}

func (s *Service) handleSetTriage(ctx context.Context,
	req SetTriageRequest) SetTriageResponse {

	err := s.store.WithTx(ctx, func(ctx context.Context,
		q *collectorstore.Queries) error {

		return q.SetTriageState(ctx, req.ID, req.State)
	})
	return SetTriageResponse{Err: err}
}

func (s *Service) handleDeleteRecord(ctx context.Context,
	req DeleteRecordRequest) DeleteRecordResponse {

	err := s.store.WithTx(ctx, func(ctx context.Context,
		q *collectorstore.Queries) error {

		return q.DeleteRecord(ctx, req.ID)
	})
	return DeleteRecordResponse{Err: err}
}

func (s *Service) handleDeleteAllRecords(ctx context.Context) DeleteAllRecordsResponse {
	err := s.store.WithTx(ctx, func(ctx context.Context,
		q *collectorstore.Queries) error {

		return q.DeleteAllRecords(ctx)
	})
	return DeleteAllRecordsResponse{Err: err}
}

func (s *Service) handleStats(ctx context.Context) (StatsResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return StatsResponse{}, fmt.Errorf("collector: stats: %w", err)
	}
	return StatsResponse{Stats: stats}, nil
}

func (s *Service) handleGetDiagnosis(ctx context.Context,
	req GetDiagnosisRequest) GetDiagnosisResponse {

	d, err := s.store.GetDiagnosis(ctx, req.ReportID)
	if errors.Is(err, collectorstore.ErrNotFound) {
		return GetDiagnosisResponse{Found: false}
	}
	if err != nil {
		return GetDiagnosisResponse{Found: false}
	}
	return GetDiagnosisResponse{Diagnosis: d, Found: true}
}

func (s *Service) handleUpsertDiagnosis(ctx context.Context,
	req UpsertDiagnosisRequest) UpsertDiagnosisResponse {

	err := s.store.WithTx(ctx, func(ctx context.Context,
		q *collectorstore.Queries) error {

		return q.UpsertDiagnosis(ctx, req.Diagnosis)
	})
	return UpsertDiagnosisResponse{Err: err}
}
