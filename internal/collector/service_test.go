package collector

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/report"
)

func testService(t *testing.T) *Service {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "collector-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := collectorstore.NewSqliteStore(&collectorstore.SqliteConfig{
		DatabaseFileName: filepath.Join(tmpDir, "test.db"),
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewService(s.Store)
}

func sampleAnomaly() report.Anomaly {
	return report.Anomaly{
		Kind: report.KindDivByZero,
		Source: report.SourceLocation{
			File: "decode.c", Line: 17, Function: "scale",
		},
		Build: report.BuildMetadata{
			Compiler: "clang", Version: "18.1.0", Flags: "-O2",
		},
		Details: report.Details{
			OperationName: "sdiv",
			Operand1:      10,
			Operand2:      0,
		},
		Timestamp: time.Now(),
	}
}

func TestServiceSubmitReportCreatesThenIncrements(t *testing.T) {
	t.Parallel()

	s := testService(t)
	ctx := context.Background()

	a := sampleAnomaly()

	resp := s.Receive(ctx, SubmitReportRequest{Anomaly: a})
	submit, err := resp.Unpack()
	require.NoError(t, err)

	first := submit.(SubmitReportResponse)
	require.Equal(t, int64(1), first.Record.Count)
	require.Equal(t, report.TriageNew, first.Record.TriageState)

	resp = s.Receive(ctx, SubmitReportRequest{Anomaly: a})
	submit, err = resp.Unpack()
	require.NoError(t, err)

	second := submit.(SubmitReportResponse)
	require.Equal(t, int64(2), second.Record.Count)
	require.Equal(t, first.Record.ID, second.Record.ID)
}

func TestServiceListQueueFiltersByState(t *testing.T) {
	t.Parallel()

	s := testService(t)
	ctx := context.Background()

	submitResp, err := s.Receive(ctx, SubmitReportRequest{
		Anomaly: sampleAnomaly(),
	}).Unpack()
	require.NoError(t, err)
	rec := submitResp.(SubmitReportResponse).Record

	setResp, err := s.Receive(ctx, SetTriageRequest{
		ID: rec.ID, State: report.TriageDismissed,
	}).Unpack()
	require.NoError(t, err)
	require.NoError(t, setResp.(SetTriageResponse).Err)

	listResp, err := s.Receive(ctx, ListQueueRequest{
		States: []report.TriageState{report.TriageNew},
	}).Unpack()
	require.NoError(t, err)
	require.Empty(t, listResp.(ListQueueResponse).Records)

	listResp, err = s.Receive(ctx, ListQueueRequest{
		States: []report.TriageState{report.TriageDismissed},
	}).Unpack()
	require.NoError(t, err)
	require.Len(t, listResp.(ListQueueResponse).Records, 1)
}

func TestServiceGetRecordNotFound(t *testing.T) {
	t.Parallel()

	s := testService(t)
	ctx := context.Background()

	resp, err := s.Receive(ctx, GetRecordRequest{ID: "missing"}).Unpack()
	require.NoError(t, err)
	require.False(t, resp.(GetRecordResponse).Found)
}

func TestServiceUpsertAndGetDiagnosis(t *testing.T) {
	t.Parallel()

	s := testService(t)
	ctx := context.Background()

	submitResp, err := s.Receive(ctx, SubmitReportRequest{
		Anomaly: sampleAnomaly(),
	}).Unpack()
	require.NoError(t, err)
	rec := submitResp.(SubmitReportResponse).Record

	diag := report.Diagnosis{
		ReportID:  rec.ID,
		UBVerdict: report.VerdictCompilerBug,
	}
	upsertResp, err := s.Receive(ctx, UpsertDiagnosisRequest{Diagnosis: diag}).Unpack()
	require.NoError(t, err)
	require.NoError(t, upsertResp.(UpsertDiagnosisResponse).Err)

	getResp, err := s.Receive(ctx, GetDiagnosisRequest{ReportID: rec.ID}).Unpack()
	require.NoError(t, err)

	got := getResp.(GetDiagnosisResponse)
	require.True(t, got.Found)
	require.Equal(t, report.VerdictCompilerBug, got.Diagnosis.UBVerdict)
}

func TestServiceDeleteAllRecords(t *testing.T) {
	t.Parallel()

	s := testService(t)
	ctx := context.Background()

	_, err := s.Receive(ctx, SubmitReportRequest{Anomaly: sampleAnomaly()}).Unpack()
	require.NoError(t, err)

	delResp, err := s.Receive(ctx, DeleteAllRecordsRequest{}).Unpack()
	require.NoError(t, err)
	require.NoError(t, delResp.(DeleteAllRecordsResponse).Err)

	listResp, err := s.Receive(ctx, ListQueueRequest{}).Unpack()
	require.NoError(t, err)
	require.Empty(t, listResp.(ListQueueResponse).Records)
}

func TestServiceUnknownMessageType(t *testing.T) {
	t.Parallel()

	s := testService(t)

	// fakeRequest implements Request by embedding a known request type,
	// but is a distinct type the Receive switch doesn't list.
	type fakeRequest struct {
		SubmitReportRequest
	}

	result := s.Receive(context.Background(), fakeRequest{})
	require.True(t, result.IsErr())
}
