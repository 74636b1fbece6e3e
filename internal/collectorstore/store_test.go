package collectorstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trace2pass/trace2pass/internal/report"
)

func testStore(t *testing.T) *SqliteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "collectorstore-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := NewSqliteStore(&SqliteConfig{
		DatabaseFileName: filepath.Join(tmpDir, "test.db"),
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func sampleAnomaly() report.Anomaly {
	return report.Anomaly{
		Kind: report.KindArithOverflow,
		Source: report.SourceLocation{
			File: "matrix.c", Line: 42, Function: "mul_accumulate",
		},
		Build: report.BuildMetadata{
			Compiler: "clang", Version: "17.0.0", Flags: "-O2",
		},
		Details: report.Details{
			ExpressionTag: "x mul y",
			Operand1:      1 << 40,
			Operand2:      1 << 40,
		},
		Timestamp: time.Now(),
	}
}

func TestUpsertRecordCreatesThenIncrements(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	a := sampleAnomaly()

	rec, err := s.Queries.UpsertRecord(ctx, a, 1.0)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.Count)
	require.Equal(t, report.TriageNew, rec.TriageState)

	rec2, err := s.Queries.UpsertRecord(ctx, a, 1.0)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec2.Count)
	require.Equal(t, rec.ID, rec2.ID)
	require.Equal(t, rec.FirstSeen.Unix(), rec2.FirstSeen.Unix())
}

func TestGetRecordByFingerprintNotFound(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	_, err := s.Queries.GetRecordByFingerprint(ctx, report.Fingerprint("bogus"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListRecordsFiltersByTriageState(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	a1 := sampleAnomaly()
	a2 := sampleAnomaly()
	a2.Source.Function = "other_fn"

	rec1, err := s.Queries.UpsertRecord(ctx, a1, 1.0)
	require.NoError(t, err)
	_, err = s.Queries.UpsertRecord(ctx, a2, 1.0)
	require.NoError(t, err)

	require.NoError(t, s.Queries.SetTriageState(ctx, rec1.ID, report.TriageDismissed))

	newOnly, err := s.Queries.ListRecords(ctx, []report.TriageState{report.TriageNew})
	require.NoError(t, err)
	require.Len(t, newOnly, 1)

	dismissed, err := s.Queries.ListRecords(
		ctx, []report.TriageState{report.TriageDismissed},
	)
	require.NoError(t, err)
	require.Len(t, dismissed, 1)
	require.Equal(t, rec1.ID, dismissed[0].ID)
}

func TestDeleteRecordNotFound(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	err := s.Queries.DeleteRecord(ctx, "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertAndGetDiagnosisRoundTripsStructFields(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	a := sampleAnomaly()
	rec, err := s.Queries.UpsertRecord(ctx, a, 1.0)
	require.NoError(t, err)

	diag := report.Diagnosis{
		ReportID:     rec.ID,
		UBVerdict:    report.VerdictCompilerBug,
		UBConfidence: 0.91,
		UBSignals: report.SignalBreakdown{
			SanitizerClean: report.Signal{
				Available: true, TowardCompilerBug: 1, Weight: 0.5,
			},
		},
		VersionState: report.BisectionState{
			Low: 0, High: 1,
		},
		FirstBadVersion: "17.0.0",
		LastGoodVersion: "16.0.0",
		PassState: report.BisectionState{
			Low: 0, High: 12,
		},
		CulpritPass:  "loop-vectorize",
		CulpritIndex: 7,
	}

	require.NoError(t, s.Queries.UpsertDiagnosis(ctx, diag))

	got, err := s.Queries.GetDiagnosis(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, diag.UBVerdict, got.UBVerdict)
	require.InDelta(t, diag.UBConfidence, got.UBConfidence, 1e-9)
	require.Equal(t, diag.UBSignals, got.UBSignals)
	require.Equal(t, diag.VersionState, got.VersionState)
	require.Equal(t, diag.PassState, got.PassState)
	require.Equal(t, diag.CulpritPass, got.CulpritPass)
	require.Equal(t, diag.CulpritIndex, got.CulpritIndex)

	// Upsert again with a different verdict; same report_id updates in
	// place rather than producing a duplicate row.
	diag.UBVerdict = report.VerdictUserUB
	require.NoError(t, s.Queries.UpsertDiagnosis(ctx, diag))

	got2, err := s.Queries.GetDiagnosis(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, report.VerdictUserUB, got2.UBVerdict)
}

func TestStatsCountsByKindAndState(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := sampleAnomaly()
		a.Source.Line = 100 + i
		_, err := s.Queries.UpsertRecord(ctx, a, 1.0)
		require.NoError(t, err)
	}

	stats, err := s.Queries.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 3, stats.ByKind[report.KindArithOverflow])
	require.Equal(t, 3, stats.QueueLength)
}

func TestSetAndGetPipelineStateRoundTrips(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	rec, err := s.Queries.UpsertRecord(ctx, sampleAnomaly(), 1.0)
	require.NoError(t, err)

	state, err := s.Queries.GetPipelineState(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "new", state)

	require.NoError(t, s.Queries.SetPipelineState(ctx, rec.ID, "version_bisecting"))

	state, err = s.Queries.GetPipelineState(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "version_bisecting", state)
}

func TestSetPipelineStateNotFound(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	err := s.Queries.SetPipelineState(context.Background(), "does-not-exist", "diagnosed")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	a := sampleAnomaly()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, q *Queries) error {
		if _, err := q.UpsertRecord(ctx, a, 1.0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The insert made inside the rolled-back transaction never
	// committed.
	err = s.WithReadTx(ctx, func(ctx context.Context, q *Queries) error {
		_, err := q.GetRecordByFingerprint(ctx, a.Fingerprint())
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMigrationsAreIdempotentOnReopen(t *testing.T) {
	t.Parallel()

	tmpDir, err := os.MkdirTemp("", "collectorstore-reopen-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	dbPath := filepath.Join(tmpDir, "test.db")
	cfg := &SqliteConfig{DatabaseFileName: dbPath}

	s1, err := NewSqliteStore(cfg, slog.Default())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewSqliteStore(cfg, slog.Default())
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Queries.UpsertRecord(context.Background(), sampleAnomaly(), 1.0)
	require.NoError(t, err)
}
