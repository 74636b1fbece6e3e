package diagnoser

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
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

func testStore(t *testing.T) *collectorstore.Store {
	t.Helper()

	dir := t.TempDir()
	s, err := collectorstore.NewSqliteStore(&collectorstore.SqliteConfig{
		DatabaseFileName: filepath.Join(dir, "test.db"),
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s.Store
}

func submitSample(t *testing.T, store *collectorstore.Store) string {
	t.Helper()

	ctx := t.Context()
	a := report.Anomaly{
		Kind: report.KindDivByZero,
		Source: report.SourceLocation{
			File: "decode.c", Line: 17, Function: "scale",
		},
		Build:     report.BuildMetadata{Compiler: "clang", Version: "18.1.0", Flags: "-O2"},
		Details:   report.Details{OperationName: "sdiv", Operand1: 10, Operand2: 0},
		Timestamp: time.Now(),
	}

	var id string
	err := store.WithTx(ctx, func(ctx context.Context, q *collectorstore.Queries) error {
		rec, err := q.UpsertRecord(ctx, a, a.Kind.Weight())
		if err != nil {
			return err
		}
		id = rec.ID
		return nil
	})
	require.NoError(t, err)

	return id
}

// fakeCompiler writes a shell script masquerading as a compiler binary,
// matching ubdetect's own test fixture idiom.
func fakeCompiler(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" +
		"out=\"\"\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"-o\" ]; then shift; out=\"$1\"; fi\n" +
		"  shift\n" +
		"done\n" +
		"if [ -n \"$out\" ]; then\n" +
		"  cat > \"$out\" <<'EOF'\n" +
		"#!/bin/sh\n" +
		body + "\n" +
		"EOF\n" +
		"  chmod +x \"$out\"\n" +
		"fi\n"

	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestAnalyzeReportPendingWhenNoDiagnosis(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	id := submitSample(t, store)

	d := New(Config{Store: store})
	v, err := d.AnalyzeReport(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, "incomplete", v.Verdict)
	require.False(t, v.Succeeds())
}

func TestAnalyzeReportUnknownRecord(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	d := New(Config{Store: store})

	_, err := d.AnalyzeReport(t.Context(), "missing")
	require.Error(t, err)
}

func TestAnalyzeReportReturnsPersistedDiagnosis(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	id := submitSample(t, store)

	diag := report.Diagnosis{ReportID: id, UBVerdict: report.VerdictCompilerBug}
	require.NoError(t, store.WithTx(t.Context(), func(ctx context.Context, q *collectorstore.Queries) error {
		return q.UpsertDiagnosis(ctx, diag)
	}))

	d := New(Config{Store: store})
	v, err := d.AnalyzeReport(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, string(report.VerdictCompilerBug), v.Verdict)
	require.True(t, v.Succeeds())
}

func TestUBDetectPersistsDiagnosis(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	id := submitSample(t, store)

	dir := t.TempDir()
	compiler := fakeCompiler(t, dir, "clang", "exit 0")
	src := filepath.Join(dir, "repro.c")
	require.NoError(t, os.WriteFile(src, []byte("int main(){return 0;}"), 0o644))

	d := New(Config{
		Store:           store,
		Spawner:         toolchain.NewSpawner(nil),
		SourcePath:      src,
		WorkDir:         dir,
		PrimaryCompiler: compiler,
	})

	v, err := d.UBDetect(t.Context(), id)
	require.NoError(t, err)
	require.NotEmpty(t, v.Verdict)
	require.NotNil(t, v.UBDetect)

	diag, err := store.GetDiagnosis(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, v.Verdict, string(diag.UBVerdict))
}

func TestVerdictSucceeds(t *testing.T) {
	t.Parallel()

	require.True(t, Verdict{Verdict: string(report.VerdictCompilerBug)}.Succeeds())
	require.True(t, Verdict{Verdict: string(report.OutcomeAllPass)}.Succeeds())
	require.False(t, Verdict{Verdict: "error"}.Succeeds())
	require.False(t, Verdict{Verdict: "incomplete"}.Succeeds())
}
