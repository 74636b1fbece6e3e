package collectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trace2pass/trace2pass/internal/report"
)

// DBTX is the minimal subset of *sql.DB / *sql.Tx Queries needs, the
// same narrowing a generated sqlc.Querier is typically built against
// (internal/db). There is no code-generation pipeline available to
// this module (no .sql->Go generator output shipped with the pack), so
// Queries is hand-written directly against database/sql instead of
// sqlc-generated, but keeps the same method-per-statement shape a
// generated Querier would have.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier is the subset of Queries' methods BatchedQuerier requires to
// exist on both a *sql.DB-backed and *sql.Tx-backed Queries.
type Querier interface {
	UpsertRecord(ctx context.Context, a report.Anomaly, weight float64) (report.Record, error)
	GetRecordByFingerprint(ctx context.Context, fp report.Fingerprint) (report.Record, error)
	GetRecord(ctx context.Context, id string) (report.Record, error)
	ListRecords(ctx context.Context, states []report.TriageState) ([]report.Record, error)
	SetTriageState(ctx context.Context, id string, state report.TriageState) error
	SetPipelineState(ctx context.Context, id, state string) error
	GetPipelineState(ctx context.Context, id string) (string, error)
	DeleteRecord(ctx context.Context, id string) error
	DeleteAllRecords(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	UpsertDiagnosis(ctx context.Context, d report.Diagnosis) error
	GetDiagnosis(ctx context.Context, reportID string) (report.Diagnosis, error)
}

// Queries is the hand-written query layer, bound to either a *sql.DB or
// a *sql.Tx via DBTX, the same way a generated sqlc.Queries is.
type Queries struct {
	db DBTX
}

// New returns a Queries bound to db (a *sql.DB or a *sql.Tx).
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Stats summarizes the record table for the Collector's /stats
// endpoint.
type Stats struct {
	Total       int
	ByKind      map[report.Kind]int
	ByState     map[report.TriageState]int
	QueueLength int
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("collectorstore: record not found")

// UpsertRecord inserts a new Record for a's fingerprint, or folds a
// into an existing one: incrementing count and advancing last_seen,
// leaving first_seen and the representative anomaly untouched — the
// first occurrence is kept as the representative.
func (q *Queries) UpsertRecord(ctx context.Context, a report.Anomaly,
	weight float64) (report.Record, error) {

	fp := a.Fingerprint()
	now := a.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	existing, err := q.GetRecordByFingerprint(ctx, fp)
	if err == nil {
		existing.Count++
		existing.LastSeen = now

		_, execErr := q.db.ExecContext(ctx, `
			UPDATE collector_records
			SET count = ?, last_seen = ?
			WHERE fingerprint = ?`,
			existing.Count, existing.LastSeen, string(fp),
		)
		if execErr != nil {
			return report.Record{}, execErr
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return report.Record{}, err
	}

	repJSON, err := json.Marshal(a)
	if err != nil {
		return report.Record{}, err
	}

	rec := report.Record{
		ID:             uuid.NewString(),
		Fingerprint:    fp,
		Kind:           a.Kind,
		SeverityWeight: weight,
		Count:          1,
		FirstSeen:      now,
		LastSeen:       now,
		Representative: a,
		TriageState:    report.TriageNew,
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO collector_records (
			id, fingerprint, kind, severity_weight, count,
			first_seen, last_seen, representative_json, triage_state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Fingerprint), string(rec.Kind),
		rec.SeverityWeight, rec.Count, rec.FirstSeen, rec.LastSeen,
		string(repJSON), string(rec.TriageState),
	)
	if err != nil {
		return report.Record{}, err
	}

	return rec, nil
}

func (q *Queries) GetRecordByFingerprint(ctx context.Context,
	fp report.Fingerprint) (report.Record, error) {

	row := q.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, kind, severity_weight, count,
		       first_seen, last_seen, representative_json, triage_state
		FROM collector_records WHERE fingerprint = ?`, string(fp),
	)
	return scanRecord(row)
}

func (q *Queries) GetRecord(ctx context.Context, id string) (report.Record, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, kind, severity_weight, count,
		       first_seen, last_seen, representative_json, triage_state
		FROM collector_records WHERE id = ?`, id,
	)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (report.Record, error) {
	var (
		rec     report.Record
		repJSON string
	)
	err := row.Scan(
		&rec.ID, &rec.Fingerprint, &rec.Kind, &rec.SeverityWeight,
		&rec.Count, &rec.FirstSeen, &rec.LastSeen, &repJSON,
		&rec.TriageState,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Record{}, ErrNotFound
	}
	if err != nil {
		return report.Record{}, err
	}

	if err := json.Unmarshal([]byte(repJSON), &rec.Representative); err != nil {
		return report.Record{}, err
	}
	return rec, nil
}

// ListRecords returns every record whose triage state is in states, in
// no particular order — the Collector's triage queue sorts by
// report.Record.Priority itself, since priority depends on "now" at
// read time, not at write time.
func (q *Queries) ListRecords(ctx context.Context,
	states []report.TriageState) ([]report.Record, error) {

	query := `
		SELECT id, fingerprint, kind, severity_weight, count,
		       first_seen, last_seen, representative_json, triage_state
		FROM collector_records`

	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += " WHERE triage_state IN (" + placeholders(len(states)) + ")"
		for _, s := range states {
			args = append(args, string(s))
		}
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func (q *Queries) SetTriageState(ctx context.Context, id string,
	state report.TriageState) error {

	res, err := q.db.ExecContext(ctx, `
		UPDATE collector_records SET triage_state = ? WHERE id = ?`,
		string(state), id,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// SetPipelineState persists the diagnosis FSM's fine-grained sub-stage
// string (e.g. "ub_detecting", "version_bisecting") so a crashed
// Diagnoser process can recover exactly where it left off, distinct
// from the coarse report.TriageState the triage UI shows.
func (q *Queries) SetPipelineState(ctx context.Context, id, state string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE collector_records SET pipeline_state = ? WHERE id = ?`,
		state, id,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (q *Queries) GetPipelineState(ctx context.Context, id string) (string, error) {
	var state string
	err := q.db.QueryRowContext(ctx, `
		SELECT pipeline_state FROM collector_records WHERE id = ?`, id,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return state, err
}

func (q *Queries) DeleteRecord(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM collector_records WHERE id = ?`, id,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (q *Queries) DeleteAllRecords(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM diagnoses`)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `DELETE FROM collector_records`)
	return err
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByKind:  make(map[report.Kind]int),
		ByState: make(map[report.TriageState]int),
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT kind, triage_state, COUNT(*)
		FROM collector_records GROUP BY kind, triage_state`,
	)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  report.Kind
			state report.TriageState
			count int
		)
		if err := rows.Scan(&kind, &state, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		stats.ByKind[kind] += count
		stats.ByState[state] += count
		if state == report.TriageNew || state == report.TriageUnderDiagnosis {
			stats.QueueLength += count
		}
	}
	return stats, rows.Err()
}

func (q *Queries) UpsertDiagnosis(ctx context.Context, d report.Diagnosis) error {
	signalsJSON, err := json.Marshal(d.UBSignals)
	if err != nil {
		return err
	}
	versionJSON, err := json.Marshal(d.VersionState)
	if err != nil {
		return err
	}
	passJSON, err := json.Marshal(d.PassState)
	if err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO diagnoses (
			report_id, ub_verdict, ub_confidence, ub_signals_json,
			version_state_json, first_bad_version, last_good_version,
			pass_state_json, culprit_pass, culprit_index, diagnosed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (report_id) DO UPDATE SET
			ub_verdict = excluded.ub_verdict,
			ub_confidence = excluded.ub_confidence,
			ub_signals_json = excluded.ub_signals_json,
			version_state_json = excluded.version_state_json,
			first_bad_version = excluded.first_bad_version,
			last_good_version = excluded.last_good_version,
			pass_state_json = excluded.pass_state_json,
			culprit_pass = excluded.culprit_pass,
			culprit_index = excluded.culprit_index,
			diagnosed_at = excluded.diagnosed_at`,
		d.ReportID, string(d.UBVerdict), d.UBConfidence, string(signalsJSON),
		string(versionJSON), d.FirstBadVersion, d.LastGoodVersion,
		string(passJSON), d.CulpritPass, d.CulpritIndex, time.Now(),
	)
	return err
}

func (q *Queries) GetDiagnosis(ctx context.Context,
	reportID string) (report.Diagnosis, error) {

	var (
		d                                  report.Diagnosis
		signalsJSON, versionJSON, passJSON string
		diagnosedAt                        time.Time
	)
	row := q.db.QueryRowContext(ctx, `
		SELECT report_id, ub_verdict, ub_confidence, ub_signals_json,
		       version_state_json, first_bad_version, last_good_version,
		       pass_state_json, culprit_pass, culprit_index, diagnosed_at
		FROM diagnoses WHERE report_id = ?`, reportID,
	)
	err := row.Scan(
		&d.ReportID, &d.UBVerdict, &d.UBConfidence, &signalsJSON,
		&versionJSON, &d.FirstBadVersion, &d.LastGoodVersion,
		&passJSON, &d.CulpritPass, &d.CulpritIndex, &diagnosedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Diagnosis{}, ErrNotFound
	}
	if err != nil {
		return report.Diagnosis{}, err
	}

	if err := json.Unmarshal([]byte(signalsJSON), &d.UBSignals); err != nil {
		return report.Diagnosis{}, err
	}
	if err := json.Unmarshal([]byte(versionJSON), &d.VersionState); err != nil {
		return report.Diagnosis{}, err
	}
	if err := json.Unmarshal([]byte(passJSON), &d.PassState); err != nil {
		return report.Diagnosis{}, err
	}

	return d, nil
}
