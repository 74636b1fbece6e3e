// Package diagnoser wires the three diagnosis stages (UB Detector,
// Version Bisector, Pass Bisector) and the full-pipeline FSM to a
// single Collector Record, acting as the Diagnoser command interface's
// engine: both cmd/trace2pass and internal/mcp call these operations
// rather than reaching into internal/diagnose/* directly.
package diagnoser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/diagnose/passbisect"
	"github.com/trace2pass/trace2pass/internal/diagnose/pipeline"
	"github.com/trace2pass/trace2pass/internal/diagnose/ubdetect"
	"github.com/trace2pass/trace2pass/internal/diagnose/versionbisect"
	"github.com/trace2pass/trace2pass/internal/report"
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

// Config names the toolchains and reproduction recipe the Diagnoser
// uses for one invocation. The CLI and MCP server populate this from
// flags/tool arguments; nothing here is persisted.
type Config struct {
	Store   *collectorstore.Store
	Spawner *toolchain.Spawner

	// SourcePath is the minimized reproducer source fed to every
	// compiler invocation across all three stages.
	SourcePath string
	RunArgs    []string
	WorkDir    string
	Timeout    time.Duration

	PrimaryCompiler   string
	SecondaryCompiler string

	// Versions is the ordered (oldest to newest) list of installable
	// compiler versions the Version Bisector searches over.
	Versions []string

	// OracleCmd is a shell command template run once per bisection
	// probe; "{{version}}" or "{{prefix}}" in the template is replaced
	// with the probed version string or pass-prefix length before
	// execution. Exit code 0 is pass, 1 is fail, 125 is skip (matching
	// git-bisect's convention), anything else is treated as an ICE.
	OracleCmd []string
}

// Diagnoser runs the five command-interface operations against one
// Config.
type Diagnoser struct {
	cfg Config
}

// New creates a Diagnoser from cfg.
func New(cfg Config) *Diagnoser {
	return &Diagnoser{cfg: cfg}
}

// Verdict is the structured JSON result every operation returns,
// shared across all five so the CLI/MCP layer can apply the exit-code
// contract uniformly.
type Verdict struct {
	Operation string `json:"operation"`
	RecordID  string `json:"record_id,omitempty"`
	Verdict   string `json:"verdict"`
	Reason    string `json:"reason,omitempty"`

	Diagnosis *report.Diagnosis `json:"diagnosis,omitempty"`
	UBDetect  *UBDetectResult   `json:"ub_detect,omitempty"`
	Bisection *BisectionResult  `json:"bisection,omitempty"`
}

// UBDetectResult is the ub-detect operation's payload.
type UBDetectResult struct {
	Confidence float64                `json:"confidence"`
	Signals    report.SignalBreakdown `json:"signals"`
}

// BisectionResult is shared by version-bisect and pass-bisect.
type BisectionResult struct {
	State           report.BisectionState `json:"state"`
	FirstBadVersion string                `json:"first_bad_version,omitempty"`
	LastGoodVersion string                `json:"last_good_version,omitempty"`
	CulpritPass     string                `json:"culprit_pass,omitempty"`
	CulpritIndex    int                   `json:"culprit_index,omitempty"`
}

// succeeds reports whether verdict belongs to the exit-code-zero set.
func succeeds(verdict string) bool {
	switch verdict {
	case string(report.VerdictCompilerBug), string(report.VerdictUserUB),
		string(report.OutcomeBisected), string(report.OutcomeAllPass),
		string(report.OutcomeAllFail):

		return true
	default:
		return false
	}
}

// Succeeds reports whether v's verdict belongs to the exit-code-zero
// set {compiler_bug, user_ub, bisected, all_pass, all_fail}.
func (v Verdict) Succeeds() bool { return succeeds(v.Verdict) }

// AnalyzeReport inspects a Collector Record's current diagnosis state
// without running any diagnosis stage — the read-only "where does this
// report currently stand" operation.
func (d *Diagnoser) AnalyzeReport(ctx context.Context, recordID string) (Verdict, error) {
	rec, err := d.cfg.Store.GetRecord(ctx, recordID)
	if err != nil {
		return Verdict{}, fmt.Errorf("diagnoser: analyze-report: %w", err)
	}

	v := Verdict{Operation: "analyze-report", RecordID: recordID}

	diag, err := d.cfg.Store.GetDiagnosis(ctx, recordID)
	switch {
	case err == nil:
		v.Verdict = string(diag.UBVerdict)
		v.Diagnosis = &diag
	case rec.TriageState == report.TriageDismissed:
		v.Verdict = "incomplete"
		v.Reason = "record was dismissed before diagnosis completed"
	default:
		v.Verdict = "incomplete"
		v.Reason = fmt.Sprintf("record is in triage state %q; no diagnosis yet", rec.TriageState)
	}

	return v, nil
}

// reproducer builds the ubdetect.Reproducer shared reproduction recipe
// from the Diagnoser's config.
func (d *Diagnoser) reproducer() ubdetect.Reproducer {
	return ubdetect.Reproducer{
		SourcePath: d.cfg.SourcePath,
		RunArgs:    d.cfg.RunArgs,
		WorkDir:    d.cfg.WorkDir,
		Timeout:    d.cfg.Timeout,
	}
}

// UBDetect runs the UB Detector standalone and, when recordID is
// non-empty, persists the resulting Diagnosis fragment.
func (d *Diagnoser) UBDetect(ctx context.Context, recordID string) (Verdict, error) {
	det := ubdetect.NewDetector(d.cfg.Spawner, d.cfg.PrimaryCompiler)
	det.SecondaryCompiler = d.cfg.SecondaryCompiler

	verdict, confidence, signals, err := det.Detect(ctx, d.reproducer())
	if err != nil {
		return Verdict{
			Operation: "ub-detect", RecordID: recordID,
			Verdict: "error", Reason: err.Error(),
		}, nil
	}

	v := Verdict{
		Operation: "ub-detect",
		RecordID:  recordID,
		Verdict:   string(verdict),
		UBDetect:  &UBDetectResult{Confidence: confidence, Signals: signals},
	}

	if recordID != "" {
		diag := report.Diagnosis{
			ReportID: recordID, UBVerdict: verdict,
			UBConfidence: confidence, UBSignals: signals,
		}
		if err := d.cfg.Store.WithTx(ctx, func(ctx context.Context,
			q *collectorstore.Queries) error {

			return q.UpsertDiagnosis(ctx, diag)
		}); err != nil {
			return Verdict{}, fmt.Errorf("diagnoser: persist ub-detect diagnosis: %w", err)
		}
	}

	return v, nil
}

// runOracle runs Config.OracleCmd once for one bisection probe,
// replacing every argument equal to placeholder with value, and
// classifies the exit status as a report.OracleResult.
func (d *Diagnoser) runOracle(ctx context.Context, placeholder, value string) (report.OracleResult, error) {
	if len(d.cfg.OracleCmd) == 0 {
		return "", fmt.Errorf("diagnoser: no oracle command configured")
	}

	argv := make([]string, len(d.cfg.OracleCmd))
	for i, a := range d.cfg.OracleCmd {
		if a == placeholder {
			a = value
		}
		argv[i] = a
	}

	res, err := d.cfg.Spawner.Spawn(ctx, "diagnoser-oracle", argv,
		toolchain.WithWorkDir(d.cfg.WorkDir), toolchain.WithTimeout(d.cfg.Timeout))
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return report.OracleResultICE, nil
	}

	switch res.ExitCode {
	case 0:
		return report.OracleResultPass, nil
	case 1:
		return report.OracleResultFail, nil
	case 125:
		return report.OracleResultSkip, nil
	default:
		return report.OracleResultICE, nil
	}
}

// VersionBisect runs the Version Bisector standalone.
func (d *Diagnoser) VersionBisect(ctx context.Context, recordID string) (Verdict, error) {
	b := &versionbisect.Bisector{Versions: d.cfg.Versions}

	res, err := b.Bisect(ctx, func(ctx context.Context, idx int) (report.OracleResult, error) {
		return d.runOracle(ctx, "{{version}}", d.cfg.Versions[idx])
	})
	if err != nil {
		return Verdict{
			Operation: "version-bisect", RecordID: recordID,
			Verdict: "error", Reason: err.Error(),
		}, nil
	}

	v := Verdict{
		Operation: "version-bisect",
		RecordID:  recordID,
		Verdict:   string(res.Outcome),
		Bisection: &BisectionResult{
			State:           res.State,
			FirstBadVersion: res.FirstBadVersion,
			LastGoodVersion: res.LastGoodVersion,
		},
	}
	return v, nil
}

// PassBisect runs the Pass Bisector standalone against the single
// compiler version passed as compilerVersion. FullPipeline does not
// call it; its pass-bisect stage runs in dispatchOutbox.
func (d *Diagnoser) PassBisect(ctx context.Context, recordID, compilerVersion string) (Verdict, error) {
	versions := passbisect.ToolVersions{
		FrontEnd: compilerVersion, Optimizer: compilerVersion, Lowerer: compilerVersion,
	}

	pipe, err := passbisect.ExtractPipeline(ctx, d.cfg.Spawner, d.cfg.PrimaryCompiler,
		compilerVersion, d.cfg.cfgOptLevel(), d.cfg.SourcePath,
		toolchain.WithWorkDir(d.cfg.WorkDir), toolchain.WithTimeout(d.cfg.Timeout))
	if err != nil {
		return Verdict{
			Operation: "pass-bisect", RecordID: recordID,
			Verdict: "error", Reason: err.Error(),
		}, nil
	}

	b := &passbisect.Bisector{Pipeline: pipe, Versions: versions}
	res, err := b.Bisect(ctx, func(ctx context.Context, n int) (report.OracleResult, error) {
		return d.runOracle(ctx, "{{prefix}}", strconv.Itoa(n))
	})
	if err != nil {
		return Verdict{
			Operation: "pass-bisect", RecordID: recordID,
			Verdict: "error", Reason: err.Error(),
		}, nil
	}

	return Verdict{
		Operation: "pass-bisect",
		RecordID:  recordID,
		Verdict:   string(res.Outcome),
		Bisection: &BisectionResult{
			State: res.State, CulpritPass: res.CulpritPass, CulpritIndex: res.CulpritIndex,
		},
	}, nil
}

// cfgOptLevel is the comparison optimization level used for pass
// pipeline extraction; "-O2" matches ubdetect.Detector's default.
func (c Config) cfgOptLevel() string { return "-O2" }

// FullPipeline drives recordID from dequeue through final diagnosis,
// running each stage in turn and feeding its outcome back into the FSM
// as the corresponding event, persisting every outbox side effect
// along the way. Each stage runs to completion before the FSM
// advances, satisfying the single-threaded-driver property at the
// pipeline level.
func (d *Diagnoser) FullPipeline(ctx context.Context, recordID string) (Verdict, error) {
	if _, err := d.cfg.Store.GetRecord(ctx, recordID); err != nil {
		return Verdict{}, fmt.Errorf("diagnoser: full-pipeline: %w", err)
	}

	fsm := pipeline.New(recordID)

	event := pipeline.Event(pipeline.DequeueEvent{})
	for !fsm.IsTerminal() {
		outbox, err := fsm.ProcessEvent(ctx, event)
		if err != nil {
			return Verdict{
				Operation: "full-pipeline", RecordID: recordID,
				Verdict: "error", Reason: err.Error(),
			}, nil
		}

		event, err = d.dispatchOutbox(ctx, fsm, outbox)
		if err != nil {
			return Verdict{
				Operation: "full-pipeline", RecordID: recordID,
				Verdict: "error", Reason: err.Error(),
			}, nil
		}
		if fsm.IsTerminal() {
			break
		}
	}

	diag := fsm.Environment().Diagnosis
	v := Verdict{Operation: "full-pipeline", RecordID: recordID, Diagnosis: &diag}
	if fsm.CurrentState() == "dismissed" {
		v.Verdict = "incomplete"
		v.Reason = "pipeline dismissed the record before reaching a diagnosis"
		return v, nil
	}

	v.Verdict = string(diag.UBVerdict)
	return v, nil
}

// dispatchOutbox carries out every outbox event from one FSM
// transition, persisting state and invoking the next Diagnoser stage
// when asked, returning the event that should drive the FSM's next
// ProcessEvent call.
func (d *Diagnoser) dispatchOutbox(ctx context.Context, fsm *pipeline.FSM,
	outbox []pipeline.OutboxEvent) (pipeline.Event, error) {

	var next pipeline.Event

	for _, ev := range outbox {
		switch e := ev.(type) {
		case pipeline.PersistTriageState:
			err := d.cfg.Store.WithTx(ctx, func(ctx context.Context,
				q *collectorstore.Queries) error {

				return q.SetTriageState(ctx, e.RecordID, e.NewState)
			})
			if err != nil {
				return nil, fmt.Errorf("diagnoser: persist triage state: %w", err)
			}

		case pipeline.PersistPipelineState:
			err := d.cfg.Store.WithTx(ctx, func(ctx context.Context,
				q *collectorstore.Queries) error {

				return q.SetPipelineState(ctx, e.RecordID, e.NewState)
			})
			if err != nil {
				return nil, fmt.Errorf("diagnoser: persist pipeline state: %w", err)
			}

		case pipeline.PersistDiagnosis:
			err := d.cfg.Store.WithTx(ctx, func(ctx context.Context,
				q *collectorstore.Queries) error {

				return q.UpsertDiagnosis(ctx, e.Diagnosis)
			})
			if err != nil {
				return nil, fmt.Errorf("diagnoser: persist diagnosis: %w", err)
			}

		case pipeline.NotifyStageChange:
			// Stage-change notification is surfaced to the Collector's
			// websocket live feed by the daemon wiring that owns both
			// the pipeline driver and the Collector's Hub; the
			// standalone CLI/MCP path has no subscriber to notify.

		case pipeline.RunUBDetect:
			verdict, confidence, signals, err := ubdetect.NewDetector(
				d.cfg.Spawner, d.cfg.PrimaryCompiler,
			).Detect(ctx, d.reproducer())
			if err != nil {
				return nil, fmt.Errorf("diagnoser: ub-detect stage: %w", err)
			}
			next = pipeline.UBDetectedEvent{
				Verdict: verdict, Confidence: confidence, Signals: signals,
			}

		case pipeline.RunVersionBisect:
			b := &versionbisect.Bisector{Versions: d.cfg.Versions}
			res, err := b.Bisect(ctx, func(ctx context.Context, idx int) (report.OracleResult, error) {
				return d.runOracle(ctx, "{{version}}", d.cfg.Versions[idx])
			})
			if err != nil {
				return nil, fmt.Errorf("diagnoser: version-bisect stage: %w", err)
			}
			next = pipeline.VersionBisectedEvent{
				Outcome: res.Outcome, State: res.State,
				FirstBadVersion: res.FirstBadVersion, LastGoodVersion: res.LastGoodVersion,
			}

		case pipeline.RunPassBisect:
			version := fsm.Environment().Diagnosis.FirstBadVersion
			if version == "" && len(d.cfg.Versions) > 0 {
				version = d.cfg.Versions[len(d.cfg.Versions)-1]
			}

			pipe, err := passbisect.ExtractPipeline(ctx, d.cfg.Spawner,
				d.cfg.PrimaryCompiler, version, d.cfg.cfgOptLevel(), d.cfg.SourcePath,
				toolchain.WithWorkDir(d.cfg.WorkDir), toolchain.WithTimeout(d.cfg.Timeout))
			if err != nil {
				return nil, fmt.Errorf("diagnoser: pass-bisect stage: %w", err)
			}

			b := &passbisect.Bisector{
				Pipeline: pipe,
				Versions: passbisect.ToolVersions{FrontEnd: version, Optimizer: version, Lowerer: version},
			}
			res, err := b.Bisect(ctx, func(ctx context.Context, n int) (report.OracleResult, error) {
				return d.runOracle(ctx, "{{prefix}}", strconv.Itoa(n))
			})
			if err != nil {
				return nil, fmt.Errorf("diagnoser: pass-bisect stage: %w", err)
			}
			next = pipeline.PassBisectedEvent{
				Outcome: res.Outcome, State: res.State,
				CulpritPass: res.CulpritPass, CulpritIndex: res.CulpritIndex,
			}
		}
	}

	return next, nil
}
