package report

// UBVerdict is the UB Detector's classification of one queued report.
type UBVerdict string

const (
	VerdictCompilerBug  UBVerdict = "compiler_bug"
	VerdictUserUB       UBVerdict = "user_ub"
	VerdictInconclusive UBVerdict = "inconclusive"
)

// SignalBreakdown records each of the UB Detector's three weighted
// signals. A Signal field has Available false, and contributes zero
// confidence, when that signal could not be gathered (e.g. a second compiler
// toolchain is not installed) — the detector must not default-guess a
// missing signal's contribution.
type SignalBreakdown struct {
	SanitizerClean            Signal
	OptimizationSensitivity   Signal
	CrossCompilerDifferential Signal
}

// Signal is one weighted vote contributed toward a UB verdict.
type Signal struct {
	Available bool

	// TowardCompilerBug is in [-1, 1]: positive values tilt toward
	// compiler_bug, negative toward user_ub. Ignored when Available is
	// false.
	TowardCompilerBug float64

	// Weight is this signal's contribution weight; the three signal
	// weights sum to ~1.0.
	Weight float64

	Detail string
}

// Confidence is the signal's contribution to the cumulative confidence:
// weight * normalize(towardCompilerBug) when available, 0 otherwise,
// where normalize maps [-1, 1] onto [0, 1] (0 = certain user_ub, 1 =
// certain compiler_bug).
func (s Signal) Confidence() float64 {
	if !s.Available {
		return 0
	}
	return s.Weight * (s.TowardCompilerBug + 1) / 2
}

// Diagnosis is the triple produced for one queued report: a UB verdict,
// the first bad compiler version, and the culprit optimization pass.
type Diagnosis struct {
	ReportID        string
	UBVerdict       UBVerdict
	UBConfidence    float64
	UBSignals       SignalBreakdown
	VersionState    BisectionState
	FirstBadVersion string
	LastGoodVersion string
	PassState       BisectionState
	CulpritPass     string
	CulpritIndex    int
}
