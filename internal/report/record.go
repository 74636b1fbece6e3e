package report

import (
	"math"
	"time"
)

// TriageState is the Collector Record's lifecycle state.
type TriageState string

const (
	TriageNew            TriageState = "new"
	TriageUnderDiagnosis TriageState = "under-diagnosis"
	TriageDiagnosed      TriageState = "diagnosed"
	TriageDismissed      TriageState = "dismissed"
)

// Record is one Collector Record: the aggregate of every Anomaly
// sharing a Fingerprint. Each Record holds exactly one representative
// Report; subsequent duplicates update Count and
// LastSeen only.
type Record struct {
	ID             string
	Fingerprint    Fingerprint
	Kind           Kind
	SeverityWeight float64
	Count          int64
	FirstSeen      time.Time
	LastSeen       time.Time
	Representative Anomaly
	TriageState    TriageState
}

// Priority implements the collector's priority function:
//
//	priority = occurrence_count * severity_weight(kind) * recency_factor(now - last_seen)
//
// Recency is computed from LastSeen, never FirstSeen, so a long-dormant
// fingerprint does not permanently outrank a current spike.
func (r Record) Priority(now time.Time) float64 {
	return float64(r.Count) * r.SeverityWeight * recencyFactor(now.Sub(r.LastSeen))
}

// recencyHalfLife is the age at which recencyFactor halves. This is a
// design parameter chosen so that a report
// seen an hour ago still outweighs one seen a week ago but doesn't
// collapse to zero within a single triage session.
const recencyHalfLife = 24 * time.Hour

// recencyFactor decays smoothly from 1.0 (age == 0) towards 0 as age
// grows, halving every recencyHalfLife.
func recencyFactor(age time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	halvings := float64(age) / float64(recencyHalfLife)
	return math.Exp2(-halvings)
}
