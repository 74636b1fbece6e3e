package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is a stable deduplication identifier: a hash of (kind,
// source location or PC, function name when known, compiler identity,
// flag set). Two reports sharing a Fingerprint are duplicates of the
// same anomaly.
type Fingerprint string

// Fingerprint computes the deduplication fingerprint for a. Function
// name is always included in the hash input, even when empty, so that
// two anomalies at the same PC in different functions (possible after
// inlining collapses PCs, or when PC is the only available locator)
// never collide — omitting it would be a defect class, not a
// convenience.
func (a Anomaly) Fingerprint() Fingerprint {
	h := sha256.New()

	fmt.Fprintf(h, "kind=%s\x00", a.Kind)

	if !a.Source.Unknown() {
		fmt.Fprintf(h, "loc=%s:%d\x00", a.Source.File, a.Source.Line)
	} else {
		fmt.Fprintf(h, "pc=%x\x00", a.PC)
	}

	fmt.Fprintf(h, "func=%s\x00", a.Source.Function)
	fmt.Fprintf(h, "compiler=%s:%s\x00", a.Build.Compiler, a.Build.Version)
	fmt.Fprintf(h, "flags=%s\x00", a.Build.Flags)

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
