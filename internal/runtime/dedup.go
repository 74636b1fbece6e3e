package runtime

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"

	"github.com/trace2pass/trace2pass/internal/report"
)

// dedupCapacityBits sizes the membership structure at 2^14 (16384)
// slots, targeting "on the order of 10^4 capacity" for the
// per-goroutine dedup structure. It is a fixed-size bitset rather than
// a growable map: a collision across all dedupHashCount slots is
// treated as "already seen" (a bounded, accepted false-positive rate
// in exchange for a capacity that never grows unbounded over a
// long-running process).
const dedupCapacityBits = 1 << 14

// dedupHashCount is the number of independent bit positions each
// fingerprint sets, making dedupSet an actual Bloom filter rather than
// a single-hash bitset: a false "already seen" requires all
// dedupHashCount slots to have been set by other fingerprints, not
// just one.
const dedupHashCount = 4

// dedupSet is the per-goroutine fingerprint membership structure. It is
// not safe for concurrent use — each Reporter, and therefore each
// dedupSet, belongs to exactly one goroutine (see the per-goroutine
// Reporter handle design in DESIGN.md).
type dedupSet struct {
	bits [dedupCapacityBits / 64]uint64
}

func newDedupSet() *dedupSet {
	return &dedupSet{}
}

// seenBefore reports whether fp's dedupHashCount slots were already all
// marked, marking any unset ones if not. The first call for any
// fingerprint returns false; every subsequent call for the same
// fingerprint, or the rare fingerprint whose every slot collides with
// others already seen, returns true.
func (d *dedupSet) seenBefore(fp report.Fingerprint) bool {
	var slots [dedupHashCount]uint64
	already := true

	h1, h2 := dedupHashPair(fp)
	for i := range slots {
		// Kirsch-Mitzenmacher double hashing: dedupHashCount slot
		// indices synthesized from two real hash evaluations instead
		// of dedupHashCount independent ones.
		slots[i] = (h1 + uint64(i)*h2) % dedupCapacityBits
		word, bit := slots[i]/64, slots[i]%64
		if d.bits[word]&(uint64(1)<<bit) == 0 {
			already = false
		}
	}

	for _, slot := range slots {
		word, bit := slot/64, slot%64
		d.bits[word] |= uint64(1) << bit
	}

	return already
}

// dedupHashPair derives two independent 64-bit hashes for fp. A
// Fingerprint is a hex-encoded sha256 digest; its decoded bytes are
// genuinely uniform, unlike its raw ASCII encoding (hex digits only
// span 22 distinct byte values, which would cluster slot assignments
// far more than an honest hash). Fingerprints that do not decode as hex
// (e.g. hand-built ones in tests) fall back to hashing the raw bytes
// with FNV-1a so dedup still degrades gracefully instead of panicking.
func dedupHashPair(fp report.Fingerprint) (h1, h2 uint64) {
	if digest, err := hex.DecodeString(string(fp)); err == nil && len(digest) >= 16 {
		return binary.BigEndian.Uint64(digest[0:8]),
			binary.BigEndian.Uint64(digest[8:16])
	}

	sum := fnv.New64a()
	sum.Write([]byte(fp))
	h1 = sum.Sum64()

	sum.Write([]byte{0})
	h2 = sum.Sum64()

	return h1, h2
}
