package runtime

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand/v2"
)

// sampler is the per-goroutine sampling PRNG. Each Reporter owns one so
// that sampling decisions never contend on a shared generator across
// goroutines.
type sampler struct {
	rng  *mathrand.Rand
	rate float64
}

func newSampler(rate float64) *sampler {
	return &sampler{
		rng:  mathrand.New(mathrand.NewPCG(seedWord(), seedWord())),
		rate: rate,
	}
}

func seedWord() uint64 {
	var b [8]byte
	// crypto/rand is only used to seed the per-goroutine math/rand/v2
	// source; all sampling decisions themselves go through the fast,
	// non-cryptographic generator.
	if _, err := rand.Read(b[:]); err != nil {
		// Entropy source unavailable: fall back to a fixed seed rather
		// than failing report emission outright. Sampling becomes
		// deterministic but still functions.
		return 0x9e3779b97f4a7c15
	}
	return binary.LittleEndian.Uint64(b[:])
}

// shouldSample reports whether the current event should be emitted,
// comparing against the generator's true [0, 1) output directly (no
// modulo reduction, which would bias the distribution toward lower
// values).
func (s *sampler) shouldSample() bool {
	if s.rate >= 1 {
		return true
	}
	if s.rate <= 0 {
		return false
	}
	return s.rng.Float64() < s.rate
}
