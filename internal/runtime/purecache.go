package runtime

import "hash/maphash"

// pureCacheCapacity bounds the per-goroutine pure-function observation
// cache at 1024 entries: a function+argument combination
// that collides with a different one already resident simply evicts it
// rather than growing the structure or chaining.
const pureCacheCapacity = 1024

type pureCacheEntry struct {
	occupied bool
	key      uint64
	result   int64
}

// pureCache is the per-goroutine bounded cache backing the
// pure-function-consistency check: it remembers the most recent result
// observed for a given (function, args) pair and flags a mismatch when
// a later call with the same key produces a different result.
type pureCache struct {
	entries [pureCacheCapacity]pureCacheEntry
	seed    maphash.Seed
}

func newPureCache() *pureCache {
	return &pureCache{seed: maphash.MakeSeed()}
}

// observe records (name, args, result) and reports whether it
// contradicts a previously cached observation for the same key. A
// cache eviction (a different key landing in the same slot) is never
// treated as a mismatch — there is nothing to contradict.
func (c *pureCache) observe(name string, args []int64, result int64) (mismatch bool) {
	key := pureCacheKey(c.seed, name, args)
	slot := key % pureCacheCapacity

	e := &c.entries[slot]
	if e.occupied && e.key == key {
		mismatch = e.result != result
	}

	e.occupied = true
	e.key = key
	e.result = result

	return mismatch
}

func pureCacheKey(seed maphash.Seed, name string, args []int64) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(name)
	for _, a := range args {
		var b [8]byte
		for i := range b {
			b[i] = byte(a >> (8 * i))
		}
		h.Write(b[:])
	}
	return h.Sum64()
}
