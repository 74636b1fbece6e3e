package runtime

import "sync"

// loopCounters holds the process-global atomic per-loop-header
// counters. Unlike dedup/sampling/the pure cache, these are explicitly
// process-wide (not per-goroutine): the same loop header can be entered
// concurrently from many goroutines, and exactly one
// threshold-crossing report per counter for the whole process, not one
// per goroutine.
var loopCounters = struct {
	mu       sync.Mutex
	counts   map[string]uint64
	reported map[string]bool
}{
	counts:   make(map[string]uint64),
	reported: make(map[string]bool),
}

// tickLoopCounter increments the named counter and returns its new
// value.
func tickLoopCounter(id string) uint64 {
	loopCounters.mu.Lock()
	defer loopCounters.mu.Unlock()

	loopCounters.counts[id]++
	return loopCounters.counts[id]
}

// crossedThresholdFirstTime reports whether count is the first
// observation, for counter id, at or above threshold. Every later call
// for the same id returns false even if count keeps climbing, giving
// the exactly-once-per-counter report semantics this package relies on.
func crossedThresholdFirstTime(id string, count, threshold uint64) bool {
	if count < threshold {
		return false
	}

	loopCounters.mu.Lock()
	defer loopCounters.mu.Unlock()

	if loopCounters.reported[id] {
		return false
	}
	loopCounters.reported[id] = true
	return true
}
