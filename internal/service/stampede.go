package service

import (
	"sync"
)

// stampedeTracker counts concurrent cache misses per key. When multiple
// requests miss the same key simultaneously the count exceeds 1; the
// single-flight layer collapses the computations, this tracker only makes
// the pressure visible.
type stampedeTracker struct {
	mu           sync.Mutex
	activeMisses map[string]int // key -> concurrent misses in progress
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		activeMisses: make(map[string]int),
	}
}

// RecordMiss records a cache miss for key and returns the concurrent miss
// count after incrementing. Caller should defer RecordDone(key).
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.activeMisses[key]++
	return st.activeMisses[key]
}

// RecordDone records completion of a miss for key.
func (st *stampedeTracker) RecordDone(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if count, ok := st.activeMisses[key]; ok && count > 0 {
		st.activeMisses[key]--
		if st.activeMisses[key] == 0 {
			delete(st.activeMisses, key)
		}
	}
}
