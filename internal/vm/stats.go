package vm

import (
	"sync/atomic"
	"time"
)

// Stats collects the observable side effects §4.5 calls for:
// executions, cache hits, and cumulative execution time. Every method
// is lock-free (atomic counters only), matching the sharded/lock-free
// discipline the concurrency model requires for shared mutable state.
type Stats struct {
	executions   atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	timeouts     atomic.Int64
	cumulativeNs atomic.Int64
}

// RecordExecution records one completed execution and its wall time.
func (s *Stats) RecordExecution(d time.Duration) {
	s.executions.Add(1)
	s.cumulativeNs.Add(int64(d))
}

// RecordCacheHit records a result-cache hit.
func (s *Stats) RecordCacheHit() { s.cacheHits.Add(1) }

// RecordCacheMiss records a result-cache miss.
func (s *Stats) RecordCacheMiss() { s.cacheMisses.Add(1) }

// RecordTimeout records an execution that aborted on deadline expiry.
func (s *Stats) RecordTimeout() { s.timeouts.Add(1) }

// Snapshot is an immutable point-in-time copy of Stats, safe to read
// and share without further synchronization.
type Snapshot struct {
	Executions    int64
	CacheHits     int64
	CacheMisses   int64
	Timeouts      int64
	CumulativeNs  int64
	AverageNs     int64
}

// Snapshot copies the current counter values into a Snapshot.
func (s *Stats) Snapshot() Snapshot {
	exec := s.executions.Load()
	cum := s.cumulativeNs.Load()
	var avg int64
	if exec > 0 {
		avg = cum / exec
	}
	return Snapshot{
		Executions:   exec,
		CacheHits:    s.cacheHits.Load(),
		CacheMisses:  s.cacheMisses.Load(),
		Timeouts:     s.timeouts.Load(),
		CumulativeNs: cum,
		AverageNs:    avg,
	}
}
