package local

import "sync/atomic"

// Stats holds tier counters using atomics for lock-free updates. Counters
// are monotonically increasing and reset only on process restart.
type Stats struct {
	hits          atomic.Int64
	misses        atomic.Int64
	loadSuccesses atomic.Int64
	loadFailures  atomic.Int64
	totalLoadTime atomic.Int64 // nanoseconds
}

func (s *Stats) hit()  { s.hits.Add(1) }
func (s *Stats) miss() { s.misses.Add(1) }

func (s *Stats) loadSuccess(ns int64) {
	s.loadSuccesses.Add(1)
	s.totalLoadTime.Add(ns)
}

func (s *Stats) loadFailure(ns int64) {
	s.loadFailures.Add(1)
	s.totalLoadTime.Add(ns)
}

// Snapshot is a point-in-time copy of tier statistics.
type Snapshot struct {
	Hits           int64
	Misses         int64
	LoadSuccesses  int64
	LoadFailures   int64
	TotalLoadTime  int64 // nanoseconds
	Evictions      int64
	EvictionWeight int64
}

// Requests is the total number of lookups (hits + misses).
func (s Snapshot) Requests() int64 { return s.Hits + s.Misses }

// HitRate returns the hit rate in [0, 1]; 0 when there were no requests.
func (s Snapshot) HitRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate returns the miss rate in [0, 1]; 0 when there were no requests.
func (s Snapshot) MissRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// LoadFailureRate returns the fraction of loads that failed or returned no
// data; 0 when nothing was loaded.
func (s Snapshot) LoadFailureRate() float64 {
	total := s.LoadSuccesses + s.LoadFailures
	if total == 0 {
		return 0
	}
	return float64(s.LoadFailures) / float64(total)
}

// AverageLoadPenalty returns the mean load time in nanoseconds; 0 when
// nothing was loaded.
func (s Snapshot) AverageLoadPenalty() float64 {
	total := s.LoadSuccesses + s.LoadFailures
	if total == 0 {
		return 0
	}
	return float64(s.TotalLoadTime) / float64(total)
}
