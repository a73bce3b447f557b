package cache

import "sync/atomic"

// TierCounts splits a counter by cache tier. Total is not always the sum of
// the two tiers: for misses it counts lookups that found neither tier, while
// the per-tier numbers count each tier's individual failures.
type TierCounts struct {
	Memory int64 `json:"memory"`
	Remote int64 `json:"remote"`
	Total  int64 `json:"total"`
}

// StatsSnapshot is a point-in-time copy of the cache counters, safe to
// serialize for the stats endpoint. HitRate is a percentage over total hits
// and total misses.
type StatsSnapshot struct {
	Hits      TierCounts `json:"hits"`
	Misses    TierCounts `json:"misses"`
	Sets      TierCounts `json:"sets"`
	Deletions TierCounts `json:"deletions"`
	HitRate   float64    `json:"hit_rate"`
}

// stats holds the manager's monotonically increasing counters. Counters are
// atomic so hot-path reads never contend with the entry map lock; they reset
// only on Clear.
type stats struct {
	memHits    int64
	remoteHits int64

	memMisses    int64
	remoteMisses int64
	totalMisses  int64

	memSets    int64
	remoteSets int64

	memDeletions    int64
	remoteDeletions int64
}

func (s *stats) snapshot() StatsSnapshot {
	memHits := atomic.LoadInt64(&s.memHits)
	remoteHits := atomic.LoadInt64(&s.remoteHits)
	totalMisses := atomic.LoadInt64(&s.totalMisses)
	memSets := atomic.LoadInt64(&s.memSets)
	remoteSets := atomic.LoadInt64(&s.remoteSets)
	memDeletions := atomic.LoadInt64(&s.memDeletions)
	remoteDeletions := atomic.LoadInt64(&s.remoteDeletions)

	totalHits := memHits + remoteHits
	hitRate := 0.0
	if totalHits+totalMisses > 0 {
		hitRate = float64(totalHits) / float64(totalHits+totalMisses) * 100
	}

	return StatsSnapshot{
		Hits: TierCounts{
			Memory: memHits,
			Remote: remoteHits,
			Total:  totalHits,
		},
		Misses: TierCounts{
			Memory: atomic.LoadInt64(&s.memMisses),
			Remote: atomic.LoadInt64(&s.remoteMisses),
			Total:  totalMisses,
		},
		Sets: TierCounts{
			Memory: memSets,
			Remote: remoteSets,
			Total:  memSets + remoteSets,
		},
		Deletions: TierCounts{
			Memory: memDeletions,
			Remote: remoteDeletions,
			Total:  memDeletions + remoteDeletions,
		},
		HitRate: hitRate,
	}
}

func (s *stats) reset() {
	atomic.StoreInt64(&s.memHits, 0)
	atomic.StoreInt64(&s.remoteHits, 0)
	atomic.StoreInt64(&s.memMisses, 0)
	atomic.StoreInt64(&s.remoteMisses, 0)
	atomic.StoreInt64(&s.totalMisses, 0)
	atomic.StoreInt64(&s.memSets, 0)
	atomic.StoreInt64(&s.remoteSets, 0)
	atomic.StoreInt64(&s.memDeletions, 0)
	atomic.StoreInt64(&s.remoteDeletions, 0)
}
