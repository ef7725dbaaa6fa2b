// Package metrics tracks search latency, cache effectiveness, strategy
// usage, and retrieval quality. The tracker is passive and append-only; it
// never blocks the search path.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the retained latency samples; the oldest are dropped.
const maxSamples = 10000

// SearchRecord is one search's worth of observations.
type SearchRecord struct {
	Strategy    string
	Latency     time.Duration
	ResultCount int
	CacheHits   uint64
	CacheMisses uint64
}

// Summary is a snapshot of accumulated search metrics.
type Summary struct {
	TotalSearches uint64 `json:"total_searches"`

	MeanLatency time.Duration `json:"mean_latency"`
	P50Latency  time.Duration `json:"p50_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	P99Latency  time.Duration `json:"p99_latency"`

	CacheHitRate float64 `json:"cache_hit_rate"`

	// StrategyDistribution is the share of searches per strategy, summing
	// to 1 when any searches were recorded.
	StrategyDistribution map[string]float64 `json:"strategy_distribution"`
}

// Tracker accumulates per-search observations. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	latencies      []time.Duration
	strategyCounts map[string]uint64
	totalSearches  uint64
	cacheHits      uint64
	cacheMisses    uint64

	feedback []feedbackEntry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		strategyCounts: make(map[string]uint64),
	}
}

// RecordSearch appends one search's observations.
func (t *Tracker) RecordSearch(rec SearchRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalSearches++
	t.strategyCounts[rec.Strategy]++
	t.cacheHits += rec.CacheHits
	t.cacheMisses += rec.CacheMisses

	t.latencies = append(t.latencies, rec.Latency)
	if len(t.latencies) > maxSamples {
		t.latencies = t.latencies[len(t.latencies)-maxSamples:]
	}
}

// Summary returns a snapshot of the accumulated metrics.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		TotalSearches:        t.totalSearches,
		StrategyDistribution: make(map[string]float64, len(t.strategyCounts)),
	}

	if t.totalSearches > 0 {
		for strategy, count := range t.strategyCounts {
			s.StrategyDistribution[strategy] = float64(count) / float64(t.totalSearches)
		}
	}

	if total := t.cacheHits + t.cacheMisses; total > 0 {
		s.CacheHitRate = float64(t.cacheHits) / float64(total)
	}

	if len(t.latencies) > 0 {
		sorted := make([]time.Duration, len(t.latencies))
		copy(sorted, t.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		s.MeanLatency = sum / time.Duration(len(sorted))
		s.P50Latency = percentile(sorted, 0.50)
		s.P95Latency = percentile(sorted, 0.95)
		s.P99Latency = percentile(sorted, 0.99)
	}

	return s
}

// percentile returns the nearest-rank percentile of a sorted sample.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
