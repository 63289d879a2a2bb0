package audit

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// Stats summarises the queries seen by an Aggregator.
type Stats struct {
	TotalQueries      int64        `json:"total_queries"`
	FailedQueries     int64        `json:"failed_queries"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running statistics in memory. It is a Sink.
type Aggregator struct {
	mu                sync.Mutex
	total             int64
	failed            int64
	zeroResults       int64
	latencies         []float64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	topN              int
}

// NewAggregator keeps the topN most frequent queries in Stats.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		topN:              topN,
	}
}

func (a *Aggregator) Record(_ context.Context, e Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.queryCounts[e.Query]++
	if e.Failed() {
		a.failed++
		return nil
	}
	a.latencies = append(a.latencies, e.LatencyMs)
	if e.Matches == 0 {
		a.zeroResults++
		a.zeroResultQueries[e.Query]++
	}
	return nil
}

func (a *Aggregator) Close() error { return nil }

// Stats returns a snapshot.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		TotalQueries:    a.total,
		FailedQueries:   a.failed,
		ZeroResultCount: a.zeroResults,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query text so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
