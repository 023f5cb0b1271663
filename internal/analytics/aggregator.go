package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lets-connect/channel-search/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	topQueryCount     = 10
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalReindexes    int64        `json:"total_reindexes"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopCategories     []QueryCount `json:"top_categories"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	LastGeneration    uint64       `json:"last_generation"`
	LastReindexAt     *time.Time   `json:"last_reindex_at,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps rolling search statistics. Latency percentiles cover the
// most recent maxLatencySamples searches.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	totalReindexes    int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	categoryCounts    map[string]int64
	lastGeneration    uint64
	lastReindexAt     time.Time
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, maxLatencySamples),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		categoryCounts:    make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

type eventEnvelope struct {
	Type EventType `json:"type"`
}

// HandleEvent returns a kafka.MessageHandler feeding agg. Unknown or
// undecodable events are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		envelope, err := kafka.DecodeJSON[eventEnvelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch envelope.Type {
		case EventSearch:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		case EventReindex:
			event, err := kafka.DecodeJSON[ReindexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode reindex event", "error", err)
				return nil
			}
			agg.RecordReindex(event)
		default:
			agg.logger.Debug("ignoring analytics event", "type", envelope.Type)
		}
		return nil
	}
}

// RecordSearch folds one search into the statistics.
func (a *Aggregator) RecordSearch(event SearchEvent) {
	query := strings.ToLower(strings.TrimSpace(event.Query))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
	if query != "" {
		a.queryCounts[query]++
	}
	if event.Total == 0 {
		a.zeroResults++
		if query != "" {
			a.zeroResultQueries[query]++
		}
	}
	if event.Filters.Category != "" {
		a.categoryCounts[strings.ToLower(event.Filters.Category)]++
	}
}

// RecordReindex notes an index rebuild.
func (a *Aggregator) RecordReindex(event ReindexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalReindexes++
	if event.Generation >= a.lastGeneration {
		a.lastGeneration = event.Generation
		a.lastReindexAt = event.Timestamp
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		TotalReindexes:  a.totalReindexes,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		LastGeneration:  a.lastGeneration,
	}
	if !a.lastReindexAt.IsZero() {
		at := a.lastReindexAt
		stats.LastReindexAt = &at
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topQueryCount)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueryCount)
	stats.TopCategories = topN(a.categoryCounts, topQueryCount)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts; equal counts order by query.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
