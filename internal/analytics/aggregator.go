package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
)

// latencyWindow bounds the latency samples kept for percentiles.
const latencyWindow = 10000

// ScoreBuckets is the number of equal-width best-score buckets over [0, 1];
// scores above 1 land in the last bucket.
const ScoreBuckets = 10

type AggregatedStats struct {
	TotalMatches      int64            `json:"total_matches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	TopScoreBuckets   []int64          `json:"top_score_buckets"`
	Highlights        int64            `json:"highlights"`
	HighlightOutcomes map[string]int64 `json:"highlight_outcomes"`
	MarkedChoices     int64            `json:"marked_choices"`
	CorpusChanges     map[string]int64 `json:"corpus_changes"`
	CorpusSize        int              `json:"corpus_size"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running statistics. It is fed either by a
// Kafka consumer through HandleMessage or in process through Record.
type Aggregator struct {
	mu                sync.RWMutex
	totalMatches      int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	scoreBuckets      [ScoreBuckets]int64
	highlights        int64
	outcomes          map[string]int64
	markedChoices     int64
	corpusChanges     map[string]int64
	corpusSize        int
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		outcomes:          make(map[string]int64),
		corpusChanges:     make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage is a kafka.MessageHandler dispatching on the event type
// header. Undecodable messages are logged and skipped.
func (a *Aggregator) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var (
		event Event
		err   error
	)
	switch EventType(msg.Type) {
	case EventMatch:
		event, err = kafka.DecodeJSON[MatchEvent](msg.Value)
	case EventHighlight:
		event, err = kafka.DecodeJSON[HighlightEvent](msg.Value)
	case EventCorpusChange:
		event, err = kafka.DecodeJSON[CorpusChangeEvent](msg.Value)
	default:
		a.logger.Warn("skipping analytics message with unknown type", "type", msg.Type)
		return nil
	}
	if err != nil {
		a.logger.Error("failed to decode analytics event", "type", msg.Type, "error", err)
		return nil
	}
	a.Record(event)
	return nil
}

// Record folds one event into the statistics.
func (a *Aggregator) Record(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e := event.(type) {
	case MatchEvent:
		a.recordMatch(e)
	case HighlightEvent:
		a.highlights++
		a.outcomes[e.Status]++
		a.markedChoices += int64(e.Marked)
	case CorpusChangeEvent:
		a.corpusChanges[e.Op]++
		if e.Count >= 0 {
			a.corpusSize = e.Count
		}
	}
}

func (a *Aggregator) recordMatch(e MatchEvent) {
	a.totalMatches++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[e.Query]++
	if e.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries[e.Query]++
	} else {
		a.scoreBuckets[bucketOf(e.TopScore)]++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = e.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % latencyWindow
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalMatches:      a.totalMatches,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopScoreBuckets:   append([]int64(nil), a.scoreBuckets[:]...),
		Highlights:        a.highlights,
		HighlightOutcomes: copyCounts(a.outcomes),
		MarkedChoices:     a.markedChoices,
		CorpusChanges:     copyCounts(a.corpusChanges),
		CorpusSize:        a.corpusSize,
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
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalMatches) / elapsed
	}
	return stats
}

func bucketOf(score float64) int {
	if score <= 0 || math.IsNaN(score) {
		return 0
	}
	i := int(score * ScoreBuckets)
	if i >= ScoreBuckets {
		i = ScoreBuckets - 1
	}
	return i
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

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
