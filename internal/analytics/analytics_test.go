package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
)

func TestAggregatorRecord(t *testing.T) {
	agg := NewAggregator()
	agg.Record(MatchEvent{Query: "conceptual model", Returned: 1, TopScore: 0.67, LatencyMs: 3})
	agg.Record(MatchEvent{Query: "conceptual model", Returned: 2, TopScore: 1.4, CacheHit: true, LatencyMs: 1})
	agg.Record(MatchEvent{Query: "cooking", Returned: 0, LatencyMs: 2})
	agg.Record(HighlightEvent{Status: "highlighted", Marked: 2})
	agg.Record(HighlightEvent{Status: "no_match"})
	agg.Record(CorpusChangeEvent{Op: "append", Count: 4})

	stats := agg.Stats()
	if stats.TotalMatches != 3 || stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.ZeroResultCount != 1 || stats.ZeroResultQueries[0].Query != "cooking" {
		t.Errorf("zero results = %d %v", stats.ZeroResultCount, stats.ZeroResultQueries)
	}
	if stats.TopQueries[0].Query != "conceptual model" || stats.TopQueries[0].Count != 2 {
		t.Errorf("top queries = %v", stats.TopQueries)
	}
	if stats.TopScoreBuckets[6] != 1 || stats.TopScoreBuckets[ScoreBuckets-1] != 1 {
		t.Errorf("score buckets = %v", stats.TopScoreBuckets)
	}
	if stats.P50LatencyMs != 2 {
		t.Errorf("p50 = %d", stats.P50LatencyMs)
	}
	if stats.Highlights != 2 || stats.HighlightOutcomes["highlighted"] != 1 || stats.MarkedChoices != 2 {
		t.Errorf("highlights = %+v", stats)
	}
	if stats.CorpusChanges["append"] != 1 || stats.CorpusSize != 4 {
		t.Errorf("corpus = %v %d", stats.CorpusChanges, stats.CorpusSize)
	}
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+10; i++ {
		agg.Record(MatchEvent{Query: "q", Returned: 1, LatencyMs: int64(i)})
	}
	if len(agg.latencies) != latencyWindow {
		t.Fatalf("latencies = %d, want %d", len(agg.latencies), latencyWindow)
	}
}

func TestHandleMessageDispatchesOnType(t *testing.T) {
	agg := NewAggregator()
	ctx := context.Background()

	value, _ := json.Marshal(MatchEvent{Query: "q", Returned: 1})
	if err := agg.HandleMessage(ctx, kafka.Message{Type: string(EventMatch), Value: value}); err != nil {
		t.Fatal(err)
	}
	value, _ = json.Marshal(HighlightEvent{Status: "no_container"})
	agg.HandleMessage(ctx, kafka.Message{Type: string(EventHighlight), Value: value})
	agg.HandleMessage(ctx, kafka.Message{Type: "unknown", Value: value})
	agg.HandleMessage(ctx, kafka.Message{Type: string(EventMatch), Value: []byte("garbage")})

	stats := agg.Stats()
	if stats.TotalMatches != 1 || stats.HighlightOutcomes["no_container"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (b *batchRecorder) Publish(ctx context.Context, e kafka.Event) error {
	return b.PublishBatch(ctx, []kafka.Event{e})
}

func (b *batchRecorder) PublishBatch(_ context.Context, events []kafka.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (b *batchRecorder) Close() error { return nil }

func (b *batchRecorder) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, batch := range b.batches {
		n += len(batch)
	}
	return n
}

func TestCollectorBatchesAndFeedsLocal(t *testing.T) {
	pub := &batchRecorder{}
	agg := NewAggregator()
	c := NewCollector(pub, 100, 2, time.Hour, agg)
	c.Start(context.Background())

	c.Track(MatchEvent{Query: "a", Returned: 1})
	c.Track(MatchEvent{Query: "b", Returned: 1})
	c.Track(HighlightEvent{Status: "highlighted"})
	c.Close()

	if got := pub.total(); got != 3 {
		t.Fatalf("published %d events, want 3", got)
	}
	if pub.batches[0][0].Type != string(EventMatch) {
		t.Errorf("event type header = %q", pub.batches[0][0].Type)
	}
	if agg.Stats().TotalMatches != 2 {
		t.Errorf("local aggregator missed events")
	}

	c.Track(MatchEvent{Query: "after close"})
}

func TestNilCollectorTrack(t *testing.T) {
	var c *Collector
	c.Track(MatchEvent{})
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(MatchEvent{Query: "q", Returned: 1})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalMatches != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("snapshots without store = %d", rec.Code)
	}
}
