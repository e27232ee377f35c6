// Package analytics collects match and highlight events, ships them through
// Kafka and aggregates them into usage statistics.
package analytics

import "time"

type EventType string

const (
	EventMatch        EventType = "match"
	EventHighlight    EventType = "highlight"
	EventCorpusChange EventType = "corpus.change"
)

// Event is anything the collector can ship.
type Event interface {
	EventType() EventType
}

// MatchEvent is emitted for every ranked search.
type MatchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Policy    string    `json:"policy"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func (MatchEvent) EventType() EventType { return EventMatch }

// HighlightEvent is emitted for every highlight request.
type HighlightEvent struct {
	Type      EventType `json:"type"`
	Status    string    `json:"status"`
	Query     string    `json:"query"`
	Score     float64   `json:"score"`
	Choices   int       `json:"choices"`
	Marked    int       `json:"marked"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func (HighlightEvent) EventType() EventType { return EventHighlight }

// CorpusChangeEvent mirrors the corpus service's change notification.
type CorpusChangeEvent struct {
	Op        string    `json:"op"`
	Index     int       `json:"index"`
	Count     int       `json:"count"`
	ChangedAt time.Time `json:"changed_at"`
}

func (CorpusChangeEvent) EventType() EventType { return EventCorpusChange }
