package corpus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
)

// ChangeEventType is the Kafka header value for corpus change events.
const ChangeEventType = "corpus.change"

// Service validates corpus mutations, applies them to a Store and announces
// every change.
type Service struct {
	store     Store
	publisher kafka.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu        sync.RWMutex
	listeners []func(ChangeEvent)
}

// NewService creates a Service. publisher and m may be nil.
func NewService(store Store, publisher kafka.Publisher, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = kafka.Discard{}
	}
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "corpus"),
	}
}

// OnChange registers fn to run after every successful mutation.
func (s *Service) OnChange(fn func(ChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// List returns every record in order.
func (s *Service) List(ctx context.Context) ([]QARecord, error) {
	return s.store.List(ctx)
}

// Count returns the number of records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Add validates and appends a record, returning its index.
func (s *Service) Add(ctx context.Context, question, answer string) (int, error) {
	rec, err := Validate(question, answer)
	if err != nil {
		return 0, err
	}
	index, err := s.store.Append(ctx, rec)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, OpAppend, index)
	return index, nil
}

// Update validates and overwrites the record at index.
func (s *Service) Update(ctx context.Context, index int, question, answer string) error {
	rec, err := Validate(question, answer)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, index, rec); err != nil {
		return err
	}
	s.changed(ctx, OpUpdate, index)
	return nil
}

// Delete removes the record at index; later records move up one place.
func (s *Service) Delete(ctx context.Context, index int) error {
	if err := s.store.Delete(ctx, index); err != nil {
		return err
	}
	s.changed(ctx, OpDelete, index)
	return nil
}

// Import replaces the whole corpus with the records read from r. Nothing is
// written unless the whole document is valid.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	records, err := Decode(r)
	if err != nil {
		return 0, err
	}
	if err := s.store.Replace(ctx, records); err != nil {
		return 0, err
	}
	s.changed(ctx, OpReplace, -1)
	return len(records), nil
}

// Export writes the corpus in import format.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	records, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	return Encode(w, records)
}

// Seed installs SampleRecords when the corpus is empty. It reports whether
// anything was written.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("counting records before seeding: %w", err)
	}
	if n > 0 {
		s.setSize(n)
		return false, nil
	}
	if err := s.store.Replace(ctx, SampleRecords); err != nil {
		return false, fmt.Errorf("seeding corpus: %w", err)
	}
	s.changed(ctx, OpSeed, -1)
	s.logger.Info("corpus seeded", "records", len(SampleRecords))
	return true, nil
}

func (s *Service) changed(ctx context.Context, op Op, index int) {
	count, err := s.store.Count(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("counting records after change", "error", err)
		count = -1
	} else {
		s.setSize(count)
	}
	if s.metrics != nil {
		s.metrics.CorpusChangesTotal.WithLabelValues(string(op)).Inc()
	}

	event := ChangeEvent{Op: op, Index: index, Count: count, ChangedAt: time.Now().UTC()}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(event)
	}

	if err := s.publisher.Publish(ctx, kafka.Event{
		Key:   strconv.Itoa(index),
		Type:  ChangeEventType,
		Value: event,
	}); err != nil {
		logger.FromContext(ctx).Warn("publishing corpus change failed",
			"op", op,
			"error", err,
		)
	}
}

func (s *Service) setSize(n int) {
	if s.metrics != nil {
		s.metrics.CorpusRecords.Set(float64(n))
	}
}
