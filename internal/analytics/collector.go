package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
)

// flushTimeout bounds one batch publish so a stalled broker cannot hold the
// loop.
const flushTimeout = 5 * time.Second

// Recorder consumes events in process.
type Recorder interface {
	Record(event Event)
}

// Collector buffers events without blocking callers and publishes them to
// Kafka in batches, flushing when a batch fills or the flush interval
// passes. Local recorders see every event as it is tracked.
type Collector struct {
	publisher     kafka.Publisher
	eventCh       chan Event
	batchSize     int
	flushInterval time.Duration
	local         []Recorder
	logger        *slog.Logger
	done          chan struct{}
	closeOnce     sync.Once
	mu            sync.RWMutex
	closed        atomic.Bool
}

// NewCollector creates a Collector. Events go to publisher and to every
// local recorder.
func NewCollector(publisher kafka.Publisher, bufferSize, batchSize int, flushInterval time.Duration, local ...Recorder) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if publisher == nil {
		publisher = kafka.Discard{}
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		local:         local,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publishing loop.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), batch)
				return
			}
			batch = append(batch, toKafka(event))
			if len(batch) >= c.batchSize {
				c.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(ctx, batch)
			batch = batch[:0]
		case <-ctx.Done():
			batch = c.drainInto(batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, batch)
			cancel()
			return
		}
	}
}

// Track queues an event. When the buffer is full the event is dropped for
// Kafka but still reaches local recorders. Track is a no-op on a nil
// Collector.
func (c *Collector) Track(event Event) {
	if c == nil {
		return
	}
	for _, r := range c.local {
		r.Record(event)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.EventType())
	}
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed.Store(true)
		close(c.eventCh)
		c.mu.Unlock()
	})
	<-c.done
}

func (c *Collector) drainInto(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafka(event))
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	err := resilience.WithTimeout(ctx, flushTimeout, "analytics-flush", func(ctx context.Context) error {
		return c.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		c.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("batch flushed", "events", len(batch))
}

func toKafka(event Event) kafka.Event {
	t := string(event.EventType())
	return kafka.Event{Key: t, Type: t, Value: event}
}
