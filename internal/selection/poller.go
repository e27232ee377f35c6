package selection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
)

// DefaultPollInterval is how often the poller re-reads the slot.
const DefaultPollInterval = 500 * time.Millisecond

// RefreshFunc reacts to a new selection.
type RefreshFunc func(ctx context.Context, text string)

// Poller watches a Slot and calls refresh whenever the selection differs
// from the one last refreshed. Change notifications drive it; the periodic
// read catches notifications that were missed. At most one refresh runs at
// a time and offers arriving meanwhile are skipped, not queued.
type Poller struct {
	slot     Slot
	interval time.Duration
	refresh  RefreshFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger

	busy atomic.Bool
	mu   sync.Mutex
	last string
}

// NewPoller creates a Poller. m may be nil.
func NewPoller(slot Slot, interval time.Duration, refresh RefreshFunc, m *metrics.Metrics) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		slot:     slot,
		interval: interval,
		refresh:  refresh,
		metrics:  m,
		logger:   slog.Default().With("component", "selection-poller"),
	}
}

// Offer refreshes for text unless it is empty, equals the last refreshed
// selection or a refresh is already in flight. It reports whether refresh
// ran.
func (p *Poller) Offer(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	if !p.busy.CompareAndSwap(false, true) {
		return false
	}
	defer p.busy.Store(false)

	p.mu.Lock()
	if text == p.last {
		p.mu.Unlock()
		return false
	}
	p.last = text
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.SelectionUpdates.Inc()
	}
	p.refresh(ctx, text)
	return true
}

// Check reads the slot once and offers its value.
func (p *Poller) Check(ctx context.Context) bool {
	if p.busy.Load() {
		return false
	}
	text, err := p.slot.Get(ctx)
	if err != nil {
		p.logger.Warn("reading selection failed", "error", err)
		return false
	}
	return p.Offer(ctx, text)
}

// Run checks the slot immediately, then on every change notification and
// every interval, until ctx is cancelled. A slot that cannot be subscribed
// to is polled only.
func (p *Poller) Run(ctx context.Context) error {
	updates, err := p.slot.Subscribe(ctx)
	if err != nil {
		p.logger.Warn("selection subscribe failed, polling only", "error", err)
		updates = nil
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			p.Offer(ctx, text)
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
