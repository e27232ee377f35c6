// Package selection holds the text the user last selected on a quiz page as
// an observable slot. Writers replace the value; readers either poll it or
// subscribe to changes. The last completed write wins.
package selection

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
)

// Slot is the shared "current selection" value.
type Slot interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, text string) error
	// Subscribe delivers every subsequent value until ctx is cancelled, then
	// closes the channel. Slow subscribers may miss intermediate values but
	// always see the latest one.
	Subscribe(ctx context.Context) (<-chan string, error)
}

// MemorySlot is an in-process Slot.
type MemorySlot struct {
	mu    sync.Mutex
	value string
	subs  map[chan string]struct{}
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{subs: make(map[chan string]struct{})}
}

func (s *MemorySlot) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *MemorySlot) Set(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = text
	for ch := range s.subs {
		// Replace an undelivered value so the subscriber sees the newest.
		select {
		case <-ch:
		default:
		}
		ch <- text
	}
	return nil
}

func (s *MemorySlot) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers reports the number of live subscriptions.
func (s *MemorySlot) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// RedisBackend is the subset of the Redis client RedisSlot uses.
type RedisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	SetAndPublish(ctx context.Context, key, channel string, value string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}

var _ RedisBackend = (*redis.Client)(nil)

// RedisSlot keeps the selection under a Redis key and announces changes on
// a pub/sub channel, so every matcher instance sees the same selection.
type RedisSlot struct {
	client  RedisBackend
	key     string
	channel string
	breaker *resilience.Breaker
}

// NewRedisSlot creates a RedisSlot. breaker may be nil.
func NewRedisSlot(client RedisBackend, key string, breaker *resilience.Breaker) *RedisSlot {
	return &RedisSlot{client: client, key: key, channel: key + ":changed", breaker: breaker}
}

func (s *RedisSlot) Get(ctx context.Context) (string, error) {
	v, err := resilience.Run(s.breaker, func() (string, error) {
		v, err := s.client.Get(ctx, s.key)
		if redis.IsNilError(err) {
			return "", nil
		}
		return v, err
	})
	if err != nil {
		return "", fmt.Errorf("reading selection: %w", err)
	}
	return v, nil
}

func (s *RedisSlot) Set(ctx context.Context, text string) error {
	_, err := resilience.Run(s.breaker, func() (struct{}, error) {
		return struct{}{}, s.client.SetAndPublish(ctx, s.key, s.channel, text)
	})
	if err != nil {
		return fmt.Errorf("storing selection: %w", err)
	}
	return nil
}

func (s *RedisSlot) Subscribe(ctx context.Context) (<-chan string, error) {
	return s.client.Subscribe(ctx, s.channel)
}
