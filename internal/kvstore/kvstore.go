// Package kvstore is the small key-value store behind user settings and the
// current selection. Memory serves single-instance deployments; Redis lets
// several matcher instances share state.
package kvstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
)

// KV stores opaque values by key. Get reports false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Memory is an in-process KV.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

// Redis stores values under a key prefix. Calls go through a circuit breaker
// so a Redis outage fails fast.
type Redis struct {
	client  *redis.Client
	prefix  string
	breaker *resilience.Breaker
}

// NewRedis creates a Redis KV. breaker may be nil.
func NewRedis(client *redis.Client, prefix string, breaker *resilience.Breaker) *Redis {
	return &Redis{client: client, prefix: prefix, breaker: breaker}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := resilience.Run(r.breaker, func() ([]byte, error) {
		b, err := r.client.GetBytes(ctx, r.prefix+key)
		if redis.IsNilError(err) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, v != nil, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	_, err := resilience.Run(r.breaker, func() (struct{}, error) {
		return struct{}{}, r.client.Set(ctx, r.prefix+key, value, 0)
	})
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}
