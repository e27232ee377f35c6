// Package cache stores ranked results in Redis keyed by the query's token
// multiset and the ranking policy, so reworded queries with the same tokens
// share an entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "match:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Backend = (*pkgredis.Client)(nil)

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. breaker and m may be nil.
func New(backend Backend, ttl time.Duration, breaker *resilience.Breaker, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, policy ranker.Policy) (*executor.SearchResult, bool) {
	key := c.buildKey(query, policy)
	data, err := resilience.Run(c.breaker, func() (string, error) {
		v, err := c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return "", nil
		}
		return v, err
	})
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	result.Query = query
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, policy ranker.Policy, result *executor.SearchResult) {
	key := c.buildKey(query, policy)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breakerExec(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes, stores and returns a
// fresh one. Concurrent misses for the same key compute once.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	policy ranker.Policy,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, query, policy); ok {
		return result, true, nil
	}
	key := c.buildKey(query, policy)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, policy, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := *val.(*executor.SearchResult)
	result.Query = query
	return &result, false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) breakerExec(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(query string, policy ranker.Policy) string {
	raw := fmt.Sprintf("%s|limit=%d|min=%g|%s", policy.Name, policy.Limit, policy.MinScore, normalizeQuery(query))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery reduces a query to its sorted token multiset. Scores do not
// depend on token order, so queries that normalise equally rank equally.
func normalizeQuery(query string) string {
	tokens := tokenizer.Tokenize(query)
	slices.Sort(tokens)
	return strings.Join(tokens, ",")
}
