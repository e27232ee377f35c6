// Package searcher answers "which stored questions match this text" for the
// popups and the highlight flow, consulting the result cache when one is
// configured.
package searcher

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
)

// Outcome describes one executed search.
type Outcome struct {
	Result   *executor.SearchResult
	CacheHit bool
	Latency  time.Duration
}

type Service struct {
	exec    *executor.Executor
	cache   *cache.QueryCache
	metrics *metrics.Metrics
}

// New creates a Service. queryCache and m may be nil.
func New(exec *executor.Executor, queryCache *cache.QueryCache, m *metrics.Metrics) *Service {
	return &Service{exec: exec, cache: queryCache, metrics: m}
}

// Executor exposes the underlying executor for policy lookup and best
// matches.
func (s *Service) Executor() *executor.Executor {
	return s.exec
}

// Cache returns the query cache, or nil when caching is disabled.
func (s *Service) Cache() *cache.QueryCache {
	return s.cache
}

// Search ranks the corpus for query under policy.
func (s *Service) Search(ctx context.Context, query string, policy ranker.Policy) (*Outcome, error) {
	start := time.Now()
	if len(tokenizer.Tokenize(query)) == 0 || policy.Limit <= 0 {
		return &Outcome{Result: &executor.SearchResult{
			Query:    query,
			Policy:   policy.Name,
			Limit:    policy.Limit,
			MinScore: policy.MinScore,
			Results:  []ranker.ScoredRecord{},
		}}, nil
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
		err      error
	)
	if s.cache != nil {
		result, cacheHit, err = s.cache.GetOrCompute(ctx, query, policy, func() (*executor.SearchResult, error) {
			return s.exec.Execute(ctx, query, policy)
		})
	} else {
		result, err = s.exec.Execute(ctx, query, policy)
	}
	latency := time.Since(start)
	s.observe(policy.Name, result, cacheHit, err, latency)
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: result, CacheHit: cacheHit, Latency: latency}, nil
}

// Invalidate clears cached results after the corpus changes.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) observe(policy string, result *executor.SearchResult, cacheHit bool, err error, latency time.Duration) {
	if s.metrics == nil {
		return
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case len(result.Results) == 0:
		resultType = "zero_result"
	}
	s.metrics.MatchQueriesTotal.WithLabelValues(policy, resultType).Inc()
	if err != nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	} else if s.cache == nil {
		cacheStatus = "disabled"
	}
	s.metrics.MatchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	s.metrics.MatchResultsCount.Observe(float64(len(result.Results)))
}
