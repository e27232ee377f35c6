// Package executor runs ranking policies against the current corpus.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/answers"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/matcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
)

// Policy names accepted by Lookup.
const (
	PolicyPopup   = "popup"
	PolicyToolbar = "toolbar"
)

// CorpusSource provides the records to rank.
type CorpusSource interface {
	List(ctx context.Context) ([]corpus.QARecord, error)
}

type SearchResult struct {
	Query      string                `json:"query"`
	Policy     string                `json:"policy"`
	Limit      int                   `json:"limit"`
	MinScore   float64               `json:"min_score"`
	CorpusSize int                   `json:"corpus_size"`
	Results    []ranker.ScoredRecord `json:"results"`
}

// BestResult is the single best record for a query and whether it clears the
// acceptance threshold.
type BestResult struct {
	Query     string               `json:"query"`
	Match     *ranker.ScoredRecord `json:"match,omitempty"`
	Accepted  bool                 `json:"accepted"`
	Threshold float64              `json:"threshold"`
	Tokens    []string             `json:"tokens,omitempty"`
}

type Executor struct {
	source      CorpusSource
	policies    map[string]ranker.Policy
	maxLimit    int
	acceptScore float64
	logger      *slog.Logger
}

func New(source CorpusSource, cfg config.MatcherConfig) *Executor {
	return &Executor{
		source: source,
		policies: map[string]ranker.Policy{
			PolicyPopup:   {Name: PolicyPopup, Limit: cfg.PopupLimit, MinScore: cfg.MinScore},
			PolicyToolbar: {Name: PolicyToolbar, Limit: cfg.ToolbarLimit, MinScore: cfg.MinScore},
		},
		maxLimit:    cfg.MaxLimit,
		acceptScore: cfg.AcceptScore,
		logger:      slog.Default().With("component", "query-executor"),
	}
}

// Lookup returns the named policy, overriding its limit when limit > 0.
// Limits above the configured maximum are clamped.
func (e *Executor) Lookup(name string, limit int) (ranker.Policy, error) {
	p, ok := e.policies[name]
	if !ok {
		return ranker.Policy{}, fmt.Errorf("unknown policy %q", name)
	}
	if limit > 0 {
		p.Limit = min(limit, e.maxLimit)
	}
	return p, nil
}

// AcceptScore is the threshold a best match must reach.
func (e *Executor) AcceptScore() float64 {
	return e.acceptScore
}

// Execute ranks the corpus for query under policy.
func (e *Executor) Execute(ctx context.Context, query string, policy ranker.Policy) (*SearchResult, error) {
	records, err := e.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	ranked := policy.Rank(query, records)
	e.logger.Debug("query executed",
		"query", query,
		"policy", policy.Name,
		"corpus", len(records),
		"results", len(ranked),
	)
	return &SearchResult{
		Query:      query,
		Policy:     policy.Name,
		Limit:      policy.Limit,
		MinScore:   policy.MinScore,
		CorpusSize: len(records),
		Results:    ranked,
	}, nil
}

// Best finds the best record for query and parses its answer tokens when it
// is accepted.
func (e *Executor) Best(ctx context.Context, query string) (*BestResult, error) {
	records, err := e.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	return BestOf(query, records, e.acceptScore), nil
}

// BestOf is Best over an already loaded corpus.
func BestOf(query string, records []corpus.QARecord, threshold float64) *BestResult {
	result := &BestResult{Query: query, Threshold: threshold}
	match, ok := ranker.BestMatch(query, records)
	if !ok {
		return result
	}
	result.Match = &match
	result.Accepted = ranker.Accept(match, threshold)
	if result.Accepted {
		result.Tokens = answers.ParseTokens(match.Answer)
	}
	return result
}
