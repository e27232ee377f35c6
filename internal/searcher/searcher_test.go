package searcher

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newService(t *testing.T) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	exec := executor.New(corpus.NewMemoryStore(corpus.SampleRecords...), config.Default().Matcher)
	return New(exec, nil, m), m
}

func TestSearchRanksAndRecordsMetrics(t *testing.T) {
	s, m := newService(t)
	policy, _ := s.Executor().Lookup(executor.PolicyToolbar, 0)

	outcome, err := s.Search(context.Background(), "Which relationships are used in Conceptual Modelling?", policy)
	if err != nil {
		t.Fatal(err)
	}
	results := outcome.Result.Results
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].Question != corpus.SampleRecords[0].Question {
		t.Errorf("top result = %q", results[0].Question)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
	if got := testutil.ToFloat64(m.MatchQueriesTotal.WithLabelValues("toolbar", "hit")); got != 1 {
		t.Errorf("match_queries_total = %v", got)
	}
}

func TestSearchWithoutWordsSkipsCorpus(t *testing.T) {
	s, m := newService(t)
	policy, _ := s.Executor().Lookup(executor.PolicyPopup, 0)

	outcome, err := s.Search(context.Background(), "a to ?", policy)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Result.Results == nil || len(outcome.Result.Results) != 0 {
		t.Errorf("results = %v, want empty non-nil", outcome.Result.Results)
	}
	if got := testutil.CollectAndCount(m.MatchQueriesTotal); got != 0 {
		t.Errorf("blank query should not be counted, got %d series", got)
	}
}

func TestInvalidateWithoutCache(t *testing.T) {
	s, _ := newService(t)
	if err := s.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
}
