package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
)

type failingSource struct{}

func (failingSource) List(context.Context) ([]corpus.QARecord, error) {
	return nil, errors.New("store down")
}

func newExecutor() *Executor {
	return New(corpus.NewMemoryStore(corpus.SampleRecords...), config.Default().Matcher)
}

func TestLookup(t *testing.T) {
	e := newExecutor()

	p, err := e.Lookup(PolicyPopup, 0)
	if err != nil || p.Limit != 3 || p.MinScore != 0.1 {
		t.Fatalf("popup = %+v, %v", p, err)
	}
	p, _ = e.Lookup(PolicyToolbar, 0)
	if p.Limit != 5 {
		t.Errorf("toolbar limit = %d", p.Limit)
	}
	p, _ = e.Lookup(PolicyToolbar, 1000)
	if p.Limit != 50 {
		t.Errorf("clamped limit = %d, want 50", p.Limit)
	}
	if _, err := e.Lookup("sidebar", 0); err == nil {
		t.Error("expected unknown policy error")
	}
}

func TestExecute(t *testing.T) {
	e := newExecutor()
	p, _ := e.Lookup(PolicyPopup, 0)

	result, err := e.Execute(context.Background(), "What is a conceptual model", p)
	if err != nil {
		t.Fatal(err)
	}
	if result.CorpusSize != 3 || result.Policy != PolicyPopup {
		t.Errorf("result = %+v", result)
	}
	if len(result.Results) == 0 || result.Results[0].Question != "What is a conceptual model" {
		t.Fatalf("results = %+v", result.Results)
	}
	if result.Results[0].Score != 1 {
		t.Errorf("exact question score = %v, want 1", result.Results[0].Score)
	}
}

func TestExecuteSourceError(t *testing.T) {
	e := New(failingSource{}, config.Default().Matcher)
	p, _ := e.Lookup(PolicyPopup, 0)
	if _, err := e.Execute(context.Background(), "anything", p); err == nil {
		t.Fatal("expected error")
	}
	if _, err := e.Best(context.Background(), "anything"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBestOf(t *testing.T) {
	t.Run("accepted match carries tokens", func(t *testing.T) {
		best := BestOf("What is a conceptual model", corpus.SampleRecords, 0.2)
		if !best.Accepted || best.Match == nil {
			t.Fatalf("best = %+v", best)
		}
		if len(best.Tokens) != 2 {
			t.Errorf("tokens = %q", best.Tokens)
		}
	})

	t.Run("below threshold", func(t *testing.T) {
		best := BestOf("banana bread recipe", corpus.SampleRecords, 0.2)
		if best.Accepted || best.Tokens != nil {
			t.Errorf("best = %+v", best)
		}
		if best.Match == nil || best.Match.Score != 0 {
			t.Errorf("expected a zero-score match, got %+v", best.Match)
		}
	})

	t.Run("empty corpus", func(t *testing.T) {
		best := BestOf("conceptual model", nil, 0.2)
		if best.Match != nil || best.Accepted {
			t.Errorf("best = %+v", best)
		}
	})
}
