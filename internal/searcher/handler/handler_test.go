package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
)

func newHandler() *Handler {
	exec := executor.New(corpus.NewMemoryStore(corpus.SampleRecords...), config.Default().Matcher)
	return New(searcher.New(exec, nil, nil), nil)
}

func TestSearch(t *testing.T) {
	h := newHandler()
	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantLimit  int
	}{
		{"default policy", "/api/v1/search?q=conceptual+model", http.StatusOK, 3},
		{"toolbar policy", "/api/v1/search?q=conceptual+model&policy=toolbar", http.StatusOK, 5},
		{"limit override", "/api/v1/search?q=conceptual+model&limit=1", http.StatusOK, 1},
		{"missing query", "/api/v1/search", http.StatusBadRequest, 0},
		{"bad limit", "/api/v1/search?q=x&limit=zero", http.StatusBadRequest, 0},
		{"unknown policy", "/api/v1/search?q=x&policy=sidebar", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var result executor.SearchResult
			if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
				t.Fatal(err)
			}
			if result.Limit != tt.wantLimit || len(result.Results) > tt.wantLimit {
				t.Errorf("limit = %d, results = %d", result.Limit, len(result.Results))
			}
		})
	}
}

func TestBest(t *testing.T) {
	h := newHandler()
	rec := httptest.NewRecorder()
	h.Best(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search/best?q=What+is+a+conceptual+model", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var best executor.BestResult
	if err := json.NewDecoder(rec.Body).Decode(&best); err != nil {
		t.Fatal(err)
	}
	if !best.Accepted || best.Match.Question != "What is a conceptual model" {
		t.Errorf("best = %+v", best)
	}
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	h := newHandler()
	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d", rec.Code)
	}
}
