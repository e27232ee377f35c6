package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apihandler "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/highlight"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/kvstore"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/executor"
	searchhandler "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/selection"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/settings"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/health"
	pkgmw "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/middleware"
)

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, raw string) (*apikey.KeyInfo, error) {
	if raw != "qm_good" {
		return nil, apikey.ErrInvalidKey
	}
	return &apikey.KeyInfo{ID: 1, RateLimit: 100, IsActive: true}, nil
}

type allowAll struct{}

func (allowAll) Allow(string, int) bool { return true }

func newHandlers() Handlers {
	cfg := config.Default()
	store := corpus.NewMemoryStore(corpus.SampleRecords...)
	corpusSvc := corpus.NewService(store, nil, nil)
	settingsStore := settings.NewStore(kvstore.NewMemory())
	search := searcher.New(executor.New(store, cfg.Matcher), nil, nil)
	hl := highlight.New(store, settingsStore, nil, cfg.Matcher, cfg.Page, nil, nil, nil)
	return Handlers{
		Corpus:    corpus.NewHandler(corpusSvc),
		Settings:  settings.NewHandler(settingsStore),
		Search:    searchhandler.New(search, nil),
		Selection: selection.NewHandler(selection.NewMemorySlot(), settingsStore, search, 10*time.Millisecond),
		Highlight: highlight.NewHandler(hl, cfg.Page.MaxHTMLBytes),
		Health:    health.NewChecker(),
	}
}

func TestRoutes(t *testing.T) {
	h := New(newHandlers(), Options{Timeout: time.Second})
	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/api/v1/corpus", "", http.StatusOK},
		{http.MethodGet, "/api/v1/corpus/export", "", http.StatusOK},
		{http.MethodGet, "/api/v1/search?q=conceptual+model", "", http.StatusOK},
		{http.MethodGet, "/api/v1/search/best?q=conceptual+model", "", http.StatusOK},
		{http.MethodGet, "/api/v1/settings", "", http.StatusOK},
		{http.MethodPut, "/api/v1/selection", `{"text":"What is a conceptual model"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/selection/matches", "", http.StatusOK},
		{http.MethodPost, "/api/v1/highlight", `{"url":"https://moodle.example/mod/quiz/attempt.php","html":"<p>x</p>"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/search", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/analytics", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/admin/keys", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if rec.Header().Get(pkgmw.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestAuthChain(t *testing.T) {
	hs := newHandlers()
	hs.Keys = apihandler.NewKeys(nil, 120)
	h := New(hs, Options{Validator: stubValidator{}, Limiter: allowAll{}, AllowedOrigins: []string{"*"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=model", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=model", nil)
	req.Header.Set("X-API-Key", "qm_good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authorized status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://moodle.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight missing CORS headers")
	}
}
