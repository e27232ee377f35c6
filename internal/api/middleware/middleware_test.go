package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/internal/auth/apikey"
)

type stubValidator map[string]*apikey.KeyInfo

func (s stubValidator) Validate(_ context.Context, raw string) (*apikey.KeyInfo, error) {
	if raw == "qm_broken" {
		return nil, errors.New("db down")
	}
	if raw == "qm_expired" {
		return nil, apikey.ErrExpiredKey
	}
	info, ok := s[raw]
	if !ok {
		return nil, apikey.ErrInvalidKey
	}
	return info, nil
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	h := Auth(stubValidator{"qm_good": {ID: 1, RateLimit: 5}})(ok)
	tests := []struct {
		name   string
		path   string
		method string
		header map[string]string
		want   int
	}{
		{"health exempt", "/health/ready", http.MethodGet, nil, http.StatusOK},
		{"preflight exempt", "/api/v1/search", http.MethodOptions, nil, http.StatusOK},
		{"missing key", "/api/v1/search", http.MethodGet, nil, http.StatusUnauthorized},
		{"bearer", "/api/v1/search", http.MethodGet, map[string]string{"Authorization": "Bearer qm_good"}, http.StatusOK},
		{"header", "/api/v1/search", http.MethodGet, map[string]string{"X-API-Key": "qm_good"}, http.StatusOK},
		{"query", "/api/v1/search?api_key=qm_good", http.MethodGet, nil, http.StatusOK},
		{"invalid", "/api/v1/search", http.MethodGet, map[string]string{"X-API-Key": "qm_bad"}, http.StatusUnauthorized},
		{"expired", "/api/v1/search", http.MethodGet, map[string]string{"X-API-Key": "qm_expired"}, http.StatusUnauthorized},
		{"validator error", "/api/v1/search", http.MethodGet, map[string]string{"X-API-Key": "qm_broken"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

type countingLimiter struct{ left int }

func (c *countingLimiter) Allow(string, int) bool {
	c.left--
	return c.left >= 0
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{left: 1}
	h := Auth(stubValidator{"qm_good": {ID: 1, RateLimit: 1}})(RateLimit(limiter)(ok))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
		req.Header.Set("X-API-Key", "qm_good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"chrome-extension://abc"}))(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "chrome-extension://abc" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin allowed")
	}
}
