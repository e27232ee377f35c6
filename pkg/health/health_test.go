package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/resilience"
)

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("corpus", PingCheck(func(context.Context) error { return nil }, true))
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("refused") }, false))

	report := c.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("status = %s, want degraded", report.Status)
	}
	if report.Components["redis"].Message != "refused" {
		t.Errorf("redis = %+v", report.Components["redis"])
	}

	c.Register("postgres", PingCheck(func(context.Context) error { return errors.New("down") }, true))
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Errorf("status = %s, want down", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("corpus", PingCheck(func(context.Context) error { return nil }, true))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusUp {
		t.Errorf("report status = %s", report.Status)
	}
}

func TestBreakerCheck(t *testing.T) {
	b := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour}, nil)
	check := BreakerCheck(b, false)
	if got := check(context.Background()).Status; got != StatusUp {
		t.Fatalf("closed breaker = %s, want up", got)
	}

	b.Execute(func() error { return errors.New("refused") })
	got := check(context.Background())
	if got.Status != StatusDegraded || got.Message != "circuit open" {
		t.Errorf("open breaker = %+v", got)
	}
	if got := BreakerCheck(b, true)(context.Background()).Status; got != StatusDown {
		t.Errorf("critical open breaker = %s, want down", got)
	}
}
