package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	var transitions []State
	b := NewBreaker("redis", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}, func(_ string, s State) {
		transitions = append(transitions, s)
	})
	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want boom", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !IsOpen(err) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while circuit open")
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestRunReturnsTypedValue(t *testing.T) {
	b := NewBreaker("kv", BreakerConfig{}, nil)
	got, err := Run(b, func() (string, error) { return "value", nil })
	if err != nil || got != "value" {
		t.Fatalf("Run() = %q, %v", got, err)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRetryDefaultsApplyJitter(t *testing.T) {
	cfg := withRetryDefaults(RetryConfig{InitialDelay: time.Second})
	if cfg.JitterFraction != defaultRetryConfig().JitterFraction {
		t.Fatalf("JitterFraction = %v, want default", cfg.JitterFraction)
	}
	if cfg.InitialDelay != time.Second || cfg.MaxAttempts != 3 {
		t.Errorf("cfg = %+v", cfg)
	}

	varied := false
	first := computeDelay(1, cfg)
	for i := 0; i < 50 && !varied; i++ {
		varied = computeDelay(1, cfg) != first
	}
	if !varied {
		t.Error("delay has no jitter")
	}
}

func TestRetryHonoursRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	var calls atomic.Int32
	err := Retry(context.Background(), "op", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, permanent) },
	}, func(context.Context) error {
		calls.Add(1)
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if got := apperrors.HTTPStatusCode(err); got != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", got)
	}

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(parent, time.Second, "cancelled", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want canceled", err)
	}
}

func TestRunNilBreaker(t *testing.T) {
	got, err := Run[int](nil, func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("Run(nil) = %d, %v", got, err)
	}
}
