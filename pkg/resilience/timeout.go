package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
)

// WithTimeout runs fn under a deadline and returns as soon as the deadline
// passes, even if fn ignores its context. A timeout is reported as both
// apperrors.ErrTimeout and context.DeadlineExceeded; a cancelled parent is
// reported as-is.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, apperrors.ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); !errors.Is(cause, apperrors.ErrTimeout) {
			return fmt.Errorf("%s: %w", name, cause)
		}
		return fmt.Errorf("%s after %v: %w: %w", name, timeout, apperrors.ErrTimeout, context.DeadlineExceeded)
	}
}
