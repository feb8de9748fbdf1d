package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

// Schedule returns the delay to wait before the given retry (1-based).
type Schedule func(retry int) time.Duration

// Linear waits base, 2*base, 3*base, ...
func Linear(base time.Duration) Schedule {
	return func(retry int) time.Duration {
		return time.Duration(retry) * base
	}
}

// Constant waits d before every retry.
func Constant(d time.Duration) Schedule {
	return func(int) time.Duration { return d }
}

// Exponential waits base * 2^(retry-1) with ±30% jitter.
func Exponential(base time.Duration) Schedule {
	return func(retry int) time.Duration {
		delay := base
		for i := 1; i < retry; i++ {
			delay *= 2
		}
		jitter := float64(delay) * 0.3
		return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	}
}

// Policy is a reusable retry rule: at most MaxAttempts calls in total,
// separated by Backoff. Retryable decides which errors earn another attempt;
// nil means IsRetryable.
type Policy struct {
	MaxAttempts int
	Backoff     Schedule
	Retryable   func(error) bool
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. fn receives the 1-based attempt number. The last error
// is returned unwrapped so callers can classify it.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := p.delay(attempt-1, err)
			if logger != nil {
				logger.Debug("retrying",
					"op", op,
					"attempt", attempt,
					"max_attempts", attempts,
					"delay", delay,
					"error", err,
				)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: retry cancelled: %w", op, ctx.Err())
			case <-time.After(delay):
			}
		}

		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}

// delay honours a server-provided Retry-After before the schedule.
func (p Policy) delay(retry int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(retry)
}

// IsRetryable returns true if the error represents a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch {
	case errors.Is(err, model.ErrServiceConfiguration):
		return false
	case errors.Is(err, model.ErrTransportFailure):
		// The other context is not there; asking again right away won't help.
		return false
	case errors.Is(err, model.ErrTransportTimeout), errors.Is(err, model.ErrExtractionIncomplete):
		return true
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 Too Many Requests: retryable.
		if httpErr.StatusCode == 429 {
			return true
		}
		// 5xx: retryable.
		if httpErr.StatusCode >= 500 {
			return true
		}
		// 4xx (not 429): not retryable.
		return false
	}

	// Non-HTTP errors (network, DNS, etc.): retryable.
	return true
}

// Only returns a Retryable predicate that accepts just the listed sentinels.
func Only(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}
