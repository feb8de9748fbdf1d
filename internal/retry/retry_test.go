package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counter returns fn that fails with errs[i] on call i (nil once exhausted).
func counter(calls *int, errs ...error) func(context.Context, int) error {
	return func(_ context.Context, attempt int) error {
		*calls++
		if attempt-1 < len(errs) {
			return errs[attempt-1]
		}
		return nil
	}
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Millisecond)}
	if err := p.Do(context.Background(), discardLogger(), "op", counter(&calls)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesTimeoutThenSucceeds(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Millisecond)}
	err := p.Do(context.Background(), discardLogger(), "op", counter(&calls,
		fmt.Errorf("dispatch: %w", model.ErrTransportTimeout),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_DoesNotRetryTransportFailure(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Millisecond)}
	err := p.Do(context.Background(), discardLogger(), "op", counter(&calls,
		model.ErrTransportFailure, model.ErrTransportFailure,
	))
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", calls)
	}
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Millisecond)}
	err := p.Do(context.Background(), discardLogger(), "op", counter(&calls, boom, boom, boom, boom))
	if err == nil {
		t.Fatal("expected error after max attempts, got nil")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	calls := 0
	ctx, cancel := context.WithCancel(context.Background())
	// Cancel immediately so the backoff sleep is interrupted.
	cancel()

	p := Policy{MaxAttempts: 3, Backoff: Constant(time.Second)}
	err := p.Do(ctx, discardLogger(), "op", counter(&calls, model.ErrTransportTimeout, model.ErrTransportTimeout))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_CustomRetryable(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, Backoff: Constant(time.Millisecond), Retryable: Only(model.ErrExtractionIncomplete)}
	err := p.Do(context.Background(), discardLogger(), "op", counter(&calls,
		model.ErrExtractionIncomplete, model.ErrTransportTimeout,
	))
	if !errors.Is(err, model.ErrTransportTimeout) {
		t.Fatalf("expected the non-listed error to stop retries, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestSchedules(t *testing.T) {
	lin := Linear(100 * time.Millisecond)
	for retry, want := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 300 * time.Millisecond} {
		if got := lin(retry); got != want {
			t.Errorf("Linear(%d) = %v, want %v", retry, got, want)
		}
	}

	exp := Exponential(100 * time.Millisecond)
	if got := exp(3); got < 280*time.Millisecond || got > 520*time.Millisecond {
		t.Errorf("Exponential(3) = %v, want 400ms ±30%%", got)
	}
}

func TestDelay_PrefersRetryAfter(t *testing.T) {
	p := Policy{Backoff: Constant(time.Hour)}
	err := &model.HTTPError{StatusCode: 429, RetryAfter: 2 * time.Second}
	if got := p.delay(1, err); got != 2*time.Second {
		t.Errorf("delay = %v, want Retry-After 2s", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{model.ErrServiceConfiguration, false},
		{fmt.Errorf("wrapped: %w", model.ErrTransportTimeout), true},
		{&model.HTTPError{StatusCode: 404}, false},
		{&model.HTTPError{StatusCode: 429}, true},
		{&model.HTTPError{StatusCode: 503}, true},
		{errors.New("dial tcp: connection refused"), true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
