package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/orchestrator"
	"github.com/amishk599/jobradar/internal/watcher"
)

// --- Mock implementations ---

type recordingStarter struct {
	mu     sync.Mutex
	calls  int
	result orchestrator.Result
}

func (r *recordingStarter) StartProcessing(_ context.Context, _ bool) orchestrator.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.result
}

func (r *recordingStarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runScheduler(t *testing.T, s *Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- Tests ---

func TestRun_CancelReturnsPromptly(t *testing.T) {
	starter := &recordingStarter{result: orchestrator.Result{Success: true}}
	cancel, done := runScheduler(t, New(starter, nil, "", discardLogger()))

	waitFor(t, func() bool { return starter.count() == 1 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return within 2s after cancel")
	}
}

func TestRun_SignalsTriggerSessions(t *testing.T) {
	starter := &recordingStarter{result: orchestrator.Result{Success: true}}
	signals := make(chan watcher.Signal, 4)
	runScheduler(t, New(starter, signals, "", discardLogger()))

	waitFor(t, func() bool { return starter.count() == 1 }) // startup
	signals <- watcher.Signal{Kind: watcher.NewListings}
	signals <- watcher.Signal{Kind: watcher.DescriptionUpdated}
	signals <- watcher.Signal{Kind: watcher.PaginationChanged}

	waitFor(t, func() bool { return starter.count() == 3 })
	time.Sleep(50 * time.Millisecond)
	if got := starter.count(); got != 3 {
		t.Errorf("StartProcessing calls = %d, want 3 (description updates ignored)", got)
	}
}

func TestRun_ClosedSignalsKeepRunning(t *testing.T) {
	starter := &recordingStarter{result: orchestrator.Result{Success: false, Error: "boom"}}
	signals := make(chan watcher.Signal)
	close(signals)
	cancel, done := runScheduler(t, New(starter, signals, "", discardLogger()))

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("scheduler stopped early: %v", err)
	default:
	}
	cancel()
	<-done
	if got := starter.count(); got != 1 {
		t.Errorf("StartProcessing calls = %d, want 1", got)
	}
}

func TestRun_CronSchedule(t *testing.T) {
	starter := &recordingStarter{result: orchestrator.Result{Success: true, Ignored: true}}
	runScheduler(t, New(starter, nil, "@every 1s", discardLogger()))

	waitFor(t, func() bool { return starter.count() >= 2 })
}

func TestRun_InvalidSpec(t *testing.T) {
	s := New(&recordingStarter{}, nil, "every tuesday-ish", discardLogger())
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
