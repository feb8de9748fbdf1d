package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Result is the reply to a start command.
type Result struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	Provisional bool   `json:"provisional,omitempty"` // session still running
	Ignored     bool   `json:"ignored,omitempty"`     // a session was already running
}

// Command is the start-processing entry point. Sessions run under base, not
// under the caller's context, so a caller giving up does not stop them.
type Command struct {
	base   context.Context
	orch   *Orchestrator
	window time.Duration
	logger *slog.Logger
}

// NewCommand creates the command surface. window is how long before the
// caller's deadline a provisional success is returned.
func NewCommand(base context.Context, orch *Orchestrator, window time.Duration, logger *slog.Logger) *Command {
	return &Command{base: base, orch: orch, window: window, logger: logger}
}

// StartProcessing starts a session and waits for it. It always resolves:
// with the session outcome, or with a provisional success when ctx's
// deadline is about to pass while the session is still running.
func (c *Command) StartProcessing(ctx context.Context, resetProcessed bool) Result {
	s, err := c.orch.Begin(c.base, resetProcessed)
	if errors.Is(err, ErrAlreadyRunning) {
		c.logger.Info("start ignored, session already running")
		res := Result{Success: true, Ignored: true}
		if cur := c.orch.Current(); cur != nil {
			res.SessionID = cur.ID
		}
		return res
	}
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	go c.orch.Run(c.base, s)

	var reply <-chan time.Time
	if deadline, ok := ctx.Deadline(); ok {
		wait := time.Until(deadline) - c.window
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		reply = timer.C
	}

	select {
	case <-s.Done():
		if err := s.Err(); err != nil {
			return Result{Success: false, Error: err.Error(), SessionID: s.ID}
		}
		return Result{Success: true, SessionID: s.ID}
	case <-reply:
		c.logger.Debug("reply window reached, answering provisionally", "session", s.ID)
		return Result{Success: true, SessionID: s.ID, Provisional: true}
	case <-ctx.Done():
		return Result{Success: true, SessionID: s.ID, Provisional: true}
	}
}
