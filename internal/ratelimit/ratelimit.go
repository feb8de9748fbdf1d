package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pacer spaces out dispatches to the evaluation service. Each item gets a
// fixed minimum slot that runs concurrently with its dispatch, and a streak
// of consecutive failures earns one longer cooldown.
type Pacer struct {
	mu        sync.Mutex
	interval  time.Duration // minimum slot per dispatched item
	cooldown  time.Duration // extra pause once the streak passes threshold
	threshold int           // failures tolerated before cooling down
	streak    int
	cooldowns int
	logger    *slog.Logger
}

// NewPacer creates a pacer. A streak longer than threshold triggers cooldown.
func NewPacer(interval, cooldown time.Duration, threshold int, logger *slog.Logger) *Pacer {
	return &Pacer{
		interval:  interval,
		cooldown:  cooldown,
		threshold: threshold,
		logger:    logger,
	}
}

// Slot is the running inter-item delay for one dispatch.
type Slot struct {
	done <-chan time.Time
}

// Begin starts the inter-item delay. Call it right before dispatching and
// Wait on the slot afterwards, so delay and dispatch overlap.
func (p *Pacer) Begin() Slot {
	if p.interval <= 0 {
		return Slot{}
	}
	return Slot{done: time.After(p.interval)}
}

// Wait blocks until the slot has elapsed. Returns an error if the context is
// cancelled while waiting.
func (s Slot) Wait(ctx context.Context) error {
	if s.done == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("pacer wait: %w", ctx.Err())
	case <-s.done:
		return nil
	}
}

// Success ends the current failure streak.
func (p *Pacer) Success() {
	p.mu.Lock()
	p.streak = 0
	p.mu.Unlock()
}

// Failure records a dispatch failure. When the streak exceeds the threshold
// it sleeps for the cooldown, resets the streak and reports true.
func (p *Pacer) Failure(ctx context.Context) (bool, error) {
	p.mu.Lock()
	p.streak++
	streak := p.streak
	cool := streak > p.threshold
	if cool {
		p.streak = 0
		p.cooldowns++
	}
	p.mu.Unlock()

	if !cool {
		return false, nil
	}

	p.logger.Warn("dispatch failure streak, cooling down",
		"failures", streak,
		"cooldown", p.cooldown,
	)
	select {
	case <-ctx.Done():
		return true, fmt.Errorf("pacer cooldown: %w", ctx.Err())
	case <-time.After(p.cooldown):
	}
	return true, nil
}

// Streak returns the current number of consecutive failures.
func (p *Pacer) Streak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streak
}

// Cooldowns returns how many cooldowns have been taken.
func (p *Pacer) Cooldowns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cooldowns
}
