// Package channel correlates requests and replies between the scanner and
// analyzer contexts over an asynchronous Transport.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobradar/internal/model"
)

// DefaultTimeout bounds how long Send waits for a reply.
const DefaultTimeout = 15 * time.Second

// Transport moves messages to the other context.
type Transport interface {
	// Send delivers msg. A non-nil reply is an immediate acknowledgment
	// that answers msg without a round trip through Messages.
	Send(ctx context.Context, msg Message) (*Message, error)
	// Messages yields messages arriving from the other context.
	Messages() <-chan Message
	Close() error
}

// Channel is the requesting side: every Send registers a pending slot keyed
// by a fresh correlation id, resolved at most once.
type Channel struct {
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	pending   map[string]chan Message
	discarded atomic.Int64
}

// New creates a channel over t. Call Run to start receiving replies.
func New(t Transport, timeout time.Duration, logger *slog.Logger) *Channel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Channel{
		transport: t,
		timeout:   timeout,
		logger:    logger,
		pending:   make(map[string]chan Message),
	}
}

// Run routes incoming replies to their pending requests until ctx is
// cancelled or the transport closes its message stream.
func (c *Channel) Run(ctx context.Context) {
	msgs := c.transport.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if !m.Reply {
				c.logger.Debug("ignoring non-reply message", "type", m.Type, "id", m.ID)
				continue
			}
			c.resolve(m)
		}
	}
}

// Send transmits a request and waits for its reply, the timeout, or ctx.
// The timeout covers the transport send and the wait together. Transport
// errors wrap model.ErrTransportFailure and skip the wait; an expired
// timeout wraps model.ErrTransportTimeout. A reply carrying an error is
// returned together with that error.
func (c *Channel) Send(ctx context.Context, kind string, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s request: %w", kind, err)
	}
	req := Message{Type: kind, ID: uuid.NewString(), Payload: body}

	slot := make(chan Message, 1)
	c.mu.Lock()
	c.pending[req.ID] = slot
	c.mu.Unlock()

	wait, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ack, err := c.transport.Send(wait, req)
	if err != nil {
		c.drop(req.ID)
		if ctx.Err() == nil && wait.Err() != nil {
			return Message{}, c.timedOut(kind, req.ID)
		}
		if ctx.Err() != nil {
			return Message{}, fmt.Errorf("send %s %s: %w", kind, req.ID, ctx.Err())
		}
		return Message{}, fmt.Errorf("send %s %s: %w: %w", kind, req.ID, model.ErrTransportFailure, err)
	}
	if ack != nil {
		ack.ID = req.ID
		ack.Reply = true
		c.resolve(*ack)
	}

	select {
	case reply := <-slot:
		return reply, reply.Err()
	case <-wait.Done():
		c.drop(req.ID)
		if ctx.Err() != nil {
			return Message{}, fmt.Errorf("%s %s: %w", kind, req.ID, ctx.Err())
		}
		return Message{}, c.timedOut(kind, req.ID)
	}
}

func (c *Channel) timedOut(kind, id string) error {
	c.logger.Warn("request timed out", "type", kind, "id", id, "timeout", c.timeout)
	return fmt.Errorf("%s %s after %s: %w", kind, id, c.timeout, model.ErrTransportTimeout)
}

// Pending returns the number of requests awaiting a reply.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Discarded returns how many replies arrived with no pending request.
func (c *Channel) Discarded() int64 {
	return c.discarded.Load()
}

func (c *Channel) resolve(m Message) {
	c.mu.Lock()
	slot, ok := c.pending[m.ID]
	delete(c.pending, m.ID)
	c.mu.Unlock()

	if !ok {
		c.discarded.Add(1)
		c.logger.Debug("discarding reply with no pending request", "type", m.Type, "id", m.ID)
		return
	}
	slot <- m
}

func (c *Channel) drop(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
