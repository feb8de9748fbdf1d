package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when sending to a closed endpoint.
var ErrClosed = errors.New("endpoint closed")

// Responder answers a message synchronously. ok == false falls through to
// asynchronous delivery.
type Responder func(ctx context.Context, msg Message) (reply Message, ok bool)

// MemoryEndpoint is one side of an in-process bus.
type MemoryEndpoint struct {
	name  string
	inbox chan Message
	done  chan struct{}
	peer  *MemoryEndpoint

	mu        sync.RWMutex
	responder Responder
	closeOnce sync.Once
}

var _ Transport = (*MemoryEndpoint)(nil)

// NewMemoryBus returns two connected endpoints: what one sends, the other
// receives. buffer is the inbox size of each side.
func NewMemoryBus(buffer int) (scanner, analyzer *MemoryEndpoint) {
	scanner = newEndpoint("scanner", buffer)
	analyzer = newEndpoint("analyzer", buffer)
	scanner.peer = analyzer
	analyzer.peer = scanner
	return scanner, analyzer
}

func newEndpoint(name string, buffer int) *MemoryEndpoint {
	return &MemoryEndpoint{
		name:  name,
		inbox: make(chan Message, buffer),
		done:  make(chan struct{}),
	}
}

// Respond installs a synchronous responder consulted before a message is
// queued for this endpoint.
func (e *MemoryEndpoint) Respond(r Responder) {
	e.mu.Lock()
	e.responder = r
	e.mu.Unlock()
}

func (e *MemoryEndpoint) Send(ctx context.Context, msg Message) (*Message, error) {
	peer := e.peer
	select {
	case <-peer.done:
		return nil, fmt.Errorf("send to %s: %w", peer.name, ErrClosed)
	case <-e.done:
		return nil, fmt.Errorf("send from %s: %w", e.name, ErrClosed)
	default:
	}

	peer.mu.RLock()
	respond := peer.responder
	peer.mu.RUnlock()
	if respond != nil {
		if reply, ok := respond(ctx, msg); ok {
			return &reply, nil
		}
	}

	select {
	case peer.inbox <- msg:
		return nil, nil
	case <-peer.done:
		return nil, fmt.Errorf("send to %s: %w", peer.name, ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *MemoryEndpoint) Messages() <-chan Message {
	return e.inbox
}

// Close stops the endpoint from receiving; sends to it fail afterwards.
func (e *MemoryEndpoint) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}
