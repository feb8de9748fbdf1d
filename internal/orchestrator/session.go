package orchestrator

import (
	"fmt"
	"sync"
	"time"
)

// State is the orchestrator / session state.
type State int

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ItemState tracks one listing through a session.
type ItemState int

const (
	ItemPending ItemState = iota
	ItemExtracting
	ItemCacheHit
	ItemDispatched
	ItemCached
	ItemRendered
	ItemSkipped  // extraction failed after retries
	ItemFailed   // dispatch failed after retries
	ItemFiltered // rejected by the pre-dispatch filter
)

func (s ItemState) String() string {
	switch s {
	case ItemPending:
		return "pending"
	case ItemExtracting:
		return "extracting"
	case ItemCacheHit:
		return "cache_hit"
	case ItemDispatched:
		return "dispatched"
	case ItemCached:
		return "cached"
	case ItemRendered:
		return "rendered"
	case ItemSkipped:
		return "skipped"
	case ItemFailed:
		return "failed"
	case ItemFiltered:
		return "filtered"
	default:
		return fmt.Sprintf("item(%d)", int(s))
	}
}

// Session is one bounded run started by a single start command.
type Session struct {
	ID        string
	Budget    int
	StartedAt time.Time

	mu         sync.Mutex
	state      State
	consumed   int
	pages      int
	dispatched int
	items      map[string]ItemState
	order      []string
	err        error
	finishedAt time.Time
	done       chan struct{}
}

func newSession(id string, budget int) *Session {
	return &Session{
		ID:        id,
		Budget:    budget,
		StartedAt: time.Now(),
		state:     Running,
		items:     make(map[string]ItemState),
		done:      make(chan struct{}),
	}
}

// consume takes one unit of budget. It reports false, taking nothing, once
// the budget is spent.
func (s *Session) consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed >= s.Budget {
		return false
	}
	s.consumed++
	return true
}

func (s *Session) exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed >= s.Budget
}

func (s *Session) set(id string, st ItemState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = st
	if st == ItemDispatched {
		s.dispatched++
	}
}

// track registers id as Pending unless it already has a state.
func (s *Session) track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		return
	}
	s.order = append(s.order, id)
	s.items[id] = ItemPending
}

func (s *Session) page() {
	s.mu.Lock()
	s.pages++
	s.mu.Unlock()
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.state = Completed
	if err != nil {
		s.state = Failed
	}
	s.finishedAt = time.Now()
	close(s.done)
}

// Done is closed when the session completes or fails.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns why the session failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Consumed returns the budget spent so far.
func (s *Session) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// Dispatched returns how many listings were sent for evaluation.
func (s *Session) Dispatched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}

// Pages returns how many pages the session visited.
func (s *Session) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

// Item returns the state of listing id.
func (s *Session) Item(id string) (ItemState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[id]
	return st, ok
}

// Listings returns the tracked listing ids in page order.
func (s *Session) Listings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Counts tallies items per state.
func (s *Session) Counts() map[ItemState]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ItemState]int)
	for _, st := range s.items {
		out[st]++
	}
	return out
}

// Duration returns how long the session ran, or has been running.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.finishedAt.Sub(s.StartedAt)
}
