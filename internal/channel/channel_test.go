package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echo struct {
	Text string `json:"text"`
}

func newPair(t *testing.T, timeout time.Duration) (*Channel, *MemoryEndpoint, context.Context) {
	t.Helper()
	scanner, analyzer := NewMemoryBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch := New(scanner, timeout, discardLogger())
	go ch.Run(ctx)
	return ch, analyzer, ctx
}

// serve answers every request on ep with a prefixed echo of its payload.
func serve(ctx context.Context, ep *MemoryEndpoint) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ep.Messages():
			var in echo
			m.Decode(&in)
			reply, _ := NewReply(m, echo{Text: "re: " + in.Text}, nil)
			ep.Send(ctx, reply)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSend_AsyncReply(t *testing.T) {
	ch, analyzer, ctx := newPair(t, time.Second)
	go serve(ctx, analyzer)

	reply, err := ch.Send(ctx, TypeAnalyze, echo{Text: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	var got echo
	if err := reply.Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "re: hello" {
		t.Errorf("reply = %q", got.Text)
	}
	if ch.Pending() != 0 {
		t.Errorf("pending = %d after resolution", ch.Pending())
	}
}

func TestSend_SynchronousAck(t *testing.T) {
	ch, analyzer, ctx := newPair(t, time.Second)
	analyzer.Respond(func(_ context.Context, m Message) (Message, bool) {
		if m.Type != TypeStatus {
			return Message{}, false
		}
		reply, _ := NewReply(m, echo{Text: "ready"}, nil)
		return reply, true
	})

	reply, err := ch.Send(ctx, TypeStatus, struct{}{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	var got echo
	reply.Decode(&got)
	if got.Text != "ready" {
		t.Errorf("ack = %q", got.Text)
	}

	// The ack path never queues the request.
	select {
	case m := <-analyzer.Messages():
		t.Errorf("request was also delivered asynchronously: %+v", m)
	default:
	}
}

func TestSend_TimeoutThenLateReplyDiscarded(t *testing.T) {
	ch, analyzer, ctx := newPair(t, 40*time.Millisecond)

	start := time.Now()
	_, err := ch.Send(ctx, TypeAnalyze, echo{Text: "slow"})
	if !errors.Is(err, model.ErrTransportTimeout) {
		t.Fatalf("err = %v, want ErrTransportTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("timed out after %v", elapsed)
	}
	if ch.Pending() != 0 {
		t.Errorf("pending = %d after timeout", ch.Pending())
	}

	// The analyzer finally answers.
	req := <-analyzer.Messages()
	late, _ := NewReply(req, echo{Text: "too late"}, nil)
	if _, err := analyzer.Send(ctx, late); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ch.Discarded() == 1 })
}

func TestSend_TransportFailureBypassesTimeout(t *testing.T) {
	ch, analyzer, ctx := newPair(t, time.Hour)
	analyzer.Close()

	start := time.Now()
	_, err := ch.Send(ctx, TypeAnalyze, echo{Text: "anyone?"})
	if !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("err = %v, want ErrTransportFailure", err)
	}
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want the transport cause preserved", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("transport failure should resolve immediately")
	}
	if ch.Pending() != 0 {
		t.Errorf("pending = %d", ch.Pending())
	}
}

func TestSend_OutOfOrderReplies(t *testing.T) {
	ch, analyzer, ctx := newPair(t, time.Second)

	// Collect both requests, then answer in reverse order.
	go func() {
		var reqs []Message
		for len(reqs) < 2 {
			reqs = append(reqs, <-analyzer.Messages())
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			var in echo
			reqs[i].Decode(&in)
			reply, _ := NewReply(reqs[i], echo{Text: in.Text}, nil)
			analyzer.Send(ctx, reply)
		}
	}()

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := ch.Send(ctx, TypeAnalyze, echo{Text: fmt.Sprintf("req-%d", i)})
			errs[i] = err
			var got echo
			reply.Decode(&got)
			results[i] = got.Text
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if want := fmt.Sprintf("req-%d", i); results[i] != want {
			t.Errorf("request %d got reply %q, want %q", i, results[i], want)
		}
	}
}

func TestSend_DuplicateReplyResolvesOnce(t *testing.T) {
	ch, analyzer, ctx := newPair(t, time.Second)
	go func() {
		req := <-analyzer.Messages()
		first, _ := NewReply(req, echo{Text: "first"}, nil)
		second, _ := NewReply(req, echo{Text: "second"}, nil)
		analyzer.Send(ctx, first)
		analyzer.Send(ctx, second)
	}()

	reply, err := ch.Send(ctx, TypeAnalyze, echo{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	var got echo
	reply.Decode(&got)
	if got.Text != "first" {
		t.Errorf("reply = %q, want the first one", got.Text)
	}
	waitFor(t, func() bool { return ch.Discarded() == 1 })
}

func TestSend_ConfigurationErrorReply(t *testing.T) {
	ch, analyzer, ctx := newPair(t, time.Second)
	go func() {
		req := <-analyzer.Messages()
		reply, _ := NewReply(req, nil, fmt.Errorf("no api key: %w", model.ErrServiceConfiguration))
		analyzer.Send(ctx, reply)
	}()

	_, err := ch.Send(ctx, TypeAnalyze, echo{})
	if !errors.Is(err, model.ErrServiceConfiguration) {
		t.Fatalf("err = %v, want ErrServiceConfiguration", err)
	}
}

// stalledTransport never accepts a message until its context ends.
type stalledTransport struct {
	msgs        chan Message
	hadDeadline chan bool
}

func (s *stalledTransport) Send(ctx context.Context, _ Message) (*Message, error) {
	_, ok := ctx.Deadline()
	s.hadDeadline <- ok
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledTransport) Messages() <-chan Message { return s.msgs }
func (s *stalledTransport) Close() error             { return nil }

func TestSend_TimeoutCoversStalledTransport(t *testing.T) {
	tr := &stalledTransport{msgs: make(chan Message), hadDeadline: make(chan bool, 1)}
	ch := New(tr, 40*time.Millisecond, discardLogger())

	start := time.Now()
	_, err := ch.Send(context.Background(), TypeAnalyze, echo{Text: "stuck"})
	if !errors.Is(err, model.ErrTransportTimeout) {
		t.Fatalf("err = %v, want ErrTransportTimeout", err)
	}
	if errors.Is(err, model.ErrTransportFailure) {
		t.Errorf("err = %v, a stalled send is a timeout, not a failure", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send returned after %v, want the 40ms timeout", elapsed)
	}
	if !<-tr.hadDeadline {
		t.Error("transport Send got a context without a deadline")
	}
	if ch.Pending() != 0 {
		t.Errorf("pending = %d", ch.Pending())
	}
}

func TestSend_CallerCancelDuringTransportSend(t *testing.T) {
	tr := &stalledTransport{msgs: make(chan Message), hadDeadline: make(chan bool, 1)}
	ch := New(tr, time.Hour, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-tr.hadDeadline
		cancel()
	}()

	_, err := ch.Send(ctx, TypeAnalyze, echo{Text: "bye"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, model.ErrTransportTimeout) || errors.Is(err, model.ErrTransportFailure) {
		t.Errorf("err = %v, cancellation must not be classified as a transport error", err)
	}
}
