package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/channel"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeService struct {
	mu       sync.Mutex
	verdict  model.Verdict
	err      error
	settings []model.Settings
}

func (f *fakeService) Evaluate(_ context.Context, req model.AnalysisRequest, s model.Settings) (model.Verdict, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, s)
	if f.err != nil {
		return "", "", f.err
	}
	return f.verdict, "<p>because " + req.Title + "</p>", nil
}

// startPair wires a worker and a client over a memory bus and runs both
// until the test ends.
func startPair(t *testing.T, svc model.AnalysisService, settings model.Store, opts Options) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	scanner, analyzerEnd := channel.NewMemoryBus(8)
	w := NewWorker(analyzerEnd, svc, settings, opts, discardLogger())
	analyzerEnd.Respond(w.Responder())
	go w.Run(ctx)

	ch := channel.New(scanner, time.Second, discardLogger())
	go ch.Run(ctx)
	return NewClient(ch)
}

func TestAnalyze_RoundTrip(t *testing.T) {
	svc := &fakeService{verdict: model.VerdictFit}
	c := startPair(t, svc, store.NewMemoryStore(), Options{Defaults: model.Settings{Credential: "k"}, RequireCredential: true})

	res, err := c.Analyze(context.Background(), model.AnalysisRequest{ListingID: "42", Title: "SRE"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.ListingID != "42" || res.Verdict != model.VerdictFit {
		t.Errorf("result = %+v", res)
	}
	if res.RationaleMarkup != "<p>because SRE</p>" {
		t.Errorf("rationale = %q", res.RationaleMarkup)
	}
	if res.CompletedAt.IsZero() {
		t.Error("CompletedAt should be stamped")
	}
}

func TestAnalyze_GarbageVerdictIsUnknown(t *testing.T) {
	c := startPair(t, &fakeService{verdict: "perhaps"}, nil, Options{})

	res, err := c.Analyze(context.Background(), model.AnalysisRequest{ListingID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != model.VerdictUnknown {
		t.Errorf("verdict = %s, want unknown", res.Verdict)
	}
}

func TestStatus_MissingCredentialIsConfigurationError(t *testing.T) {
	c := startPair(t, &fakeService{}, store.NewMemoryStore(), Options{RequireCredential: true})

	err := c.Status(context.Background())
	if !errors.Is(err, model.ErrServiceConfiguration) {
		t.Fatalf("Status err = %v, want ErrServiceConfiguration", err)
	}
	_, err = c.Analyze(context.Background(), model.AnalysisRequest{ListingID: "1"})
	if !errors.Is(err, model.ErrServiceConfiguration) {
		t.Fatalf("Analyze err = %v, want ErrServiceConfiguration", err)
	}
}

func TestSettingsRecordOverridesDefaults(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := store.SaveSettings(ctx, st, model.Settings{Credential: "saved", Criteria: "remote only"}); err != nil {
		t.Fatal(err)
	}
	svc := &fakeService{verdict: model.VerdictNoFit}
	c := startPair(t, svc, st, Options{RequireCredential: true, Defaults: model.Settings{Credential: "default", Resume: "cv"}})

	if err := c.Status(ctx); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, err := c.Analyze(ctx, model.AnalysisRequest{ListingID: "1"}); err != nil {
		t.Fatal(err)
	}
	got := svc.settings[0]
	if got.Credential != "saved" || got.Criteria != "remote only" || got.Resume != "cv" {
		t.Errorf("settings passed to service = %+v", got)
	}
}

func TestAnalyze_ServiceErrorIsReported(t *testing.T) {
	c := startPair(t, &fakeService{err: errors.New("model overloaded")}, nil, Options{})

	_, err := c.Analyze(context.Background(), model.AnalysisRequest{ListingID: "1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, model.ErrServiceConfiguration) || errors.Is(err, model.ErrTransportTimeout) {
		t.Errorf("service error misclassified: %v", err)
	}
}

func TestStatus_AnsweredSynchronously(t *testing.T) {
	scanner, analyzerEnd := channel.NewMemoryBus(1)
	w := NewWorker(analyzerEnd, &fakeService{}, nil, Options{}, discardLogger())
	analyzerEnd.Respond(w.Responder())
	// No worker loop and no channel loop: only the responder can answer.
	ack, err := scanner.Send(context.Background(), channel.Message{Type: channel.TypeStatus, ID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if ack == nil || !ack.Reply || ack.Err() != nil {
		t.Fatalf("ack = %+v, want a successful synchronous reply", ack)
	}
	var status StatusReply
	if err := ack.Decode(&status); err != nil || !status.Ready {
		t.Errorf("status = %+v, %v", status, err)
	}
}

func TestWorker_RateLimitsRequests(t *testing.T) {
	opts := Options{RequestsPerMinute: 600} // one every 100ms
	c := startPair(t, &fakeService{verdict: model.VerdictFit}, nil, opts)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Analyze(context.Background(), model.AnalysisRequest{ListingID: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("3 requests took %v, want at least ~200ms of pacing", elapsed)
	}
}
