package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/retry"
)

// mockProvider is a stub LLMProvider that replays responses in order.
type mockProvider struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
	keys      []string
}

func (m *mockProvider) Complete(_ context.Context, apiKey, prompt string) (string, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.keys = append(m.keys, apiKey)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return m.responses[len(m.responses)-1], nil
}

func newTestEvaluator(p LLMProvider) *Evaluator {
	tmpl := template.Must(template.New("test").Parse("{{.Title}} at {{.Company}} | {{.Criteria}} | {{.Resume}} | {{.Description}}"))
	e := NewEvaluator(p, tmpl, nil)
	e.policy.Backoff = retry.Constant(time.Millisecond)
	return e
}

var testSettings = model.Settings{Credential: "sk-test", Criteria: "remote Go", Resume: "ten years of Go"}

func testRequest() model.AnalysisRequest {
	return model.AnalysisRequest{ListingID: "1", Title: "Backend Engineer", Company: "Acme", Description: "We write Go."}
}

func TestEvaluate_ParsesVerdict(t *testing.T) {
	p := &mockProvider{responses: []string{`{"verdict":"fit","rationale":"Remote & Go.\n\nSenior level."}`}}
	verdict, markup, err := newTestEvaluator(p).Evaluate(context.Background(), testRequest(), testSettings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != model.VerdictFit {
		t.Errorf("verdict = %s, want fit", verdict)
	}
	if markup != "<p>Remote &amp; Go.</p><p>Senior level.</p>" {
		t.Errorf("markup = %q", markup)
	}
	if p.keys[0] != "sk-test" {
		t.Errorf("provider key = %q, want the settings credential", p.keys[0])
	}
	if !strings.Contains(p.prompts[0], "remote Go") || !strings.Contains(p.prompts[0], "ten years of Go") {
		t.Errorf("prompt lacks criteria or resume: %q", p.prompts[0])
	}
}

func TestEvaluate_RequestResumeWins(t *testing.T) {
	p := &mockProvider{responses: []string{`{"verdict":"no_fit","rationale":"x"}`}}
	req := testRequest()
	req.Resume = "request resume"
	if _, _, err := newTestEvaluator(p).Evaluate(context.Background(), req, testSettings); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p.prompts[0], "request resume") {
		t.Errorf("prompt = %q, want the request resume", p.prompts[0])
	}
}

func TestEvaluate_MissingCredential(t *testing.T) {
	p := &mockProvider{responses: []string{`{}`}}
	_, _, err := newTestEvaluator(p).Evaluate(context.Background(), testRequest(), model.Settings{})
	if !errors.Is(err, model.ErrServiceConfiguration) {
		t.Fatalf("err = %v, want ErrServiceConfiguration", err)
	}
	if p.calls != 0 {
		t.Error("provider should not be called without a credential")
	}
}

func TestEvaluate_RetriesRateLimit(t *testing.T) {
	p := &mockProvider{
		errs:      []error{&model.HTTPError{StatusCode: 429}, &model.HTTPError{StatusCode: 503}},
		responses: []string{"", "", `{"verdict":"no_fit","rationale":"on-site"}`},
	}
	verdict, _, err := newTestEvaluator(p).Evaluate(context.Background(), testRequest(), testSettings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != model.VerdictNoFit || p.calls != 3 {
		t.Errorf("verdict = %s after %d calls, want no_fit after 3", verdict, p.calls)
	}
}

func TestEvaluate_DoesNotRetryClientError(t *testing.T) {
	p := &mockProvider{errs: []error{&model.HTTPError{StatusCode: 400}}, responses: []string{""}}
	if _, _, err := newTestEvaluator(p).Evaluate(context.Background(), testRequest(), testSettings); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestEvaluate_RejectsOffSchemaResponse(t *testing.T) {
	tests := []string{
		`not json`,
		`{"verdict":"maybe","rationale":"x"}`,
		`{"verdict":"fit"}`,
		`{"verdict":"fit","rationale":"x","score":3}`,
	}
	for _, raw := range tests {
		p := &mockProvider{responses: []string{raw}}
		if _, _, err := newTestEvaluator(p).Evaluate(context.Background(), testRequest(), testSettings); err == nil {
			t.Errorf("Evaluate accepted %s", raw)
		}
	}
}

func TestRationaleMarkup_Escapes(t *testing.T) {
	got := RationaleMarkup("<script>alert(1)</script>")
	if strings.Contains(got, "<script>") {
		t.Errorf("markup not escaped: %q", got)
	}
	if RationaleMarkup("  \n\n ") != "" {
		t.Error("blank rationale should render empty")
	}
}

func TestNopService_ReturnsUnknown(t *testing.T) {
	verdict, _, err := NewNopService().Evaluate(context.Background(), testRequest(), model.Settings{})
	if err != nil || verdict != model.VerdictUnknown {
		t.Errorf("Evaluate = %s, %v; want unknown, nil", verdict, err)
	}
}

func TestListingFitTemplate_Renders(t *testing.T) {
	var b strings.Builder
	err := ListingFitTemplate.Execute(&b, promptData{Title: "SRE", Company: "Initech", Criteria: "remote"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "Title: SRE") || strings.Contains(b.String(), "Candidate resume") {
		t.Errorf("unexpected prompt:\n%s", b.String())
	}
}
