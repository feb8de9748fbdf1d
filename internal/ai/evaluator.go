package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/retry"
)

// maxDescriptionRunes bounds the listing text sent to the model.
const maxDescriptionRunes = 12000

// Evaluator implements model.AnalysisService using an LLM.
type Evaluator struct {
	provider LLMProvider
	tmpl     *template.Template
	policy   retry.Policy
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator. Rate limiting (429) and 5xx responses
// are retried with exponential backoff, honouring Retry-After.
func NewEvaluator(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		provider: provider,
		tmpl:     tmpl,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(time.Second),
			Retryable:   retry.IsRetryable,
		},
		logger: logger,
	}
}

type promptData struct {
	Title       string
	Company     string
	Location    string
	Description string
	Criteria    string
	Resume      string
}

// Evaluate asks the model whether req fits settings.Criteria. It returns the
// verdict and the rationale as escaped markup.
func (e *Evaluator) Evaluate(ctx context.Context, req model.AnalysisRequest, settings model.Settings) (model.Verdict, string, error) {
	if settings.Credential == "" {
		return model.VerdictUnknown, "", fmt.Errorf("evaluate %s: missing credential: %w", req.ListingID, model.ErrServiceConfiguration)
	}

	resume := req.Resume
	if resume == "" {
		resume = settings.Resume
	}
	var promptBuf bytes.Buffer
	if err := e.tmpl.Execute(&promptBuf, promptData{
		Title:       req.Title,
		Company:     req.Company,
		Location:    req.Location,
		Description: clip(req.Description, maxDescriptionRunes),
		Criteria:    settings.Criteria,
		Resume:      resume,
	}); err != nil {
		return model.VerdictUnknown, "", fmt.Errorf("render prompt: %w", err)
	}

	var raw string
	err := e.policy.Do(ctx, e.logger, "llm complete", func(ctx context.Context, _ int) error {
		var err error
		raw, err = e.provider.Complete(ctx, settings.Credential, promptBuf.String())
		return err
	})
	if err != nil {
		return model.VerdictUnknown, "", fmt.Errorf("llm complete: %w", err)
	}

	verdict, rationale, err := parseVerdict(raw)
	if err != nil {
		return model.VerdictUnknown, "", fmt.Errorf("parse verdict: %w", err)
	}
	if e.logger != nil {
		e.logger.Debug("listing evaluated", "listing", req.ListingID, "verdict", verdict)
	}
	return verdict, RationaleMarkup(rationale), nil
}

// rawVerdict is the JSON shape returned by the LLM (matches verdictSchema).
type rawVerdict struct {
	Verdict   string `json:"verdict"`
	Rationale string `json:"rationale"`
}

func parseVerdict(raw string) (model.Verdict, string, error) {
	if err := validateVerdictJSON([]byte(raw)); err != nil {
		return model.VerdictUnknown, "", err
	}
	var rv rawVerdict
	if err := json.Unmarshal([]byte(raw), &rv); err != nil {
		return model.VerdictUnknown, "", fmt.Errorf("unmarshal verdict JSON: %w", err)
	}
	return model.ParseVerdict(rv.Verdict), strings.TrimSpace(rv.Rationale), nil
}

// RationaleMarkup escapes plain text and turns blank-line separated
// paragraphs into <p> elements.
func RationaleMarkup(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>")
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
