package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobradar/internal/extract"
	"github.com/amishk599/jobradar/internal/model"
	"github.com/amishk599/jobradar/internal/retry"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier sends match alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	policy     retry.Policy
	spacing    time.Duration // between messages
}

// NewSlackNotifier returns a notifier that posts each entry to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		policy: retry.Policy{
			MaxAttempts: 2,
			Backoff:     retry.Constant(time.Second),
			Retryable:   rateLimited,
		},
		spacing: 500 * time.Millisecond,
	}
}

// Notify sends each entry as a separate Slack message using Block Kit.
// Returns an error only if ALL messages fail. Individual failures are logged.
func (s *SlackNotifier) Notify(ctx context.Context, entries []model.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	failures := 0
	for i, e := range entries {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("slack notifications interrupted after %d: %w", i, ctx.Err())
			case <-time.After(s.spacing):
			}
		}

		if err := s.sendMessage(ctx, e); err != nil {
			s.logger.Error("slack notification failed", "company", e.Company, "title", e.Title, "error", err)
			failures++
		}
	}

	sent := len(entries) - failures
	if failures == len(entries) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", sent, "failed", failures)
	return nil
}

func (s *SlackNotifier) sendMessage(ctx context.Context, e model.CacheEntry) error {
	body, err := json.Marshal(buildPayload(e))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	return s.policy.Do(ctx, s.logger, "slack post", func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create slack request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("post to slack: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("slack webhook: %w", &model.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			})
		}
		s.logger.Info("slack message sent", "company", e.Company, "title", e.Title, "attempt", attempt)
		return nil
	})
}

// rateLimited reports whether err is a 429 from the webhook.
func rateLimited(err error) bool {
	var httpErr *model.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

// parseRetryAfter reads a Retry-After value in seconds. Zero if absent or
// unparseable.
func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SendTestMessage sends a dummy match notification to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) error {
	test := model.CacheEntry{
		Listing: model.Listing{
			ID:        "test-001",
			Company:   "jobradar",
			Title:     "Test Notification: Integration Verified",
			Location:  "Everywhere",
			SourceURL: "https://www.linkedin.com/jobs/",
		},
		Verdict:         model.VerdictFit,
		RationaleMarkup: "<p>This is a test message.</p>",
		CompletedAt:     time.Now(),
	}
	return n.Notify(ctx, []model.CacheEntry{test})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// maxRationale bounds the rationale section; Slack rejects sections over 3000 characters.
const maxRationale = 600

func buildPayload(e model.CacheEntry) slackPayload {
	evaluated := "Just now"
	if !e.CompletedAt.IsZero() {
		evaluated = e.CompletedAt.Format(time.RFC1123)
	}
	salary := e.Salary
	if salary == "" {
		salary = "Not listed"
	}

	company := capitalize(e.Company)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "✅ " + company + ": " + e.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Company:*\n" + company},
				{Type: "mrkdwn", Text: "*Location:*\n" + e.Location},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Salary:*\n" + salary},
				{Type: "mrkdwn", Text: "*Evaluated:*\n" + evaluated},
			},
		},
	}

	if rationale := extract.PlainText(e.RationaleMarkup); rationale != "" {
		if r := []rune(rationale); len(r) > maxRationale {
			rationale = string(r[:maxRationale]) + "…"
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Why it fits:* %s", rationale)},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View Listing"},
					URL:   e.SourceURL,
					Style: "primary",
				},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
