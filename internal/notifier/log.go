package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobradar/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new matches to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each entry via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each entry with company, title, location, URL and verdict.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, entries []model.CacheEntry) error {
	for _, e := range entries {
		args := []any{"id", e.ID, "company", e.Company, "title", e.Title, "location", e.Location, "url", e.SourceURL, "verdict", e.Verdict}
		if e.Salary != "" {
			args = append(args, "salary", e.Salary)
		}
		n.logger.Info("new match", args...)
	}
	return nil
}
