// Package annotate renders cache entries as badges inside listing elements.
package annotate

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/amishk599/jobradar/internal/dom"
	"github.com/amishk599/jobradar/internal/model"
)

// The attribute name must match dom.BadgeAttr so re-renders replace the
// previous badge.
var badgeTmpl = template.Must(template.New("badge").Parse(
	`<details data-jobradar-badge="{{.ID}}" class="jobradar-badge jobradar-badge--{{.Class}}">` +
		`<summary>{{.Label}}</summary>` +
		`<div class="jobradar-badge__rationale">{{.Rationale}}</div>` +
		`</details>`))

type badgeData struct {
	ID        string
	Class     string
	Label     string
	Rationale template.HTML
}

// Badge renders the three-state badge for entry. The rationale is expected
// to be sanitized markup; it is shown when the badge is expanded.
func Badge(entry model.CacheEntry) (string, error) {
	data := badgeData{ID: entry.ID, Rationale: template.HTML(entry.RationaleMarkup)}
	switch entry.Verdict.Normalize() {
	case model.VerdictFit:
		data.Class, data.Label = "fit", "✓ Fit"
	case model.VerdictNoFit:
		data.Class, data.Label = "nofit", "✗ Not a fit"
	default:
		data.Class, data.Label = "unknown", "? Unknown"
	}

	var buf bytes.Buffer
	if err := badgeTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering badge for %s: %w", entry.ID, err)
	}
	return buf.String(), nil
}

// Annotator inserts badges into a page.
type Annotator struct {
	page dom.Page
}

func New(page dom.Page) *Annotator { return &Annotator{page: page} }

// Render shows entry's badge inside item, replacing an earlier one.
func (a *Annotator) Render(ctx context.Context, item dom.Node, entry model.CacheEntry) error {
	markup, err := Badge(entry)
	if err != nil {
		return err
	}
	return a.page.InsertBadge(ctx, item, markup)
}
