package pagination

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/jobradar/internal/dom"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var strategies = []Strategy{
	{Container: "nav.pager", Selector: "button.next"},
	{Container: "", Selector: `button[aria-label="Next"]`},
}

func TestFindNext(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		wantOK bool
		want   string // text of the chosen control
	}{
		{
			name:   "first strategy",
			markup: `<nav class="pager"><button class="next">Next</button></nav>`,
			wantOK: true,
			want:   "Next",
		},
		{
			name:   "falls back to second strategy",
			markup: `<div><button aria-label="Next">More</button></div>`,
			wantOK: true,
			want:   "More",
		},
		{
			name:   "disabled control",
			markup: `<nav class="pager"><button class="next" disabled>Next</button></nav>`,
			wantOK: false,
		},
		{
			name:   "hidden control",
			markup: `<nav class="pager" style="display:none"><button class="next">Next</button></nav>`,
			wantOK: false,
		},
		{
			name:   "disabled first, usable fallback",
			markup: `<nav class="pager"><button class="next" aria-disabled="true">Next</button></nav><button aria-label="Next">Fallback</button>`,
			wantOK: true,
			want:   "Fallback",
		},
		{
			name:   "no control",
			markup: `<p>last page</p>`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := dom.Parse(`<html><body>` + tt.markup + `</body></html>`)
			if err != nil {
				t.Fatal(err)
			}
			control, ok, err := FindNext(root, strategies)
			if err != nil {
				t.Fatalf("FindNext: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && control.Text() != tt.want {
				t.Errorf("control = %q, want %q", control.Text(), tt.want)
			}
		})
	}
}

func TestAdvance_ClicksAndSettles(t *testing.T) {
	page := dom.NewStaticPage("p", "https://example.com/jobs",
		`<html><body><nav class="pager"><button class="next">Next</button></nav></body></html>`)
	c := New(page, strategies, 30*time.Millisecond, discardLogger())
	ctx := context.Background()

	control, ok, err := c.FindNext(ctx)
	if err != nil || !ok {
		t.Fatalf("FindNext: ok=%v err=%v", ok, err)
	}

	start := time.Now()
	if err := c.Advance(ctx, control); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Advance returned after %v, want settle wait", elapsed)
	}
	if clicks := page.Clicks(); len(clicks) != 1 || clicks[0] != control.Path() {
		t.Errorf("clicks = %v", clicks)
	}
}

func TestAdvance_Cancelled(t *testing.T) {
	page := dom.NewStaticPage("p", "https://example.com/jobs",
		`<html><body><nav class="pager"><button class="next">Next</button></nav></body></html>`)
	c := New(page, strategies, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	control, _, _ := c.FindNext(ctx)
	cancel()
	if err := c.Advance(ctx, control); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
