package extract

import (
	"regexp"
	"strings"

	"github.com/amishk599/jobradar/internal/dom"
)

// Strategy pulls one field value out of a listing element. An empty result
// means "try the next strategy".
type Strategy func(item dom.Node) string

// Layout lists, per field, the strategies to try in rank order, plus where
// the description panel lives for this page layout.
type Layout struct {
	ID       []Strategy
	Title    []Strategy
	Company  []Strategy
	Location []Strategy
	Salary   []Strategy
	Link     []Strategy

	// Activate is the ranked list of selectors (relative to the listing)
	// whose element is clicked to open the detail panel. Empty, or no
	// match, clicks the listing itself.
	Activate []string

	// Panel is the ranked list of document-level description selectors.
	Panel []string
	// PanelID optionally reports which listing the panel currently shows.
	PanelID Strategy

	// Placeholders are extra title/company values that count as empty.
	Placeholders []string
}

// first runs strategies in order and returns the first non-empty value.
func first(item dom.Node, strategies []Strategy) string {
	for _, s := range strategies {
		if v := strings.TrimSpace(s(item)); v != "" {
			return v
		}
	}
	return ""
}

func scope(item dom.Node, selector string) (dom.Node, bool) {
	if selector == "" {
		return item, item.Exists()
	}
	return item.First(selector)
}

// Attr reads attribute attr from the element matching selector (or the
// listing itself when selector is empty).
func Attr(selector, attr string) Strategy {
	return func(item dom.Node) string {
		n, ok := scope(item, selector)
		if !ok {
			return ""
		}
		return n.Attr(attr)
	}
}

// AttrPattern reads attribute attr like Attr and returns the first capture
// group of re, e.g. a numeric id inside an href or urn.
func AttrPattern(selector, attr string, re *regexp.Regexp) Strategy {
	return func(item dom.Node) string {
		n, ok := scope(item, selector)
		if !ok {
			return ""
		}
		m := re.FindStringSubmatch(n.Attr(attr))
		if len(m) < 2 {
			return ""
		}
		return m[1]
	}
}

// Text returns the collapsed text of the first visible element matching
// selector.
func Text(selector string) Strategy {
	return func(item dom.Node) string {
		for _, n := range item.Find(selector) {
			if !n.Hidden() {
				if t := n.Text(); t != "" {
					return t
				}
			}
		}
		return ""
	}
}

// AnyText returns the text of the first element matching selector, hidden
// or not. Used as a last resort when only screen-reader labels are present.
func AnyText(selector string) Strategy {
	return func(item dom.Node) string {
		n, ok := item.First(selector)
		if !ok {
			return ""
		}
		return n.Text()
	}
}
