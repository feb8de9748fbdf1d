// Package dom provides read-only snapshots of a page's element tree and the
// Page interface that every page backend implements.
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is one element of a snapshot. The zero Node is an absent element.
type Node struct {
	sel *goquery.Selection
}

// Parse builds a snapshot from an HTML document and returns its root.
func Parse(markup string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Node{}, fmt.Errorf("parse html: %w", err)
	}
	return Node{sel: doc.Selection}, nil
}

// Exists reports whether the node refers to an element.
func (n Node) Exists() bool {
	return n.sel != nil && n.sel.Length() > 0
}

// Find returns all descendants matching a CSS selector, in document order.
func (n Node) Find(selector string) []Node {
	if !n.Exists() {
		return nil
	}
	var out []Node
	n.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, Node{sel: s})
	})
	return out
}

// First returns the first descendant matching any of the selectors, trying
// them in rank order.
func (n Node) First(selectors ...string) (Node, bool) {
	if !n.Exists() {
		return Node{}, false
	}
	for _, selector := range selectors {
		if s := n.sel.Find(selector).First(); s.Length() > 0 {
			return Node{sel: s}, true
		}
	}
	return Node{}, false
}

// Is reports whether the node itself matches selector.
func (n Node) Is(selector string) bool {
	return n.Exists() && n.sel.Is(selector)
}

// Attr returns the attribute value, or "" when absent.
func (n Node) Attr(name string) string {
	if !n.Exists() {
		return ""
	}
	v, _ := n.sel.Attr(name)
	return v
}

// HasAttr reports whether the attribute is present, even if empty.
func (n Node) HasAttr(name string) bool {
	if !n.Exists() {
		return false
	}
	_, ok := n.sel.Attr(name)
	return ok
}

// Text returns the element's text content with whitespace collapsed.
func (n Node) Text() string {
	if !n.Exists() {
		return ""
	}
	return strings.Join(strings.Fields(n.sel.Text()), " ")
}

// HTML returns the element's inner markup.
func (n Node) HTML() string {
	if !n.Exists() {
		return ""
	}
	h, err := n.sel.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h)
}

// Without returns a detached copy of the node with every descendant matching
// selector removed.
func (n Node) Without(selector string) Node {
	if !n.Exists() {
		return Node{}
	}
	c := n.sel.Clone()
	c.Find(selector).Remove()
	return Node{sel: c}
}

// Count returns the number of descendant elements.
func (n Node) Count() int {
	if !n.Exists() {
		return 0
	}
	return n.sel.Find("*").Length()
}

// Path returns a CSS selector that locates this element from the document
// root by child position, e.g. "html > body:nth-child(2) > ul:nth-child(1)".
// The path stays valid on a later snapshot as long as the ancestors are not
// reordered.
func (n Node) Path() string {
	if !n.Exists() {
		return ""
	}
	var parts []string
	for s := n.sel.First(); s.Length() > 0; s = s.Parent() {
		name := goquery.NodeName(s)
		if name == "" || strings.HasPrefix(name, "#") {
			break
		}
		if name == "html" {
			parts = append(parts, "html")
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", name, s.Index()+1))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// Lookup resolves a Path against this snapshot.
func (n Node) Lookup(path string) (Node, bool) {
	if path == "" {
		return Node{}, false
	}
	return n.First(path)
}

// Hidden reports whether the element or one of its ancestors is hidden via
// the hidden attribute, aria-hidden, or an inline display/visibility style.
func (n Node) Hidden() bool {
	if !n.Exists() {
		return true
	}
	for s := n.sel.First(); s.Length() > 0; s = s.Parent() {
		if strings.HasPrefix(goquery.NodeName(s), "#") {
			break
		}
		if _, ok := s.Attr("hidden"); ok {
			return true
		}
		if v, _ := s.Attr("aria-hidden"); v == "true" {
			return true
		}
		style, _ := s.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

// Disabled reports whether a control is disabled.
func (n Node) Disabled() bool {
	if !n.Exists() {
		return true
	}
	if n.HasAttr("disabled") {
		return true
	}
	if n.Attr("aria-disabled") == "true" {
		return true
	}
	for _, class := range strings.Fields(n.Attr("class")) {
		if class == "disabled" || strings.HasSuffix(class, "--disabled") {
			return true
		}
	}
	return false
}
