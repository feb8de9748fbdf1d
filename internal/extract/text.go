package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// PlainText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles double-encoding; no-op on
// already-real HTML), strips all tags, then collapses whitespace.
func PlainText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// CollapseRepeated undoes label duplication, which shows up when a visually
// hidden and a visible copy of the same label are concatenated:
//
//	"Senior EngineerSenior Engineer"    -> "Senior Engineer"
//	"Senior Engineer - Senior Engineer" -> "Senior Engineer"
//	"AcmeAcmeAcme"                      -> "Acme"
func CollapseRepeated(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	n := len(r)
	if n < 2 {
		return s
	}

	// Whole-string self-repetition, shortest period first.
	for p := 1; p <= n/2; p++ {
		if n%p != 0 {
			continue
		}
		unit := string(r[:p])
		if strings.Repeat(unit, n/p) == s && strings.TrimSpace(unit) != "" {
			return strings.TrimSpace(unit)
		}
	}

	// Two identical halves around a separator.
	for l := n / 2; l >= 1; l-- {
		head, tail := string(r[:l]), string(r[n-l:])
		if head != tail {
			continue
		}
		if onlySeparators(r[l : n-l]) {
			if h := strings.TrimSpace(head); h != "" {
				return h
			}
		}
	}
	return s
}

func onlySeparators(rs []rune) bool {
	for _, c := range rs {
		if unicode.IsSpace(c) {
			continue
		}
		switch c {
		case '-', '|', '·', '•', ',', ':', '–', '—':
			continue
		}
		return false
	}
	return true
}

var defaultPlaceholders = []string{"", "...", "…", "loading", "loading...", "loading…", "n/a", "-", "--"}

// isPlaceholder reports whether v is empty or a known stand-in value.
func isPlaceholder(v string, extra []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, p := range defaultPlaceholders {
		if v == p {
			return true
		}
	}
	for _, p := range extra {
		if v == strings.ToLower(strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}
