package filter

import (
	"strings"

	"github.com/amishk599/jobradar/internal/model"
)

// Ensure KeywordFilter implements model.ListingFilter.
var _ model.ListingFilter = (*KeywordFilter)(nil)

// Rules are the keyword lists of a KeywordFilter. Matching is a
// case-insensitive substring test.
type Rules struct {
	TitleKeywords        []string
	TitleExcludeKeywords []string
	Locations            []string
	ExcludeLocations     []string
}

// KeywordFilter passes listings whose title contains any title keyword and
// whose location contains any location keyword, unless an exclude keyword
// hits. Empty include lists are treated as "match all".
type KeywordFilter struct {
	rules Rules
}

// NewKeywordFilter returns a filter for rules.
func NewKeywordFilter(rules Rules) *KeywordFilter {
	return &KeywordFilter{rules: rules}
}

// Empty reports whether the filter passes everything.
func (f *KeywordFilter) Empty() bool {
	r := f.rules
	return len(r.TitleKeywords)+len(r.TitleExcludeKeywords)+len(r.Locations)+len(r.ExcludeLocations) == 0
}

// Match returns true if l passes every rule.
func (f *KeywordFilter) Match(l model.Listing) bool {
	titleLower := strings.ToLower(l.Title)
	locationLower := strings.ToLower(l.Location)

	if len(f.rules.TitleKeywords) > 0 && !containsAny(titleLower, f.rules.TitleKeywords) {
		return false
	}
	if containsAny(titleLower, f.rules.TitleExcludeKeywords) {
		return false
	}
	if len(f.rules.Locations) > 0 && !containsAny(locationLower, f.rules.Locations) {
		return false
	}
	if containsAny(locationLower, f.rules.ExcludeLocations) {
		return false
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
