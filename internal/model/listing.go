package model

import (
	"strings"
	"time"
)

// Listing is one job posting as extracted from the source page.
type Listing struct {
	ID              string `json:"id"`                        // stable across rescans
	Title           string `json:"title"`
	Company         string `json:"company"`
	Location        string `json:"location"`
	Salary          string `json:"salary,omitempty"`
	Description     string `json:"description"`               // plain text
	RichDescription string `json:"richDescription,omitempty"` // panel markup
	SourceURL       string `json:"sourceUrl"`
}

// Verdict is the tri-state outcome of an evaluation.
type Verdict string

const (
	VerdictFit     Verdict = "fit"
	VerdictNoFit   Verdict = "no_fit"
	VerdictUnknown Verdict = "unknown"
)

// ParseVerdict maps loosely formatted verdict strings onto the three tagged
// states. Anything unrecognised is Unknown.
func ParseVerdict(s string) Verdict {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fit", "match", "yes", "true":
		return VerdictFit
	case "no_fit", "nofit", "no fit", "no-fit", "reject", "rejected", "no", "false":
		return VerdictNoFit
	default:
		return VerdictUnknown
	}
}

// Normalize returns v when it is one of the tagged states, Unknown otherwise.
func (v Verdict) Normalize() Verdict {
	switch v {
	case VerdictFit, VerdictNoFit:
		return v
	default:
		return VerdictUnknown
	}
}

// Definite reports whether the verdict places the entry in a collection.
func (v Verdict) Definite() bool {
	v = v.Normalize()
	return v == VerdictFit || v == VerdictNoFit
}

// AnalysisResult is what the evaluation service returns for one listing.
type AnalysisResult struct {
	ListingID       string    `json:"listingId"`
	Verdict         Verdict   `json:"verdict"`
	RationaleMarkup string    `json:"rationaleMarkup"`
	CompletedAt     time.Time `json:"completedAt"`
}

// CacheEntry is a Listing merged with its latest AnalysisResult.
type CacheEntry struct {
	Listing
	Verdict         Verdict   `json:"verdict"`
	RationaleMarkup string    `json:"rationaleMarkup"`
	CompletedAt     time.Time `json:"completedAt"`
}

// NewCacheEntry merges a listing with its analysis result.
func NewCacheEntry(l Listing, r AnalysisResult) CacheEntry {
	return CacheEntry{
		Listing:         l,
		Verdict:         r.Verdict.Normalize(),
		RationaleMarkup: r.RationaleMarkup,
		CompletedAt:     r.CompletedAt,
	}
}

// AnalysisRequest is the payload sent to the analyzer context.
type AnalysisRequest struct {
	ListingID   string `json:"listingId"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Resume      string `json:"resume,omitempty"`
}

// RequestFor builds the analysis request for a listing.
func RequestFor(l Listing) AnalysisRequest {
	return AnalysisRequest{
		ListingID:   l.ID,
		Title:       l.Title,
		Company:     l.Company,
		Location:    l.Location,
		Description: l.Description,
	}
}

// Settings is the persisted settings record shared by both contexts.
type Settings struct {
	Credential string `json:"credential"`
	Criteria   string `json:"criteria"`
	Resume     string `json:"resume"`
	Budget     int    `json:"budget"`
}
