package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/listing_fit.md
var listingFitPromptRaw string

// ListingFitTemplate is the parsed prompt template for listing evaluation.
// Parsed once at package init; reused on every Evaluate call.
var ListingFitTemplate = template.Must(template.New("listing_fit").Parse(listingFitPromptRaw))
