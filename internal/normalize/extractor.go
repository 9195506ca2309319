// Package normalize maps source-specific fields onto the common listing shape.
package normalize

import (
	"strings"

	"ListingsAggregator/internal/domain"
)

const (
	DefaultOrganization = "Unknown Company"
	DefaultLocation     = "Remote"

	ReasonNoOrganization = "organization defaulted: no \" at \" delimiter"
	ReasonNoLocation     = "location defaulted: no \" - \" delimiter"
)

// Extraction is the structured result of splitting one free-text headline.
type Extraction struct {
	Title        string
	Organization string
	Location     string
	Confidence   domain.Confidence
	Reasons      []string
}

// FieldExtractor turns a headline such as a feed entry title into title,
// organization and location.
type FieldExtractor interface {
	Extract(text string) Extraction
}

// DelimiterExtractor splits "Title at Company - Location": the first " at "
// separates the title, the last " - " of the remainder separates the location.
// Missing parts fall back to DefaultOrganization / DefaultLocation and lower
// the confidence.
type DelimiterExtractor struct{}

var _ FieldExtractor = DelimiterExtractor{}

// Extract applies the delimiter heuristic.
func (DelimiterExtractor) Extract(text string) Extraction {
	text = strings.TrimSpace(text)
	out := Extraction{
		Title:        text,
		Organization: DefaultOrganization,
		Location:     DefaultLocation,
		Confidence:   domain.ConfidenceHigh,
	}

	title, rest, found := strings.Cut(text, " at ")
	if !found {
		out.Confidence = domain.ConfidenceLow
		out.Reasons = append(out.Reasons, ReasonNoOrganization, ReasonNoLocation)
		return out
	}
	out.Title = strings.TrimSpace(title)

	idx := strings.LastIndex(rest, " - ")
	if idx < 0 {
		out.Organization = strings.TrimSpace(rest)
		out.Confidence = domain.ConfidenceLow
		out.Reasons = append(out.Reasons, ReasonNoLocation)
		return out
	}

	out.Organization = strings.TrimSpace(rest[:idx])
	out.Location = strings.TrimSpace(rest[idx+len(" - "):])
	return out
}
