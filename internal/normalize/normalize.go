package normalize

import (
	"errors"
	"regexp"
	"strings"

	"ListingsAggregator/internal/domain"
)

var (
	ErrMissingTitle    = errors.New("listing has no title")
	ErrMissingIdentity = errors.New("listing has neither external id nor url")
)

// Listing cleans a raw record and fills its identity. A record that cannot be
// identified or has no title is rejected; callers skip it and keep the batch.
func Listing(raw domain.RawListing) (domain.RawListing, error) {
	raw.Title = Text(raw.Title)
	raw.Organization = Text(raw.Organization)
	raw.Location = Text(raw.Location)
	raw.Description = strings.TrimSpace(raw.Description)
	raw.URL = strings.TrimSpace(raw.URL)
	raw.ExternalID = strings.TrimSpace(raw.ExternalID)

	if raw.Title == "" {
		return raw, ErrMissingTitle
	}
	if raw.ExternalID == "" {
		if raw.URL == "" {
			return raw, ErrMissingIdentity
		}
		raw.ExternalID = ExternalID(raw.URL)
	}

	if raw.Kind == "" {
		raw.Kind = KindFromText(raw.Title + " " + raw.Description)
	}
	if raw.Remote == "" {
		raw.Remote = RemoteModeFromText(raw.Title + " " + raw.Location + " " + raw.Description)
	}
	if raw.Organization == "" {
		raw.Organization = DefaultOrganization
	}
	if raw.Location == "" {
		raw.Location = DefaultLocation
	}
	if raw.Confidence == "" {
		raw.Confidence = domain.ConfidenceHigh
	}

	raw.Skills = Tags(raw.Skills)
	raw.Requirements = Tags(raw.Requirements)
	raw.Categories = Tags(raw.Categories)
	return raw, nil
}

// Text collapses inner whitespace and trims.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Tags cleans a tag list and drops case-insensitive duplicates, keeping first spelling.
func Tags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, tag := range in {
		tag = Text(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var (
	internshipExpr = regexp.MustCompile(`\b(intern|interns|internship|internships|trainee|apprentice|apprenticeship)\b`)
	freelanceExpr  = regexp.MustCompile(`\b(freelance|freelancer)\b`)
	contractExpr   = regexp.MustCompile(`\b(contract|contractor|fixed-term|temporary)\b`)
	partTimeExpr   = regexp.MustCompile(`\bpart[- ]time\b`)
	hybridExpr     = regexp.MustCompile(`\bhybrid\b`)
	remoteExpr     = regexp.MustCompile(`\b(remote|work from home|wfh|anywhere)\b`)
)

// KindFromText guesses the listing kind from free text, defaulting to full-time.
func KindFromText(text string) domain.Kind {
	lower := strings.ToLower(text)
	switch {
	case internshipExpr.MatchString(lower):
		return domain.KindInternship
	case freelanceExpr.MatchString(lower):
		return domain.KindFreelance
	case contractExpr.MatchString(lower):
		return domain.KindContract
	case partTimeExpr.MatchString(lower):
		return domain.KindPartTime
	default:
		return domain.KindFullTime
	}
}

// RemoteModeFromText guesses the remote mode from free text, defaulting to on-site.
func RemoteModeFromText(text string) domain.RemoteMode {
	lower := strings.ToLower(text)
	switch {
	case hybridExpr.MatchString(lower):
		return domain.RemoteHybrid
	case remoteExpr.MatchString(lower):
		return domain.RemoteRemote
	default:
		return domain.RemoteOnSite
	}
}
