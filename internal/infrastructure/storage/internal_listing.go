package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ListingsAggregator/internal/domain"
)

// prepareInternal checks an employer-authored listing and fills identity and
// lifecycle defaults.
func prepareInternal(l domain.Listing, now time.Time) (domain.Listing, error) {
	if l.EmployerID == nil || strings.TrimSpace(*l.EmployerID) == "" {
		return domain.Listing{}, domain.ErrMissingEmployer
	}
	if strings.TrimSpace(l.Title) == "" {
		return domain.Listing{}, fmt.Errorf("%w: internal listing needs a title", domain.ErrInvalidArgument)
	}

	l.Source = domain.SourceInternal
	l.ExternalID = ""
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	if l.Kind == "" {
		l.Kind = domain.KindFullTime
	}
	if l.Remote == "" {
		l.Remote = domain.RemoteOnSite
	}
	if l.Confidence == "" {
		l.Confidence = domain.ConfidenceHigh
	}
	if l.LastFetched.IsZero() {
		l.LastFetched = now
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	return l, nil
}
