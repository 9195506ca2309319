package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidArgument marks caller-supplied values the pipeline cannot act on.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a listing lookup misses.
	ErrNotFound = errors.New("listing not found")
	// ErrMissingEmployer is returned when an internal listing has no owning employer.
	ErrMissingEmployer = errors.New("internal listing requires an employer")
)

// Source names where a listing came from; together with ExternalID it forms the dedup key.
type Source string

const (
	SourceInternal Source = "internal"
	SourceIndeed   Source = "indeed"
	SourceAdzuna   Source = "adzuna"
	SourceLinkedIn Source = "linkedin"
)

// Kind is the employment arrangement of a listing.
type Kind string

const (
	KindFullTime   Kind = "full-time"
	KindPartTime   Kind = "part-time"
	KindContract   Kind = "contract"
	KindInternship Kind = "internship"
	KindFreelance  Kind = "freelance"
)

// RemoteMode describes where the work happens.
type RemoteMode string

const (
	RemoteOnSite RemoteMode = "on-site"
	RemoteRemote RemoteMode = "remote"
	RemoteHybrid RemoteMode = "hybrid"
)

// Status enumerates listing lifecycle states.
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusClosed  Status = "closed"
	StatusExpired Status = "expired"
)

// Confidence grades how much of a record was extracted rather than defaulted.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Compensation is a salary range; nil bounds are unknown.
type Compensation struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Period   string   `json:"period,omitempty"`
}

// Experience is the required experience range.
type Experience struct {
	Min  *int   `json:"min,omitempty"`
	Max  *int   `json:"max,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// RawListing is what an adapter produces before the persister assigns lifecycle fields.
type RawListing struct {
	Source       Source       `json:"source"`
	ExternalID   string       `json:"externalId,omitempty"`
	URL          string       `json:"url,omitempty"`
	Title        string       `json:"title"`
	Organization string       `json:"organization"`
	Location     string       `json:"location"`
	Description  string       `json:"description,omitempty"`
	Compensation Compensation `json:"compensation"`
	Experience   Experience   `json:"experience"`
	Kind         Kind         `json:"kind,omitempty"`
	Remote       RemoteMode   `json:"remote,omitempty"`
	Skills       []string     `json:"skills,omitempty"`
	Requirements []string     `json:"requirements,omitempty"`
	Categories   []string     `json:"categories,omitempty"`
	PostedAt     *time.Time   `json:"postedAt,omitempty"`

	Confidence Confidence `json:"confidence,omitempty"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// Key returns the dedup key of the record.
func (r RawListing) Key() Key {
	return Key{Source: r.Source, ExternalID: r.ExternalID}
}

// Key is the (source, externalId) pair that identifies an external listing.
type Key struct {
	Source     Source
	ExternalID string
}

// Listing is the unit of storage.
type Listing struct {
	ID string `json:"id"`
	RawListing

	Status           Status    `json:"status"`
	LastFetched      time.Time `json:"lastFetched"`
	Views            int64     `json:"views"`
	ApplicationCount int64     `json:"applicationCount"`
	EmployerID       *string   `json:"employerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsInternal reports whether the listing was authored inside the application.
func (l Listing) IsInternal() bool {
	return l.Source == SourceInternal
}
