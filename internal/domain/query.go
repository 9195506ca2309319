package domain

import "fmt"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Filter is the full set of read-side filters; status is not part of it because
// only active listings are ever served.
type Filter struct {
	Search   string
	Location string
	Kind     Kind
	Remote   RemoteMode
	Source   Source
}

// Validate rejects enum values the store cannot contain.
func (f Filter) Validate() error {
	if f.Kind != "" && !f.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, f.Kind)
	}
	if f.Remote != "" && !f.Remote.Valid() {
		return fmt.Errorf("%w: unknown remote mode %q", ErrInvalidArgument, f.Remote)
	}
	return nil
}

// PageRequest selects one page of results.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies defaults and bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes the page count as ceil(total / limit).
func NewPagination(req PageRequest, total int) Pagination {
	pages := 0
	if req.Limit > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	return Pagination{Page: req.Page, Limit: req.Limit, Total: total, Pages: pages}
}

// Page is one page of listings.
type Page struct {
	Listings   []Listing  `json:"listings"`
	Pagination Pagination `json:"pagination"`
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFullTime, KindPartTime, KindContract, KindInternship, KindFreelance:
		return true
	}
	return false
}

// Valid reports whether m is a known remote mode.
func (m RemoteMode) Valid() bool {
	switch m {
	case RemoteOnSite, RemoteRemote, RemoteHybrid:
		return true
	}
	return false
}
