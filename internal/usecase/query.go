package usecase

import (
	"context"
	"fmt"
	"strings"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

// QueryService serves read-only pages of active listings.
type QueryService struct {
	repository ports.ListingRepository
}

// NewQueryService wires the listing store.
func NewQueryService(repo ports.ListingRepository) *QueryService {
	return &QueryService{repository: repo}
}

// Query validates the filter, clamps the page request and returns one page.
func (s *QueryService) Query(ctx context.Context, filter domain.Filter, page domain.PageRequest) (domain.Page, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Location = strings.TrimSpace(filter.Location)
	if err := filter.Validate(); err != nil {
		return domain.Page{}, err
	}
	page = page.Normalize()

	listings, total, err := s.repository.Search(ctx, filter, page)
	if err != nil {
		return domain.Page{}, fmt.Errorf("search listings: %w", err)
	}
	if listings == nil {
		listings = []domain.Listing{}
	}
	return domain.Page{Listings: listings, Pagination: domain.NewPagination(page, total)}, nil
}

// Get returns one active external listing by its dedup key.
func (s *QueryService) Get(ctx context.Context, key domain.Key) (domain.Listing, error) {
	key.ExternalID = strings.TrimSpace(key.ExternalID)
	if key.Source == "" || key.ExternalID == "" {
		return domain.Listing{}, fmt.Errorf("%w: source and external id are required", domain.ErrInvalidArgument)
	}
	if key.Source == domain.SourceInternal {
		return domain.Listing{}, fmt.Errorf("%w: internal listings have no external id", domain.ErrInvalidArgument)
	}

	listing, err := s.repository.FindByKey(ctx, key)
	if err != nil {
		return domain.Listing{}, err
	}
	if listing.Status != domain.StatusActive {
		return domain.Listing{}, domain.ErrNotFound
	}
	return listing, nil
}
