package ports

import (
	"context"
	"time"

	"ListingsAggregator/internal/domain"
)

// ListingRepository is the listing store shared by the pipeline and the query side.
type ListingRepository interface {
	// Upsert inserts an active listing for a new dedup key or refreshes lastFetched
	// of the existing one. created reports which branch was taken.
	Upsert(ctx context.Context, raw domain.RawListing, now time.Time) (listing domain.Listing, created bool, err error)
	FindByKey(ctx context.Context, key domain.Key) (domain.Listing, error)
	InsertInternal(ctx context.Context, listing domain.Listing) (domain.Listing, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	Search(ctx context.Context, filter domain.Filter, page domain.PageRequest) ([]domain.Listing, int, error)
}

// ReviewItem is a low-confidence extraction waiting for a human look.
type ReviewItem struct {
	Listing    domain.RawListing `json:"listing"`
	Reasons    []string          `json:"reasons"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// ReviewQueue collects records whose fields were defaulted rather than extracted.
type ReviewQueue interface {
	Enqueue(ctx context.Context, item ReviewItem) error
	Pending(ctx context.Context, limit int) ([]ReviewItem, error)
}

// Recorder receives pipeline telemetry.
type Recorder interface {
	AdapterFetched(source domain.Source, count int, elapsed time.Duration)
	AdapterFailed(source domain.Source, reason string, elapsed time.Duration)
	Persisted(source domain.Source, created bool)
	PersistFailed(source domain.Source)
	Reaped(count int64)
}
