package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

// MemoryRepository keeps listings in process memory. It enforces the same
// one-row-per-dedup-key rule as the Postgres unique index.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]domain.Listing
	byKey map[domain.Key]string
}

var _ ports.ListingRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  map[string]domain.Listing{},
		byKey: map[domain.Key]string{},
	}
}

// Upsert inserts a new active listing or refreshes lastFetched of the existing one.
func (m *MemoryRepository) Upsert(_ context.Context, raw domain.RawListing, now time.Time) (domain.Listing, bool, error) {
	if raw.Source == domain.SourceInternal || raw.ExternalID == "" {
		return domain.Listing{}, false, fmt.Errorf("%w: upsert needs an external dedup key", domain.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := raw.Key()
	if id, ok := m.byKey[key]; ok {
		existing := m.byID[id]
		if now.After(existing.LastFetched) {
			existing.LastFetched = now
		}
		existing.UpdatedAt = now
		m.byID[id] = existing
		return clone(existing), false, nil
	}

	listing := domain.Listing{
		ID:          uuid.NewString(),
		RawListing:  raw,
		Status:      domain.StatusActive,
		LastFetched: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.byID[listing.ID] = listing
	m.byKey[key] = listing.ID
	return clone(listing), true, nil
}

// FindByKey loads an external listing by its dedup key.
func (m *MemoryRepository) FindByKey(_ context.Context, key domain.Key) (domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[key]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return clone(m.byID[id]), nil
}

// InsertInternal stores an employer-authored listing.
func (m *MemoryRepository) InsertInternal(_ context.Context, listing domain.Listing) (domain.Listing, error) {
	listing, err := prepareInternal(listing, time.Now().UTC())
	if err != nil {
		return domain.Listing{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[listing.ID]; exists {
		return domain.Listing{}, fmt.Errorf("%w: listing %s already exists", domain.ErrInvalidArgument, listing.ID)
	}
	m.byID[listing.ID] = listing
	return clone(listing), nil
}

// Put stores a listing as-is. It lets callers seed lifecycle fields such as
// status or lastFetched that the pipeline never writes directly.
func (m *MemoryRepository) Put(listing domain.Listing) domain.Listing {
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[listing.ID] = listing
	if !listing.IsInternal() && listing.ExternalID != "" {
		m.byKey[listing.Key()] = listing.ID
	}
	return clone(listing)
}

// DeleteStale removes external listings last fetched before cutoff.
func (m *MemoryRepository) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, listing := range m.byID {
		if listing.IsInternal() || !listing.LastFetched.Before(cutoff) {
			continue
		}
		delete(m.byID, id)
		delete(m.byKey, listing.Key())
		removed++
	}
	return removed, nil
}

// Search returns one page of active listings, newest first, and the total match count.
func (m *MemoryRepository) Search(_ context.Context, filter domain.Filter, page domain.PageRequest) ([]domain.Listing, int, error) {
	m.mu.RLock()
	matched := make([]domain.Listing, 0, len(m.byID))
	for _, listing := range m.byID {
		if matches(listing, filter) {
			matched = append(matched, listing)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := page.Offset()
	if start >= total {
		return []domain.Listing{}, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	out := make([]domain.Listing, 0, end-start)
	for _, listing := range matched[start:end] {
		out = append(out, clone(listing))
	}
	return out, total, nil
}

// Len reports how many listings are stored.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func matches(l domain.Listing, f domain.Filter) bool {
	if l.Status != domain.StatusActive {
		return false
	}
	if f.Search != "" && !containsFold(l.Title, f.Search) && !containsFold(l.Description, f.Search) && !containsFold(l.Organization, f.Search) {
		return false
	}
	if f.Location != "" && !containsFold(l.Location, f.Location) {
		return false
	}
	if f.Kind != "" && l.Kind != f.Kind {
		return false
	}
	if f.Remote != "" && l.Remote != f.Remote {
		return false
	}
	if f.Source != "" && l.Source != f.Source {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func clone(l domain.Listing) domain.Listing {
	l.Skills = append([]string(nil), l.Skills...)
	l.Requirements = append([]string(nil), l.Requirements...)
	l.Categories = append([]string(nil), l.Categories...)
	if len(l.Skills) == 0 {
		l.Skills = nil
	}
	if len(l.Requirements) == 0 {
		l.Requirements = nil
	}
	if len(l.Categories) == 0 {
		l.Categories = nil
	}
	return l
}
