package usecase

import (
	"context"
	"log/slog"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

// PersistReport accounts for one persisted batch.
type PersistReport struct {
	Listings  []domain.Listing `json:"-"`
	Inserted  int              `json:"inserted"`
	Refreshed int              `json:"refreshed"`
	Failed    int              `json:"failed"`
}

// Saved is the number of records actually written.
func (r PersistReport) Saved() int {
	return r.Inserted + r.Refreshed
}

// Persister upserts normalized listings one record at a time.
type Persister struct {
	repository ports.ListingRepository
	recorder   ports.Recorder
	clock      Clock
	logger     *slog.Logger
}

// NewPersister wires the listing store.
func NewPersister(repo ports.ListingRepository, recorder ports.Recorder, log *slog.Logger) *Persister {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Persister{repository: repo, recorder: recorder, clock: systemClock, logger: log}
}

// WithClock replaces the time source.
func (p *Persister) WithClock(clock Clock) *Persister {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Persist inserts unseen dedup keys and refreshes lastFetched of known ones.
// A failing record is logged and counted; the rest of the batch still runs.
func (p *Persister) Persist(ctx context.Context, batch []domain.RawListing) PersistReport {
	report := PersistReport{Listings: make([]domain.Listing, 0, len(batch))}
	if len(batch) == 0 {
		return report
	}
	now := p.clock()

	for _, raw := range batch {
		listing, created, err := p.repository.Upsert(ctx, raw, now)
		if err != nil {
			report.Failed++
			p.recorder.PersistFailed(raw.Source)
			p.logError("persist listing failed", "source", raw.Source, "external_id", raw.ExternalID, "error", err)
			continue
		}

		if created {
			report.Inserted++
		} else {
			report.Refreshed++
		}
		p.recorder.Persisted(raw.Source, created)
		report.Listings = append(report.Listings, listing)
	}

	p.debug("batch persisted", "inserted", report.Inserted, "refreshed", report.Refreshed, "failed", report.Failed)
	return report
}

func (p *Persister) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Persister) logError(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
