package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

// Reaper retires external listings that no source has confirmed recently.
type Reaper struct {
	repository ports.ListingRepository
	recorder   ports.Recorder
	clock      Clock
	logger     *slog.Logger
}

// NewReaper wires the listing store.
func NewReaper(repo ports.ListingRepository, recorder ports.Recorder, log *slog.Logger) *Reaper {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reaper{repository: repo, recorder: recorder, clock: systemClock, logger: log}
}

// WithClock replaces the time source.
func (r *Reaper) WithClock(clock Clock) *Reaper {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// Reap deletes external listings last fetched more than retentionDays ago.
// Internal listings are never touched.
func (r *Reaper) Reap(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("%w: retention must be at least one day, got %d", domain.ErrInvalidArgument, retentionDays)
	}

	cutoff := r.clock().AddDate(0, 0, -retentionDays)
	removed, err := r.repository.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap listings older than %s: %w", cutoff.Format("2006-01-02"), err)
	}

	r.recorder.Reaped(removed)
	if r.logger != nil {
		r.logger.Info("stale listings reaped", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
