package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

const defaultPersistTimeout = 2 * time.Minute

// PipelineDeps wires the aggregation stages into one run.
type PipelineDeps struct {
	Aggregator *Aggregator
	Persister  *Persister
	Review     ports.ReviewQueue
	Clock      Clock
	Logger     *slog.Logger
	// PersistTimeout bounds the review and persist stages, which run detached
	// from the caller's cancellation.
	PersistTimeout time.Duration
}

// RunReport summarizes one aggregation run.
type RunReport struct {
	Keywords  string          `json:"keywords"`
	Location  string          `json:"location"`
	StartedAt time.Time       `json:"startedAt"`
	Duration  time.Duration   `json:"durationNs"`
	Sources   []SourceOutcome `json:"sources"`
	Fetched   int             `json:"fetched"`
	Queued    int             `json:"queuedForReview"`
	Persist   PersistReport   `json:"persist"`
}

// Pipeline implements the listing-ingestion workflow.
type Pipeline struct {
	aggregator     *Aggregator
	persister      *Persister
	review         ports.ReviewQueue
	clock          Clock
	logger         *slog.Logger
	persistTimeout time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock
	}
	persistTimeout := deps.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	return &Pipeline{
		aggregator:     deps.Aggregator,
		persister:      deps.Persister,
		review:         deps.Review,
		clock:          clock,
		logger:         deps.Logger,
		persistTimeout: persistTimeout,
	}
}

// Run aggregates one query, queues low-confidence records for review and
// persists the whole batch. Low-confidence records keep their fallback values.
func (p *Pipeline) Run(ctx context.Context, keywords, location string) (RunReport, error) {
	keywords = strings.TrimSpace(keywords)
	location = strings.TrimSpace(location)
	if keywords == "" {
		return RunReport{}, fmt.Errorf("%w: keywords are required", domain.ErrInvalidArgument)
	}
	if p.aggregator == nil || p.persister == nil {
		return RunReport{}, errors.New("pipeline is not configured")
	}

	report := RunReport{Keywords: keywords, Location: location, StartedAt: p.clock()}
	started := time.Now()

	batch, outcomes := p.aggregator.AggregateWithOutcomes(ctx, keywords, location)
	report.Sources = outcomes
	report.Fetched = len(batch)

	// Fetching may have used up the caller's deadline; records already in
	// hand are still written.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.persistTimeout)
	defer cancel()

	report.Queued = p.routeLowConfidence(storeCtx, batch, report.StartedAt)
	report.Persist = p.persister.Persist(storeCtx, batch)
	report.Duration = time.Since(started)

	if p.logger != nil {
		p.logger.Info("aggregation run finished",
			"keywords", keywords,
			"location", location,
			"fetched", report.Fetched,
			"queued", report.Queued,
			"inserted", report.Persist.Inserted,
			"refreshed", report.Persist.Refreshed,
			"failed", report.Persist.Failed,
			"duration", report.Duration)
	}
	return report, nil
}

func (p *Pipeline) routeLowConfidence(ctx context.Context, batch []domain.RawListing, at time.Time) int {
	if p.review == nil {
		return 0
	}

	queued := 0
	for _, raw := range batch {
		if raw.Confidence != domain.ConfidenceLow {
			continue
		}
		err := p.review.Enqueue(ctx, ports.ReviewItem{Listing: raw, Reasons: raw.Reasons, EnqueuedAt: at})
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("review enqueue failed", "source", raw.Source, "external_id", raw.ExternalID, "error", err)
			}
			continue
		}
		queued++
	}
	return queued
}
