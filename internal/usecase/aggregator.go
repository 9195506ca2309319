package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/normalize"
	"ListingsAggregator/internal/ports"
	"ListingsAggregator/internal/source"
)

const (
	defaultAdapterTimeout = 45 * time.Second
	defaultRunTimeout     = 2 * time.Minute
	defaultParallelism    = 3
)

// Failure reasons reported for adapters that contributed nothing.
const (
	ReasonError   = "error"
	ReasonTimeout = "timeout"
	ReasonPanic   = "panic"
)

var errAdapterTimeout = errors.New("adapter timed out")

// AggregatorOptions is the static configuration of one orchestrator.
type AggregatorOptions struct {
	// Enabled toggles sources by name. A nil map enables every registered
	// adapter; otherwise only names mapped to true run.
	Enabled        map[domain.Source]bool
	AdapterTimeout time.Duration
	RunTimeout     time.Duration
	Parallelism    int
}

// SourceOutcome describes what one adapter contributed to a run.
type SourceOutcome struct {
	Source   domain.Source `json:"source"`
	Fetched  int           `json:"fetched"`
	Skipped  int           `json:"skipped"`
	Failure  string        `json:"failure,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Aggregator fans a query out to every enabled adapter and merges the results.
type Aggregator struct {
	registry *source.Registry
	opts     AggregatorOptions
	recorder ports.Recorder
	logger   *slog.Logger
}

// NewAggregator wires the adapter registry with its run options.
func NewAggregator(reg *source.Registry, opts AggregatorOptions, recorder ports.Recorder, log *slog.Logger) *Aggregator {
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = defaultAdapterTimeout
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Aggregator{registry: reg, opts: opts, recorder: recorder, logger: log}
}

// Aggregate returns the normalized union of all enabled adapters' results.
func (a *Aggregator) Aggregate(ctx context.Context, keywords, location string) []domain.RawListing {
	listings, _ := a.AggregateWithOutcomes(ctx, keywords, location)
	return listings
}

// AggregateWithOutcomes is Aggregate plus a per-source account of the run.
// Listings stay grouped by adapter, in registration order.
func (a *Aggregator) AggregateWithOutcomes(ctx context.Context, keywords, location string) ([]domain.RawListing, []SourceOutcome) {
	adapters := a.enabledAdapters()
	if len(adapters) == 0 {
		a.warn("no enabled sources")
		return []domain.RawListing{}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, a.opts.RunTimeout)
	defer cancel()

	slots := make([][]domain.RawListing, len(adapters))
	outcomes := make([]SourceOutcome, len(adapters))

	var g errgroup.Group
	g.SetLimit(a.opts.Parallelism)
	for i, adapter := range adapters {
		g.Go(func() error {
			slots[i], outcomes[i] = a.collect(runCtx, adapter, keywords, location)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, slot := range slots {
		total += len(slot)
	}
	merged := make([]domain.RawListing, 0, total)
	for _, slot := range slots {
		merged = append(merged, slot...)
	}

	a.debug("aggregation done", "sources", len(adapters), "listings", len(merged))
	return merged, outcomes
}

func (a *Aggregator) enabledAdapters() []source.Adapter {
	if a.registry == nil {
		return nil
	}
	var out []source.Adapter
	for _, adapter := range a.registry.All() {
		if a.opts.Enabled != nil && !a.opts.Enabled[adapter.Name()] {
			a.debug("source disabled", "source", adapter.Name())
			continue
		}
		out = append(out, adapter)
	}
	return out
}

// collect runs one adapter and normalizes its output. Any fault yields no listings.
func (a *Aggregator) collect(ctx context.Context, adapter source.Adapter, keywords, location string) ([]domain.RawListing, SourceOutcome) {
	name := adapter.Name()
	outcome := SourceOutcome{Source: name}
	started := time.Now()

	raws, reason, err := a.invoke(ctx, adapter, keywords, location)
	outcome.Duration = time.Since(started)
	if err != nil {
		outcome.Failure = reason
		outcome.Error = err.Error()
		a.recorder.AdapterFailed(name, reason, outcome.Duration)
		a.warn("source fetch failed", "source", name, "reason", reason, "error", err)
		return nil, outcome
	}

	listings := make([]domain.RawListing, 0, len(raws))
	for _, raw := range raws {
		raw.Source = name
		cleaned, err := normalize.Listing(raw)
		if err != nil {
			outcome.Skipped++
			a.debug("skip record", "source", name, "external_id", raw.ExternalID, "error", err)
			continue
		}
		listings = append(listings, cleaned)
	}

	outcome.Fetched = len(listings)
	a.recorder.AdapterFetched(name, len(listings), outcome.Duration)
	a.debug("source fetched", "source", name, "listings", len(listings), "skipped", outcome.Skipped)
	return listings, outcome
}

// invoke enforces the per-adapter timeout even when the adapter ignores its
// context, and turns panics into errors.
func (a *Aggregator) invoke(ctx context.Context, adapter source.Adapter, keywords, location string) ([]domain.RawListing, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.opts.AdapterTimeout)
	defer cancel()

	type result struct {
		listings []domain.RawListing
		reason   string
		err      error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{reason: ReasonPanic, err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		listings, err := adapter.Fetch(callCtx, keywords, location)
		if err != nil {
			reason := ReasonError
			if callCtx.Err() != nil {
				reason = ReasonTimeout
			}
			done <- result{reason: reason, err: err}
			return
		}
		done <- result{listings: listings}
	}()

	select {
	case res := <-done:
		return res.listings, res.reason, res.err
	case <-callCtx.Done():
		return nil, ReasonTimeout, fmt.Errorf("%w: %w", errAdapterTimeout, callCtx.Err())
	}
}

func (a *Aggregator) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Aggregator) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
