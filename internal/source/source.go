package source

import (
	"context"
	"fmt"

	"ListingsAggregator/internal/domain"
)

// Kind selects which adapter implementation serves a configured source.
type Kind string

const (
	KindFeed    Kind = "feed"
	KindPartner Kind = "partner"
	KindScrape  Kind = "scrape"
)

// Adapter translates one external source into RawListings.
type Adapter interface {
	Name() domain.Source
	Fetch(ctx context.Context, keywords, location string) ([]domain.RawListing, error)
}

// Registry keeps adapters keyed by source name, in registration order.
type Registry struct {
	adapters map[domain.Source]Adapter
	order    []domain.Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[domain.Source]Adapter{}}
}

// Register adds or replaces an adapter.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[domain.Source]Adapter{}
	}
	name := adapter.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = adapter
}

// Resolve returns an adapter by source name or an error if it is absent.
func (r *Registry) Resolve(name domain.Source) (Adapter, error) {
	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}
