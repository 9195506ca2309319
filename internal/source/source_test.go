package source

import (
	"context"
	"testing"

	"ListingsAggregator/internal/domain"
)

type namedAdapter domain.Source

func (n namedAdapter) Name() domain.Source { return domain.Source(n) }

func (n namedAdapter) Fetch(context.Context, string, string) ([]domain.RawListing, error) {
	return nil, nil
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedAdapter("indeed"))
	reg.Register(namedAdapter("adzuna"))
	reg.Register(namedAdapter("indeed"))

	all := reg.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 adapters, got %d", len(all))
	}
	if all[0].Name() != "indeed" || all[1].Name() != "adzuna" {
		t.Fatalf("unexpected order: %s, %s", all[0].Name(), all[1].Name())
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedAdapter("linkedin"))

	if _, err := reg.Resolve("linkedin"); err != nil {
		t.Fatalf("resolve linkedin: %v", err)
	}
	if _, err := reg.Resolve("missing"); err == nil {
		t.Fatal("expected error for unregistered source")
	}
}
