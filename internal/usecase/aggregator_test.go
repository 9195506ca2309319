package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/source"
)

type fakeAdapter struct {
	name      domain.Source
	listings  []domain.RawListing
	err       error
	delay     time.Duration
	ignoreCtx bool
	panicMsg  string
}

func (f *fakeAdapter) Name() domain.Source {
	return f.name
}

func (f *fakeAdapter) Fetch(ctx context.Context, _, _ string) ([]domain.RawListing, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return f.listings, f.err
}

func rawBatch(src domain.Source, n int) []domain.RawListing {
	out := make([]domain.RawListing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.RawListing{
			Source:       src,
			ExternalID:   fmt.Sprintf("%s-%d", src, i),
			Title:        fmt.Sprintf("Engineer %d", i),
			Organization: "Acme",
			Location:     "Berlin",
		})
	}
	return out
}

func registryOf(adapters ...source.Adapter) *source.Registry {
	reg := source.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	return reg
}

type countingRecorder struct {
	nopRecorder
	mu       sync.Mutex
	failures map[string]int
}

func (c *countingRecorder) AdapterFailed(_ domain.Source, reason string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures == nil {
		c.failures = map[string]int{}
	}
	c.failures[reason]++
}

func TestAggregatePartialFailureReturnsHealthySource(t *testing.T) {
	t.Parallel()

	recorder := &countingRecorder{}
	agg := NewAggregator(registryOf(
		&fakeAdapter{name: "broken", err: errors.New("connection refused")},
		&fakeAdapter{name: "healthy", listings: rawBatch("healthy", 5)},
	), AggregatorOptions{}, recorder, nil)

	listings, outcomes := agg.AggregateWithOutcomes(context.Background(), "go", "Berlin")
	if len(listings) != 5 {
		t.Fatalf("expected 5 listings, got %d", len(listings))
	}
	for _, l := range listings {
		if l.Source != "healthy" {
			t.Fatalf("unexpected source %s", l.Source)
		}
	}
	if outcomes[0].Failure != ReasonError || outcomes[1].Fetched != 5 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if recorder.failures[ReasonError] != 1 {
		t.Fatalf("expected one recorded failure, got %v", recorder.failures)
	}
}

func TestAggregateTimesOutAdapterIgnoringContext(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(registryOf(
		&fakeAdapter{name: "hung", listings: rawBatch("hung", 3), delay: 2 * time.Second, ignoreCtx: true},
		&fakeAdapter{name: "healthy", listings: rawBatch("healthy", 5)},
	), AggregatorOptions{AdapterTimeout: 50 * time.Millisecond}, nil, nil)

	started := time.Now()
	listings, outcomes := agg.AggregateWithOutcomes(context.Background(), "go", "")
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("aggregation waited for hung adapter: %v", elapsed)
	}
	if len(listings) != 5 {
		t.Fatalf("expected 5 listings, got %d", len(listings))
	}
	if outcomes[0].Failure != ReasonTimeout {
		t.Fatalf("expected timeout outcome, got %+v", outcomes[0])
	}
}

func TestAggregateRecoversPanics(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(registryOf(
		&fakeAdapter{name: "panicky", panicMsg: "nil map"},
		&fakeAdapter{name: "healthy", listings: rawBatch("healthy", 2)},
	), AggregatorOptions{}, nil, nil)

	listings, outcomes := agg.AggregateWithOutcomes(context.Background(), "go", "")
	if len(listings) != 2 || outcomes[0].Failure != ReasonPanic {
		t.Fatalf("listings=%d outcome=%+v", len(listings), outcomes[0])
	}
}

func TestAggregateHonorsRunDeadline(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(registryOf(
		&fakeAdapter{name: "slow", listings: rawBatch("slow", 1), delay: time.Second},
	), AggregatorOptions{AdapterTimeout: time.Minute, RunTimeout: 50 * time.Millisecond}, nil, nil)

	started := time.Now()
	listings := agg.Aggregate(context.Background(), "go", "")
	if time.Since(started) > 500*time.Millisecond {
		t.Fatal("run deadline not applied")
	}
	if len(listings) != 0 {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}

func TestAggregateSkipsDisabledSources(t *testing.T) {
	t.Parallel()

	reg := registryOf(
		&fakeAdapter{name: "indeed", listings: rawBatch("indeed", 2)},
		&fakeAdapter{name: "linkedin", listings: rawBatch("linkedin", 4)},
		&fakeAdapter{name: "adzuna", listings: rawBatch("adzuna", 1)},
	)

	agg := NewAggregator(reg, AggregatorOptions{Enabled: map[domain.Source]bool{"indeed": true, "linkedin": false}}, nil, nil)
	listings := agg.Aggregate(context.Background(), "go", "")
	if len(listings) != 2 {
		t.Fatalf("expected only indeed listings, got %d", len(listings))
	}

	all := NewAggregator(reg, AggregatorOptions{}, nil, nil).Aggregate(context.Background(), "go", "")
	if len(all) != 7 {
		t.Fatalf("nil enable map should run every source, got %d", len(all))
	}
}

func TestAggregateKeepsSourcesGroupedInRegistrationOrder(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(registryOf(
		&fakeAdapter{name: "first", listings: rawBatch("first", 3), delay: 30 * time.Millisecond},
		&fakeAdapter{name: "second", listings: rawBatch("second", 3)},
	), AggregatorOptions{Parallelism: 2}, nil, nil)

	listings := agg.Aggregate(context.Background(), "go", "")
	if len(listings) != 6 {
		t.Fatalf("expected 6 listings, got %d", len(listings))
	}
	for i, l := range listings {
		want := domain.Source("first")
		if i >= 3 {
			want = "second"
		}
		if l.Source != want {
			t.Fatalf("listing %d from %s, want %s", i, l.Source, want)
		}
	}
}

func TestAggregateNormalizesAndSkipsBadRecords(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(registryOf(&fakeAdapter{name: "feed", listings: []domain.RawListing{
		{ExternalID: "1", Title: "  Data   Intern ", Skills: []string{"SQL", "sql", " "}},
		{ExternalID: "2"},
		{Title: "No identity"},
		{URL: "https://jobs.example.com/3", Title: "Linked"},
	}}), AggregatorOptions{}, nil, nil)

	listings, outcomes := agg.AggregateWithOutcomes(context.Background(), "data", "")
	if len(listings) != 2 || outcomes[0].Skipped != 2 {
		t.Fatalf("listings=%d skipped=%d", len(listings), outcomes[0].Skipped)
	}

	first := listings[0]
	if first.Source != "feed" || first.Title != "Data Intern" || first.Kind != domain.KindInternship {
		t.Fatalf("unexpected normalization %+v", first)
	}
	if len(first.Skills) != 1 {
		t.Fatalf("expected deduplicated skills, got %v", first.Skills)
	}
	if len(listings[1].ExternalID) != 64 {
		t.Fatalf("expected synthesized id, got %q", listings[1].ExternalID)
	}
}

func TestAggregateWithoutSources(t *testing.T) {
	t.Parallel()

	listings := NewAggregator(nil, AggregatorOptions{}, nil, nil).Aggregate(context.Background(), "go", "")
	if listings == nil || len(listings) != 0 {
		t.Fatalf("expected empty non-nil batch, got %v", listings)
	}
}
