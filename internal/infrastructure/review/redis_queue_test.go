package review

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/ports"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, "listings:review"), mr
}

func TestRedisQueueEnqueueAndPending(t *testing.T) {
	t.Parallel()

	queue, mr := newTestQueue(t)
	ctx := context.Background()
	at := time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC)

	for _, title := range []string{"Backend Developer", "Data Analyst", "Designer"} {
		err := queue.Enqueue(ctx, ports.ReviewItem{
			Listing:    domain.RawListing{Source: domain.SourceIndeed, ExternalID: title, Title: title},
			Reasons:    []string{"organization defaulted"},
			EnqueuedAt: at,
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	stored, err := mr.List("listings:review")
	if err != nil || len(stored) != 3 {
		t.Fatalf("expected 3 raw entries, got %d (%v)", len(stored), err)
	}

	items, err := queue.Pending(ctx, 2)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Listing.Title != "Designer" || items[1].Listing.Title != "Data Analyst" {
		t.Fatalf("expected newest first, got %s, %s", items[0].Listing.Title, items[1].Listing.Title)
	}
	if !items[0].EnqueuedAt.Equal(at) || items[0].Reasons[0] != "organization defaulted" {
		t.Fatalf("item not round-tripped: %+v", items[0])
	}
}

func TestRedisQueuePendingEmpty(t *testing.T) {
	t.Parallel()

	queue, _ := newTestQueue(t)
	items, err := queue.Pending(context.Background(), 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty queue, got %d", len(items))
	}
}

func TestRedisQueueUnavailable(t *testing.T) {
	t.Parallel()

	queue, mr := newTestQueue(t)
	mr.Close()

	err := queue.Enqueue(context.Background(), ports.ReviewItem{Listing: domain.RawListing{Title: "x"}})
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisClient(context.Background(), "not-a-redis-url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMemoryQueueNewestFirst(t *testing.T) {
	t.Parallel()

	queue := NewMemoryQueue()
	ctx := context.Background()
	_ = queue.Enqueue(ctx, ports.ReviewItem{Listing: domain.RawListing{Title: "first"}})
	_ = queue.Enqueue(ctx, ports.ReviewItem{Listing: domain.RawListing{Title: "second"}})

	items, _ := queue.Pending(ctx, 5)
	if len(items) != 2 || items[0].Listing.Title != "second" {
		t.Fatalf("unexpected order %+v", items)
	}
}
