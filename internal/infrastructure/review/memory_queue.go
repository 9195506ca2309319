package review

import (
	"context"
	"sync"

	"ListingsAggregator/internal/ports"
)

// MemoryQueue is the review queue used when no Redis URL is configured.
type MemoryQueue struct {
	mu    sync.Mutex
	items []ports.ReviewItem
}

var _ ports.ReviewQueue = (*MemoryQueue)(nil)

// NewMemoryQueue returns an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue records one item.
func (q *MemoryQueue) Enqueue(_ context.Context, item ports.ReviewItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

// Pending returns up to limit items, newest first.
func (q *MemoryQueue) Pending(_ context.Context, limit int) ([]ports.ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]ports.ReviewItem, 0, limit)
	for i := len(q.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, q.items[i])
	}
	return out, nil
}
