// Package review holds low-confidence listings until someone checks them.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ListingsAggregator/internal/ports"
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisQueue stores review items as JSON in a Redis list, newest first.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

var _ ports.ReviewQueue = (*RedisQueue)(nil)

// NewRedisQueue binds the queue to one list key.
func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes one item onto the head of the list.
func (q *RedisQueue) Enqueue(ctx context.Context, item ports.ReviewItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode review item: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Pending returns up to limit of the most recent items.
func (q *RedisQueue) Pending(ctx context.Context, limit int) ([]ports.ReviewItem, error) {
	if limit <= 0 {
		return []ports.ReviewItem{}, nil
	}

	raw, err := q.client.LRange(ctx, q.key, 0, int64(limit-1)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lrange %s: %w", q.key, err)
	}

	items := make([]ports.ReviewItem, 0, len(raw))
	for _, entry := range raw {
		var item ports.ReviewItem
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("decode review item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}
