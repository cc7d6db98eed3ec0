package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicops/receivables/internal/core/domain"
)

// DispatchQueue is a Redis-backed queue of lab orders awaiting dispatch.
// Orders are scored by ready-at time so a blocked or failed order can be
// re-queued with a delay without holding a worker.
type DispatchQueue struct {
	rdb *redis.Client
}

// NewDispatchQueue creates a new Redis-backed dispatch queue.
func NewDispatchQueue(client *Client) *DispatchQueue {
	return &DispatchQueue{rdb: client.rdb}
}

// Key helpers
func queueKey() string {
	return "lab_dispatch:queue"
}

func orderKey(id string) string {
	return fmt.Sprintf("lab_dispatch:order:%s", id)
}

// Push adds a lab order to the queue, ready at the given time.
func (q *DispatchQueue) Push(ctx context.Context, order *domain.LabOrder, readyAt time.Time) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal lab order: %w", err)
	}

	if err := q.rdb.Set(ctx, orderKey(order.ID), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set lab order payload: %w", err)
	}

	if err := q.rdb.ZAdd(ctx, queueKey(), redis.Z{
		Score:  float64(readyAt.Unix()),
		Member: order.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to dispatch queue: %w", err)
	}

	return nil
}

// Pop retrieves the next order whose ready-at time has passed.
// Returns found=false when nothing is due.
func (q *DispatchQueue) Pop(ctx context.Context) (*domain.LabOrder, bool, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	results, err := q.rdb.ZRangeByScore(ctx, queueKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 1,
	}).Result()
	if err != nil {
		return nil, false, fmt.Errorf("zrangebyscore failed: %w", err)
	}

	if len(results) == 0 {
		return nil, false, nil
	}

	id := results[0]

	data, err := q.rdb.Get(ctx, orderKey(id)).Bytes()
	if err == redis.Nil {
		// Payload expired but ID still in queue, remove it
		q.rdb.ZRem(ctx, queueKey(), id)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get lab order payload: %w", err)
	}

	if err := q.rdb.ZRem(ctx, queueKey(), id).Err(); err != nil {
		return nil, false, fmt.Errorf("zrem failed: %w", err)
	}

	var order domain.LabOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal lab order: %w", err)
	}

	return &order, true, nil
}

// Depth returns the number of orders in the queue.
func (q *DispatchQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

// Remove drops an order from the queue and deletes its payload.
func (q *DispatchQueue) Remove(ctx context.Context, id string) error {
	if err := q.rdb.ZRem(ctx, queueKey(), id).Err(); err != nil {
		return fmt.Errorf("zrem failed: %w", err)
	}
	if err := q.rdb.Del(ctx, orderKey(id)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}
