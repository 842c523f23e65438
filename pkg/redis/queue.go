package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueDisabled is returned by Queue operations when Redis is not configured
var ErrQueueDisabled = errors.New("redis queue disabled")

// Queue is a FIFO list of raw job payloads (RPUSH / BLPOP)
type Queue struct {
	client *Client
	key    string
}

// NewQueue creates a queue on prefix:name
func NewQueue(client *Client, name string) *Queue {
	return &Queue{client: client, key: client.Key(name)}
}

// Key returns the fully qualified list key
func (q *Queue) Key() string {
	return q.key
}

// Push appends a payload to the tail
func (q *Queue) Push(ctx context.Context, payload []byte) error {
	if !q.client.Enabled() {
		return ErrQueueDisabled
	}
	if err := q.client.Redis().RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("queue push: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the head payload.
// Returns (nil, nil) when the timeout elapses without a job.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if !q.client.Enabled() {
		return nil, ErrQueueDisabled
	}

	res, err := q.client.Redis().BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue pop: %w", err)
	}
	// BLPOP → [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("queue pop: unexpected reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

// Len returns the number of pending payloads
func (q *Queue) Len(ctx context.Context) (int64, error) {
	if !q.client.Enabled() {
		return 0, ErrQueueDisabled
	}
	return q.client.Redis().LLen(ctx, q.key).Result()
}

// Ping checks the queue backend is reachable
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx)
}
