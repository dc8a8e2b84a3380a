package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ExportQueueKey is the Redis list holding ids of jobs waiting for a worker.
const ExportQueueKey = "exchange:export:queue"

// ExportQueue hands export job ids from the API to the worker pool.
// A lost message only delays a job: workers also sweep pending rows.
type ExportQueue struct {
	redis *RedisClient
	key   string
}

// NewExportQueue creates a new ExportQueue.
func NewExportQueue(redis *RedisClient) *ExportQueue {
	return &ExportQueue{redis: redis, key: ExportQueueKey}
}

// Enqueue pushes a job id.
func (q *ExportQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.redis.LPush(ctx, q.key, jobID); err != nil {
		return fmt.Errorf("failed to enqueue export job: %w", err)
	}
	log.Debug().Str("job_id", jobID).Msg("Export job enqueued")
	return nil
}

// Dequeue waits up to timeout for a job id. An empty id means nothing arrived.
func (q *ExportQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	return q.redis.BRPop(ctx, timeout, q.key)
}
