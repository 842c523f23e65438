package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

// errQueueTransport marks failures of the queue itself, as opposed to failures processing a job
var errQueueTransport = errors.New("job queue transport")

// JobQueue is the Redis list the web layer pushes analysis jobs onto
type JobQueue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	Ping(ctx context.Context) error
}

// QueueConsumer pops jobs from Redis with a blocking read
type QueueConsumer struct {
	queue   JobQueue
	timeout time.Duration
	proc    *Processor
	logger  *logger.Logger
}

var _ contracts.Consumer = (*QueueConsumer)(nil)

// NewQueueConsumer creates a new QueueConsumer
func NewQueueConsumer(q JobQueue, blockTimeout time.Duration, proc *Processor, log *logger.Logger) *QueueConsumer {
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}
	return &QueueConsumer{
		queue:   q,
		timeout: blockTimeout,
		proc:    proc,
		logger:  log.WithComponent("queue_consumer"),
	}
}

// Name returns the consumer name
func (c *QueueConsumer) Name() string {
	return "queue"
}

// Probe checks the queue is reachable
func (c *QueueConsumer) Probe(ctx context.Context) error {
	if err := c.queue.Ping(ctx); err != nil {
		return contracts.NewError(contracts.KindConnection, "queue ping", fmt.Errorf("%w: %v", errQueueTransport, err))
	}
	return nil
}

// Enqueue pushes a job onto the queue
func (c *QueueConsumer) Enqueue(ctx context.Context, job contracts.AnalysisJob) error {
	return EnqueueJob(ctx, c.queue, job)
}

// EnqueueJob serializes job and pushes it onto q
func EnqueueJob(ctx context.Context, q JobQueue, job contracts.AnalysisJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.Push(ctx, payload); err != nil {
		if errors.Is(err, redis.ErrQueueDisabled) {
			return contracts.ErrUnavailable
		}
		return contracts.Classify("enqueue", err)
	}
	return nil
}

// ConsumeOne blocks for one job and processes it.
// Unparseable payloads and poison jobs are dropped.
func (c *QueueConsumer) ConsumeOne(ctx context.Context) (bool, error) {
	payload, err := c.queue.Pop(ctx, c.timeout)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, contracts.NewError(contracts.KindConnection, "queue pop", fmt.Errorf("%w: %v", errQueueTransport, err))
	}
	if payload == nil {
		return false, nil
	}

	var job contracts.AnalysisJob
	if err := json.Unmarshal(payload, &job); err != nil {
		c.logger.WithError(err).WithField("payload", truncatePayload(payload)).Warn("Dropping malformed job")
		return true, nil
	}

	start := time.Now()
	out, err := c.proc.Process(ctx, job)
	if err != nil {
		if contracts.KindOf(err) == contracts.KindValidation {
			c.logger.WithError(err).WithField("post_id", job.PostID).Warn("Dropping job")
			return true, nil
		}
		// 일시 오류는 큐 뒤로 되돌림
		if perr := c.queue.Push(context.WithoutCancel(ctx), payload); perr != nil {
			c.logger.WithError(perr).WithField("post_id", job.PostID).Error("Requeue failed, job lost")
		}
		return true, err
	}

	c.logger.WithFields(map[string]interface{}{
		"post_id":  out.PostID,
		"invalid":  out.Invalid,
		"duration": since(start),
	}).Debug("Job done")
	return true, nil
}

func truncatePayload(p []byte) string {
	const limit = 200
	if len(p) > limit {
		return string(p[:limit]) + "..."
	}
	return string(p)
}
