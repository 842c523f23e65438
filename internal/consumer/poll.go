package consumer

import (
	"context"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// maxPostFailures before a pending post is skipped for the life of the process
const maxPostFailures = 3

// PollingConsumer scans posts without a score. Used when Redis is unavailable.
type PollingConsumer struct {
	store  contracts.PostStore
	proc   *Processor
	batch  int
	logger *logger.Logger

	pending  []contracts.Post
	failures map[int64]int
}

var _ contracts.Consumer = (*PollingConsumer)(nil)

// NewPollingConsumer creates a new PollingConsumer
func NewPollingConsumer(store contracts.PostStore, proc *Processor, batch int, log *logger.Logger) *PollingConsumer {
	if batch <= 0 {
		batch = 20
	}
	return &PollingConsumer{
		store:    store,
		proc:     proc,
		batch:    batch,
		logger:   log.WithComponent("poll_consumer"),
		failures: make(map[int64]int),
	}
}

// Name returns the consumer name
func (c *PollingConsumer) Name() string {
	return "polling"
}

// ConsumeOne processes the oldest pending post
func (c *PollingConsumer) ConsumeOne(ctx context.Context) (bool, error) {
	if len(c.pending) == 0 {
		if err := c.refill(ctx); err != nil {
			return false, err
		}
		if len(c.pending) == 0 {
			return false, nil
		}
	}

	post := c.pending[0]
	c.pending = c.pending[1:]

	start := time.Now()
	out, err := c.proc.Process(ctx, jobFromPost(post))
	if err != nil {
		c.failures[post.ID]++
		if contracts.KindOf(err) == contracts.KindValidation {
			c.failures[post.ID] = maxPostFailures
		}
		return true, err
	}
	delete(c.failures, post.ID)

	c.logger.WithFields(map[string]interface{}{
		"post_id":  out.PostID,
		"invalid":  out.Invalid,
		"duration": since(start),
	}).Debug("Post done")
	return true, nil
}

// refill loads the next batch. Posts that keep failing are excluded in the query
// so they never occupy the head of the batch.
func (c *PollingConsumer) refill(ctx context.Context) error {
	exclude := c.givenUp()
	posts, err := c.store.PendingPosts(ctx, c.batch, exclude)
	if err != nil {
		return contracts.Classify("pending posts", err)
	}

	c.pending = c.pending[:0]
	for _, p := range posts {
		if c.failures[p.ID] >= maxPostFailures {
			continue
		}
		c.pending = append(c.pending, p)
	}
	if len(exclude) > 0 {
		c.logger.WithField("skipped", len(exclude)).Debug("Skipping posts that keep failing")
	}
	return nil
}

func (c *PollingConsumer) givenUp() []int64 {
	ids := make([]int64, 0, len(c.failures))
	for id, n := range c.failures {
		if n >= maxPostFailures {
			ids = append(ids, id)
		}
	}
	return ids
}
