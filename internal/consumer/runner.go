package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wonny/stockread/internal/backoff"
	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/internal/llm"
	"github.com/wonny/stockread/pkg/logger"
)

// Prober is a consumer whose transport can be health checked
type Prober interface {
	contracts.Consumer
	Probe(ctx context.Context) error
}

// Pacing controls the waits between ConsumeOne calls
type Pacing struct {
	Idle    time.Duration // 작업 없을 때
	Pace    time.Duration // 폴링 모드에서 작업 사이
	Reprobe time.Duration // 폴링 모드에서 큐 재확인 주기
}

// Select prefers the queue consumer when it is reachable
func Select(ctx context.Context, queue Prober, poll contracts.Consumer, log *logger.Logger) contracts.Consumer {
	if queue == nil {
		return poll
	}
	if err := queue.Probe(ctx); err != nil {
		log.WithError(err).Warn("Job queue unreachable, falling back to polling")
		return poll
	}
	return queue
}

// Runner drives a consumer with backoff and queue/polling failover
// ⭐ SSOT: 컨슈머 루프는 Runner에서만
type Runner struct {
	queue  Prober           // nil when Redis is disabled
	poll   contracts.Consumer
	pacing Pacing
	policy *backoff.Policy
	sleep  func(ctx context.Context, d time.Duration) bool
	clock  contracts.Clock
	logger *logger.Logger

	mu        sync.Mutex
	active    contracts.Consumer
	lastProbe time.Time
}

// NewRunner creates a new Runner. queue may be nil.
func NewRunner(queue Prober, poll contracts.Consumer, pacing Pacing, log *logger.Logger) *Runner {
	if pacing.Reprobe <= 0 {
		pacing.Reprobe = time.Minute
	}
	policy := backoff.New()
	policy.Hint = llm.ExtractRetryDelay

	return &Runner{
		queue:  queue,
		poll:   poll,
		pacing: pacing,
		policy: policy,
		sleep:  backoff.Sleep,
		clock:  contracts.SystemClock{},
		logger: log.WithComponent("consumer"),
	}
}

// Init picks the active consumer
func (r *Runner) Init(ctx context.Context) error {
	r.setActive(Select(ctx, r.queue, r.poll, r.logger))
	r.logger.WithField("mode", r.Active()).Info("Consumer selected")
	return nil
}

// Active returns the name of the consumer in use
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.Name()
}

func (r *Runner) current() contracts.Consumer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Runner) setActive(c contracts.Consumer) {
	r.mu.Lock()
	r.active = c
	if c != nil && r.queue != nil && c != contracts.Consumer(r.queue) {
		r.lastProbe = r.clock.Now()
	}
	r.mu.Unlock()
}

// Run consumes until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	if r.current() == nil {
		if err := r.Init(ctx); err != nil {
			return err
		}
	}

	for ctx.Err() == nil {
		if !r.Step(ctx) {
			break
		}
	}
	r.logger.Info("Consumer stopped")
	return nil
}

// Step consumes once and sleeps as needed. Returns false when ctx ended.
func (r *Runner) Step(ctx context.Context) bool {
	c := r.current()
	did, err := c.ConsumeOne(ctx)
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		kind := contracts.KindOf(err)
		wait := r.policy.Failure(err)
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"mode":     c.Name(),
			"kind":     kind.String(),
			"failures": r.policy.Failures(),
			"wait":     wait.String(),
		}).Warn("Consume failed")

		// 처리 중 오류(LLM 5xx 등)는 큐 장애가 아님
		if errors.Is(err, errQueueTransport) && r.queue != nil && c == contracts.Consumer(r.queue) {
			r.logger.Warn("Job queue lost, switching to polling")
			r.setActive(r.poll)
		}
		return r.sleep(ctx, wait)
	}
	r.policy.Success()

	if r.isPolling(c) {
		r.maybeReprobe(ctx)
	}

	switch {
	case !did:
		if r.isPolling(c) {
			return r.sleep(ctx, r.pacing.Idle)
		}
		// BLPOP이 이미 대기함
		return true
	case r.isPolling(c):
		return r.sleep(ctx, r.pacing.Pace)
	default:
		return true
	}
}

func (r *Runner) isPolling(c contracts.Consumer) bool {
	return c == r.poll
}

// maybeReprobe switches back to the queue once it answers again
func (r *Runner) maybeReprobe(ctx context.Context) {
	if r.queue == nil {
		return
	}
	r.mu.Lock()
	due := r.clock.Now().Sub(r.lastProbe) >= r.pacing.Reprobe
	if due {
		r.lastProbe = r.clock.Now()
	}
	r.mu.Unlock()
	if !due {
		return
	}

	if err := r.queue.Probe(ctx); err != nil {
		r.logger.WithError(err).Debug("Job queue still unreachable")
		return
	}
	r.logger.Info("Job queue reachable again, switching back")
	r.setActive(r.queue)
}
