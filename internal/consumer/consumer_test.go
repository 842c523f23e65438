package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

func TestQueueConsumer_ConsumeOne(t *testing.T) {
	store := newMemStore(
		contracts.Post{ID: 1, UserID: "u1", Ticker: "ACME", Content: "long"},
		contracts.Post{ID: 2, UserID: "u2", Ticker: "ZZZZ", Content: "?"},
	)
	proc := NewProcessor(&fakeMarket{}, &fakeGen{score: 80}, store, nil, logger.Nop())
	q := &memQueue{}
	c := NewQueueConsumer(q, time.Second, proc, logger.Nop())

	require.NoError(t, c.Enqueue(context.Background(), contracts.AnalysisJob{PostID: 1, Ticker: "ACME"}))
	require.NoError(t, q.Push(context.Background(), []byte(`{"post_id":"2","ticker":"zzzz"}`)))
	require.NoError(t, q.Push(context.Background(), []byte(`not json`)))

	did, err := c.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.True(t, did)

	did, err = c.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.True(t, did)

	// 깨진 페이로드는 버림
	did, err = c.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.True(t, did)

	did, err = c.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.False(t, did)

	p1, _ := store.GetPost(context.Background(), 1)
	assert.Equal(t, 80, *p1.AIScore)
	p2, _ := store.GetPost(context.Background(), 2)
	assert.Equal(t, -1, *p2.AIScore)
	assert.Equal(t, Stats{Processed: 1, Invalid: 1}, proc.Stats())
}

func TestQueueConsumer_RequeuesTransientFailure(t *testing.T) {
	store := newMemStore(contracts.Post{ID: 1, Ticker: "ACME"})
	gen := &fakeGen{err: contracts.NewError(contracts.KindTimeout, "llm", errors.New("slow"))}
	q := &memQueue{}
	c := NewQueueConsumer(q, time.Second, NewProcessor(&fakeMarket{}, gen, store, nil, logger.Nop()), logger.Nop())

	require.NoError(t, c.Enqueue(context.Background(), contracts.AnalysisJob{PostID: 1, Ticker: "ACME"}))

	did, err := c.ConsumeOne(context.Background())
	assert.True(t, did)
	assert.Equal(t, contracts.KindTimeout, contracts.KindOf(err))
	assert.Equal(t, 1, q.Len())
}

func TestQueueConsumer_PopErrorIsConnection(t *testing.T) {
	q := &memQueue{popErr: errors.New("dial tcp: refused")}
	c := NewQueueConsumer(q, time.Second, nil, logger.Nop())

	did, err := c.ConsumeOne(context.Background())
	assert.False(t, did)
	assert.Equal(t, contracts.KindConnection, contracts.KindOf(err))
}

func TestEnqueueJob_Validates(t *testing.T) {
	err := EnqueueJob(context.Background(), &memQueue{}, contracts.AnalysisJob{PostID: 0, Ticker: "ACME"})
	assert.Error(t, err)
}

func TestPollingConsumer(t *testing.T) {
	store := newMemStore(
		contracts.Post{ID: 1, Ticker: "ACME", Content: "a"},
		contracts.Post{ID: 2, Ticker: "ZZZZ", Content: "b"},
	)
	proc := NewProcessor(&fakeMarket{}, &fakeGen{score: 55}, store, nil, logger.Nop())
	c := NewPollingConsumer(store, proc, 20, logger.Nop())

	for i := 0; i < 2; i++ {
		did, err := c.ConsumeOne(context.Background())
		require.NoError(t, err)
		assert.True(t, did)
	}

	did, err := c.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.False(t, did)

	pending, _ := store.PendingPosts(context.Background(), 20, nil)
	assert.Empty(t, pending)
}

func TestPollingConsumer_SkipsPoisonPosts(t *testing.T) {
	store := newMemStore(contracts.Post{ID: 1, Ticker: "ACME"})
	gen := &fakeGen{err: contracts.NewError(contracts.KindValidation, "parse", errors.New("garbage"))}
	c := NewPollingConsumer(store, NewProcessor(&fakeMarket{}, gen, store, nil, logger.Nop()), 20, logger.Nop())

	did, err := c.ConsumeOne(context.Background())
	assert.True(t, did)
	assert.Error(t, err)

	// 검증 실패 포스트는 다시 잡지 않음
	did, err = c.ConsumeOne(context.Background())
	assert.NoError(t, err)
	assert.False(t, did)
}

type scriptedConsumer struct {
	name  string
	steps []error
	calls int
}

func (s *scriptedConsumer) Name() string { return s.name }

func (s *scriptedConsumer) ConsumeOne(context.Context) (bool, error) {
	i := s.calls
	s.calls++
	if i < len(s.steps) {
		return true, s.steps[i]
	}
	return false, nil
}

type probeConsumer struct {
	scriptedConsumer
	probeErr error
}

func (p *probeConsumer) Probe(context.Context) error { return p.probeErr }

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func newTestRunner(queue Prober, poll contracts.Consumer) (*Runner, *[]time.Duration, *manualClock) {
	r := NewRunner(queue, poll, Pacing{Idle: 5 * time.Second, Pace: 2 * time.Second, Reprobe: time.Minute}, logger.Nop())
	var sleeps []time.Duration
	clock := &manualClock{t: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)}
	r.clock = clock
	r.sleep = func(ctx context.Context, d time.Duration) bool {
		sleeps = append(sleeps, d)
		return ctx.Err() == nil
	}
	return r, &sleeps, clock
}

func TestSelect(t *testing.T) {
	poll := &scriptedConsumer{name: "polling"}
	up := &probeConsumer{scriptedConsumer: scriptedConsumer{name: "queue"}}
	down := &probeConsumer{scriptedConsumer: scriptedConsumer{name: "queue"}, probeErr: errors.New("refused")}

	assert.Equal(t, "queue", Select(context.Background(), up, poll, logger.Nop()).Name())
	assert.Equal(t, "polling", Select(context.Background(), down, poll, logger.Nop()).Name())
	assert.Equal(t, "polling", Select(context.Background(), nil, poll, logger.Nop()).Name())
}

func TestRunner_BackoffByKind(t *testing.T) {
	poll := &scriptedConsumer{name: "polling", steps: []error{
		contracts.NewError(contracts.KindRateLimited, "llm", errors.New("429")),
		contracts.NewError(contracts.KindRateLimited, "llm", errors.New("429")),
		nil,
	}}
	r, sleeps, _ := newTestRunner(nil, poll)
	require.NoError(t, r.Init(context.Background()))

	for i := 0; i < 4; i++ {
		r.Step(context.Background())
	}
	// 60s, 120s, 성공 후 pace, 작업 없음 idle
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second, 2 * time.Second, 5 * time.Second}, *sleeps)
}

func TestRunner_RetryHintFromProvider(t *testing.T) {
	poll := &scriptedConsumer{name: "polling", steps: []error{
		contracts.NewError(contracts.KindRateLimited, "llm", errors.New("quota exceeded. Please retry in 95s")),
	}}
	r, sleeps, _ := newTestRunner(nil, poll)
	require.NoError(t, r.Init(context.Background()))

	r.Step(context.Background())
	assert.Equal(t, []time.Duration{95 * time.Second}, *sleeps)
}

func TestRunner_FailoverAndReprobe(t *testing.T) {
	queue := &probeConsumer{scriptedConsumer: scriptedConsumer{name: "queue", steps: []error{
		contracts.NewError(contracts.KindConnection, "queue pop", fmt.Errorf("%w: reset", errQueueTransport)),
	}}}
	poll := &scriptedConsumer{name: "polling"}
	r, _, clock := newTestRunner(queue, poll)

	require.NoError(t, r.Init(context.Background()))
	assert.Equal(t, "queue", r.Active())

	// 연결 오류 → 폴링으로 전환
	r.Step(context.Background())
	assert.Equal(t, "polling", r.Active())

	// 재확인 주기 전에는 그대로
	queue.probeErr = nil
	r.Step(context.Background())
	assert.Equal(t, "polling", r.Active())

	clock.t = clock.t.Add(2 * time.Minute)
	r.Step(context.Background())
	assert.Equal(t, "queue", r.Active())
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	poll := &scriptedConsumer{name: "polling"}
	r, _, _ := newTestRunner(nil, poll)

	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}
	assert.NoError(t, r.Run(ctx))
	assert.Equal(t, 1, poll.calls)
}

func TestRunner_ProcessingErrorKeepsQueue(t *testing.T) {
	// LLM 503은 Connection으로 분류되지만 큐는 정상
	queue := &probeConsumer{scriptedConsumer: scriptedConsumer{name: "queue", steps: []error{
		contracts.NewError(contracts.KindConnection, "llm", errors.New("HTTP 503")),
	}}}
	r, sleeps, _ := newTestRunner(queue, &scriptedConsumer{name: "polling"})
	require.NoError(t, r.Init(context.Background()))

	r.Step(context.Background())
	assert.Equal(t, "queue", r.Active())
	assert.Equal(t, []time.Duration{15 * time.Second}, *sleeps)
}

func TestQueueConsumer_PopErrorSwitchesRunner(t *testing.T) {
	store := newMemStore()
	q := &memQueue{popErr: errors.New("dial tcp: refused")}
	qc := NewQueueConsumer(q, time.Second, NewProcessor(&fakeMarket{}, &fakeGen{}, store, nil, logger.Nop()), logger.Nop())
	r, _, _ := newTestRunner(qc, &scriptedConsumer{name: "polling"})
	require.NoError(t, r.Init(context.Background()))
	require.Equal(t, "queue", r.Active())

	r.Step(context.Background())
	assert.Equal(t, "polling", r.Active())
}

func TestQueueConsumer_TransientFailureProcessedOnce(t *testing.T) {
	store := newMemStore(contracts.Post{ID: 1, UserID: "u1", Ticker: "ACME", Content: "to the moon"})
	gen := &fakeGen{score: 85, thesis: contracts.ThesisBullish, err: contracts.NewError(contracts.KindConnection, "llm", errors.New("HTTP 503"))}
	proc := NewProcessor(&fakeMarket{}, gen, store, nil, logger.Nop())
	q := &memQueue{}
	qc := NewQueueConsumer(q, time.Second, proc, logger.Nop())
	poll := NewPollingConsumer(store, proc, 20, logger.Nop())
	r, _, _ := newTestRunner(qc, poll)
	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, qc.Enqueue(context.Background(), contracts.AnalysisJob{PostID: 1, Ticker: "ACME"}))

	// 실패한 작업은 큐로 되돌아가고 큐 모드 유지
	r.Step(context.Background())
	assert.Equal(t, "queue", r.Active())
	assert.Equal(t, 1, q.Len())

	// 폴링이 먼저 처리해도 재투입된 작업은 다시 분석하지 않음
	gen.mu.Lock()
	gen.err = nil
	gen.mu.Unlock()
	did, err := poll.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.True(t, did)

	did, err = qc.ConsumeOne(context.Background())
	require.NoError(t, err)
	assert.True(t, did)

	assert.Equal(t, ReputationPoints, store.reputation["u1"])
	assert.Len(t, gen.requests, 2)
	assert.Equal(t, Stats{Processed: 1, Failed: 1}, proc.Stats())
}

func TestPollingConsumer_PoisonPostsDoNotBlockNewer(t *testing.T) {
	// 빈 종목 포스트(검증 실패)가 배치를 가득 채워도 뒤의 포스트까지 도달
	store := newMemStore(
		contracts.Post{ID: 1},
		contracts.Post{ID: 2},
		contracts.Post{ID: 3, Ticker: "ACME", Content: "earnings beat"},
	)
	proc := NewProcessor(&fakeMarket{}, &fakeGen{score: 70}, store, nil, logger.Nop())
	c := NewPollingConsumer(store, proc, 2, logger.Nop())

	for i := 0; i < 10; i++ {
		_, _ = c.ConsumeOne(context.Background())
	}

	post, err := store.GetPost(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, post.AIScore)
	assert.Equal(t, 70, *post.AIScore)
	assert.Equal(t, int64(1), proc.Stats().Processed)
}
