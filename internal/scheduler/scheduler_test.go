package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/pkg/logger"
)

type testJob struct {
	name     string
	schedule string
	errs     []error
	calls    int
}

func (j *testJob) Name() string     { return j.name }
func (j *testJob) Schedule() string { return j.schedule }

func (j *testJob) Run(context.Context) error {
	i := j.calls
	j.calls++
	if i < len(j.errs) {
		return j.errs[i]
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&testJob{name: "b", schedule: "0 */5 * * * *"}))
	require.NoError(t, s.AddJob(&testJob{name: "a", schedule: "@hourly"}))
	assert.Error(t, s.AddJob(&testJob{name: "a", schedule: "@hourly"}))
	assert.Error(t, s.AddJob(&testJob{name: "bad", schedule: "every tuesday"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRunNow_RetriesThenSucceeds(t *testing.T) {
	s := New(logger.Nop())
	s.SetRetry(2, time.Millisecond)

	job := &testJob{name: "flaky", schedule: "@hourly", errs: []error{errors.New("first")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, job.calls)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunNow_FailsAfterRetries(t *testing.T) {
	s := New(logger.Nop())
	s.SetRetry(1, time.Millisecond)

	boom := errors.New("boom")
	job := &testJob{name: "broken", schedule: "@hourly", errs: []error{boom, boom, boom}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "boom", result.Error)

	runs, err := s.History("broken", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0.0, s.GetJobStats()["broken"].SuccessRate)
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := New(logger.Nop())
	_, err := s.RunNow(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestHistory_KeepsNewestRuns(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&testJob{name: "prices", schedule: "@hourly"}))

	for i := 0; i < historyLimit+10; i++ {
		s.record(JobResult{JobName: "prices", Attempts: i, Success: i%2 == 0})
	}
	// 등록되지 않은 작업은 기록하지 않음
	s.record(JobResult{JobName: "ghost"})

	all, err := s.History("prices", 0)
	require.NoError(t, err)
	require.Len(t, all, historyLimit)
	assert.Equal(t, 10, all[0].Attempts)

	last, err := s.History("prices", 5)
	require.NoError(t, err)
	require.Len(t, last, 5)
	assert.Equal(t, historyLimit+9, last[4].Attempts)

	_, err = s.History("ghost", 0)
	assert.Error(t, err)

	stats := s.GetJobStats()["prices"]
	assert.Equal(t, historyLimit, stats.TotalRuns)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.01)
}
