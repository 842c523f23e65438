package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/stockread/internal/contracts"
)

func kindErr(k contracts.ErrorKind) error {
	return contracts.NewError(k, "test", errors.New("boom"))
}

func TestPolicy_BaseByKind(t *testing.T) {
	tests := []struct {
		kind contracts.ErrorKind
		want time.Duration
	}{
		{contracts.KindRateLimited, 60 * time.Second},
		{contracts.KindTimeout, 10 * time.Second},
		{contracts.KindConnection, 15 * time.Second},
		{contracts.KindValidation, 0},
		{contracts.KindUnknown, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			p := New()
			assert.Equal(t, tt.want, p.Failure(kindErr(tt.kind)))
		})
	}
}

func TestPolicy_DoublesAndCaps(t *testing.T) {
	p := New()
	err := kindErr(contracts.KindRateLimited)

	assert.Equal(t, 60*time.Second, p.Failure(err))
	assert.Equal(t, 120*time.Second, p.Failure(err))
	assert.Equal(t, 240*time.Second, p.Failure(err))
	assert.Equal(t, 480*time.Second, p.Failure(err))
	assert.Equal(t, DefaultMax, p.Failure(err))
	assert.Equal(t, DefaultMax, p.Failure(err))
	assert.Equal(t, 6, p.Failures())
}

func TestPolicy_SuccessResets(t *testing.T) {
	p := New()
	err := kindErr(contracts.KindTimeout)

	p.Failure(err)
	p.Failure(err)
	p.Success()

	assert.Equal(t, 0, p.Failures())
	assert.Equal(t, 10*time.Second, p.Failure(err))
}

func TestPolicy_HintWins(t *testing.T) {
	p := New()
	p.Hint = func(error) time.Duration { return 90 * time.Second }

	assert.Equal(t, 90*time.Second, p.Failure(kindErr(contracts.KindRateLimited)))

	p.Hint = func(error) time.Duration { return time.Hour }
	assert.Equal(t, DefaultMax, p.Failure(kindErr(contracts.KindRateLimited)))
}

func TestSleep(t *testing.T) {
	assert.True(t, Sleep(context.Background(), 0))
	assert.True(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
	assert.False(t, Sleep(ctx, 0))
}
