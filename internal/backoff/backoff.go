package backoff

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/stockread/internal/contracts"
)

// Bases per error kind. The delay doubles per consecutive failure up to Max.
var DefaultBases = map[contracts.ErrorKind]time.Duration{
	contracts.KindRateLimited: 60 * time.Second,
	contracts.KindTimeout:     10 * time.Second,
	contracts.KindConnection:  15 * time.Second,
	contracts.KindValidation:  0,
	contracts.KindUnknown:     5 * time.Second,
}

// DefaultMax caps any single delay
const DefaultMax = 10 * time.Minute

// Policy picks a delay from the kind of the last error and the failure streak
// ⭐ SSOT: 에러 종류별 대기 정책은 여기서만
type Policy struct {
	mu       sync.Mutex
	bases    map[contracts.ErrorKind]time.Duration
	max      time.Duration
	failures int
	// Hint returns a provider-suggested wait for err, 0 when none
	Hint func(err error) time.Duration
}

// New creates a Policy with the default bases
func New() *Policy {
	return NewWithBases(DefaultBases, DefaultMax)
}

// NewWithBases creates a Policy with custom bases
func NewWithBases(bases map[contracts.ErrorKind]time.Duration, max time.Duration) *Policy {
	copied := make(map[contracts.ErrorKind]time.Duration, len(bases))
	for k, v := range bases {
		copied[k] = v
	}
	return &Policy{bases: copied, max: max}
}

// Failure records a failure and returns how long to wait before the next attempt
func (p *Policy) Failure(err error) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures++
	kind := contracts.KindOf(err)
	base := p.bases[kind]
	if base <= 0 {
		return 0
	}

	d := base
	for i := 1; i < p.failures && d < p.max; i++ {
		d *= 2
	}
	if p.Hint != nil {
		if h := p.Hint(err); h > d {
			d = h
		}
	}
	if d > p.max {
		d = p.max
	}
	return d
}

// Success resets the failure streak
func (p *Policy) Success() {
	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
}

// Failures returns the current streak
func (p *Policy) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Sleep waits for d or until ctx is done. Returns false when ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
