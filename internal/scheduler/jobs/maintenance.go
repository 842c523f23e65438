package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

const (
	breakerThreshold = 5
	breakerBase      = 60 * time.Second
	breakerMaxShift  = 3
)

// MaintenanceJob refreshes trending tickers behind a circuit breaker
type MaintenanceJob struct {
	store  contracts.MarketStore
	clock  contracts.Clock
	logger *logger.Logger

	mu        sync.Mutex
	failures  int
	skipUntil time.Time
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(store contracts.MarketStore, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		store:  store,
		clock:  contracts.SystemClock{},
		logger: log.WithComponent("maintenance"),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *MaintenanceJob) Schedule() string {
	return "30 */5 * * * *"
}

// BreakerDelay is how long runs are skipped after n consecutive failures
func BreakerDelay(n int) time.Duration {
	if n < breakerThreshold {
		return 0
	}
	shift := n - breakerThreshold
	if shift > breakerMaxShift {
		shift = breakerMaxShift
	}
	return breakerBase << shift
}

// Run calls refresh_trending unless the breaker is open.
// Failures are absorbed here; the breaker is the retry policy.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	now := j.clock.Now()

	j.mu.Lock()
	if now.Before(j.skipUntil) {
		j.mu.Unlock()
		j.logger.WithField("until", j.skipUntil.Format(time.RFC3339)).Debug("Breaker open, skipping")
		return nil
	}
	j.mu.Unlock()

	err := j.store.RefreshTrending(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.failures++
		delay := BreakerDelay(j.failures)
		if delay > 0 {
			j.skipUntil = now.Add(delay)
		}
		j.logger.WithError(err).WithFields(map[string]interface{}{
			"failures": j.failures,
			"skip":     delay.String(),
		}).Error("Trending refresh failed")
		return nil
	}

	if j.failures > 0 {
		j.logger.WithField("after_failures", j.failures).Info("Trending refresh recovered")
	}
	j.failures = 0
	j.skipUntil = time.Time{}
	return nil
}

// Failures returns the consecutive failure count
func (j *MaintenanceJob) Failures() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failures
}
