package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// UniverseRefresher rebuilds the tiered universe
type UniverseRefresher interface {
	Refresh(ctx context.Context) (*contracts.Universe, error)
}

// UniverseJob rebuilds the tiered universe weekly
// ⭐ SSOT: 유니버스 재생성 스케줄은 이 Job에서만
type UniverseJob struct {
	refresher UniverseRefresher
	logger    *logger.Logger
}

// NewUniverseJob creates a new universe job
func NewUniverseJob(r UniverseRefresher, log *logger.Logger) *UniverseJob {
	return &UniverseJob{
		refresher: r,
		logger:    log.WithComponent("universe_job"),
	}
}

// Name returns the job name
func (j *UniverseJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (Monday 06:00, before the open)
func (j *UniverseJob) Schedule() string {
	return "0 0 6 * * 1"
}

// Run executes the universe rebuild
func (j *UniverseJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled universe refresh")

	u, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}

	fields := map[string]interface{}{"ranked": u.Count()}
	for _, t := range u.Tiers {
		fields[t.Name] = len(t.Symbols)
	}
	j.logger.WithFields(fields).Info("Universe refreshed")
	return nil
}
