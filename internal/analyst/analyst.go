package analyst

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/stockread/internal/backoff"
	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/config"
	"github.com/wonny/stockread/pkg/logger"
)

// State is the batch scheduler position
type State string

const (
	StateIdle        State = "IDLE"
	StateMarketCheck State = "MARKET_CHECK"
	StateClosed      State = "CLOSED"
	StateOpen        State = "OPEN"
	StateBatching    State = "BATCHING"
	StatePaceDelay   State = "PACE_DELAY"
)

// UniverseSource returns the tiered universe
type UniverseSource interface {
	Universe(ctx context.Context) (*contracts.Universe, error)
}

// Options controls pacing and wake-ups
type Options struct {
	BatchDelay   time.Duration // 청크 사이 대기
	RunTolerance time.Duration // |now - target| < tolerance 이면 실행
	MaxSleep     time.Duration
	MinSleep     time.Duration
}

// OptionsFromConfig maps the analyst config group
func OptionsFromConfig(cfg config.AnalystConfig) Options {
	return Options{
		BatchDelay:   cfg.BatchDelay,
		RunTolerance: cfg.RunTolerance,
		MaxSleep:     cfg.MaxSleep,
		MinSleep:     cfg.MinSleep,
	}
}

// Deps are the collaborators of the batch scheduler
type Deps struct {
	MarketData contracts.MarketData
	Generator  contracts.InsightGenerator
	Store      contracts.InsightStore
	Universe   UniverseSource
	Hours      *MarketHours
	Schedule   *Schedule
	Publisher  contracts.InsightPublisher // optional
}

// TierReport summarizes one tier run
type TierReport struct {
	Tier         string `json:"tier"`
	Symbols      int    `json:"symbols"`
	Chunks       int    `json:"chunks"`
	FailedChunks int    `json:"failed_chunks"`
	Analyzed     int    `json:"analyzed"`
}

// RunReport summarizes one scheduled run
type RunReport struct {
	ID         string       `json:"id"`
	Target     string       `json:"target,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tiers      []TierReport `json:"tiers"`
}

// Analyzed returns the number of insights stored across tiers
func (r RunReport) Analyzed() int {
	n := 0
	for _, t := range r.Tiers {
		n += t.Analyzed
	}
	return n
}

// Analyst runs the tiered batch analysis on the daily schedule
// ⭐ SSOT: 배치 분석 스케줄링은 Analyst에서만
type Analyst struct {
	deps   Deps
	opts   Options
	policy *backoff.Policy
	clock  contracts.Clock
	sleep  func(ctx context.Context, d time.Duration) bool
	logger *logger.Logger

	mu      sync.Mutex
	state   State
	markers map[string]bool
	last    *RunReport
}

// New creates a new Analyst
func New(deps Deps, opts Options, log *logger.Logger) (*Analyst, error) {
	if deps.MarketData == nil || deps.Generator == nil || deps.Store == nil || deps.Universe == nil {
		return nil, errors.New("analyst: market data, generator, store and universe are required")
	}
	if deps.Hours == nil {
		return nil, errors.New("analyst: market hours required")
	}
	if deps.Schedule == nil {
		deps.Schedule = DefaultSchedule()
	} else if err := deps.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("analyst schedule: %w", err)
	}
	if opts.MinSleep <= 0 {
		opts.MinSleep = time.Minute
	}
	if opts.MaxSleep < opts.MinSleep {
		opts.MaxSleep = opts.MinSleep
	}

	return &Analyst{
		deps:    deps,
		opts:    opts,
		policy:  backoff.New(),
		clock:   contracts.SystemClock{},
		sleep:   backoff.Sleep,
		logger:  log.WithComponent("analyst"),
		state:   StateIdle,
		markers: make(map[string]bool),
	}, nil
}

// Init fails when no LLM is configured
func (a *Analyst) Init(ctx context.Context) error {
	if !a.deps.Generator.Available() {
		return fmt.Errorf("analyst: %w", contracts.ErrUnavailable)
	}
	return nil
}

// State returns the current position of the scheduler
func (a *Analyst) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Analyst) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// LastRun returns the report of the most recent run, nil before the first
func (a *Analyst) LastRun() *RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return nil
	}
	r := *a.last
	return &r
}

// Run loops until ctx is cancelled
func (a *Analyst) Run(ctx context.Context) error {
	a.logger.WithFields(map[string]interface{}{
		"runs":        len(a.deps.Schedule.Runs),
		"batch_delay": a.opts.BatchDelay.String(),
	}).Info("Analyst started")

	for {
		wait := a.Tick(ctx)
		if !a.sleep(ctx, wait) {
			a.setState(StateIdle)
			a.logger.Info("Analyst stopped")
			return nil
		}
	}
}

// Tick runs every due target once and returns how long to sleep
func (a *Analyst) Tick(ctx context.Context) time.Duration {
	now := a.clock.Now().In(a.deps.Hours.Location())

	a.setState(StateMarketCheck)
	if !a.deps.Hours.IsOpen(now) {
		a.setState(StateClosed)
		next := a.deps.Hours.NextOpen(now)
		a.logger.WithField("next_open", next.Format(time.RFC3339)).Debug("Market closed")
		return a.clampSleep(next.Sub(now))
	}

	a.setState(StateOpen)
	a.pruneMarkers(now)

	for _, run := range a.deps.Schedule.Runs {
		if ctx.Err() != nil {
			break
		}
		if !a.due(now, run) {
			continue
		}

		report, err := a.RunTiers(ctx, run.Tiers)
		report.Target = run.At
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			a.logger.WithError(err).WithField("target", run.At).Error("Scheduled run failed")
			continue
		}
		a.mark(now, run)
		a.setLast(report)
	}

	a.setState(StateIdle)
	return a.clampSleep(a.untilNextRun(a.clock.Now().In(a.deps.Hours.Location())))
}

func markerKey(now time.Time, run RunSpec) string {
	return now.Format("2006-01-02") + "@" + run.clock.String()
}

// due reports whether run is within tolerance of now and has not run today
func (a *Analyst) due(now time.Time, run RunSpec) bool {
	diff := now.Sub(run.clock.on(now))
	if diff < 0 {
		diff = -diff
	}
	if diff >= a.opts.RunTolerance {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.markers[markerKey(now, run)]
}

func (a *Analyst) mark(now time.Time, run RunSpec) {
	a.mu.Lock()
	a.markers[markerKey(now, run)] = true
	a.mu.Unlock()
}

// pruneMarkers drops markers of previous days
func (a *Analyst) pruneMarkers(now time.Time) {
	today := now.Format("2006-01-02")
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.markers {
		if len(k) < len(today) || k[:len(today)] != today {
			delete(a.markers, k)
		}
	}
}

func (a *Analyst) setLast(r RunReport) {
	a.mu.Lock()
	a.last = &r
	a.mu.Unlock()
}

// untilNextRun returns the time to the next target later today, MaxSleep when none
func (a *Analyst) untilNextRun(now time.Time) time.Duration {
	best := a.opts.MaxSleep
	for _, run := range a.deps.Schedule.Runs {
		if d := run.clock.on(now).Sub(now); d > 0 && d < best {
			best = d
		}
	}
	return best
}

func (a *Analyst) clampSleep(d time.Duration) time.Duration {
	if d > a.opts.MaxSleep {
		return a.opts.MaxSleep
	}
	if d < a.opts.MinSleep {
		return a.opts.MinSleep
	}
	return d
}

// RunTiers analyzes the named tiers of the current universe in order
func (a *Analyst) RunTiers(ctx context.Context, names []string) (RunReport, error) {
	report := RunReport{
		ID:        uuid.NewString(),
		StartedAt: a.clock.Now().UTC(),
	}
	log := a.logger.WithField("run_id", report.ID)

	u, err := a.deps.Universe.Universe(ctx)
	if err != nil {
		return report, fmt.Errorf("load universe: %w", err)
	}

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		tier, ok := u.Tier(name)
		if !ok {
			log.WithField("tier", name).Warn("Tier not in universe")
			continue
		}
		report.Tiers = append(report.Tiers, a.RunTier(ctx, tier))
	}

	report.FinishedAt = a.clock.Now().UTC()
	log.WithFields(map[string]interface{}{
		"tiers":    len(report.Tiers),
		"analyzed": report.Analyzed(),
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Run completed")
	return report, ctx.Err()
}

// RunTier analyzes one tier chunk by chunk.
// A failed chunk contributes nothing and the loop moves on.
func (a *Analyst) RunTier(ctx context.Context, tier contracts.Tier) TierReport {
	report := TierReport{Tier: tier.Name, Symbols: len(tier.Symbols)}
	log := a.logger.WithField("tier", tier.Name)

	macro := a.deps.MarketData.Macro(ctx)
	chunks := Chunk(tier.Symbols, tier.BatchSize)

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}

		a.setState(StateBatching)
		n, err := a.runChunk(ctx, chunk, macro)
		report.Chunks++
		report.Analyzed += n

		delay := a.opts.BatchDelay
		if err != nil {
			report.FailedChunks++
			if wait := a.policy.Failure(err); wait > delay {
				delay = wait
			}
			log.WithError(err).WithFields(map[string]interface{}{
				"chunk": i + 1,
				"of":    len(chunks),
				"kind":  contracts.KindOf(err).String(),
			}).Warn("Chunk failed")
		} else {
			a.policy.Success()
		}

		// 마지막 청크 뒤에는 대기 없음
		if i == len(chunks)-1 {
			break
		}
		a.setState(StatePaceDelay)
		if !a.sleep(ctx, delay) {
			break
		}
	}

	log.WithFields(map[string]interface{}{
		"chunks":   report.Chunks,
		"failed":   report.FailedChunks,
		"analyzed": report.Analyzed,
	}).Info("Tier completed")
	return report
}

// runChunk fetches snapshots, runs one batch prompt and stores each verdict independently
func (a *Analyst) runChunk(ctx context.Context, chunk []string, macro contracts.MacroContext) (int, error) {
	items := make([]contracts.BatchItem, 0, len(chunk))
	for _, ticker := range chunk {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		snap, err := a.deps.MarketData.Snapshot(ctx, ticker)
		if err != nil {
			// 데이터 없는 종목은 청크에서 제외
			a.logger.WithError(err).WithField("ticker", ticker).Debug("Snapshot unavailable, skipping")
			continue
		}
		tech, err := a.deps.MarketData.Technicals(ctx, ticker)
		if err != nil {
			a.logger.WithError(err).WithField("ticker", ticker).Debug("Technicals unavailable")
			tech = nil
		}
		items = append(items, contracts.BatchItem{Ticker: ticker, Snapshot: snap, Technicals: tech})
	}
	if len(items) == 0 {
		return 0, nil
	}

	results, err := a.deps.Generator.AnalyzeBatch(ctx, contracts.BatchRequest{Items: items, Macro: macro})
	if err != nil {
		return 0, err
	}

	now := a.clock.Now().UTC()
	stored := 0
	for _, item := range items {
		ins, ok := results[item.Ticker]
		if !ok {
			a.logger.WithField("ticker", item.Ticker).Debug("No verdict returned")
			continue
		}
		row := contracts.NewTickerInsight(item.Ticker, ins, item.Snapshot, macro, now)
		if err := a.deps.Store.UpsertTickerInsight(ctx, row); err != nil {
			a.logger.WithError(err).WithField("ticker", item.Ticker).Warn("Upsert failed")
			continue
		}
		stored++
		if a.deps.Publisher != nil {
			a.deps.Publisher.PublishInsight(row)
		}
	}
	return stored, nil
}
