package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wonny/stockread/internal/analyst"
	"github.com/wonny/stockread/internal/api/stream"
	"github.com/wonny/stockread/internal/consumer"
	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/internal/external/alpaca"
	"github.com/wonny/stockread/internal/external/finviz"
	"github.com/wonny/stockread/internal/external/googlenews"
	"github.com/wonny/stockread/internal/external/stocktwits"
	"github.com/wonny/stockread/internal/external/wikipedia"
	"github.com/wonny/stockread/internal/external/yahoo"
	"github.com/wonny/stockread/internal/insight"
	"github.com/wonny/stockread/internal/llm"
	"github.com/wonny/stockread/internal/marketdata"
	"github.com/wonny/stockread/internal/persistence"
	"github.com/wonny/stockread/internal/scheduler"
	"github.com/wonny/stockread/internal/scheduler/jobs"
	"github.com/wonny/stockread/pkg/config"
	"github.com/wonny/stockread/pkg/database"
	"github.com/wonny/stockread/pkg/httputil"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

// app holds every wired component. Built once per command.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db    *database.DB
	redis *redis.Client
	cache *redis.Cache
	queue *redis.Queue
	store *persistence.Repository

	yahoo     *yahoo.Client
	alpaca    *alpaca.Client // nil without credentials
	news      *googlenews.Client
	wikipedia *wikipedia.Client

	market    *marketdata.Gateway
	generator *insight.Generator
	hub       *stream.Hub
	processor *consumer.Processor

	hours    *analyst.MarketHours
	schedule *analyst.Schedule
	universe *analyst.UniverseStore
}

// loadConfig reads --env-file (if any) and the environment
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp connects to Postgres and Redis and builds the pipeline.
// A missing LLM key is not fatal: the generator reports unavailable.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 1. Database
	a.db, err = database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := a.db.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.store = persistence.NewRepository(a.db.Pool, log)

	// 2. Redis (없으면 캐시/큐 비활성)
	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache and queue")
		a.redis = redis.Disabled(cfg.Redis.Prefix)
	}
	a.cache = redis.NewCache(a.redis)
	a.queue = redis.NewQueue(a.redis, cfg.Consumer.QueueKey)
	limiter := redis.NewRateLimiter(a.redis)

	// 3. Upstream providers
	a.yahoo = yahoo.NewClient(limiter, log.WithComponent("yahoo"))
	a.alpaca = alpaca.NewClient(cfg.Market.AlpacaAPIKey, cfg.Market.AlpacaAPISecret, cfg.Market.AlpacaDataURL, log.WithComponent("alpaca"))

	fv := finviz.NewClient(
		httputil.New(log).WithRateLimiter(limiter, redis.FinvizRateLimit),
		log.WithComponent("finviz"),
		cfg.Market.FinvizBaseURL,
	)
	st := stocktwits.NewClient(
		httputil.New(log).DisableRetry().WithRateLimiter(limiter, redis.StockTwitsRateLimit),
		log.WithComponent("stocktwits"),
		cfg.Market.StockTwitsBaseURL,
	)
	a.news = googlenews.NewClient(httputil.New(log).WithLimiter(2, 2), log.WithComponent("googlenews"), cfg.Market.GoogleNewsURL)
	a.wikipedia = wikipedia.NewClient(httputil.New(log), log.WithComponent("wikipedia"), cfg.Market.WikipediaURL)

	// 4. Market Data Gateway (뉴스: Finviz → Alpaca → Google News)
	newsSources := []marketdata.NewsSource{fv}
	if a.alpaca != nil {
		newsSources = append(newsSources, a.alpaca)
	}
	newsSources = append(newsSources, a.news)

	a.market = marketdata.NewGateway(marketdata.Sources{
		Primary: a.yahoo,
		Street:  fv,
		History: a.yahoo,
		VIX:     a.yahoo,
		News:    newsSources,
		Social:  st,
	}, a.cache, marketdata.TTLs{
		Snapshot:   cfg.Market.SnapshotTTL,
		Technicals: cfg.Market.TechnicalsTTL,
		News:       cfg.Market.NewsTTL,
		Macro:      cfg.Market.MacroTTL,
	}, log)

	// 5. Insight Generator
	completer, err := llm.New(ctx, cfg, limiter, log.WithComponent("llm"))
	if err != nil {
		if !errors.Is(err, contracts.ErrUnavailable) {
			a.Close()
			return nil, fmt.Errorf("init llm: %w", err)
		}
		log.WithError(err).Warn("LLM not configured, analysis disabled")
		completer = nil
	}
	a.generator = insight.NewGenerator(completer, insight.Options{
		Timeout:     cfg.AI.Timeout,
		MaxAttempts: cfg.AI.MaxAttempts,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	}, log)

	// 6. Live stream + post processor
	a.hub = stream.NewHub(log)
	a.processor = consumer.NewProcessor(a.market, a.generator, a.store, a.hub, log)

	// 7. Market hours, schedule, universe
	a.hours, err = analyst.NewMarketHours(cfg.Market.Timezone, cfg.Market.OpenTime, cfg.Market.CloseTime)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("market hours: %w", err)
	}
	a.schedule = analyst.DefaultSchedule()
	if cfg.Analyst.ScheduleFile != "" {
		a.schedule, err = analyst.LoadSchedule(cfg.Analyst.ScheduleFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load schedule: %w", err)
		}
	}
	builder := analyst.NewUniverseBuilder(a.wikipedia, a.yahoo, a.schedule, cfg.Analyst.UniverseLimit, log)
	a.universe = analyst.NewUniverseStore(builder, a.cache, cfg.Analyst.UniverseFile, cfg.Analyst.UniverseTTL, log)

	return a, nil
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// newAnalyst builds the batch scheduler
func (a *app) newAnalyst() (*analyst.Analyst, error) {
	return analyst.New(analyst.Deps{
		MarketData: a.market,
		Generator:  a.generator,
		Store:      a.store,
		Universe:   a.universe,
		Hours:      a.hours,
		Schedule:   a.schedule,
		Publisher:  a.hub,
	}, analyst.OptionsFromConfig(a.cfg.Analyst), a.log)
}

// newRunner builds the consumer runner: Redis queue when available, polling otherwise
func (a *app) newRunner() *consumer.Runner {
	poll := consumer.NewPollingConsumer(a.store, a.processor, a.cfg.Consumer.PollBatch, a.log)
	pacing := consumer.Pacing{
		Idle: a.cfg.Consumer.PollIdle,
		Pace: a.cfg.Consumer.PollPace,
	}

	if !a.redis.Enabled() {
		return consumer.NewRunner(nil, poll, pacing, a.log)
	}
	queue := consumer.NewQueueConsumer(a.queue, a.cfg.Consumer.BlockTimeout, a.processor, a.log)
	return consumer.NewRunner(queue, poll, pacing, a.log)
}

// newScheduler registers the periodic market jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	var fallback jobs.PriceSource
	if a.alpaca != nil {
		fallback = a.alpaca
	}

	all := []scheduler.Job{
		jobs.NewMarketPricesJob(a.wikipedia, a.yahoo, fallback, a.store, a.hours, a.log),
		jobs.NewMarketNewsJob(a.news, a.store, nil, a.log),
		jobs.NewMaintenanceJob(a.store, a.log),
		jobs.NewUniverseJob(a.universe, a.log),
	}
	for _, job := range all {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
