package contracts

import (
	"context"
	"time"
)

// MarketData fronts every price, fundamentals, technicals, news and macro source
// ⭐ SSOT: Market Data Gateway 인터페이스
type MarketData interface {
	// Snapshot returns nil and ErrNoData for unknown tickers
	Snapshot(ctx context.Context, ticker string) (*Snapshot, error)
	Technicals(ctx context.Context, ticker string) (*Technicals, error)
	// News never fails hard: an empty list on upstream errors
	News(ctx context.Context, ticker string, limit int) []NewsItem
	Social(ctx context.Context, ticker string, limit int) []SocialPost
	// Macro returns Sentiment=Unknown and nil VIX on failure
	Macro(ctx context.Context) MacroContext
}

// AnalysisRequest is everything the generator sees for one ticker
type AnalysisRequest struct {
	Ticker     string
	Snapshot   *Snapshot
	Technicals *Technicals
	News       []NewsItem
	Social     []SocialPost
	Macro      MacroContext
	UserText   string
}

// BatchItem is one ticker of a batch prompt
type BatchItem struct {
	Ticker     string
	Snapshot   *Snapshot
	Technicals *Technicals
}

// BatchRequest is a chunk of tickers analyzed with one prompt
type BatchRequest struct {
	Items []BatchItem
	Macro MacroContext
}

// InsightGenerator turns market context into validated insights
// ⭐ SSOT: Insight Generator 인터페이스
type InsightGenerator interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Insight, error)
	// AnalyzeBatch returns insights keyed by ticker; tickers the model skipped are absent
	AnalyzeBatch(ctx context.Context, req BatchRequest) (map[string]Insight, error)
	Available() bool
}

// InsightStore persists ticker verdicts
type InsightStore interface {
	UpsertTickerInsight(ctx context.Context, row TickerInsight) error
	GetTickerInsight(ctx context.Context, ticker string) (*TickerInsight, error)
}

// PostStore reads and annotates user posts
type PostStore interface {
	GetPost(ctx context.Context, id int64) (*Post, error)
	PostsByIDs(ctx context.Context, ids []int64) ([]Post, error)
	PendingPosts(ctx context.Context, limit int, exclude []int64) ([]Post, error)
	UpdatePost(ctx context.Context, id int64, upd PostUpdate) error
	MarkPostInvalid(ctx context.Context, id int64) error
	AppendReputation(ctx context.Context, userID string, points int) error
}

// MarketStore holds the market-wide tables
type MarketStore interface {
	UpsertMarketPrices(ctx context.Context, prices []MarketPrice) (int, error)
	ReplaceMarketNews(ctx context.Context, items []MarketNews) error
	RefreshTrending(ctx context.Context) error
}

// Store is the full persistence gateway
// ⭐ SSOT: Persistence Gateway 인터페이스
type Store interface {
	InsightStore
	PostStore
	MarketStore
	Ping(ctx context.Context) error
}

// InsightPublisher receives every stored ticker insight (live stream)
type InsightPublisher interface {
	PublishInsight(row TickerInsight)
}

// Consumer processes at most one job per call.
// Returns (false, nil) when there was nothing to do.
type Consumer interface {
	Name() string
	ConsumeOne(ctx context.Context) (bool, error)
}

// Service is a long-running supervised loop
type Service interface {
	Run(ctx context.Context) error
}

// Initializer is implemented by services that need setup before Run
type Initializer interface {
	Init(ctx context.Context) error
}

// Clock abstracts time.Now for schedulers
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
