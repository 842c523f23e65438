package marketdata

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

// historyLookback covers SMA50 with room for holidays
const historyLookback = 120 * 24 * time.Hour

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// NormalizeTicker upper-cases and validates a ticker symbol
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	t = strings.TrimPrefix(t, "$")
	if !tickerPattern.MatchString(t) {
		return "", contracts.NewError(contracts.KindValidation, "ticker", fmt.Errorf("invalid ticker %q", raw))
	}
	return t, nil
}

// SnapshotSource returns raw price and fundamentals (Yahoo)
type SnapshotSource interface {
	Snapshot(ctx context.Context, ticker string) (*contracts.Snapshot, error)
}

// StreetSource returns a quote page with analyst and ownership data (Finviz)
type StreetSource interface {
	Snapshot(ctx context.Context, ticker string) (*contracts.Snapshot, error)
}

// HistorySource returns daily closes, oldest first
type HistorySource interface {
	DailyCloses(ctx context.Context, ticker string, lookback time.Duration) ([]float64, error)
}

// VIXSource returns the latest volatility index level
type VIXSource interface {
	VIX(ctx context.Context) (float64, error)
}

// NewsSource returns recent headlines for a ticker
type NewsSource interface {
	TickerNews(ctx context.Context, ticker string, limit int) ([]contracts.NewsItem, error)
}

// SocialSource returns retail chatter for a ticker
type SocialSource interface {
	Posts(ctx context.Context, ticker string, limit int) ([]contracts.SocialPost, error)
}

// TTLs are the cache lifetimes per data kind
type TTLs struct {
	Snapshot   time.Duration
	Technicals time.Duration
	News       time.Duration
	Macro      time.Duration
}

// Sources wires the upstream providers. Only Primary is required.
type Sources struct {
	Primary SnapshotSource
	Street  StreetSource
	History HistorySource
	VIX     VIXSource
	News    []NewsSource // tried in order until one returns headlines
	Social  SocialSource
}

// Gateway fronts every market data provider with a read-through cache
// ⭐ SSOT: 시장 데이터 조회는 Gateway를 통해서만
type Gateway struct {
	src    Sources
	cache  *redis.Cache
	ttl    TTLs
	logger *logger.Logger
}

var _ contracts.MarketData = (*Gateway)(nil)

// NewGateway creates a new Gateway. cache may be backed by a disabled client.
func NewGateway(src Sources, cache *redis.Cache, ttl TTLs, log *logger.Logger) *Gateway {
	return &Gateway{
		src:    src,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithComponent("marketdata"),
	}
}

// cached reads key into dest. Cache failures are logged and treated as a miss.
func (g *Gateway) cached(ctx context.Context, key string, dest interface{}) bool {
	if g.cache == nil {
		return false
	}
	hit, err := g.cache.Get(ctx, key, dest)
	if err != nil {
		g.logger.WithError(err).WithField("key", key).Debug("cache read failed")
		return false
	}
	return hit
}

func (g *Gateway) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if g.cache == nil || ttl <= 0 {
		return
	}
	if err := g.cache.Set(ctx, key, value, ttl); err != nil {
		g.logger.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

// Snapshot returns the normalized snapshot of ticker.
// contracts.ErrNoData when no provider knows the ticker; transient upstream errors are returned typed.
func (g *Gateway) Snapshot(ctx context.Context, ticker string) (*contracts.Snapshot, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", contracts.ErrNoData)
	}

	var snap contracts.Snapshot
	if g.cached(ctx, redis.SnapshotKey(t), &snap) {
		return &snap, nil
	}

	// 1. 기본 시세 (Yahoo)
	primary, primaryErr := g.src.Primary.Snapshot(ctx, t)

	// 2. 애널리스트/공매도 데이터 (Finviz)
	var street *contracts.Snapshot
	var streetErr error
	if g.src.Street != nil && ctx.Err() == nil {
		street, streetErr = g.src.Street.Snapshot(ctx, t)
		if streetErr != nil && !errors.Is(streetErr, contracts.ErrNoData) {
			g.logger.WithError(streetErr).WithField("ticker", t).Debug("street data unavailable")
		}
	}

	if primary == nil && street == nil {
		return nil, snapshotFailure(t, primaryErr, streetErr)
	}

	merged := Merge(primary, street)
	// Finviz 애널리스트 필드가 우선
	if street != nil {
		if street.AnalystRating != "" {
			merged.AnalystRating = street.AnalystRating
		}
		if street.TargetPrice != nil {
			merged.TargetPrice = street.TargetPrice
		}
	}
	merged.Ticker = t

	out, err := Normalize(merged)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", t, err)
	}

	g.store(ctx, redis.SnapshotKey(t), out, g.ttl.Snapshot)
	return out, nil
}

// snapshotFailure picks the error to surface when every provider came back empty.
// ErrNoData only when each provider positively reported nothing.
func snapshotFailure(ticker string, errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, contracts.ErrNoData) {
			return contracts.Classify("snapshot "+ticker, err)
		}
	}
	return fmt.Errorf("snapshot %s: %w", ticker, contracts.ErrNoData)
}

// Technicals returns RSI and moving averages for ticker.
// (nil, nil) when history is too short.
func (g *Gateway) Technicals(ctx context.Context, ticker string) (*contracts.Technicals, error) {
	if g.src.History == nil {
		return nil, nil
	}
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	var tech contracts.Technicals
	if g.cached(ctx, redis.TechnicalsKey(t), &tech) {
		return &tech, nil
	}

	closes, err := g.src.History.DailyCloses(ctx, t, historyLookback)
	if err != nil {
		if errors.Is(err, contracts.ErrNoData) {
			return nil, nil
		}
		return nil, contracts.Classify("technicals "+t, err)
	}

	out := ComputeTechnicals(closes)
	if out == nil {
		g.logger.WithFields(map[string]interface{}{
			"ticker": t,
			"closes": len(closes),
		}).Debug("not enough history for technicals")
		return nil, nil
	}

	g.store(ctx, redis.TechnicalsKey(t), out, g.ttl.Technicals)
	return out, nil
}

// News returns up to limit headlines from the first source that has any.
// Upstream failures are logged and yield an empty list.
func (g *Gateway) News(ctx context.Context, ticker string, limit int) []contracts.NewsItem {
	t, err := NormalizeTicker(ticker)
	if err != nil || limit <= 0 {
		return []contracts.NewsItem{}
	}

	var items []contracts.NewsItem
	if g.cached(ctx, redis.NewsKey(t), &items) && len(items) >= limit {
		return items[:limit]
	}

	for _, src := range g.src.News {
		if ctx.Err() != nil {
			break
		}
		got, err := src.TickerNews(ctx, t, limit)
		if err != nil {
			g.logger.WithError(err).WithField("ticker", t).Debug("news source failed")
			continue
		}
		if len(got) == 0 {
			continue
		}

		cleaned := make([]contracts.NewsItem, 0, len(got))
		for _, n := range got {
			n.Title = SanitizeString(n.Title, maxStringLen)
			n.Source = SanitizeString(n.Source, maxLabelLen)
			if n.Title == "" {
				continue
			}
			cleaned = append(cleaned, n)
		}
		if len(cleaned) == 0 {
			continue
		}
		if len(cleaned) > limit {
			cleaned = cleaned[:limit]
		}
		g.store(ctx, redis.NewsKey(t), cleaned, g.ttl.News)
		return cleaned
	}

	return []contracts.NewsItem{}
}

// Social returns up to limit retail posts. Failures yield an empty list.
func (g *Gateway) Social(ctx context.Context, ticker string, limit int) []contracts.SocialPost {
	if g.src.Social == nil || limit <= 0 {
		return []contracts.SocialPost{}
	}
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return []contracts.SocialPost{}
	}

	var posts []contracts.SocialPost
	if g.cached(ctx, redis.SocialKey(t), &posts) && len(posts) >= limit {
		return posts[:limit]
	}

	posts, err = g.src.Social.Posts(ctx, t, limit)
	if err != nil {
		g.logger.WithError(err).WithField("ticker", t).Debug("social source failed")
		return []contracts.SocialPost{}
	}
	for i := range posts {
		posts[i].Body = SanitizeString(posts[i].Body, maxStringLen)
	}
	if len(posts) > 0 {
		g.store(ctx, redis.SocialKey(t), posts, g.ttl.Snapshot)
	}
	return posts
}

// Macro returns the VIX backdrop. Sentiment is Unknown when the VIX cannot be read.
func (g *Gateway) Macro(ctx context.Context) contracts.MacroContext {
	if g.src.VIX == nil {
		return UnknownMacro()
	}

	var macro contracts.MacroContext
	if g.cached(ctx, redis.MacroKey, &macro) && macro.VIX != nil {
		return macro
	}

	vix, err := g.src.VIX.VIX(ctx)
	if err != nil || vix <= 0 {
		g.logger.WithError(err).Warn("VIX unavailable")
		return UnknownMacro()
	}

	macro = MacroFromVIX(vix)
	g.store(ctx, redis.MacroKey, macro, g.ttl.Macro)
	return macro
}
