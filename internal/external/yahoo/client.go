package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

// VIXSymbol is the CBOE volatility index
const VIXSymbol = "^VIX"

// Client fetches quotes, fundamentals and daily history from Yahoo Finance
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	logger  *logger.Logger
	limiter *redis.RateLimiter

	// finance-go는 패키지 함수만 제공하므로 테스트에서 교체 가능하도록 보관
	getEquity func(symbol string) (*finance.Equity, error)
	listQuote func(symbols []string) ([]*finance.Quote, error)
	getCloses func(symbol string, from, to time.Time) ([]float64, error)
}

// NewClient creates a Yahoo client. limiter may be nil.
func NewClient(limiter *redis.RateLimiter, log *logger.Logger) *Client {
	return &Client{
		logger:    log,
		limiter:   limiter,
		getEquity: equity.Get,
		listQuote: listQuotes,
		getCloses: chartCloses,
	}
}

func listQuotes(symbols []string) ([]*finance.Quote, error) {
	iter := quote.List(symbols)
	var out []*finance.Quote
	for iter.Next() {
		out = append(out, iter.Quote())
	}
	return out, iter.Err()
}

func chartCloses(symbol string, from, to time.Time) ([]float64, error) {
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Interval: datetime.OneDay,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
	})

	var closes []float64
	for iter.Next() {
		c, _ := iter.Bar().Close.Float64()
		if c > 0 {
			closes = append(closes, c)
		}
	}
	return closes, iter.Err()
}

func (c *Client) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter != nil {
		return c.limiter.Wait(ctx, redis.YahooRateLimit)
	}
	return nil
}

// Snapshot returns raw (unnormalized) price and fundamentals.
// contracts.ErrNoData when Yahoo has nothing for the symbol.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*contracts.Snapshot, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	eq, err := c.getEquity(symbol)
	if err != nil {
		return nil, contracts.Classify("yahoo equity", fmt.Errorf("%s: %w", symbol, err))
	}
	if eq == nil || eq.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, contracts.ErrNoData)
	}

	return equityToSnapshot(symbol, eq), nil
}

func equityToSnapshot(symbol string, eq *finance.Equity) *contracts.Snapshot {
	snap := &contracts.Snapshot{
		Ticker:           strings.ToUpper(symbol),
		Name:             firstNonEmpty(eq.LongName, eq.ShortName),
		Price:            positive(eq.RegularMarketPrice),
		ChangePercent:    changePercent(eq.RegularMarketPrice, eq.RegularMarketPreviousClose, eq.RegularMarketChangePercent),
		FiftyTwoWeekHigh: positive(eq.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:  positive(eq.FiftyTwoWeekLow),
		TrailingPE:       nonZero(eq.TrailingPE),
		ForwardPE:        nonZero(eq.ForwardPE),
		PriceToBook:      nonZero(eq.PriceToBook),
		DividendYield:    nonZero(eq.TrailingAnnualDividendYield),
		FetchedAt:        time.Now().UTC(),
	}

	if eq.RegularMarketVolume > 0 {
		v := int64(eq.RegularMarketVolume)
		snap.Volume = &v
	}
	if eq.MarketCap > 0 {
		mc := float64(eq.MarketCap)
		snap.MarketCap = &mc
	}
	return snap
}

// Quotes returns the latest quotes for symbols in one request
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]contracts.MarketPrice, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	quotes, err := c.listQuote(symbols)
	if err != nil {
		return nil, contracts.Classify("yahoo quotes", err)
	}

	now := time.Now().UTC()
	prices := make([]contracts.MarketPrice, 0, len(quotes))
	for _, q := range quotes {
		if q == nil || q.RegularMarketPrice <= 0 {
			continue
		}
		prices = append(prices, contracts.MarketPrice{
			Symbol:        strings.ToUpper(q.Symbol),
			Price:         q.RegularMarketPrice,
			ChangePercent: changePercent(q.RegularMarketPrice, q.RegularMarketPreviousClose, q.RegularMarketChangePercent),
			UpdatedAt:     now,
		})
	}
	return prices, nil
}

// LatestPrices satisfies the market price refresher
func (c *Client) LatestPrices(ctx context.Context, symbols []string) ([]contracts.MarketPrice, error) {
	return c.Quotes(ctx, symbols)
}

// MarketCaps returns market capitalization per symbol (symbols without one are omitted)
func (c *Client) MarketCaps(ctx context.Context, symbols []string) (map[string]float64, error) {
	caps := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if err := c.wait(ctx); err != nil {
			return caps, err
		}
		eq, err := c.getEquity(s)
		if err != nil || eq == nil || eq.MarketCap <= 0 {
			c.logger.WithField("symbol", s).Debug("market cap unavailable")
			continue
		}
		caps[s] = float64(eq.MarketCap)
	}
	return caps, nil
}

// DailyCloses returns daily closing prices over the last lookback, oldest first
func (c *Client) DailyCloses(ctx context.Context, symbol string, lookback time.Duration) ([]float64, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	to := time.Now()
	closes, err := c.getCloses(symbol, to.Add(-lookback), to)
	if err != nil {
		return nil, contracts.Classify("yahoo chart", fmt.Errorf("%s: %w", symbol, err))
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, contracts.ErrNoData)
	}
	return closes, nil
}

// VIX returns the latest volatility index level
func (c *Client) VIX(ctx context.Context) (float64, error) {
	prices, err := c.Quotes(ctx, []string{VIXSymbol})
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("vix: %w", contracts.ErrNoData)
	}
	return prices[0].Price, nil
}

// changePercent prefers the computed value from the previous close
func changePercent(price, prevClose, reported float64) *float64 {
	if prevClose > 0 && price > 0 {
		v := (price - prevClose) / prevClose * 100
		return &v
	}
	if reported != 0 {
		return &reported
	}
	return nil
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
