package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// PriceChunkSize is the number of symbols per quote request
const PriceChunkSize = 50

// SymbolSource lists the symbols to price (S&P 500)
type SymbolSource interface {
	SP500(ctx context.Context) []string
}

// PriceSource returns latest prices for a batch of symbols
type PriceSource interface {
	LatestPrices(ctx context.Context, symbols []string) ([]contracts.MarketPrice, error)
}

// SessionGate reports whether the market is trading
type SessionGate interface {
	IsOpen(t time.Time) bool
}

// MarketPricesJob refreshes market_prices for the index every 5 minutes
// ⭐ SSOT: 시세 테이블 갱신은 이 Job에서만
type MarketPricesJob struct {
	symbols  SymbolSource
	primary  PriceSource
	fallback PriceSource // optional
	store    contracts.MarketStore
	hours    SessionGate // optional; closed market → skip after first run
	logger   *logger.Logger

	ranOnce bool
}

// NewMarketPricesJob creates a new market prices job
func NewMarketPricesJob(symbols SymbolSource, primary, fallback PriceSource, store contracts.MarketStore, hours SessionGate, log *logger.Logger) *MarketPricesJob {
	return &MarketPricesJob{
		symbols:  symbols,
		primary:  primary,
		fallback: fallback,
		store:    store,
		hours:    hours,
		logger:   log.WithComponent("market_prices"),
	}
}

// Name returns the job name
func (j *MarketPricesJob) Name() string {
	return "market_prices"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *MarketPricesJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run fetches prices chunk by chunk. A failed chunk is skipped.
func (j *MarketPricesJob) Run(ctx context.Context) error {
	if j.hours != nil && j.ranOnce && !j.hours.IsOpen(time.Now()) {
		j.logger.Debug("Market closed, skipping price refresh")
		return nil
	}

	symbols := j.symbols.SP500(ctx)
	if len(symbols) == 0 {
		return fmt.Errorf("market prices: %w", contracts.ErrNoData)
	}

	var prices []contracts.MarketPrice
	failed := 0
	for start := 0; start < len(symbols); start += PriceChunkSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := start + PriceChunkSize
		if end > len(symbols) {
			end = len(symbols)
		}

		got, err := j.fetch(ctx, symbols[start:end])
		if err != nil {
			failed++
			j.logger.WithError(err).WithField("offset", start).Warn("Price chunk failed")
			continue
		}
		prices = append(prices, got...)
	}

	if len(prices) == 0 {
		return fmt.Errorf("market prices: no quotes (%d chunks failed)", failed)
	}

	saved, err := j.store.UpsertMarketPrices(ctx, prices)
	if err != nil {
		return fmt.Errorf("save market prices: %w", err)
	}
	j.ranOnce = true

	j.logger.WithFields(map[string]interface{}{
		"symbols":       len(symbols),
		"saved":         saved,
		"failed_chunks": failed,
	}).Info("Market prices refreshed")
	return nil
}

func (j *MarketPricesJob) fetch(ctx context.Context, chunk []string) ([]contracts.MarketPrice, error) {
	prices, err := j.primary.LatestPrices(ctx, chunk)
	if err == nil && len(prices) > 0 {
		return prices, nil
	}
	if j.fallback == nil {
		if err == nil {
			err = contracts.ErrNoData
		}
		return nil, err
	}
	if err != nil {
		j.logger.WithError(err).Debug("Primary price source failed, trying fallback")
	}
	return j.fallback.LatestPrices(ctx, chunk)
}
