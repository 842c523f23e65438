package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

func newTestClient() *Client {
	return NewClient(nil, logger.Nop())
}

func TestSnapshot(t *testing.T) {
	c := newTestClient()
	c.getEquity = func(symbol string) (*finance.Equity, error) {
		eq := &finance.Equity{
			LongName:                    "Acme Corp",
			TrailingPE:                  21.5,
			MarketCap:                   2_500_000_000,
			TrailingAnnualDividendYield: 0.012,
		}
		eq.Symbol = symbol
		eq.RegularMarketPrice = 110
		eq.RegularMarketPreviousClose = 100
		eq.RegularMarketVolume = 12345
		return eq, nil
	}

	snap, err := c.Snapshot(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "ACME", snap.Ticker)
	assert.Equal(t, "Acme Corp", snap.Name)
	require.NotNil(t, snap.Price)
	assert.Equal(t, 110.0, *snap.Price)
	require.NotNil(t, snap.ChangePercent)
	assert.InDelta(t, 10.0, *snap.ChangePercent, 1e-9)
	assert.Equal(t, int64(12345), *snap.Volume)
	assert.Equal(t, 2.5e9, *snap.MarketCap)
	assert.Nil(t, snap.ForwardPE)
}

func TestSnapshot_NoData(t *testing.T) {
	c := newTestClient()
	c.getEquity = func(string) (*finance.Equity, error) { return nil, nil }

	_, err := c.Snapshot(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestSnapshot_UpstreamError(t *testing.T) {
	c := newTestClient()
	c.getEquity = func(string) (*finance.Equity, error) { return nil, errors.New("remote-error: 429 Too Many Requests") }

	_, err := c.Snapshot(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, contracts.KindRateLimited, contracts.KindOf(err))
}

func TestSnapshot_CancelledContext(t *testing.T) {
	c := newTestClient()
	called := false
	c.getEquity = func(string) (*finance.Equity, error) { called = true; return nil, nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Snapshot(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestQuotes(t *testing.T) {
	c := newTestClient()
	c.listQuote = func(symbols []string) ([]*finance.Quote, error) {
		return []*finance.Quote{
			{Symbol: "aapl", RegularMarketPrice: 200, RegularMarketPreviousClose: 190},
			{Symbol: "DEAD", RegularMarketPrice: 0},
			nil,
		}, nil
	}

	prices, err := c.Quotes(context.Background(), []string{"AAPL", "DEAD"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "AAPL", prices[0].Symbol)
	assert.InDelta(t, 5.263, *prices[0].ChangePercent, 0.001)
}

func TestVIX(t *testing.T) {
	c := newTestClient()
	c.listQuote = func(symbols []string) ([]*finance.Quote, error) {
		assert.Equal(t, []string{VIXSymbol}, symbols)
		return []*finance.Quote{{Symbol: VIXSymbol, RegularMarketPrice: 17.3}}, nil
	}

	v, err := c.VIX(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17.3, v)
}

func TestDailyCloses(t *testing.T) {
	c := newTestClient()
	c.getCloses = func(symbol string, from, to time.Time) ([]float64, error) {
		assert.True(t, to.Sub(from) >= 364*24*time.Hour)
		return nil, nil
	}

	_, err := c.DailyCloses(context.Background(), "ACME", 365*24*time.Hour)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestChangePercent(t *testing.T) {
	assert.Nil(t, changePercent(0, 0, 0))
	assert.Equal(t, 1.5, *changePercent(10, 0, 1.5))
	assert.InDelta(t, -50.0, *changePercent(5, 10, 3), 1e-9)
}
