package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

type staticSymbols []string

func (s staticSymbols) SP500(context.Context) []string { return s }

type fakePrices struct {
	fail  map[string]bool // 청크 첫 종목 기준
	calls int
}

func (f *fakePrices) LatestPrices(_ context.Context, symbols []string) ([]contracts.MarketPrice, error) {
	f.calls++
	if f.fail[symbols[0]] {
		return nil, errors.New("upstream 503")
	}
	out := make([]contracts.MarketPrice, len(symbols))
	for i, s := range symbols {
		out[i] = contracts.MarketPrice{Symbol: s, Price: 10}
	}
	return out, nil
}

type memMarket struct {
	prices     []contracts.MarketPrice
	news       []contracts.MarketNews
	trendErr   error
	trendCalls int
}

func (m *memMarket) UpsertMarketPrices(_ context.Context, prices []contracts.MarketPrice) (int, error) {
	m.prices = append(m.prices, prices...)
	return len(prices), nil
}

func (m *memMarket) ReplaceMarketNews(_ context.Context, items []contracts.MarketNews) error {
	m.news = items
	return nil
}

func (m *memMarket) RefreshTrending(context.Context) error {
	m.trendCalls++
	return m.trendErr
}

func tickers(n int) staticSymbols {
	out := make(staticSymbols, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%03d", i)
	}
	return out
}

func TestMarketPricesJob_ChunksOf50(t *testing.T) {
	src := &fakePrices{}
	store := &memMarket{}
	job := NewMarketPricesJob(tickers(120), src, nil, store, nil, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, src.calls)
	assert.Len(t, store.prices, 120)
}

func TestMarketPricesJob_FallbackAndSkip(t *testing.T) {
	primary := &fakePrices{fail: map[string]bool{"S000": true, "S050": true}}
	fallback := &fakePrices{fail: map[string]bool{"S050": true}}
	store := &memMarket{}
	job := NewMarketPricesJob(tickers(120), primary, fallback, store, nil, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	// 첫 청크는 fallback, 두 번째 청크는 둘 다 실패해서 건너뜀
	assert.Len(t, store.prices, 70)
	assert.Equal(t, 2, fallback.calls)
}

func TestMarketPricesJob_AllFailed(t *testing.T) {
	primary := &fakePrices{fail: map[string]bool{"S000": true}}
	job := NewMarketPricesJob(tickers(10), primary, nil, &memMarket{}, nil, logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}

type closedMarket struct{}

func (closedMarket) IsOpen(time.Time) bool { return false }

func TestMarketPricesJob_ClosedMarketAfterFirstRun(t *testing.T) {
	src := &fakePrices{}
	job := NewMarketPricesJob(tickers(10), src, nil, &memMarket{}, closedMarket{}, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, src.calls)
}

type fakeSearch struct {
	failTopic string
}

func (f fakeSearch) Search(_ context.Context, query string, limit int) ([]contracts.NewsItem, error) {
	if query == f.failTopic {
		return nil, errors.New("timeout")
	}
	items := make([]contracts.NewsItem, limit+2)
	for i := range items {
		items[i] = contracts.NewsItem{Title: fmt.Sprintf("%s %d", query, i), Source: "Wire", Link: "https://example.com"}
	}
	return items, nil
}

func TestMarketNewsJob(t *testing.T) {
	store := &memMarket{}
	job := NewMarketNewsJob(fakeSearch{failTopic: "Crypto"}, store, nil, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, store.news, 9) // 4 토픽 중 3개 × 3건
	assert.Equal(t, "Stock Market", store.news[0].Topic)
	assert.Equal(t, "https://example.com", store.news[0].URL)
}

func TestMarketNewsJob_NothingKeepsTable(t *testing.T) {
	store := &memMarket{news: []contracts.MarketNews{{Title: "old"}}}
	job := NewMarketNewsJob(fakeSearch{failTopic: "only"}, store, []string{"only"}, logger.Nop())

	assert.Error(t, job.Run(context.Background()))
	assert.Len(t, store.news, 1)
}

func TestBreakerDelay(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 0},
		{4, 0},
		{5, 60 * time.Second},
		{6, 120 * time.Second},
		{7, 240 * time.Second},
		{8, 480 * time.Second},
		{20, 480 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BreakerDelay(tt.failures), "failures=%d", tt.failures)
	}
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func TestMaintenanceJob_CircuitBreaker(t *testing.T) {
	store := &memMarket{trendErr: errors.New("db down")}
	job := NewMaintenanceJob(store, logger.Nop())
	clock := &stepClock{t: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)}
	job.clock = clock

	for i := 0; i < 5; i++ {
		require.NoError(t, job.Run(context.Background()))
	}
	assert.Equal(t, 5, store.trendCalls)
	assert.Equal(t, 5, job.Failures())

	// 차단 중에는 호출 안 함
	clock.t = clock.t.Add(30 * time.Second)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 5, store.trendCalls)

	// 차단 해제 후 성공하면 리셋
	clock.t = clock.t.Add(31 * time.Second)
	store.trendErr = nil
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 6, store.trendCalls)
	assert.Equal(t, 0, job.Failures())
}

type fakeRefresher struct{ err error }

func (f fakeRefresher) Refresh(context.Context) (*contracts.Universe, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.Universe{
		Ranked: []string{"AAA", "BBB"},
		Tiers:  []contracts.Tier{{Name: contracts.TierTop, Symbols: []string{"AAA", "BBB"}, BatchSize: 5}},
	}, nil
}

func TestUniverseJob(t *testing.T) {
	assert.NoError(t, NewUniverseJob(fakeRefresher{}, logger.Nop()).Run(context.Background()))
	assert.Error(t, NewUniverseJob(fakeRefresher{err: errors.New("wiki down")}, logger.Nop()).Run(context.Background()))
}
