package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

type fakeAPI struct {
	bars map[string][]marketdata.Bar
	news []marketdata.News
	err  error
	req  marketdata.GetNewsRequest
}

func (f *fakeAPI) GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	return f.bars, f.err
}

func (f *fakeAPI) GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error) {
	f.req = req
	return f.news, f.err
}

func TestNewClient_NoCredentials(t *testing.T) {
	assert.Nil(t, NewClient("", "", "", logger.Nop()))
}

func TestLatestPrices(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 21, 0, 0, 0, time.UTC) }
	api := &fakeAPI{bars: map[string][]marketdata.Bar{
		"msft": {{Timestamp: day(3), Close: 110}, {Timestamp: day(2), Close: 100}},
		"solo": {{Timestamp: day(3), Close: 5}},
		"none": {},
	}}
	c := &Client{bars: api, news: api, logger: logger.Nop()}

	prices, err := c.LatestPrices(context.Background(), []string{"MSFT", "SOLO", "NONE"})
	require.NoError(t, err)
	require.Len(t, prices, 2)

	assert.Equal(t, "MSFT", prices[0].Symbol)
	assert.Equal(t, 110.0, prices[0].Price)
	assert.InDelta(t, 10.0, *prices[0].ChangePercent, 1e-9)

	assert.Equal(t, "SOLO", prices[1].Symbol)
	assert.Nil(t, prices[1].ChangePercent)
}

func TestLatestPrices_Error(t *testing.T) {
	api := &fakeAPI{err: errors.New("status 429: too many requests")}
	c := &Client{bars: api, news: api, logger: logger.Nop()}

	_, err := c.LatestPrices(context.Background(), []string{"MSFT"})
	require.Error(t, err)
	assert.Equal(t, contracts.KindRateLimited, contracts.KindOf(err))
}

func TestTickerNews(t *testing.T) {
	api := &fakeAPI{news: []marketdata.News{
		{Headline: "Acme raises guidance", Source: "benzinga", URL: "https://x/1", CreatedAt: time.Now()},
		{Headline: ""},
	}}
	c := &Client{bars: api, news: api, logger: logger.Nop()}

	items, err := c.TickerNews(context.Background(), "acme", 3)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "benzinga", items[0].Source)
	assert.Equal(t, []string{"ACME"}, api.req.Symbols)
	assert.Equal(t, 3, api.req.TotalLimit)
}
