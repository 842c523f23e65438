package alpaca

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// barsAPI and newsAPI are the parts of marketdata.Client used here
type barsAPI interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

type newsAPI interface {
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// Client provides bulk daily bars and news from the Alpaca data API
// ⭐ SSOT: Alpaca 호출은 이 클라이언트에서만
type Client struct {
	bars   barsAPI
	news   newsAPI
	logger *logger.Logger
}

// NewClient returns nil when no credentials are configured
func NewClient(apiKey, apiSecret, dataURL string, log *logger.Logger) *Client {
	if apiKey == "" || apiSecret == "" {
		return nil
	}

	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	mdc := marketdata.NewClient(opts)
	return &Client{bars: mdc, news: mdc, logger: log}
}

// LatestPrices returns last close and change % vs the previous session for each symbol
func (c *Client) LatestPrices(ctx context.Context, symbols []string) ([]contracts.MarketPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := time.Now()
	multi, err := c.bars.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     end.AddDate(0, 0, -7),
		End:       end,
		Feed:      "iex", // 무료 플랜은 SIP 최근 15분 조회 불가
	})
	if err != nil {
		return nil, contracts.Classify("alpaca bars", fmt.Errorf("GetMultiBars: %w", err))
	}

	return pricesFromBars(multi, time.Now().UTC()), nil
}

func pricesFromBars(multi map[string][]marketdata.Bar, now time.Time) []contracts.MarketPrice {
	prices := make([]contracts.MarketPrice, 0, len(multi))
	for symbol, bars := range multi {
		if len(bars) == 0 {
			continue
		}
		sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

		last := bars[len(bars)-1]
		if last.Close <= 0 {
			continue
		}

		mp := contracts.MarketPrice{
			Symbol:    strings.ToUpper(symbol),
			Price:     last.Close,
			UpdatedAt: now,
		}
		if len(bars) > 1 {
			prev := bars[len(bars)-2].Close
			if prev > 0 {
				chg := (last.Close - prev) / prev * 100
				mp.ChangePercent = &chg
			}
		}
		prices = append(prices, mp)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Symbol < prices[j].Symbol })
	return prices
}

// TickerNews returns up to limit headlines from the last week, newest first
func (c *Client) TickerNews(ctx context.Context, ticker string, limit int) ([]contracts.NewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := time.Now()
	items, err := c.news.GetNews(marketdata.GetNewsRequest{
		Symbols:    []string{strings.ToUpper(ticker)},
		Start:      end.AddDate(0, 0, -7),
		End:        end,
		TotalLimit: limit,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, contracts.Classify("alpaca news", fmt.Errorf("GetNews: %w", err))
	}

	out := make([]contracts.NewsItem, 0, len(items))
	for _, n := range items {
		if n.Headline == "" {
			continue
		}
		source := n.Source
		if source == "" {
			source = "alpaca"
		}
		out = append(out, contracts.NewsItem{
			Source:    source,
			Title:     n.Headline,
			Link:      n.URL,
			Published: n.CreatedAt.UTC(),
		})
	}
	return out, nil
}
