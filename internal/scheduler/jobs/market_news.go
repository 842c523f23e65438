package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// DefaultNewsTopics are the market-wide feeds shown on the dashboard
var DefaultNewsTopics = []string{"Stock Market", "Economy", "Crypto", "Federal Reserve"}

// newsPerTopic is the number of headlines kept per topic
const newsPerTopic = 3

// NewsSearcher runs a headline search
type NewsSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]contracts.NewsItem, error)
}

// MarketNewsJob replaces market_news hourly
type MarketNewsJob struct {
	searcher NewsSearcher
	store    contracts.MarketStore
	topics   []string
	logger   *logger.Logger
}

// NewMarketNewsJob creates a new market news job. nil topics means DefaultNewsTopics.
func NewMarketNewsJob(searcher NewsSearcher, store contracts.MarketStore, topics []string, log *logger.Logger) *MarketNewsJob {
	if len(topics) == 0 {
		topics = DefaultNewsTopics
	}
	return &MarketNewsJob{
		searcher: searcher,
		store:    store,
		topics:   topics,
		logger:   log.WithComponent("market_news"),
	}
}

// Name returns the job name
func (j *MarketNewsJob) Name() string {
	return "market_news"
}

// Schedule returns the cron schedule (hourly)
func (j *MarketNewsJob) Schedule() string {
	return "0 0 * * * *"
}

// Run collects each topic and swaps the table. Nothing is replaced when every topic is empty.
func (j *MarketNewsJob) Run(ctx context.Context) error {
	var rows []contracts.MarketNews
	for _, topic := range j.topics {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		items, err := j.searcher.Search(ctx, topic, newsPerTopic)
		if err != nil {
			j.logger.WithError(err).WithField("topic", topic).Warn("News topic failed")
			continue
		}
		if len(items) > newsPerTopic {
			items = items[:newsPerTopic]
		}
		for _, it := range items {
			rows = append(rows, contracts.MarketNews{
				Title:       it.Title,
				Source:      it.Source,
				URL:         it.Link,
				Topic:       topic,
				PublishedAt: it.Published,
			})
		}
	}

	if len(rows) == 0 {
		return fmt.Errorf("market news: %w", contracts.ErrNoData)
	}
	if err := j.store.ReplaceMarketNews(ctx, rows); err != nil {
		return fmt.Errorf("replace market news: %w", err)
	}

	j.logger.WithField("count", len(rows)).Info("Market news refreshed")
	return nil
}
