package googlenews

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/httputil"
	"github.com/wonny/stockread/pkg/logger"
)

// Client searches the Google News RSS feed
// ⭐ SSOT: Google News RSS 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Google News client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://news.google.com/rss/search"
	}
	return &Client{httpClient: httpClient, logger: log, baseURL: baseURL}
}

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Source  string `xml:"source"`
}

// TickerNews returns up to limit recent headlines for "<ticker> stock"
func (c *Client) TickerNews(ctx context.Context, ticker string, limit int) ([]contracts.NewsItem, error) {
	return c.Search(ctx, ticker+" stock", limit)
}

// Search returns up to limit headlines for a free-text query, newest first as served
func (c *Client) Search(ctx context.Context, query string, limit int) ([]contracts.NewsItem, error) {
	params := url.Values{}
	params.Set("q", query+" when:7d")
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	body, err := c.httpClient.GetBytes(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, contracts.Classify("google news", err)
	}

	items, err := parseFeed(body)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func parseFeed(body []byte) ([]contracts.NewsItem, error) {
	var rss rssResponse
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	items := make([]contracts.NewsItem, 0, len(rss.Channel.Items))
	for _, it := range rss.Channel.Items {
		title, source := splitTitle(html.UnescapeString(it.Title))
		if it.Source != "" {
			source = strings.TrimSpace(it.Source)
		}
		if title == "" {
			continue
		}

		published, err := time.Parse(time.RFC1123Z, it.PubDate)
		if err != nil {
			published, err = time.Parse(time.RFC1123, it.PubDate)
			if err != nil {
				published = time.Time{}
			}
		}

		items = append(items, contracts.NewsItem{
			Source:    source,
			Title:     title,
			Link:      strings.TrimSpace(it.Link),
			Published: published.UTC(),
		})
	}
	return items, nil
}

// splitTitle turns "Headline - Publisher" into its parts
func splitTitle(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.LastIndex(raw, " - "); idx > 0 {
		return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+3:])
	}
	return raw, ""
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup from RSS descriptions
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}
