package stocktwits

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/httputil"
	"github.com/wonny/stockread/pkg/logger"
)

// Client reads the public StockTwits symbol stream
// ⭐ SSOT: StockTwits 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new StockTwits client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.stocktwits.com/api/2"
	}
	return &Client{httpClient: httpClient, logger: log, baseURL: strings.TrimRight(baseURL, "/")}
}

type streamResponse struct {
	Messages []message `json:"messages"`
}

type message struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	User      struct {
		Username string `json:"username"`
	} `json:"user"`
}

// Posts returns cleaned posts among the latest limit messages.
// Rate limiting (429) is logged and yields an empty list.
func (c *Client) Posts(ctx context.Context, ticker string, limit int) ([]contracts.SocialPost, error) {
	u := fmt.Sprintf("%s/streams/symbol/%s.json", c.baseURL, url.PathEscape(strings.ToUpper(ticker)))

	var resp streamResponse
	if err := c.httpClient.GetJSON(ctx, u, &resp); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.Code == 429 {
			c.logger.WithField("ticker", ticker).Warn("Rate limited by StockTwits")
			return []contracts.SocialPost{}, nil
		}
		return nil, contracts.Classify("stocktwits", err)
	}

	return filterMessages(resp.Messages, limit), nil
}

// filterMessages keeps messages with real sentences among the first limit.
// Drops short bodies, bodies without a space and cashtag spam (more than three '$').
func filterMessages(msgs []message, limit int) []contracts.SocialPost {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	posts := make([]contracts.SocialPost, 0, len(msgs))
	for _, m := range msgs {
		body := strings.TrimSpace(m.Body)
		if len(body) < 15 || !strings.Contains(body, " ") {
			continue
		}
		if strings.Count(body, "$") > 3 {
			continue
		}

		created, _ := time.Parse(time.RFC3339, m.CreatedAt)
		posts = append(posts, contracts.SocialPost{
			User:      m.User.Username,
			Body:      body,
			CreatedAt: created,
		})
	}
	return posts
}
