package wikipedia

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/stockread/pkg/httputil"
	"github.com/wonny/stockread/pkg/logger"
)

// Client reads the S&P 500 constituents table
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewClient creates a new constituents client
func NewClient(httpClient *httputil.Client, log *logger.Logger, url string) *Client {
	if url == "" {
		url = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
	}
	return &Client{httpClient: httpClient, logger: log, url: url}
}

// Blacklist holds delisted symbols that still linger in public lists
var Blacklist = map[string]bool{
	"ANSS":  true,
	"DISCA": true,
}

// SP500 returns the constituent symbols in Yahoo form (BRK.B → BRK-B).
// Falls back to the embedded list when the page cannot be fetched or parsed.
func (c *Client) SP500(ctx context.Context) []string {
	symbols, err := c.fetch(ctx)
	if err != nil || len(symbols) == 0 {
		c.logger.WithError(err).Warn("S&P 500 list unavailable, using fallback list")
		return CleanSymbols(Fallback)
	}
	return symbols
}

func (c *Client) fetch(ctx context.Context) ([]string, error) {
	body, err := c.httpClient.GetBytes(ctx, c.url)
	if err != nil {
		return nil, err
	}
	return parseConstituents(body)
}

func parseConstituents(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse constituents html: %w", err)
	}

	var raw []string
	doc.Find("table#constituents tbody tr").Each(func(_ int, row *goquery.Selection) {
		if sym := strings.TrimSpace(row.Find("td").First().Text()); sym != "" {
			raw = append(raw, sym)
		}
	})
	if len(raw) == 0 {
		return nil, fmt.Errorf("constituents table not found")
	}
	return CleanSymbols(raw), nil
}

// CleanSymbols upper-cases, maps '.' to '-', drops blacklisted and duplicate symbols
func CleanSymbols(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ".", "-"))
		if s == "" || Blacklist[s] || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Fallback is used when the constituents page is unreachable
var Fallback = []string{
	"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "GOOG", "META", "BRK.B", "AVGO", "TSLA",
	"LLY", "JPM", "V", "UNH", "XOM", "MA", "JNJ", "PG", "HD", "COST",
	"ABBV", "MRK", "ORCL", "CVX", "BAC", "KO", "PEP", "ADBE", "CRM", "NFLX",
	"AMD", "TMO", "WMT", "LIN", "ACN", "MCD", "CSCO", "ABT", "DHR", "INTC",
	"WFC", "DIS", "TXN", "PM", "VZ", "INTU", "QCOM", "CAT", "AMGN", "IBM",
	"GE", "NOW", "UNP", "SPGI", "HON", "LOW", "BA", "GS", "PFE", "RTX",
	"ISRG", "AMAT", "BKNG", "ELV", "T", "NEE", "SBUX", "PLD", "BLK", "MDT",
	"DE", "SYK", "TJX", "LMT", "GILD", "ADP", "MDLZ", "AXP", "CVS", "MMC",
	"ADI", "VRTX", "C", "SCHW", "REGN", "LRCX", "CB", "MO", "ZTS", "PGR",
	"SO", "CI", "BSX", "ETN", "MU", "FI", "DUK", "SLB", "EQIX", "ITW",
}
