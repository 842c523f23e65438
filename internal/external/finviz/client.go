package finviz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/httputil"
	"github.com/wonny/stockread/pkg/logger"
)

// Client scrapes the Finviz quote page for fundamentals, street data and headlines
// ⭐ SSOT: Finviz 스크래핑은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Finviz client
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://finviz.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Page is what one quote page yields
type Page struct {
	Snapshot *contracts.Snapshot
	News     []contracts.NewsItem
}

// Fetch downloads and parses the quote page of ticker.
// contracts.ErrNoData when the page has no snapshot table (unknown ticker).
func (c *Client) Fetch(ctx context.Context, ticker string) (*Page, error) {
	u := fmt.Sprintf("%s/quote.ashx?t=%s&p=d", c.baseURL, url.QueryEscape(ticker))

	body, err := c.httpClient.GetBytes(ctx, u)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return nil, fmt.Errorf("finviz %s: %w", ticker, contracts.ErrNoData)
		}
		return nil, contracts.Classify("finviz quote", err)
	}

	return parsePage(ticker, body, time.Now().UTC())
}

// Snapshot returns the fundamentals grid of the quote page
func (c *Client) Snapshot(ctx context.Context, ticker string) (*contracts.Snapshot, error) {
	page, err := c.Fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return page.Snapshot, nil
}

// TickerNews returns up to limit headlines from the quote page news table
func (c *Client) TickerNews(ctx context.Context, ticker string, limit int) ([]contracts.NewsItem, error) {
	page, err := c.Fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(page.News) > limit {
		return page.News[:limit], nil
	}
	return page.News, nil
}

func parsePage(ticker string, body []byte, now time.Time) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse finviz html: %w", err)
	}

	fields := parseSnapshotTable(doc)
	if len(fields) == 0 {
		return nil, fmt.Errorf("finviz %s: %w", ticker, contracts.ErrNoData)
	}

	snap := &contracts.Snapshot{
		Ticker:          strings.ToUpper(ticker),
		Price:           number(fields["Price"]),
		ChangePercent:   percentUnits(fields["Change"]),
		MarketCap:       number(fields["Market Cap"]),
		TrailingPE:      number(fields["P/E"]),
		ForwardPE:       number(fields["Forward P/E"]),
		PEG:             number(fields["PEG"]),
		PriceToBook:     number(fields["P/B"]),
		Beta:            number(fields["Beta"]),
		ROE:             fraction(fields["ROE"]),
		ProfitMargin:    fraction(fields["Profit Margin"]),
		OperatingMargin: fraction(fields["Oper. Margin"]),
		RevenueGrowth:   fraction(fields["Sales Q/Q"]),
		EarningsGrowth:  fraction(fields["EPS Q/Q"]),
		DebtToEquity:    number(fields["Debt/Eq"]),
		CurrentRatio:    number(fields["Current Ratio"]),
		DividendYield:   dividendYield(fields),
		PayoutRatio:     fraction(fields["Payout"]),
		AnalystRating:   RatingFromRecom(fields["Recom"]),
		TargetPrice:     number(fields["Target Price"]),
		ShortFloat:      fraction(firstField(fields, "Short Float", "Short Float / Ratio")),
		InsiderHeld:     fraction(fields["Insider Own"]),
		ShortRatio:      number(fields["Short Ratio"]),
		FetchedAt:       now,
	}

	if v := number(fields["Volume"]); v != nil {
		vol := int64(*v)
		snap.Volume = &vol
	}
	if lo, hi := rangeBounds(fields["52W Range"]); lo != nil {
		snap.FiftyTwoWeekLow, snap.FiftyTwoWeekHigh = lo, hi
	}

	snap.Sector, snap.Industry = parseClassification(doc)
	snap.Name = strings.TrimSpace(doc.Find("h2.quote-header_ticker-wrapper_company, .fullview-title b").First().Text())

	return &Page{Snapshot: snap, News: parseNews(doc, now)}, nil
}

// parseSnapshotTable reads the label/value cell pairs of the fundamentals grid
func parseSnapshotTable(doc *goquery.Document) map[string]string {
	fields := make(map[string]string)
	doc.Find("table.snapshot-table2 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := strings.TrimSpace(cells.Eq(i).Text())
			value := strings.TrimSpace(cells.Eq(i + 1).Text())
			if label != "" {
				fields[label] = value
			}
		}
	})
	return fields
}

// parseClassification reads sector and industry from the screener filter links
func parseClassification(doc *goquery.Document) (sector, industry string) {
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		switch {
		case sector == "" && strings.Contains(href, "f=sec_"):
			sector = text
		case industry == "" && strings.Contains(href, "f=ind_"):
			industry = text
		}
	})
	return sector, industry
}

// parseNews reads the headline table. Rows with only a time reuse the previous date.
func parseNews(doc *goquery.Document, now time.Time) []contracts.NewsItem {
	var (
		items   []contracts.NewsItem
		lastDay string
	)
	doc.Find("table#news-table tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a.tab-link-news").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}
		href, _ := link.Attr("href")

		stamp := strings.TrimSpace(row.Find("td").First().Text())
		published, day := parseNewsTime(stamp, lastDay, now)
		lastDay = day

		source := strings.Trim(strings.TrimSpace(row.Find(".news-link-right span").First().Text()), "()")
		items = append(items, contracts.NewsItem{
			Source:    source,
			Title:     title,
			Link:      href,
			Published: published,
		})
	})
	return items
}

// parseNewsTime handles "Jan-02-25 09:15AM", "Today 09:15AM" and bare "09:15AM"
func parseNewsTime(stamp, lastDay string, now time.Time) (time.Time, string) {
	parts := strings.Fields(stamp)
	day, clock := lastDay, ""
	switch len(parts) {
	case 2:
		day, clock = parts[0], parts[1]
	case 1:
		clock = parts[0]
	default:
		return now, lastDay
	}

	if day == "" || strings.EqualFold(day, "Today") {
		day = now.Format("Jan-02-06")
	}

	t, err := time.Parse("Jan-02-06 03:04PM", day+" "+clock)
	if err != nil {
		return now, day
	}
	return t, day
}

// RatingFromRecom maps the 1.0 (strong buy) .. 5.0 (strong sell) consensus to a label
func RatingFromRecom(raw string) string {
	v := number(raw)
	if v == nil {
		return ""
	}
	switch r := *v; {
	case r <= 1.5:
		return "strong buy"
	case r <= 2.5:
		return "buy"
	case r <= 3.5:
		return "hold"
	case r <= 4.5:
		return "sell"
	default:
		return "strong sell"
	}
}

func firstField(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			// "2.15% / 1.80" → "2.15%"
			if i := strings.Index(v, "/"); i > 0 {
				v = strings.TrimSpace(v[:i])
			}
			return v
		}
	}
	return ""
}

func dividendYield(fields map[string]string) *float64 {
	if v := fraction(fields["Dividend %"]); v != nil {
		return v
	}
	// "0.96 (0.42%)"
	raw := fields["Dividend TTM"]
	if i := strings.Index(raw, "("); i >= 0 {
		return fraction(strings.Trim(raw[i:], "()"))
	}
	return nil
}

func rangeBounds(raw string) (*float64, *float64) {
	parts := strings.Split(raw, " - ")
	if len(parts) != 2 {
		return nil, nil
	}
	lo, hi := number(parts[0]), number(parts[1])
	if lo == nil || hi == nil {
		return nil, nil
	}
	return lo, hi
}

// number parses "1,234.5", "2.95T", "850.2B", "12.1M", "3K"; "-" and "" are nil
func number(raw string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" || s == "-" {
		return nil
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'T':
		mult = 1e12
	case 'B':
		mult = 1e9
	case 'M':
		mult = 1e6
	case 'K':
		mult = 1e3
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return nil
	}
	v *= mult
	return &v
}

// fraction parses "12.5%" as 0.125
func fraction(raw string) *float64 {
	v := number(raw)
	if v == nil {
		return nil
	}
	f := *v / 100
	return &f
}

// percentUnits parses "-1.25%" as -1.25
func percentUnits(raw string) *float64 {
	return number(raw)
}
