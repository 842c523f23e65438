package contracts

import "time"

// Snapshot is a point-in-time view of price and fundamentals for one ticker.
// Optional values are nil when the provider did not report them or they failed validation.
// ⭐ SSOT: Gateway → Generator / Persistence 시장 데이터 전달
type Snapshot struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name,omitempty"`

	Price         *float64 `json:"price"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Volume        *int64   `json:"volume,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`

	// Valuation
	TrailingPE  *float64 `json:"trailing_pe,omitempty"`
	ForwardPE   *float64 `json:"forward_pe,omitempty"`
	PEG         *float64 `json:"peg,omitempty"`
	PriceToBook *float64 `json:"price_to_book,omitempty"`
	Beta        *float64 `json:"beta,omitempty"`

	// Quality (fractions: 0.12 = 12%)
	ROE             *float64 `json:"roe,omitempty"`
	ProfitMargin    *float64 `json:"profit_margin,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	RevenueGrowth   *float64 `json:"revenue_growth,omitempty"`
	EarningsGrowth  *float64 `json:"earnings_growth,omitempty"`
	DebtToEquity    *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio    *float64 `json:"current_ratio,omitempty"`
	DividendYield   *float64 `json:"dividend_yield,omitempty"`
	PayoutRatio     *float64 `json:"payout_ratio,omitempty"`

	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`

	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`

	// Street
	AnalystRating string   `json:"analyst_rating,omitempty"`
	TargetPrice   *float64 `json:"target_price,omitempty"`
	ShortFloat    *float64 `json:"short_float,omitempty"`
	InsiderHeld   *float64 `json:"insider_held,omitempty"`
	ShortRatio    *float64 `json:"short_ratio,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// HasPrice reports whether the snapshot carries a usable price
func (s *Snapshot) HasPrice() bool {
	return s != nil && s.Price != nil
}

// Technicals are indicators derived from daily closes
type Technicals struct {
	RSI       *float64 `json:"rsi,omitempty"`
	RSISignal string   `json:"rsi_signal"`
	SMA20     *float64 `json:"sma_20,omitempty"`
	SMA50     *float64 `json:"sma_50,omitempty"`
	Trend     string   `json:"trend"`
}

// NewsItem is one headline
type NewsItem struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Link      string    `json:"link,omitempty"`
	Published time.Time `json:"published"`
}

// SocialPost is one retail chatter message (StockTwits stream)
type SocialPost struct {
	User      string    `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// MacroContext is the market-wide volatility backdrop
type MacroContext struct {
	VIX       *float64 `json:"vix,omitempty"`
	Sentiment string   `json:"sentiment"`
}

// MacroUnknown is returned when the volatility index cannot be fetched
const MacroUnknown = "Unknown"

// MarketPrice is one row of market_prices
type MarketPrice struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MarketNews is one row of market_news
type MarketNews struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Topic       string    `json:"topic"`
	PublishedAt time.Time `json:"published_at"`
}
