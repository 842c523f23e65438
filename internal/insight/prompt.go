package insight

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/stockread/internal/contracts"
)

const (
	na             = "N/A"
	noNews         = "No recent news."
	noThesis       = "No user thesis provided."
	promptNewsMax  = 3
	promptPostsMax = 5
)

const systemPrompt = `You are the chief investment officer of a retail research desk.
You score stocks from evidence only and then compare the evidence with what a retail investor wrote.
The investor's opinion never moves the score.
Answer with a single JSON object and nothing else.`

func fmtFloat(v *float64, places int) string {
	if v == nil {
		return na
	}
	return strconv.FormatFloat(*v, 'f', places, 64)
}

func fmtPrice(v *float64) string {
	if v == nil {
		return na
	}
	return "$" + strconv.FormatFloat(*v, 'f', 2, 64)
}

// fmtPct renders a fraction (0.125) as "12.5%"
func fmtPct(v *float64) string {
	if v == nil {
		return na
	}
	return strconv.FormatFloat(*v*100, 'f', 1, 64) + "%"
}

// fmtCap renders a market capitalization as "2.87T" / "415.2B" / "980.0M"
func fmtCap(v *float64) string {
	if v == nil {
		return na
	}
	c := *v
	switch {
	case c >= 1e12:
		return fmt.Sprintf("%.2fT", c/1e12)
	case c >= 1e9:
		return fmt.Sprintf("%.1fB", c/1e9)
	case c >= 1e6:
		return fmt.Sprintf("%.1fM", c/1e6)
	default:
		return strconv.FormatFloat(c, 'f', 0, 64)
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

// distance returns how far price sits below high / above low, in percent
func distance(price, high, low *float64) (fromHigh, fromLow string) {
	fromHigh, fromLow = na, na
	if price == nil {
		return
	}
	if high != nil && *high > 0 {
		fromHigh = strconv.FormatFloat((*high-*price) / *high * 100, 'f', 1, 64) + "%"
	}
	if low != nil && *low > 0 {
		fromLow = "+" + strconv.FormatFloat((*price-*low) / *low * 100, 'f', 1, 64) + "%"
	}
	return
}

// BuildPrompt renders the single-ticker analysis prompt. Absent values render as N/A.
func BuildPrompt(req contracts.AnalysisRequest) string {
	snap := req.Snapshot
	if snap == nil {
		snap = &contracts.Snapshot{Ticker: req.Ticker}
	}

	var b strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	w("Produce an objective market verdict for %s, then judge the investor's thesis against it.", req.Ticker)
	w("")

	// 1. 매크로
	w("## Market backdrop")
	w("- Volatility mood: %s (VIX: %s)", orNA(req.Macro.Sentiment), fmtFloat(req.Macro.VIX, 2))
	w("")

	// 2. 펀더멘털
	w("## Company")
	w("- Name: %s", orNA(snap.Name))
	w("- Sector / Industry: %s / %s", orNA(snap.Sector), orNA(snap.Industry))
	w("")
	w("## Valuation")
	w("- Price: %s (day change: %s)", fmtPrice(snap.Price), changeText(snap.ChangePercent))
	w("- Market cap: %s", fmtCap(snap.MarketCap))
	w("- Trailing P/E: %s, Forward P/E: %s, PEG: %s, P/B: %s",
		fmtFloat(snap.TrailingPE, 2), fmtFloat(snap.ForwardPE, 2), fmtFloat(snap.PEG, 2), fmtFloat(snap.PriceToBook, 2))
	w("- Beta: %s", fmtFloat(snap.Beta, 2))
	w("")
	w("## Profitability and growth")
	w("- ROE: %s, Profit margin: %s, Operating margin: %s",
		fmtPct(snap.ROE), fmtPct(snap.ProfitMargin), fmtPct(snap.OperatingMargin))
	w("- Revenue growth: %s, Earnings growth: %s", fmtPct(snap.RevenueGrowth), fmtPct(snap.EarningsGrowth))
	w("- Debt/Equity: %s, Current ratio: %s", fmtFloat(snap.DebtToEquity, 2), fmtFloat(snap.CurrentRatio, 2))
	w("- Dividend yield: %s, Payout ratio: %s", fmtPct(snap.DividendYield), fmtPct(snap.PayoutRatio))
	w("")

	fromHigh, fromLow := distance(snap.Price, snap.FiftyTwoWeekHigh, snap.FiftyTwoWeekLow)
	w("## 52-week range")
	w("- High: %s, Low: %s", fmtPrice(snap.FiftyTwoWeekHigh), fmtPrice(snap.FiftyTwoWeekLow))
	w("- Below high: %s, Above low: %s", fromHigh, fromLow)
	w("")

	// 3. 월가 데이터
	w("## Street")
	w("- Analyst target: %s, Consensus: %s", fmtPrice(snap.TargetPrice), orNA(snap.AnalystRating))
	w("- Short float: %s, Short ratio: %s, Insider ownership: %s",
		fmtPct(snap.ShortFloat), fmtFloat(snap.ShortRatio, 2), fmtPct(snap.InsiderHeld))
	w("")

	// 4. 기술적 지표
	w("## Technicals")
	if t := req.Technicals; t != nil {
		w("- Trend: %s", orNA(t.Trend))
		w("- RSI(14): %s (%s)", fmtFloat(t.RSI, 2), orNA(t.RSISignal))
		w("- SMA20: %s, SMA50: %s", fmtPrice(t.SMA20), fmtPrice(t.SMA50))
	} else {
		w("- Trend: %s", na)
		w("- RSI(14): %s", na)
	}
	w("")

	// 5. 뉴스 / 소셜
	w("## Headlines")
	w("%s", newsText(req.News))
	if len(req.Social) > 0 {
		w("")
		w("## Retail chatter")
		for i, p := range req.Social {
			if i >= promptPostsMax {
				break
			}
			w("- %s", p.Body)
		}
	}
	w("")

	w("## Scoring")
	w("Weigh the evidence: analyst consensus and target upside 40%%, technicals 25%%, headlines 20%%, fundamentals 15%%.")
	w("- Upside of 15%% or more to the analyst target supports 70-85; trading at or above target caps the score near 55.")
	w("- Mega-cap growth names with a Buy consensus and PEG under 2 carry a premium multiple, not an overvaluation.")
	w("- ROE above 15%% adds points, ROE under 10%% or Debt/Equity above 2 (outside financials) subtracts.")
	w("- Near the 52-week low with a positive consensus is deep value; with a negative consensus it is a falling knife.")
	w("- VIX above 30 trims bullish scores by 10-15 except for defensive sectors.")
	w("- Short float above 20%% raises risk.")
	w("")

	w("## Investor thesis")
	w("%q", userText(req.UserText))
	w("Classify the investor as Bullish, Bearish or Neutral and say whether the evidence agrees.")
	w("")

	w("## Output")
	w(`{"user_thesis": "Bullish|Bearish|Neutral", "summary": "2-3 sentences: score, primary driver, key data, comparison with the investor", "sentiment_score": 0-100, "risk_level": "Low|Medium|High|Extreme", "tags": ["Sector", "Signal", "Trait"]}`)

	return b.String()
}

func changeText(v *float64) string {
	if v == nil {
		return na
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

func newsText(items []contracts.NewsItem) string {
	if len(items) == 0 {
		return noNews
	}
	lines := make([]string, 0, promptNewsMax)
	for i, n := range items {
		if i >= promptNewsMax {
			break
		}
		src := n.Source
		if src == "" {
			src = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", src, n.Title))
	}
	return strings.Join(lines, "\n")
}

func userText(s string) string {
	if strings.TrimSpace(s) == "" {
		return noThesis
	}
	return s
}

// BuildBatchPrompt renders one prompt covering every ticker of a chunk
func BuildBatchPrompt(req contracts.BatchRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Score these %d stocks on objective market strength.\n", len(req.Items))
	if req.Macro.VIX != nil {
		fmt.Fprintf(&b, "VIX: %s (%s)\n", fmtFloat(req.Macro.VIX, 2), req.Macro.Sentiment)
	}
	b.WriteByte('\n')

	for _, it := range req.Items {
		s := it.Snapshot
		if s == nil {
			s = &contracts.Snapshot{}
		}
		fmt.Fprintf(&b, "%s: Price %s, P/E %s, Market cap %s, Beta %s, Short float %s, Analyst %s",
			it.Ticker, fmtPrice(s.Price), fmtFloat(s.TrailingPE, 2), fmtCap(s.MarketCap),
			fmtFloat(s.Beta, 2), fmtPct(s.ShortFloat), orNA(s.AnalystRating))
		if it.Technicals != nil {
			fmt.Fprintf(&b, ", Trend %s, RSI %s", orNA(it.Technicals.Trend), fmtFloat(it.Technicals.RSI, 1))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nFor each stock give score (0-100), risk (Low/Medium/High/Extreme) and a one-sentence summary.\n")
	b.WriteString(`Respond with JSON only, keyed by ticker: {"TICKER": {"score": 75, "risk": "Medium", "summary": "..."}}`)
	b.WriteByte('\n')
	return b.String()
}

// SystemPrompt is sent as the system instruction of every analysis call
func SystemPrompt() string { return systemPrompt }
