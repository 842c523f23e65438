package marketdata

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wonny/stockread/internal/contracts"
)

const (
	maxPrice     = 1_000_000
	maxRatio     = 10_000
	maxPercent   = 10 // 1000%
	maxChangePct = 1000
	maxStringLen = 500
	maxLabelLen  = 200
)

var validRatings = map[string]bool{
	"buy":          true,
	"strong buy":   true,
	"hold":         true,
	"sell":         true,
	"strong sell":  true,
	"underperform": true,
	"outperform":   true,
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// Price accepts 0..1,000,000 rounded to cents
func Price(v *float64) *float64 {
	if !finite(v) || *v < 0 || *v > maxPrice {
		return nil
	}
	r := round(*v, 2)
	return &r
}

// Ratio accepts |x| <= 10,000 rounded to 4 places
func Ratio(v *float64) *float64 {
	if !finite(v) || math.Abs(*v) > maxRatio {
		return nil
	}
	r := round(*v, 4)
	return &r
}

// Percentage normalizes to a fraction. Values above 1 are read as percent units.
func Percentage(v *float64) *float64 {
	if !finite(v) {
		return nil
	}
	pct := *v
	if pct > 1 {
		pct /= 100
	}
	if math.Abs(pct) > maxPercent {
		return nil
	}
	r := round(pct, 6)
	return &r
}

// ChangePercent keeps percent units (1.5 = +1.5%) and drops implausible moves
func ChangePercent(v *float64) *float64 {
	if !finite(v) || *v < -100 || *v > maxChangePct {
		return nil
	}
	r := round(*v, 2)
	return &r
}

// Recommendation lower-cases a rating and keeps it only when recognized
func Recommendation(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", " ")
	if validRatings[v] {
		return v
	}
	return ""
}

// SanitizeString strips control characters and truncates to limit runes
func SanitizeString(s string, limit int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// Normalize returns a copy of snap with every field validated.
// A snapshot without a usable price is not data.
func Normalize(snap *contracts.Snapshot) (*contracts.Snapshot, error) {
	if snap == nil {
		return nil, contracts.ErrNoData
	}

	out := *snap
	out.Ticker = strings.ToUpper(strings.TrimSpace(snap.Ticker))
	out.Name = SanitizeString(snap.Name, maxStringLen)

	out.Price = Price(snap.Price)
	out.ChangePercent = ChangePercent(snap.ChangePercent)
	if snap.Volume != nil && *snap.Volume < 0 {
		out.Volume = nil
	}
	if out.MarketCap != nil && (!finite(out.MarketCap) || *out.MarketCap <= 0) {
		out.MarketCap = nil
	}

	// 밸류에이션
	out.TrailingPE = Ratio(snap.TrailingPE)
	out.ForwardPE = Ratio(snap.ForwardPE)
	out.PEG = Ratio(snap.PEG)
	out.PriceToBook = Ratio(snap.PriceToBook)
	out.Beta = Ratio(snap.Beta)
	out.DebtToEquity = Ratio(snap.DebtToEquity)
	out.CurrentRatio = Ratio(snap.CurrentRatio)
	out.ShortRatio = Ratio(snap.ShortRatio)

	// 비율 (0.12 = 12%)
	out.ROE = Percentage(snap.ROE)
	out.ProfitMargin = Percentage(snap.ProfitMargin)
	out.OperatingMargin = Percentage(snap.OperatingMargin)
	out.RevenueGrowth = Percentage(snap.RevenueGrowth)
	out.EarningsGrowth = Percentage(snap.EarningsGrowth)
	out.DividendYield = Percentage(snap.DividendYield)
	out.PayoutRatio = Percentage(snap.PayoutRatio)
	out.ShortFloat = Percentage(snap.ShortFloat)
	out.InsiderHeld = Percentage(snap.InsiderHeld)

	out.FiftyTwoWeekHigh = Price(snap.FiftyTwoWeekHigh)
	out.FiftyTwoWeekLow = Price(snap.FiftyTwoWeekLow)
	out.TargetPrice = Price(snap.TargetPrice)

	out.Sector = SanitizeString(snap.Sector, maxLabelLen)
	out.Industry = SanitizeString(snap.Industry, maxLabelLen)
	out.AnalystRating = Recommendation(snap.AnalystRating)

	if !out.HasPrice() {
		return nil, contracts.ErrNoData
	}
	return &out, nil
}

// Merge fills the nil fields of primary from secondary.
// Either may be nil; the result is nil only when both are.
func Merge(primary, secondary *contracts.Snapshot) *contracts.Snapshot {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}

	out := *primary
	fill := func(dst **float64, src *float64) {
		if *dst == nil {
			*dst = src
		}
	}
	fill(&out.Price, secondary.Price)
	fill(&out.ChangePercent, secondary.ChangePercent)
	fill(&out.MarketCap, secondary.MarketCap)
	fill(&out.TrailingPE, secondary.TrailingPE)
	fill(&out.ForwardPE, secondary.ForwardPE)
	fill(&out.PEG, secondary.PEG)
	fill(&out.PriceToBook, secondary.PriceToBook)
	fill(&out.Beta, secondary.Beta)
	fill(&out.ROE, secondary.ROE)
	fill(&out.ProfitMargin, secondary.ProfitMargin)
	fill(&out.OperatingMargin, secondary.OperatingMargin)
	fill(&out.RevenueGrowth, secondary.RevenueGrowth)
	fill(&out.EarningsGrowth, secondary.EarningsGrowth)
	fill(&out.DebtToEquity, secondary.DebtToEquity)
	fill(&out.CurrentRatio, secondary.CurrentRatio)
	fill(&out.DividendYield, secondary.DividendYield)
	fill(&out.PayoutRatio, secondary.PayoutRatio)
	fill(&out.FiftyTwoWeekHigh, secondary.FiftyTwoWeekHigh)
	fill(&out.FiftyTwoWeekLow, secondary.FiftyTwoWeekLow)
	fill(&out.TargetPrice, secondary.TargetPrice)
	fill(&out.ShortFloat, secondary.ShortFloat)
	fill(&out.InsiderHeld, secondary.InsiderHeld)
	fill(&out.ShortRatio, secondary.ShortRatio)

	if out.Volume == nil {
		out.Volume = secondary.Volume
	}
	if out.Name == "" {
		out.Name = secondary.Name
	}
	if out.Sector == "" {
		out.Sector = secondary.Sector
	}
	if out.Industry == "" {
		out.Industry = secondary.Industry
	}
	if out.AnalystRating == "" {
		out.AnalystRating = secondary.AnalystRating
	}
	return &out
}
