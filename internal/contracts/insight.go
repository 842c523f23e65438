package contracts

import (
	"encoding/json"
	"time"
)

// RiskLevel is the model-facing risk bucket
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskExtreme RiskLevel = "Extreme"
)

// Thesis is the stance detected in user text
type Thesis string

const (
	ThesisBullish Thesis = "Bullish"
	ThesisBearish Thesis = "Bearish"
	ThesisNeutral Thesis = "Neutral"
)

const (
	DefaultScore   = 50
	DefaultSummary = "Analysis unavailable"
	InvalidSummary = "Invalid Ticker"
	InvalidScore   = -1
)

// Insight is a validated LLM verdict
// ⭐ SSOT: Generator → Scheduler / Consumer 분석 결과 전달
type Insight struct {
	Score   int       `json:"sentiment_score"`
	Risk    RiskLevel `json:"risk_level"`
	Thesis  Thesis    `json:"user_thesis"`
	Summary string    `json:"summary"`
	Tags    []string  `json:"tags"`
}

// RiskFromScore maps a 0..100 score to a risk bucket.
// Monotone: a higher score never yields a higher risk. Extreme is never produced.
func RiskFromScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 40:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// SignalFromScore maps a 0..100 score to the trading signal label
func SignalFromScore(score int) string {
	switch {
	case score >= 80:
		return "Strong Buy"
	case score >= 60:
		return "Buy"
	case score >= 40:
		return "Hold"
	case score >= 20:
		return "Sell"
	default:
		return "Strong Sell"
	}
}

// EarnsReputation reports whether the author's thesis agreed with the verdict
func (i *Insight) EarnsReputation() bool {
	return (i.Thesis == ThesisBullish && i.Score > 60) ||
		(i.Thesis == ThesisBearish && i.Score < 40)
}

// TickerInsight is one row of ticker_insights
type TickerInsight struct {
	Ticker          string    `json:"ticker"`
	Score           int       `json:"ai_score"`
	Signal          string    `json:"ai_signal"`
	Risk            RiskLevel `json:"ai_risk"`
	Summary         string    `json:"ai_summary"`
	CurrentPrice    *float64  `json:"current_price,omitempty"`
	MarketCap       *float64  `json:"market_cap,omitempty"`
	PERatio         *float64  `json:"pe_ratio,omitempty"`
	AnalystRating   string    `json:"analyst_rating,omitempty"`
	TargetPrice     *float64  `json:"target_price,omitempty"`
	ShortFloat      *float64  `json:"short_float,omitempty"`
	InsiderHeld     *float64  `json:"insider_held,omitempty"`
	Sector          string    `json:"sector,omitempty"`
	Industry        string    `json:"industry,omitempty"`
	VIX             *float64  `json:"vix,omitempty"`
	MarketSentiment string    `json:"market_sentiment,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewTickerInsight assembles a ticker_insights row from a verdict and its inputs
func NewTickerInsight(ticker string, ins Insight, snap *Snapshot, macro MacroContext, now time.Time) TickerInsight {
	row := TickerInsight{
		Ticker:          ticker,
		Score:           ins.Score,
		Signal:          SignalFromScore(ins.Score),
		Risk:            ins.Risk,
		Summary:         ins.Summary,
		VIX:             macro.VIX,
		MarketSentiment: macro.Sentiment,
		UpdatedAt:       now,
	}
	if snap != nil {
		row.CurrentPrice = snap.Price
		row.MarketCap = snap.MarketCap
		row.PERatio = snap.TrailingPE
		row.AnalystRating = snap.AnalystRating
		row.TargetPrice = snap.TargetPrice
		row.ShortFloat = snap.ShortFloat
		row.InsiderHeld = snap.InsiderHeld
		row.Sector = snap.Sector
		row.Industry = snap.Industry
	}
	return row
}

// Post is a user post awaiting (or carrying) an AI fact check
type Post struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Ticker    string    `json:"ticker"`
	Content   string    `json:"content"`
	AIScore   *int      `json:"ai_score,omitempty"`
	AIRisk    string    `json:"ai_risk,omitempty"`
	AISummary string    `json:"ai_summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostUpdate is a typed partial update of posts. Nil fields are left unchanged.
type PostUpdate struct {
	AIScore            *int
	AIRisk             *string
	UserSentimentLabel *string
	AISummary          *string
	RawMarketData      json.RawMessage
	AnalystRating      *string
	TargetPrice        *float64
	ShortFloat         *float64
	InsiderHeld        *float64
}

// IsEmpty reports whether the update sets nothing
func (u PostUpdate) IsEmpty() bool {
	return u.AIScore == nil && u.AIRisk == nil && u.UserSentimentLabel == nil &&
		u.AISummary == nil && u.RawMarketData == nil && u.AnalystRating == nil &&
		u.TargetPrice == nil && u.ShortFloat == nil && u.InsiderHeld == nil
}
