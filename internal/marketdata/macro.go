package marketdata

import "github.com/wonny/stockread/internal/contracts"

// VIX 구간 라벨
const (
	SentimentVeryCalm    = "Very Calm"
	SentimentCalm        = "Calm"
	SentimentElevated    = "Elevated"
	SentimentHighVol     = "High Volatility"
	SentimentExtremeFear = "Extreme Fear"
)

// ClassifyVIX maps a VIX level to its sentiment label
func ClassifyVIX(vix float64) string {
	switch {
	case vix < 12:
		return SentimentVeryCalm
	case vix < 20:
		return SentimentCalm
	case vix < 30:
		return SentimentElevated
	case vix < 40:
		return SentimentHighVol
	default:
		return SentimentExtremeFear
	}
}

// MacroFromVIX builds the macro context for a fetched VIX level
func MacroFromVIX(vix float64) contracts.MacroContext {
	v := round(vix, 2)
	return contracts.MacroContext{VIX: &v, Sentiment: ClassifyVIX(vix)}
}

// UnknownMacro is the context used when the VIX could not be read
func UnknownMacro() contracts.MacroContext {
	return contracts.MacroContext{Sentiment: contracts.MacroUnknown}
}
