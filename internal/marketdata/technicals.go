package marketdata

import "github.com/wonny/stockread/internal/contracts"

const (
	rsiPeriod = 14
	smaShort  = 20
	smaLong   = 50

	// MinCloses is the history needed for the slowest indicator
	MinCloses = smaLong
)

// Trend / RSI labels
const (
	TrendUp         = "UPTREND (Strong)"
	TrendDown       = "DOWNTREND (Weak)"
	TrendRecovering = "RECOVERING"
	TrendNeutral    = "NEUTRAL"

	RSIOverbought = "OVERBOUGHT (Risk of Pullback)"
	RSIOversold   = "OVERSOLD (Potential Bounce)"
	RSINeutral    = "Neutral"
)

// SMA is the simple average of the last period closes. ok=false when history is short.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// RSI is the Wilder-smoothed relative strength index over period
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	// 1. 첫 구간은 단순 평균
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	// 2. 이후는 Wilder 평활
	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		avgGain = (avgGain*(n-1) + up) / n
		avgLoss = (avgLoss*(n-1) + down) / n
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// RSISignal labels an RSI value
func RSISignal(rsi float64) string {
	switch {
	case rsi > 70:
		return RSIOverbought
	case rsi < 30:
		return RSIOversold
	default:
		return RSINeutral
	}
}

// TrendLabel classifies price against the short and long moving averages
func TrendLabel(price, sma20, sma50 float64) string {
	switch {
	case price > sma20 && sma20 > sma50:
		return TrendUp
	case price < sma20 && sma20 < sma50:
		return TrendDown
	case price > sma50:
		return TrendRecovering
	default:
		return TrendNeutral
	}
}

// ComputeTechnicals derives RSI(14), SMA20 and SMA50 from daily closes (oldest first).
// Returns nil when fewer than MinCloses closes are available.
func ComputeTechnicals(closes []float64) *contracts.Technicals {
	if len(closes) < MinCloses {
		return nil
	}

	price := closes[len(closes)-1]
	sma20, _ := SMA(closes, smaShort)
	sma50, _ := SMA(closes, smaLong)
	rsi, _ := RSI(closes, rsiPeriod)

	rsiR, s20, s50 := round(rsi, 2), round(sma20, 2), round(sma50, 2)
	return &contracts.Technicals{
		RSI:       &rsiR,
		RSISignal: RSISignal(rsi),
		SMA20:     &s20,
		SMA50:     &s50,
		Trend:     TrendLabel(price, sma20, sma50),
	}
}
