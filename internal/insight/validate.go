package insight

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

const maxSummaryLen = 2000

var validRisks = map[string]contracts.RiskLevel{
	"Low":     contracts.RiskLow,
	"Medium":  contracts.RiskMedium,
	"High":    contracts.RiskHigh,
	"Extreme": contracts.RiskExtreme,
}

var validTheses = map[string]contracts.Thesis{
	"Bullish": contracts.ThesisBullish,
	"Bearish": contracts.ThesisBearish,
	"Neutral": contracts.ThesisNeutral,
}

// capitalize turns " bULLish " into "Bullish"
func capitalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SnapRisk maps a model-proposed risk to the enum. Unknown values become Medium.
func SnapRisk(v interface{}) (contracts.RiskLevel, bool) {
	s, _ := v.(string)
	if r, ok := validRisks[capitalize(s)]; ok {
		return r, true
	}
	return contracts.RiskMedium, false
}

// SnapThesis maps a model-proposed thesis to the enum. Unknown values become Neutral.
func SnapThesis(v interface{}) (contracts.Thesis, bool) {
	s, _ := v.(string)
	if t, ok := validTheses[capitalize(s)]; ok {
		return t, true
	}
	return contracts.ThesisNeutral, false
}

// Score coerces a model-proposed score to an integer in [0,100].
// Floats round, numeric strings parse, anything else is the default.
func Score(v interface{}) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return contracts.DefaultScore, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return contracts.DefaultScore, false
		}
		f = parsed
	default:
		return contracts.DefaultScore, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return contracts.DefaultScore, false
	}

	n := int(math.Round(f))
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return n, true
}

// Tags coerces tags to a list of non-empty strings. A comma-separated string is split.
func Tags(v interface{}) []string {
	out := []string{}
	switch x := v.(type) {
	case []interface{}:
		for _, t := range x {
			if t == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(t))
			if s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func summary(v interface{}) (string, bool) {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return contracts.DefaultSummary, false
	}
	if r := []rune(s); len(r) > maxSummaryLen {
		s = string(r[:maxSummaryLen])
	}
	return s, true
}

// Validate turns a decoded model object into an Insight.
// Invalid fields fall back to documented defaults with a warning;
// risk is always recomputed from the final score.
func Validate(obj map[string]interface{}, log *logger.Logger) contracts.Insight {
	if log == nil {
		log = logger.Nop()
	}

	warn := func(field string, value interface{}) {
		log.WithFields(map[string]interface{}{
			"field": field,
			"value": fmt.Sprint(value),
		}).Warn("invalid model field, using default")
	}

	score, ok := Score(obj["sentiment_score"])
	if !ok {
		warn("sentiment_score", obj["sentiment_score"])
	}

	if _, ok := SnapRisk(obj["risk_level"]); !ok && obj["risk_level"] != nil {
		warn("risk_level", obj["risk_level"])
	}

	thesis, ok := SnapThesis(obj["user_thesis"])
	if !ok && obj["user_thesis"] != nil {
		warn("user_thesis", obj["user_thesis"])
	}

	sum, ok := summary(obj["summary"])
	if !ok {
		warn("summary", obj["summary"])
	}

	return contracts.Insight{
		Score:   score,
		Risk:    contracts.RiskFromScore(score),
		Thesis:  thesis,
		Summary: sum,
		Tags:    Tags(obj["tags"]),
	}
}
