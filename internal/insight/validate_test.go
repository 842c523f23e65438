package insight

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/stockread/internal/contracts"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int
		ok   bool
	}{
		{"int", 72, 72, true},
		{"float rounds", 72.6, 73, true},
		{"clamp high", 150.0, 100, true},
		{"clamp low", -5.0, 0, true},
		{"numeric string", " 64 ", 64, true},
		{"float string", "64.4", 64, true},
		{"json number", json.Number("81"), 81, true},
		{"garbage string", "high", contracts.DefaultScore, false},
		{"missing", nil, contracts.DefaultScore, false},
		{"bool", true, contracts.DefaultScore, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Score(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSnapRiskAndThesis(t *testing.T) {
	r, ok := SnapRisk("bogus")
	assert.False(t, ok)
	assert.Equal(t, contracts.RiskMedium, r)

	r, ok = SnapRisk(" extreme ")
	assert.True(t, ok)
	assert.Equal(t, contracts.RiskExtreme, r)

	th, ok := SnapThesis("BULLISH")
	assert.True(t, ok)
	assert.Equal(t, contracts.ThesisBullish, th)

	th, ok = SnapThesis("to the moon")
	assert.False(t, ok)
	assert.Equal(t, contracts.ThesisNeutral, th)

	th, ok = SnapThesis(42)
	assert.False(t, ok)
	assert.Equal(t, contracts.ThesisNeutral, th)
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"Tech", "Buy"}, Tags([]interface{}{"Tech", "", nil, " Buy "}))
	assert.Equal(t, []string{"Tech", "Buy", "Growth"}, Tags("Tech, Buy,,Growth"))
	assert.Equal(t, []string{"1", "true"}, Tags([]interface{}{1.0, true}))
	assert.Equal(t, []string{}, Tags(nil))
	assert.Equal(t, []string{}, Tags(12.0))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]interface{}
		want contracts.Insight
	}{
		{
			name: "well formed, risk recomputed",
			obj: map[string]interface{}{
				"sentiment_score": 92.0, "risk_level": "High", "user_thesis": "bullish",
				"summary": "Strong setup.", "tags": []interface{}{"Tech"},
			},
			want: contracts.Insight{Score: 92, Risk: contracts.RiskLow, Thesis: contracts.ThesisBullish, Summary: "Strong setup.", Tags: []string{"Tech"}},
		},
		{
			name: "bogus risk defaults",
			obj:  map[string]interface{}{"risk_level": "bogus"},
			want: contracts.Insight{Score: 50, Risk: contracts.RiskMedium, Thesis: contracts.ThesisNeutral, Summary: contracts.DefaultSummary, Tags: []string{}},
		},
		{
			name: "score clamps high",
			obj:  map[string]interface{}{"sentiment_score": 150.0, "summary": "x"},
			want: contracts.Insight{Score: 100, Risk: contracts.RiskLow, Thesis: contracts.ThesisNeutral, Summary: "x", Tags: []string{}},
		},
		{
			name: "score clamps low",
			obj:  map[string]interface{}{"sentiment_score": -5.0, "summary": "x"},
			want: contracts.Insight{Score: 0, Risk: contracts.RiskHigh, Thesis: contracts.ThesisNeutral, Summary: "x", Tags: []string{}},
		},
		{
			name: "string score and comma tags",
			obj:  map[string]interface{}{"sentiment_score": "45", "user_thesis": "Bearish", "summary": "  meh ", "tags": "A,B"},
			want: contracts.Insight{Score: 45, Risk: contracts.RiskMedium, Thesis: contracts.ThesisBearish, Summary: "meh", Tags: []string{"A", "B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.obj, nil))
		})
	}
}

func TestRiskFromScoreMonotone(t *testing.T) {
	rank := map[contracts.RiskLevel]int{contracts.RiskLow: 0, contracts.RiskMedium: 1, contracts.RiskHigh: 2, contracts.RiskExtreme: 3}
	prev := rank[contracts.RiskFromScore(0)]
	for s := 1; s <= 100; s++ {
		cur := rank[contracts.RiskFromScore(s)]
		assert.LessOrEqual(t, cur, prev, "score %d", s)
		prev = cur
	}
}
