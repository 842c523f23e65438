package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisJob_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    AnalysisJob
		wantErr bool
	}{
		{"camel case", `{"postId":42,"ticker":"ACME"}`, AnalysisJob{PostID: 42, Ticker: "ACME"}, false},
		{"snake case", `{"post_id":7,"ticker":" msft "}`, AnalysisJob{PostID: 7, Ticker: "MSFT"}, false},
		{"string id", `{"postId":"99","ticker":"tsla"}`, AnalysisJob{PostID: 99, Ticker: "TSLA"}, false},
		{"with content", `{"postId":1,"ticker":"A","content":"to the moon"}`, AnalysisJob{PostID: 1, Ticker: "A", Content: "to the moon"}, false},
		{"missing id", `{"ticker":"ACME"}`, AnalysisJob{}, true},
		{"bad id", `{"postId":"abc","ticker":"ACME"}`, AnalysisJob{}, true},
		{"not json", `postId=1`, AnalysisJob{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var job AnalysisJob
			err := json.Unmarshal([]byte(tt.payload), &job)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, job)
		})
	}
}

func TestAnalysisJob_MarshalUsesCamelCase(t *testing.T) {
	data, err := json.Marshal(AnalysisJob{PostID: 42, Ticker: "ACME"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"postId":42,"ticker":"ACME"}`, string(data))
}

func TestAnalysisJob_Validate(t *testing.T) {
	assert.NoError(t, AnalysisJob{PostID: 1, Ticker: "ACME"}.Validate())

	err := AnalysisJob{PostID: 0, Ticker: "ACME"}.Validate()
	assert.Equal(t, KindValidation, KindOf(err))

	err = AnalysisJob{PostID: 3}.Validate()
	assert.Equal(t, KindValidation, KindOf(err))
}
