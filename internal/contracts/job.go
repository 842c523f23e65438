package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnalysisJob asks for one post to be fact checked.
// Wire format: {"postId":42,"ticker":"ACME"}; "post_id" and string ids are accepted.
type AnalysisJob struct {
	PostID  int64  `json:"postId"`
	Ticker  string `json:"ticker"`
	Content string `json:"content,omitempty"`
}

// UnmarshalJSON accepts both postId and post_id
func (j *AnalysisJob) UnmarshalJSON(data []byte) error {
	var raw struct {
		PostID    json.RawMessage `json:"postId"`
		PostIDAlt json.RawMessage `json:"post_id"`
		Ticker    string          `json:"ticker"`
		Content   string          `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	idRaw := raw.PostID
	if len(idRaw) == 0 {
		idRaw = raw.PostIDAlt
	}
	if len(idRaw) == 0 {
		return fmt.Errorf("job payload missing postId")
	}

	id, err := parseID(idRaw)
	if err != nil {
		return err
	}

	j.PostID = id
	j.Ticker = strings.ToUpper(strings.TrimSpace(raw.Ticker))
	j.Content = raw.Content
	return nil
}

func parseID(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid postId %s", string(raw))
}

// Validate checks the job can be processed
func (j AnalysisJob) Validate() error {
	if j.PostID <= 0 {
		return NewError(KindValidation, "job", fmt.Errorf("postId must be positive, got %d", j.PostID))
	}
	if j.Ticker == "" {
		return NewError(KindValidation, "job", fmt.Errorf("ticker is required"))
	}
	return nil
}
