package insight

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyResponse means the model returned nothing
	ErrEmptyResponse = errors.New("empty model response")
	// ErrUnparseable means no strategy recovered a JSON object
	ErrUnparseable = errors.New("no json object in model response")
)

var (
	fencedPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	fenceMarker   = regexp.MustCompile("(?i)```(?:json)?")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseObject recovers a JSON object from a model response.
// Strategies in order: direct decode, fenced code block, outermost braces, cleanup.
// First success wins.
func ParseObject(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}

	// 1. 그대로 디코드
	if obj, ok := decode(raw); ok {
		return obj, nil
	}

	// 2. ```json 블록
	if m := fencedPattern.FindStringSubmatch(raw); len(m) == 2 {
		if obj, ok := decode(m[1]); ok {
			return obj, nil
		}
	}

	// 3. 가장 바깥 { ... }
	if s, ok := outermost(raw); ok {
		if obj, ok := decode(s); ok {
			return obj, nil
		}
	}

	// 4. 정리 후 재시도
	cleaned := cleanup(raw)
	if obj, ok := decode(cleaned); ok {
		return obj, nil
	}
	if s, ok := outermost(cleaned); ok {
		if obj, ok := decode(s); ok {
			return obj, nil
		}
	}

	return nil, ErrUnparseable
}

func decode(s string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func outermost(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func cleanup(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	s = fenceMarker.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	s = trailingComma.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
