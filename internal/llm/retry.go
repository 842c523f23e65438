package llm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IsRateLimitError reports whether err is a quota or 429 rejection
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota") ||
		strings.Contains(msg, "rate_limit_error")
}

// "Please retry in 45.3s" / "retryDelay: 30s"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the provider-suggested wait out of an error. 0 when absent.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
