package contracts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies failures for the shared retry/backoff policy
// ⭐ SSOT: 에러 분류는 여기서만
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindTimeout
	KindConnection
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	// ErrNoData means the provider has nothing for the ticker. Treated as an invalid ticker.
	ErrNoData = errors.New("no market data")
	// ErrNotFound means a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a dependency is not configured (no API key, no redis)
	ErrUnavailable = errors.New("service unavailable")
)

// Error is a classified error. Adapters wrap upstream failures once at their boundary.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and the failing operation
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type statusCoder interface {
	StatusCode() int
}

// KindOf returns the kind of err. Untyped errors are classified by shape.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	switch {
	case errors.Is(err, ErrNoData):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return KindFromStatus(sc.StatusCode())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return KindRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "eof"):
		return KindConnection
	}
	return KindUnknown
}

// KindFromStatus classifies an HTTP status code
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == 429:
		return KindRateLimited
	case code == 408 || code == 504:
		return KindTimeout
	case code >= 500:
		return KindConnection
	case code >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

// Classify wraps err with its detected kind unless it already carries one
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return NewError(KindOf(err), op, err)
}

// IsRetryable reports whether an in-call retry can help
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindConnection, KindUnknown:
		return true
	default:
		return false
	}
}
