package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/config"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

// Provider names
const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// Default models per provider
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultClaudeModel = "claude-sonnet-4-20250514"
)

// Request is one prompt sent to a model
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON-only response where supported
	JSON bool
}

// Completer sends a prompt and returns the raw text of the answer
// ⭐ SSOT: LLM 호출은 Completer를 통해서만
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
	Model() string
}

// New creates the completer of the configured provider.
// contracts.ErrUnavailable when the provider has no API key.
func New(ctx context.Context, cfg *config.Config, limiter *redis.RateLimiter, log *logger.Logger) (Completer, error) {
	key := cfg.AIKey()
	if key == "" {
		return nil, fmt.Errorf("%s api key missing: %w", cfg.AI.Provider, contracts.ErrUnavailable)
	}

	var (
		c   Completer
		err error
	)
	switch strings.ToLower(cfg.AI.Provider) {
	case ProviderClaude:
		c = NewClaude(key, cfg.AI.Model, log)
	case ProviderGemini:
		c, err = NewGemini(ctx, key, cfg.AI.Model, log)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
	if err != nil {
		return nil, err
	}

	if limiter != nil {
		c = WithRateLimit(c, limiter, redis.LLMRateLimit)
	}
	return c, nil
}

// limited waits on the shared sliding window before every call
type limited struct {
	Completer
	limiter *redis.RateLimiter
	cfg     redis.RateLimitConfig
}

// WithRateLimit wraps c with a Redis-backed request budget shared across processes
func WithRateLimit(c Completer, limiter *redis.RateLimiter, cfg redis.RateLimitConfig) Completer {
	return &limited{Completer: c, limiter: limiter, cfg: cfg}
}

func (l *limited) Complete(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx, l.cfg); err != nil {
		return "", contracts.Classify("llm rate limit", err)
	}
	return l.Completer.Complete(ctx, req)
}

// classify wraps a provider error. Rate limit responses carry the suggested delay.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if IsRateLimitError(err) {
		return &RateLimitError{
			Err:        contracts.NewError(contracts.KindRateLimited, provider, err),
			RetryAfter: ExtractRetryDelay(err),
		}
	}
	return contracts.Classify(provider, err)
}

// RateLimitError is a quota rejection with the provider's suggested wait
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }
