package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/config"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

type echoCompleter struct {
	calls int
}

func (e *echoCompleter) Complete(_ context.Context, req Request) (string, error) {
	e.calls++
	return req.Prompt, nil
}
func (e *echoCompleter) Provider() string { return "echo" }
func (e *echoCompleter) Model() string    { return "echo-1" }

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", errors.New("Error 429, Message: too many requests"), true},
		{"resource exhausted", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"quota", errors.New("Quota exceeded for metric"), true},
		{"anthropic", errors.New(`{"type":"rate_limit_error"}`), true},
		{"other", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		msg  string
		want time.Duration
	}{
		{"Error 429 ... Please retry in 45.5s., Status: RESOURCE_EXHAUSTED", 45500 * time.Millisecond},
		{`details: retryDelay: 30s`, 30 * time.Second},
		{"no hint here", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractRetryDelay(errors.New(tt.msg)), tt.msg)
	}
	assert.Zero(t, ExtractRetryDelay(nil))
}

func TestClassify(t *testing.T) {
	err := classify("gemini", errors.New("Error 429: Please retry in 12s"))
	require.Error(t, err)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 12*time.Second, rl.RetryAfter)
	assert.Equal(t, contracts.KindRateLimited, contracts.KindOf(err))
	assert.Equal(t, 12*time.Second, ExtractRetryDelay(err))

	err = classify("claude", context.DeadlineExceeded)
	assert.Equal(t, contracts.KindTimeout, contracts.KindOf(err))

	assert.NoError(t, classify("claude", nil))
}

func TestWithRateLimit_DisabledRedisPassesThrough(t *testing.T) {
	inner := &echoCompleter{}
	limiter := redis.NewRateLimiter(redis.Disabled("test"))
	c := WithRateLimit(inner, limiter, redis.LLMRateLimit)

	out, err := c.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "echo", c.Provider())
	assert.Equal(t, "echo-1", c.Model())
}

func TestNew_MissingKeyIsUnavailable(t *testing.T) {
	cfg := &config.Config{AI: config.AIConfig{Provider: "gemini"}}
	_, err := New(context.Background(), cfg, nil, logger.Nop())
	assert.ErrorIs(t, err, contracts.ErrUnavailable)

	cfg.AI.Provider = "claude"
	_, err = New(context.Background(), cfg, nil, logger.Nop())
	assert.ErrorIs(t, err, contracts.ErrUnavailable)
}

func TestNew_Claude(t *testing.T) {
	cfg := &config.Config{AI: config.AIConfig{Provider: "claude", AnthropicAPIKey: "sk-ant-test"}}
	c, err := New(context.Background(), cfg, nil, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, c.Provider())
	assert.Equal(t, DefaultClaudeModel, c.Model())
}

func TestJoinText(t *testing.T) {
	blocks := []anthropic.ContentBlockUnion{
		{Type: "thinking", Thinking: "hmm"},
		{Type: "text", Text: `{"sentiment_score": `},
		{Type: "tool_use", Name: "lookup"},
		{Type: "text", Text: `70}`},
	}
	assert.Equal(t, `{"sentiment_score": 70}`, joinText(blocks))
	assert.Empty(t, joinText(nil))
}
