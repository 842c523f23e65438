package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/internal/llm"
	"github.com/wonny/stockread/pkg/logger"
)

// Options control the LLM call policy
type Options struct {
	Timeout     time.Duration // per attempt
	MaxAttempts int
	Temperature float64
	MaxTokens   int
}

// DefaultOptions returns two attempts of 60s each
func DefaultOptions() Options {
	return Options{Timeout: 60 * time.Second, MaxAttempts: 2, Temperature: 0.2, MaxTokens: 4096}
}

// Generator turns market context into validated insights
// ⭐ SSOT: LLM 분석 결과 검증은 Generator에서만
type Generator struct {
	llm    llm.Completer
	opts   Options
	logger *logger.Logger
}

var _ contracts.InsightGenerator = (*Generator)(nil)

// NewGenerator creates a Generator. c may be nil; Available then reports false.
func NewGenerator(c llm.Completer, opts Options, log *logger.Logger) *Generator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Generator{llm: c, opts: opts, logger: log.WithComponent("insight")}
}

// Available reports whether an LLM is configured
func (g *Generator) Available() bool {
	return g.llm != nil
}

// complete runs one prompt with the attempt budget and returns the first parseable object.
// Rate limit errors return at once; the caller's backoff owns the wait.
func (g *Generator) complete(ctx context.Context, op, prompt string) (map[string]interface{}, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%s: %w", op, contracts.ErrUnavailable)
	}

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
		JSON:        true,
	}

	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := g.logger.WithFields(map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"max":     g.opts.MaxAttempts,
		})

		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		raw, err := g.llm.Complete(callCtx, req)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = contracts.NewError(contracts.KindTimeout, op, fmt.Errorf("llm call exceeded %s: %w", g.opts.Timeout, err))
			}
			lastErr = contracts.Classify(op, err)
			if contracts.KindOf(lastErr) == contracts.KindRateLimited {
				log.WithError(lastErr).Warn("LLM rate limited")
				return nil, lastErr
			}
			log.WithError(lastErr).Warn("LLM call failed")
			continue
		}

		obj, err := ParseObject(raw)
		if err != nil {
			lastErr = contracts.NewError(contracts.KindValidation, op, err)
			log.WithField("raw", truncate(raw, 500)).Warn("LLM response unparseable")
			continue
		}
		return obj, nil
	}

	return nil, lastErr
}

// Analyze scores one ticker. Returns an error after the attempt budget is spent.
func (g *Generator) Analyze(ctx context.Context, req contracts.AnalysisRequest) (*contracts.Insight, error) {
	op := "analyze " + req.Ticker
	obj, err := g.complete(ctx, op, BuildPrompt(req))
	if err != nil {
		return nil, err
	}

	ins := Validate(obj, g.logger.WithField("ticker", req.Ticker))
	g.logger.WithFields(map[string]interface{}{
		"ticker": req.Ticker,
		"score":  ins.Score,
		"risk":   ins.Risk,
		"thesis": ins.Thesis,
	}).Info("Ticker analyzed")
	return &ins, nil
}

// AnalyzeBatch scores a chunk of tickers with one prompt.
// Tickers missing from the answer are absent from the result.
func (g *Generator) AnalyzeBatch(ctx context.Context, req contracts.BatchRequest) (map[string]contracts.Insight, error) {
	if len(req.Items) == 0 {
		return map[string]contracts.Insight{}, nil
	}

	tickers := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		tickers = append(tickers, it.Ticker)
	}

	op := fmt.Sprintf("batch %s", strings.Join(tickers, ","))
	obj, err := g.complete(ctx, op, BuildBatchPrompt(req))
	if err != nil {
		return nil, err
	}

	out := ParseBatch(obj, tickers, g.logger)
	g.logger.WithFields(map[string]interface{}{
		"requested": len(tickers),
		"returned":  len(out),
	}).Info("Batch analyzed")
	return out, nil
}

// ParseBatch maps a {"TICKER": {"score":..,"risk":..,"summary":..}} object onto the requested tickers.
// Keys match case-insensitively; unknown keys are dropped.
func ParseBatch(obj map[string]interface{}, tickers []string, log *logger.Logger) map[string]contracts.Insight {
	byUpper := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		byUpper[strings.ToUpper(strings.TrimSpace(k))] = v
	}

	out := make(map[string]contracts.Insight, len(tickers))
	for _, t := range tickers {
		raw, ok := byUpper[strings.ToUpper(t)]
		if !ok {
			continue
		}
		fields, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		// 배치 응답은 score/risk 약식 키를 씀
		normalized := map[string]interface{}{
			"sentiment_score": firstOf(fields, "score", "sentiment_score"),
			"risk_level":      firstOf(fields, "risk", "risk_level"),
			"summary":         fields["summary"],
			"tags":            fields["tags"],
			"user_thesis":     string(contracts.ThesisNeutral),
		}
		tlog := log
		if tlog != nil {
			tlog = tlog.WithField("ticker", t)
		}
		out[t] = Validate(normalized, tlog)
	}
	return out
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
