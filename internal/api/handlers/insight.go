package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/stockread/internal/consumer"
	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/internal/marketdata"
	"github.com/wonny/stockread/pkg/logger"
)

const (
	analyzeNewsLimit   = 3
	analyzeSocialLimit = 5
)

// PostProcessor runs the fact-check chain for one post
type PostProcessor interface {
	Process(ctx context.Context, job contracts.AnalysisJob) (*consumer.Outcome, error)
}

// InsightHandler handles the analysis endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type InsightHandler struct {
	processor PostProcessor
	market    contracts.MarketData
	generator contracts.InsightGenerator
	insights  contracts.InsightStore
	posts     contracts.PostStore
	logger    *logger.Logger
}

// NewInsightHandler creates a new insight handler. processor may be nil.
func NewInsightHandler(proc PostProcessor, md contracts.MarketData, gen contracts.InsightGenerator, insights contracts.InsightStore, posts contracts.PostStore, log *logger.Logger) *InsightHandler {
	return &InsightHandler{
		processor: proc,
		market:    md,
		generator: gen,
		insights:  insights,
		posts:     posts,
		logger:    log.WithComponent("api"),
	}
}

// IngestRequest asks for a post to be fact-checked now
type IngestRequest struct {
	PostID  int64  `json:"post_id" validate:"required,gt=0"`
	Ticker  string `json:"ticker" validate:"required,max=12"`
	Content string `json:"content" validate:"max=10000"`
}

// Ingest processes one post synchronously
// POST /ingest
func (h *InsightHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.processor == nil || h.generator == nil || !h.generator.Available() {
		respondError(w, http.StatusServiceUnavailable, "post processor unavailable")
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	out, err := h.processor.Process(r.Context(), contracts.AnalysisJob{
		PostID:  req.PostID,
		Ticker:  ticker,
		Content: req.Content,
	})
	if err != nil {
		h.logger.WithError(err).WithField("post_id", req.PostID).Error("Failed to ingest post")
		respondError(w, statusFor(err), fmt.Sprintf("failed to process post #%d: %v", req.PostID, err))
		return
	}

	message := fmt.Sprintf("Post #%d processed successfully", req.PostID)
	if out.Skipped {
		message = fmt.Sprintf("Post #%d already processed", req.PostID)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
		"post_id": req.PostID,
		"ticker":  out.Ticker,
		"invalid": out.Invalid,
		"skipped": out.Skipped,
		"insight": out.Insight,
	})
}

// AnalyzeRequest asks for a one-off verdict on a ticker
type AnalyzeRequest struct {
	Ticker       string `json:"ticker" validate:"required,max=12"`
	UserPostText string `json:"user_post_text" validate:"max=10000"`
}

// Analyze runs the generator for a ticker without touching posts
// POST /analyze
func (h *InsightHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.generator == nil || !h.generator.Available() {
		respondError(w, http.StatusServiceUnavailable, "AI service unavailable")
		return
	}

	ctx := r.Context()
	ticker, err := marketdata.NormalizeTicker(req.Ticker)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Ticker %s not found or invalid", strings.ToUpper(req.Ticker)))
		return
	}

	snap, err := h.market.Snapshot(ctx, ticker)
	if err != nil {
		if errors.Is(err, contracts.ErrNoData) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Ticker %s not found or invalid", ticker))
			return
		}
		h.logger.WithError(err).WithField("ticker", ticker).Error("Snapshot failed")
		respondError(w, statusFor(err), "market data unavailable")
		return
	}

	tech, err := h.market.Technicals(ctx, ticker)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Warn("Technicals unavailable")
	}

	ins, err := h.generator.Analyze(ctx, contracts.AnalysisRequest{
		Ticker:     ticker,
		Snapshot:   snap,
		Technicals: tech,
		News:       h.market.News(ctx, ticker, analyzeNewsLimit),
		Social:     h.market.Social(ctx, ticker, analyzeSocialLimit),
		Macro:      h.market.Macro(ctx),
		UserText:   req.UserPostText,
	})
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Analysis failed")
		status := statusFor(err)
		if status == http.StatusNotFound || status == http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		respondError(w, status, "AI analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"ticker":   ticker,
		"analysis": ins,
		"market_data": map[string]interface{}{
			"price":          snap.Price,
			"market_cap":     snap.MarketCap,
			"pe_ratio":       snap.TrailingPE,
			"analyst_rating": snap.AnalystRating,
			"target_price":   snap.TargetPrice,
		},
		"timestamp": time.Now().Unix(),
	})
}

// SummarizeRequest selects insights by ticker or by post ids
type SummarizeRequest struct {
	Ticker  string  `json:"ticker" validate:"omitempty,max=12"`
	PostIDs []int64 `json:"post_ids" validate:"omitempty,max=100,dive,gt=0"`
}

// PostScoreAggregate summarizes the scores of a set of posts
type PostScoreAggregate struct {
	AvgScore   float64 `json:"avg_score"`
	MinScore   int     `json:"min_score"`
	MaxScore   int     `json:"max_score"`
	TotalPosts int     `json:"total_posts"`
}

// Summarize returns the stored verdict of a ticker or aggregates posts
// POST /summarize
func (h *InsightHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	resp := map[string]interface{}{
		"success":   true,
		"timestamp": time.Now().Unix(),
	}

	switch {
	case strings.TrimSpace(req.Ticker) != "":
		ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
		row, err := h.insights.GetTickerInsight(ctx, ticker)
		if err != nil {
			if errors.Is(err, contracts.ErrNotFound) {
				respondError(w, http.StatusNotFound, fmt.Sprintf("No insights found for ticker %s", ticker))
				return
			}
			h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to load ticker insight")
			respondError(w, http.StatusInternalServerError, "failed to load insights")
			return
		}
		resp["ticker"] = ticker
		resp["insights"] = row

	case len(req.PostIDs) > 0:
		posts, err := h.posts.PostsByIDs(ctx, req.PostIDs)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load posts")
			respondError(w, http.StatusInternalServerError, "failed to load posts")
			return
		}
		if len(posts) == 0 {
			respondError(w, http.StatusNotFound, "No posts found for provided IDs")
			return
		}
		resp["posts"] = posts
		resp["count"] = len(posts)
		if agg := AggregateScores(posts); agg != nil {
			resp["aggregate"] = agg
		}

	default:
		respondError(w, http.StatusBadRequest, "Either 'ticker' or 'post_ids' must be provided")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// AggregateScores averages the valid AI scores of posts. nil when none are scored.
func AggregateScores(posts []contracts.Post) *PostScoreAggregate {
	var agg *PostScoreAggregate
	sum := 0
	n := 0
	for _, p := range posts {
		// 미분석(nil), 무효(-1), 0점은 제외
		if p.AIScore == nil || *p.AIScore <= 0 {
			continue
		}
		s := *p.AIScore
		if agg == nil {
			agg = &PostScoreAggregate{MinScore: s, MaxScore: s}
		}
		if s < agg.MinScore {
			agg.MinScore = s
		}
		if s > agg.MaxScore {
			agg.MaxScore = s
		}
		sum += s
		n++
	}
	if agg == nil {
		return nil
	}
	agg.AvgScore = float64(sum) / float64(n)
	agg.TotalPosts = len(posts)
	return agg
}
