package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

const (
	// FactCheckPrefix marks AI-written summaries on posts
	FactCheckPrefix = "🤖 AI FACT CHECK:\n"
	// ReputationPoints is awarded when the author's thesis matches the verdict
	ReputationPoints = 10

	newsLimit   = 3
	socialLimit = 5
)

// Store is the slice of persistence the processor writes to
type Store interface {
	contracts.InsightStore
	contracts.PostStore
}

// Outcome is what happened to one job
type Outcome struct {
	PostID     int64
	Ticker     string
	Invalid    bool // 알 수 없는 종목 → 포스트 -1 처리
	Insight    *contracts.Insight
	Reputation bool
	Skipped    bool // 이미 점수가 있는 포스트
}

// Stats counts processed jobs
type Stats struct {
	Processed int64 `json:"processed"`
	Invalid   int64 `json:"invalid"`
	Failed    int64 `json:"failed"`
}

// Processor fact-checks one post against market data
// ⭐ SSOT: 포스트 분석 체인은 Processor에서만
type Processor struct {
	market    contracts.MarketData
	generator contracts.InsightGenerator
	store     Store
	publisher contracts.InsightPublisher
	clock     contracts.Clock
	logger    *logger.Logger

	processed atomic.Int64
	invalid   atomic.Int64
	failed    atomic.Int64
}

// NewProcessor creates a new Processor. publisher may be nil.
func NewProcessor(md contracts.MarketData, gen contracts.InsightGenerator, store Store, pub contracts.InsightPublisher, log *logger.Logger) *Processor {
	return &Processor{
		market:    md,
		generator: gen,
		store:     store,
		publisher: pub,
		clock:     contracts.SystemClock{},
		logger:    log.WithComponent("processor"),
	}
}

// Stats returns a snapshot of the counters
func (p *Processor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Invalid:   p.invalid.Load(),
		Failed:    p.failed.Load(),
	}
}

// rawMarketData is stored on the post for the UI
type rawMarketData struct {
	Snapshot   *contracts.Snapshot    `json:"snapshot"`
	Technicals *contracts.Technicals  `json:"technicals,omitempty"`
	Macro      contracts.MacroContext `json:"macro"`
	News       []contracts.NewsItem   `json:"news"`
}

// Process runs the full chain for one job.
// Validation errors mean the job can never succeed; other errors are worth a later retry.
func (p *Processor) Process(ctx context.Context, job contracts.AnalysisJob) (*Outcome, error) {
	out, err := p.process(ctx, job)
	if err != nil {
		p.failed.Add(1)
		return nil, err
	}
	if out.Skipped {
		return out, nil
	}
	if out.Invalid {
		p.invalid.Add(1)
	} else {
		p.processed.Add(1)
	}
	return out, nil
}

func (p *Processor) process(ctx context.Context, job contracts.AnalysisJob) (*Outcome, error) {
	if job.PostID <= 0 {
		return nil, contracts.NewError(contracts.KindValidation, "job", fmt.Errorf("postId must be positive, got %d", job.PostID))
	}

	// 1. 포스트 조회 (작성자, 본문)
	post, err := p.store.GetPost(ctx, job.PostID)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			return nil, contracts.NewError(contracts.KindValidation, "get post", err)
		}
		return nil, contracts.Classify("get post", err)
	}
	// 이미 점수가 있으면 건너뜀 (재투입된 작업)
	if post.AIScore != nil {
		p.logger.WithField("post_id", job.PostID).Debug("Post already scored, skipping")
		return &Outcome{PostID: job.PostID, Ticker: post.Ticker, Skipped: true}, nil
	}
	if job.Ticker == "" {
		job.Ticker = post.Ticker
	}
	if job.Content == "" {
		job.Content = post.Content
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	log := p.logger.WithFields(map[string]interface{}{
		"post_id": job.PostID,
		"ticker":  job.Ticker,
	})
	out := &Outcome{PostID: job.PostID, Ticker: job.Ticker}

	// 2. 시세 스냅샷. 데이터 없음 = 잘못된 종목
	snap, err := p.market.Snapshot(ctx, job.Ticker)
	if err != nil {
		if !errors.Is(err, contracts.ErrNoData) {
			return nil, err
		}
		if err := p.store.MarkPostInvalid(ctx, job.PostID); err != nil {
			return nil, fmt.Errorf("mark post invalid: %w", err)
		}
		log.Info("Post marked invalid ticker")
		out.Invalid = true
		return out, nil
	}
	ticker := snap.Ticker
	if ticker == "" {
		ticker = job.Ticker
	}

	// 3. 부가 컨텍스트 병렬 조회 (실패해도 진행)
	var (
		tech   *contracts.Technicals
		news   []contracts.NewsItem
		social []contracts.SocialPost
		macro  contracts.MacroContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := p.market.Technicals(gctx, ticker)
		if err != nil {
			log.WithError(err).Debug("technicals unavailable")
			return nil
		}
		tech = t
		return nil
	})
	g.Go(func() error {
		news = p.market.News(gctx, ticker, newsLimit)
		return nil
	})
	g.Go(func() error {
		social = p.market.Social(gctx, ticker, socialLimit)
		return nil
	})
	g.Go(func() error {
		macro = p.market.Macro(gctx)
		return nil
	})
	_ = g.Wait()

	// 4. LLM 분석
	ins, err := p.generator.Analyze(ctx, contracts.AnalysisRequest{
		Ticker:     ticker,
		Snapshot:   snap,
		Technicals: tech,
		News:       news,
		Social:     social,
		Macro:      macro,
		UserText:   job.Content,
	})
	if err != nil {
		return nil, err
	}
	out.Insight = ins

	// 5. 포스트 업데이트
	if err := p.store.UpdatePost(ctx, job.PostID, postUpdate(ins, snap, tech, macro, news)); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	// 6. 종목 인사이트 (실패해도 치명적 아님)
	row := contracts.NewTickerInsight(ticker, *ins, snap, macro, p.clock.Now().UTC())
	if err := p.store.UpsertTickerInsight(ctx, row); err != nil {
		log.WithError(err).Warn("ticker insight upsert failed")
	} else if p.publisher != nil {
		p.publisher.PublishInsight(row)
	}

	// 7. 평판
	if ins.EarnsReputation() && post.UserID != "" {
		if err := p.store.AppendReputation(ctx, post.UserID, ReputationPoints); err != nil {
			log.WithError(err).Warn("reputation update failed")
		} else {
			out.Reputation = true
		}
	}

	log.WithFields(map[string]interface{}{
		"score":  ins.Score,
		"risk":   ins.Risk,
		"thesis": ins.Thesis,
	}).Info("Post analyzed")
	return out, nil
}

func postUpdate(ins *contracts.Insight, snap *contracts.Snapshot, tech *contracts.Technicals, macro contracts.MacroContext, news []contracts.NewsItem) contracts.PostUpdate {
	score := ins.Score
	risk := string(ins.Risk)
	thesis := string(ins.Thesis)
	summary := FactCheckPrefix + ins.Summary

	upd := contracts.PostUpdate{
		AIScore:            &score,
		AIRisk:             &risk,
		UserSentimentLabel: &thesis,
		AISummary:          &summary,
		TargetPrice:        snap.TargetPrice,
		ShortFloat:         snap.ShortFloat,
		InsiderHeld:        snap.InsiderHeld,
	}
	if snap.AnalystRating != "" {
		rating := snap.AnalystRating
		upd.AnalystRating = &rating
	}

	raw, err := json.Marshal(rawMarketData{Snapshot: snap, Technicals: tech, Macro: macro, News: news})
	if err == nil {
		upd.RawMarketData = raw
	}
	return upd
}

// jobFromPost builds a job for the polling path
func jobFromPost(post contracts.Post) contracts.AnalysisJob {
	return contracts.AnalysisJob{PostID: post.ID, Ticker: post.Ticker, Content: post.Content}
}

// since is used for log durations
func since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
