package analyst

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type fakeMarket struct {
	missing map[string]bool
}

func (f *fakeMarket) Snapshot(_ context.Context, ticker string) (*contracts.Snapshot, error) {
	if f.missing[ticker] {
		return nil, contracts.ErrNoData
	}
	price := 100.0
	return &contracts.Snapshot{Ticker: ticker, Price: &price}, nil
}

func (f *fakeMarket) Technicals(context.Context, string) (*contracts.Technicals, error) {
	return nil, nil
}

func (f *fakeMarket) News(context.Context, string, int) []contracts.NewsItem { return nil }

func (f *fakeMarket) Social(context.Context, string, int) []contracts.SocialPost { return nil }

func (f *fakeMarket) Macro(context.Context) contracts.MacroContext {
	vix := 15.0
	return contracts.MacroContext{VIX: &vix, Sentiment: "Calm"}
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   [][]string
	score   int
	failFor map[string]error // 청크 첫 종목 기준
}

func (g *fakeGenerator) Analyze(context.Context, contracts.AnalysisRequest) (*contracts.Insight, error) {
	return nil, errors.New("not used")
}

func (g *fakeGenerator) AnalyzeBatch(_ context.Context, req contracts.BatchRequest) (map[string]contracts.Insight, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tickers := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		tickers = append(tickers, it.Ticker)
	}
	g.calls = append(g.calls, tickers)

	if err := g.failFor[tickers[0]]; err != nil {
		return nil, err
	}
	out := make(map[string]contracts.Insight, len(tickers))
	for _, t := range tickers {
		out[t] = contracts.Insight{
			Score:   g.score,
			Risk:    contracts.RiskFromScore(g.score),
			Thesis:  contracts.ThesisNeutral,
			Summary: "ok",
		}
	}
	return out, nil
}

func (g *fakeGenerator) Available() bool { return true }

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]contracts.TickerInsight
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]contracts.TickerInsight)}
}

func (s *memStore) UpsertTickerInsight(_ context.Context, row contracts.TickerInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Ticker] = row
	return nil
}

func (s *memStore) GetTickerInsight(_ context.Context, ticker string) (*contracts.TickerInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[ticker]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return &row, nil
}

type staticUniverse struct {
	u *contracts.Universe
}

func (s staticUniverse) Universe(context.Context) (*contracts.Universe, error) {
	return s.u, nil
}

type recorder struct {
	mu   sync.Mutex
	rows []contracts.TickerInsight
}

func (r *recorder) PublishInsight(row contracts.TickerInsight) {
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

type harness struct {
	analyst *Analyst
	gen     *fakeGenerator
	store   *memStore
	market  *fakeMarket
	pub     *recorder
	clock   *fixedClock
	sleeps  []time.Duration
}

func newHarness(t *testing.T, ranked []string) *harness {
	t.Helper()

	hours, err := NewMarketHours("America/New_York", "09:30", "16:00")
	require.NoError(t, err)

	h := &harness{
		gen:    &fakeGenerator{score: 92},
		store:  newMemStore(),
		market: &fakeMarket{missing: map[string]bool{}},
		pub:    &recorder{},
		clock:  &fixedClock{},
	}
	u := &contracts.Universe{
		Ranked:  ranked,
		Tiers:   TierPlan(ranked, DefaultSchedule().Tiers),
		BuiltAt: time.Now(),
	}

	a, err := New(Deps{
		MarketData: h.market,
		Generator:  h.gen,
		Store:      h.store,
		Universe:   staticUniverse{u: u},
		Hours:      hours,
		Publisher:  h.pub,
	}, Options{
		BatchDelay:   20 * time.Second,
		RunTolerance: 5 * time.Minute,
		MaxSleep:     5 * time.Minute,
		MinSleep:     time.Minute,
	}, logger.Nop())
	require.NoError(t, err)

	a.clock = h.clock
	a.sleep = func(ctx context.Context, d time.Duration) bool {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err() == nil
	}
	h.analyst = a
	return h
}

func TestRunTier_PacesBetweenChunksOnly(t *testing.T) {
	h := newHarness(t, symbols(12))
	h.clock.t = time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC)
	h.market.missing["T003"] = true

	tier := contracts.Tier{Name: "top", Symbols: symbols(12), BatchSize: 5}
	report := h.analyst.RunTier(context.Background(), tier)

	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 0, report.FailedChunks)
	assert.Equal(t, 11, report.Analyzed)
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, h.sleeps)

	// 데이터 없는 종목은 프롬프트에서 제외
	require.Len(t, h.gen.calls, 3)
	assert.NotContains(t, h.gen.calls[0], "T003")
	assert.Len(t, h.gen.calls[0], 4)

	row, err := h.store.GetTickerInsight(context.Background(), "T000")
	require.NoError(t, err)
	assert.Equal(t, 92, row.Score)
	assert.Equal(t, contracts.RiskLow, row.Risk)
	assert.Equal(t, "Strong Buy", row.Signal)
	assert.Equal(t, "Calm", row.MarketSentiment)

	assert.Len(t, h.pub.rows, 11)
}

func TestRunTier_ChunkFailureContinues(t *testing.T) {
	h := newHarness(t, symbols(12))
	h.gen.failFor = map[string]error{
		"T005": contracts.NewError(contracts.KindRateLimited, "llm", errors.New("429")),
	}

	tier := contracts.Tier{Name: "top", Symbols: symbols(12), BatchSize: 5}
	report := h.analyst.RunTier(context.Background(), tier)

	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 1, report.FailedChunks)
	assert.Equal(t, 7, report.Analyzed)
	// 실패 청크 뒤에는 rate limit 대기
	assert.Equal(t, []time.Duration{20 * time.Second, 60 * time.Second}, h.sleeps)

	_, err := h.store.GetTickerInsight(context.Background(), "T005")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestRunTier_Cancelled(t *testing.T) {
	h := newHarness(t, symbols(12))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := h.analyst.RunTier(ctx, contracts.Tier{Name: "top", Symbols: symbols(12), BatchSize: 5})
	assert.Equal(t, 0, report.Chunks)
	assert.Equal(t, 0, h.gen.callCount())
}

func TestTick_RunsTargetOncePerDay(t *testing.T) {
	h := newHarness(t, symbols(8))
	ny := newYork(t)

	// 월요일 10:02 ET: 10:00 타겟 실행
	h.clock.t = time.Date(2024, 1, 8, 10, 2, 0, 0, ny)
	wait := h.analyst.Tick(context.Background())
	assert.Equal(t, 5*time.Minute, wait)
	assert.Equal(t, 2, h.gen.callCount()) // top 8개 / 5 → 2 청크
	assert.Equal(t, StateIdle, h.analyst.State())

	last := h.analyst.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, "10:00", last.Target)
	assert.Equal(t, 8, last.Analyzed())
	assert.NotEmpty(t, last.ID)

	// 같은 날 같은 타겟은 다시 돌지 않음
	h.clock.t = time.Date(2024, 1, 8, 10, 4, 0, 0, ny)
	h.analyst.Tick(context.Background())
	assert.Equal(t, 2, h.gen.callCount())

	// 다음 날은 다시 실행
	h.clock.t = time.Date(2024, 1, 9, 10, 1, 0, 0, ny)
	h.analyst.Tick(context.Background())
	assert.Equal(t, 4, h.gen.callCount())
}

func TestTick_OutsideTolerance(t *testing.T) {
	h := newHarness(t, symbols(8))
	ny := newYork(t)

	h.clock.t = time.Date(2024, 1, 8, 11, 0, 0, 0, ny)
	wait := h.analyst.Tick(context.Background())
	assert.Equal(t, 0, h.gen.callCount())
	assert.Equal(t, 5*time.Minute, wait)

	// 12:00 타겟 2분 전: 윈도우 안이므로 실행
	h.clock.t = time.Date(2024, 1, 8, 11, 58, 0, 0, ny)
	h.analyst.Tick(context.Background())
	assert.Equal(t, 2, h.gen.callCount())

	// 14:30 타겟 30초 전: 실행 후 최소 1분 대기
	h.clock.t = time.Date(2024, 1, 8, 14, 29, 30, 0, ny)
	wait = h.analyst.Tick(context.Background())
	assert.Equal(t, 4, h.gen.callCount())
	assert.Equal(t, time.Minute, wait)
}

func TestTick_MarketClosed(t *testing.T) {
	h := newHarness(t, symbols(8))
	ny := newYork(t)

	h.clock.t = time.Date(2024, 1, 6, 10, 0, 0, 0, ny) // 토요일
	wait := h.analyst.Tick(context.Background())

	assert.Equal(t, 5*time.Minute, wait)
	assert.Equal(t, StateClosed, h.analyst.State())
	assert.Equal(t, 0, h.gen.callCount())
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, symbols(8))
	h.clock.t = time.Date(2024, 1, 6, 10, 0, 0, 0, newYork(t))

	ctx, cancel := context.WithCancel(context.Background())
	h.analyst.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	assert.NoError(t, h.analyst.Run(ctx))
	assert.Equal(t, StateIdle, h.analyst.State())
}

type unavailableGenerator struct{ fakeGenerator }

func (*unavailableGenerator) Available() bool { return false }

func TestInit_RequiresGenerator(t *testing.T) {
	h := newHarness(t, symbols(1))
	h.analyst.deps.Generator = &unavailableGenerator{}

	err := h.analyst.Init(context.Background())
	assert.ErrorIs(t, err, contracts.ErrUnavailable)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{}, logger.Nop())
	assert.Error(t, err)
}
