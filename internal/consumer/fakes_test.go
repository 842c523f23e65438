package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wonny/stockread/internal/contracts"
)

type fakeMarket struct {
	snapErr error
}

func (f *fakeMarket) Snapshot(_ context.Context, ticker string) (*contracts.Snapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	if ticker == "ZZZZ" {
		return nil, contracts.ErrNoData
	}
	price, target, short := 123.45, 150.0, 0.02
	return &contracts.Snapshot{
		Ticker:        ticker,
		Price:         &price,
		TargetPrice:   &target,
		ShortFloat:    &short,
		AnalystRating: "buy",
	}, nil
}

func (f *fakeMarket) Technicals(context.Context, string) (*contracts.Technicals, error) {
	return &contracts.Technicals{RSISignal: "Neutral", Trend: "NEUTRAL"}, nil
}

func (f *fakeMarket) News(context.Context, string, int) []contracts.NewsItem {
	return []contracts.NewsItem{{Source: "Wire", Title: "ACME beats"}}
}

func (f *fakeMarket) Social(context.Context, string, int) []contracts.SocialPost {
	return []contracts.SocialPost{}
}

func (f *fakeMarket) Macro(context.Context) contracts.MacroContext {
	return contracts.MacroContext{Sentiment: contracts.MacroUnknown}
}

type fakeGen struct {
	mu       sync.Mutex
	score    int
	thesis   contracts.Thesis
	err      error
	requests []contracts.AnalysisRequest
}

func (g *fakeGen) Analyze(_ context.Context, req contracts.AnalysisRequest) (*contracts.Insight, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &contracts.Insight{
		Score:   g.score,
		Risk:    contracts.RiskFromScore(g.score),
		Thesis:  g.thesis,
		Summary: "Solid quarter",
		Tags:    []string{"earnings"},
	}, nil
}

func (g *fakeGen) AnalyzeBatch(context.Context, contracts.BatchRequest) (map[string]contracts.Insight, error) {
	return nil, errors.New("not used")
}

func (g *fakeGen) Available() bool { return true }

type memStore struct {
	mu         sync.Mutex
	posts      map[int64]*contracts.Post
	updates    map[int64]contracts.PostUpdate
	insights   map[string]contracts.TickerInsight
	reputation map[string]int
	upsertErr  error
}

func newMemStore(posts ...contracts.Post) *memStore {
	s := &memStore{
		posts:      make(map[int64]*contracts.Post),
		updates:    make(map[int64]contracts.PostUpdate),
		insights:   make(map[string]contracts.TickerInsight),
		reputation: make(map[string]int),
	}
	for i := range posts {
		p := posts[i]
		s.posts[p.ID] = &p
	}
	return s
}

func (s *memStore) UpsertTickerInsight(_ context.Context, row contracts.TickerInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.insights[row.Ticker] = row
	return nil
}

func (s *memStore) GetTickerInsight(_ context.Context, ticker string) (*contracts.TickerInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.insights[ticker]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return &row, nil
}

func (s *memStore) GetPost(_ context.Context, id int64) (*contracts.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) PostsByIDs(ctx context.Context, ids []int64) ([]contracts.Post, error) {
	var out []contracts.Post
	for _, id := range ids {
		if p, err := s.GetPost(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) PendingPosts(_ context.Context, limit int, exclude []int64) ([]contracts.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []contracts.Post
	for id := int64(1); id <= int64(len(s.posts))+100 && len(out) < limit; id++ {
		if p, ok := s.posts[id]; ok && p.AIScore == nil && !skip[id] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) UpdatePost(_ context.Context, id int64, upd contracts.PostUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return contracts.ErrNotFound
	}
	s.updates[id] = upd
	if upd.AIScore != nil {
		score := *upd.AIScore
		p.AIScore = &score
	}
	if upd.AISummary != nil {
		p.AISummary = *upd.AISummary
	}
	if upd.AIRisk != nil {
		p.AIRisk = *upd.AIRisk
	}
	return nil
}

func (s *memStore) MarkPostInvalid(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return contracts.ErrNotFound
	}
	score := contracts.InvalidScore
	p.AIScore = &score
	p.AISummary = contracts.InvalidSummary
	return nil
}

func (s *memStore) AppendReputation(_ context.Context, userID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation[userID] += points
	return nil
}

type memQueue struct {
	mu      sync.Mutex
	items   [][]byte
	pingErr error
	popErr  error
}

func (q *memQueue) Push(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, payload)
	return nil
}

func (q *memQueue) Pop(context.Context, time.Duration) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.popErr != nil {
		return nil, q.popErr
	}
	if len(q.items) == 0 {
		return nil, nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, nil
}

func (q *memQueue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pingErr
}

func (q *memQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
