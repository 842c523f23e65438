package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

// ConstituentSource lists the index members (Wikipedia S&P 500)
type ConstituentSource interface {
	SP500(ctx context.Context) []string
}

// CapSource returns market capitalization per symbol (Yahoo)
type CapSource interface {
	MarketCaps(ctx context.Context, symbols []string) (map[string]float64, error)
}

// UniverseBuilder ranks the index by market cap and splits it into tiers
type UniverseBuilder struct {
	constituents ConstituentSource
	caps         CapSource
	schedule     *Schedule
	limit        int
	clock        contracts.Clock
	logger       *logger.Logger
}

// NewUniverseBuilder creates a new builder. limit caps the ranked list (0 = schedule capacity).
func NewUniverseBuilder(cs ConstituentSource, caps CapSource, schedule *Schedule, limit int, log *logger.Logger) *UniverseBuilder {
	if limit <= 0 || limit > schedule.Capacity() {
		limit = schedule.Capacity()
	}
	return &UniverseBuilder{
		constituents: cs,
		caps:         caps,
		schedule:     schedule,
		limit:        limit,
		clock:        contracts.SystemClock{},
		logger:       log.WithComponent("universe"),
	}
}

// Build constructs the tiered universe
// ⭐ SSOT: 유니버스 → 배치 스케줄러 티어 생성
func (b *UniverseBuilder) Build(ctx context.Context) (*contracts.Universe, error) {
	// 1. 지수 구성 종목
	symbols := b.constituents.SP500(ctx)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("build universe: %w", contracts.ErrNoData)
	}

	// 2. 시가총액
	caps, err := b.caps.MarketCaps(ctx, symbols)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("build universe: %w", ctx.Err())
		}
		// 일부만 받아도 진행
		b.logger.WithError(err).WithField("received", len(caps)).Warn("market caps incomplete")
	}

	// 3. 랭킹 + 티어
	ranked := RankByMarketCap(symbols, caps)
	if len(ranked) > b.limit {
		ranked = ranked[:b.limit]
	}

	u := &contracts.Universe{
		Ranked:  ranked,
		Tiers:   TierPlan(ranked, b.schedule.Tiers),
		BuiltAt: b.clock.Now().UTC(),
	}

	b.logger.WithFields(map[string]interface{}{
		"constituents": len(symbols),
		"with_cap":     len(caps),
		"ranked":       len(ranked),
	}).Info("Universe built")
	return u, nil
}

// RankByMarketCap orders symbols by cap, largest first.
// Symbols without a cap keep their input order after the ranked ones.
func RankByMarketCap(symbols []string, caps map[string]float64) []string {
	ranked := make([]string, len(symbols))
	copy(ranked, symbols)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, iok := caps[ranked[i]]
		cj, jok := caps[ranked[j]]
		if iok != jok {
			return iok
		}
		return ci > cj
	})
	return ranked
}

// UniverseStore caches the built universe in Redis, or a local JSON file when Redis is disabled
type UniverseStore struct {
	builder *UniverseBuilder
	cache   *redis.Cache
	file    string
	ttl     time.Duration
	clock   contracts.Clock
	logger  *logger.Logger
}

// NewUniverseStore creates a new store
func NewUniverseStore(builder *UniverseBuilder, cache *redis.Cache, file string, ttl time.Duration, log *logger.Logger) *UniverseStore {
	return &UniverseStore{
		builder: builder,
		cache:   cache,
		file:    file,
		ttl:     ttl,
		clock:   contracts.SystemClock{},
		logger:  log.WithComponent("universe"),
	}
}

// Universe returns the cached universe, rebuilding it when missing or stale
func (s *UniverseStore) Universe(ctx context.Context) (*contracts.Universe, error) {
	if u := s.load(ctx); u != nil && u.IsFresh(s.clock.Now(), s.ttl) {
		return u, nil
	}
	return s.Refresh(ctx)
}

// Refresh rebuilds and saves the universe
func (s *UniverseStore) Refresh(ctx context.Context) (*contracts.Universe, error) {
	u, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	s.save(ctx, u)
	return u, nil
}

func (s *UniverseStore) load(ctx context.Context) *contracts.Universe {
	var u contracts.Universe
	if s.cache != nil && s.cache.Enabled() {
		hit, err := s.cache.Get(ctx, redis.UniverseKey, &u)
		if err != nil {
			s.logger.WithError(err).Warn("universe cache read failed")
		}
		if hit {
			return &u
		}
		return nil
	}

	if s.file == "" {
		return nil
	}
	data, err := os.ReadFile(s.file)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).Warn("universe file read failed")
		}
		return nil
	}
	if err := json.Unmarshal(data, &u); err != nil {
		s.logger.WithError(err).Warn("universe file corrupt")
		return nil
	}
	return &u
}

func (s *UniverseStore) save(ctx context.Context, u *contracts.Universe) {
	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, redis.UniverseKey, u, s.ttl); err != nil {
			s.logger.WithError(err).Warn("universe cache write failed")
		}
		return
	}

	if s.file == "" {
		return
	}
	data, err := json.Marshal(u)
	if err != nil {
		s.logger.WithError(err).Warn("universe encode failed")
		return
	}
	if err := os.WriteFile(s.file, data, 0o644); err != nil {
		s.logger.WithError(err).Warn("universe file write failed")
	}
}
