package analyst

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/pkg/logger"
	"github.com/wonny/stockread/pkg/redis"
)

type fakeConstituents struct {
	symbols []string
	calls   int
}

func (f *fakeConstituents) SP500(context.Context) []string {
	f.calls++
	return f.symbols
}

type fakeCaps map[string]float64

func (f fakeCaps) MarketCaps(_ context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, s := range symbols {
		if c, ok := f[s]; ok {
			out[s] = c
		}
	}
	return out, nil
}

func TestRankByMarketCap(t *testing.T) {
	ranked := RankByMarketCap(
		[]string{"AAA", "BBB", "CCC", "DDD", "EEE"},
		map[string]float64{"BBB": 10, "DDD": 30, "EEE": 20},
	)
	assert.Equal(t, []string{"DDD", "EEE", "BBB", "AAA", "CCC"}, ranked)
}

func TestUniverseBuilder_Build(t *testing.T) {
	schedule, err := ParseSchedule([]byte("tiers:\n  - name: top\n    size: 2\n    batch_size: 1\n  - name: mid\n    size: 2\n    batch_size: 2\n"))
	require.NoError(t, err)

	cs := &fakeConstituents{symbols: []string{"AAA", "BBB", "CCC", "DDD", "EEE"}}
	caps := fakeCaps{"AAA": 1, "BBB": 5, "CCC": 3, "DDD": 4, "EEE": 2}

	b := NewUniverseBuilder(cs, caps, schedule, 0, logger.Nop())
	u, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BBB", "DDD", "CCC", "EEE"}, u.Ranked)
	top, ok := u.Tier("top")
	require.True(t, ok)
	assert.Equal(t, []string{"BBB", "DDD"}, top.Symbols)
	mid, _ := u.Tier("mid")
	assert.Equal(t, []string{"CCC", "EEE"}, mid.Symbols)
	assert.False(t, u.BuiltAt.IsZero())
}

func TestUniverseBuilder_Empty(t *testing.T) {
	b := NewUniverseBuilder(&fakeConstituents{}, fakeCaps{}, DefaultSchedule(), 0, logger.Nop())
	_, err := b.Build(context.Background())
	assert.Error(t, err)
}

func TestUniverseStore_FileCache(t *testing.T) {
	cs := &fakeConstituents{symbols: []string{"AAA", "BBB"}}
	b := NewUniverseBuilder(cs, fakeCaps{"AAA": 2, "BBB": 1}, DefaultSchedule(), 0, logger.Nop())

	file := filepath.Join(t.TempDir(), "universe.json")
	cache := redis.NewCache(redis.Disabled("test"))
	store := NewUniverseStore(b, cache, file, 7*24*time.Hour, logger.Nop())

	u, err := store.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, u.Ranked)
	assert.Equal(t, 1, cs.calls)

	// 두 번째 조회는 파일 캐시
	u, err = store.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, u.Count())
	assert.Equal(t, 1, cs.calls)

	// 만료되면 재생성
	store.clock = &fixedClock{t: time.Now().Add(8 * 24 * time.Hour)}
	_, err = store.Universe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cs.calls)
}
