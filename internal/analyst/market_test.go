package analyst

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestMarketHours_IsOpen(t *testing.T) {
	hours, err := NewMarketHours("America/New_York", "09:30", "16:00")
	require.NoError(t, err)
	ny := newYork(t)

	// 2024-01-08 is a Monday
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2024, 1, 8, 9, 29, 59, 0, ny), false},
		{"at open", time.Date(2024, 1, 8, 9, 30, 0, 0, ny), true},
		{"midday", time.Date(2024, 1, 8, 12, 0, 0, 0, ny), true},
		{"at close", time.Date(2024, 1, 8, 16, 0, 0, 0, ny), true},
		{"after close", time.Date(2024, 1, 8, 16, 1, 0, 0, ny), false},
		{"saturday", time.Date(2024, 1, 6, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2024, 1, 7, 12, 0, 0, 0, ny), false},
		{"utc input", time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC), true}, // 10:00 ET
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hours.IsOpen(tt.at))
		})
	}
}

func TestMarketHours_NextOpen(t *testing.T) {
	hours, err := NewMarketHours("America/New_York", "09:30", "16:00")
	require.NoError(t, err)
	ny := newYork(t)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"monday early", time.Date(2024, 1, 8, 7, 0, 0, 0, ny), time.Date(2024, 1, 8, 9, 30, 0, 0, ny)},
		{"exactly open", time.Date(2024, 1, 8, 9, 30, 0, 0, ny), time.Date(2024, 1, 8, 9, 30, 0, 0, ny)},
		{"monday evening", time.Date(2024, 1, 8, 17, 0, 0, 0, ny), time.Date(2024, 1, 9, 9, 30, 0, 0, ny)},
		{"friday evening", time.Date(2024, 1, 12, 17, 0, 0, 0, ny), time.Date(2024, 1, 15, 9, 30, 0, 0, ny)},
		{"saturday", time.Date(2024, 1, 13, 10, 0, 0, 0, ny), time.Date(2024, 1, 15, 9, 30, 0, 0, ny)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hours.NextOpen(tt.at)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestNewMarketHours_Invalid(t *testing.T) {
	_, err := NewMarketHours("Mars/Olympus", "09:30", "16:00")
	assert.Error(t, err)

	_, err = NewMarketHours("America/New_York", "9h30", "16:00")
	assert.Error(t, err)

	_, err = NewMarketHours("America/New_York", "16:00", "09:30")
	assert.Error(t, err)
}

func symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("T%03d", i)
	}
	return out
}

func TestChunk(t *testing.T) {
	list := symbols(37)
	chunks := Chunk(list, 10)

	sizes := make([]int, len(chunks))
	var joined []string
	for i, c := range chunks {
		sizes[i] = len(c)
		joined = append(joined, c...)
	}
	assert.Equal(t, []int{10, 10, 10, 7}, sizes)
	assert.Equal(t, list, joined)
}

func TestChunk_Edges(t *testing.T) {
	assert.Nil(t, Chunk(nil, 5))
	assert.Len(t, Chunk(symbols(3), 0), 1)
	assert.Len(t, Chunk(symbols(3), -1), 1)
	assert.Len(t, Chunk(symbols(3), 3), 1)
	assert.Len(t, Chunk(symbols(4), 3), 2)
}
