package analyst

import (
	"fmt"
	"time"
)

// MarketHours is the regular session of the exchange
type MarketHours struct {
	loc   *time.Location
	open  clockTime
	close clockTime
}

// clockTime is a wall-clock time of day
type clockTime struct {
	hour, minute int
}

func (c clockTime) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

func (c clockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

func parseClock(s string) (clockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return clockTime{}, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return clockTime{hour: t.Hour(), minute: t.Minute()}, nil
}

// NewMarketHours creates the session gate for tz between open and close (HH:MM)
func NewMarketHours(tz, open, close string) (*MarketHours, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	o, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	if c.hour*60+c.minute <= o.hour*60+o.minute {
		return nil, fmt.Errorf("market close %s must be after open %s", c, o)
	}
	return &MarketHours{loc: loc, open: o, close: c}, nil
}

// Location returns the exchange timezone
func (m *MarketHours) Location() *time.Location {
	return m.loc
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsOpen reports whether t falls in the session. Both bounds are inclusive.
func (m *MarketHours) IsOpen(t time.Time) bool {
	local := t.In(m.loc)
	if !isWeekday(local) {
		return false
	}
	return !local.Before(m.open.on(local)) && !local.After(m.close.on(local))
}

// NextOpen returns the next session open at or after t
func (m *MarketHours) NextOpen(t time.Time) time.Time {
	local := t.In(m.loc)
	for i := 0; i < 8; i++ {
		day := local.AddDate(0, 0, i)
		if !isWeekday(day) {
			continue
		}
		open := m.open.on(day)
		if !open.Before(local) {
			return open
		}
	}
	// 도달 불가
	return m.open.on(local.AddDate(0, 0, 7))
}

// Chunk splits list into contiguous slices of size. The last may be shorter.
// size <= 0 returns the whole list as one chunk.
func Chunk(list []string, size int) [][]string {
	if len(list) == 0 {
		return nil
	}
	if size <= 0 || size >= len(list) {
		return [][]string{list}
	}

	chunks := make([][]string, 0, (len(list)+size-1)/size)
	for start := 0; start < len(list); start += size {
		end := start + size
		if end > len(list) {
			end = len(list)
		}
		chunks = append(chunks, list[start:end])
	}
	return chunks
}
