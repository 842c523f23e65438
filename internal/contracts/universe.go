package contracts

import "time"

// Tier names
const (
	TierTop  = "top"
	TierMid  = "mid"
	TierTail = "tail"
)

// Tier is a contiguous slice of the ranked universe analyzed with one batch size
type Tier struct {
	Name      string   `json:"name"`
	Symbols   []string `json:"symbols"`
	BatchSize int      `json:"batch_size"`
}

// Universe is the market-cap ranked symbol list split into disjoint tiers
// ⭐ SSOT: Universe → Batch Scheduler 티어 전달
type Universe struct {
	Ranked  []string  `json:"ranked"`
	Tiers   []Tier    `json:"tiers"`
	BuiltAt time.Time `json:"built_at"`
}

// Contains checks if a symbol is in the universe
func (u *Universe) Contains(symbol string) bool {
	for _, s := range u.Ranked {
		if s == symbol {
			return true
		}
	}
	return false
}

// Count returns the number of ranked symbols
func (u *Universe) Count() int {
	return len(u.Ranked)
}

// Tier returns the tier with the given name
func (u *Universe) Tier(name string) (Tier, bool) {
	for _, t := range u.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// IsFresh reports whether the universe was built within ttl of now
func (u *Universe) IsFresh(now time.Time, ttl time.Duration) bool {
	return !u.BuiltAt.IsZero() && now.Sub(u.BuiltAt) < ttl && len(u.Tiers) > 0
}
