package analyst

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wonny/stockread/internal/contracts"
)

// TierSpec sizes one tier of the ranked universe
type TierSpec struct {
	Name      string `yaml:"name"`
	Size      int    `yaml:"size"`       // 종목 수
	BatchSize int    `yaml:"batch_size"` // 프롬프트당 종목 수
}

// RunSpec is one daily run time and the tiers it covers
type RunSpec struct {
	At    string   `yaml:"at"` // HH:MM, exchange time
	Tiers []string `yaml:"tiers"`

	clock clockTime
}

// Schedule is the tier layout and daily run plan
// ⭐ SSOT: 티어 구성과 실행 시각은 여기서만
type Schedule struct {
	Tiers []TierSpec `yaml:"tiers"`
	Runs  []RunSpec  `yaml:"runs"`
}

// DefaultSchedule is 100/200/200 tickers with batch sizes 5/10/15.
// All tiers at 10:00, top and mid again at 12:00 and 14:30.
func DefaultSchedule() *Schedule {
	s := &Schedule{
		Tiers: []TierSpec{
			{Name: contracts.TierTop, Size: 100, BatchSize: 5},
			{Name: contracts.TierMid, Size: 200, BatchSize: 10},
			{Name: contracts.TierTail, Size: 200, BatchSize: 15},
		},
		Runs: []RunSpec{
			{At: "10:00", Tiers: []string{contracts.TierTop, contracts.TierMid, contracts.TierTail}},
			{At: "12:00", Tiers: []string{contracts.TierTop, contracts.TierMid}},
			{At: "14:30", Tiers: []string{contracts.TierTop, contracts.TierMid}},
		},
	}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

// LoadSchedule reads a YAML schedule. Unknown fields fail the load.
func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSchedule(data)
}

// ParseSchedule decodes and validates YAML schedule bytes
func ParseSchedule(data []byte) (*Schedule, error) {
	var s Schedule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 오타 필드 즉시 실패
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidationError is a schedule field that cannot be used
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks tiers and runs, and sorts runs by time of day
func (s *Schedule) Validate() error {
	if len(s.Tiers) == 0 {
		return ValidationError{"tiers", "required"}
	}

	names := make(map[string]bool, len(s.Tiers))
	for i, t := range s.Tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		if t.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if names[t.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate tier %q", t.Name)}
		}
		names[t.Name] = true
		if t.Size <= 0 {
			return ValidationError{field + ".size", "must be > 0"}
		}
		if t.BatchSize <= 0 {
			return ValidationError{field + ".batch_size", "must be > 0"}
		}
	}

	seen := make(map[string]bool, len(s.Runs))
	for i := range s.Runs {
		r := &s.Runs[i]
		field := fmt.Sprintf("runs[%d]", i)
		c, err := parseClock(r.At)
		if err != nil {
			return ValidationError{field + ".at", err.Error()}
		}
		if seen[c.String()] {
			return ValidationError{field + ".at", fmt.Sprintf("duplicate run time %s", c)}
		}
		seen[c.String()] = true
		r.clock = c

		if len(r.Tiers) == 0 {
			return ValidationError{field + ".tiers", "required"}
		}
		for _, name := range r.Tiers {
			if !names[name] {
				return ValidationError{field + ".tiers", fmt.Sprintf("unknown tier %q", name)}
			}
		}
	}

	sort.Slice(s.Runs, func(i, j int) bool {
		a, b := s.Runs[i].clock, s.Runs[j].clock
		return a.hour*60+a.minute < b.hour*60+b.minute
	})
	return nil
}

// Capacity returns the total number of tickers across tiers
func (s *Schedule) Capacity() int {
	n := 0
	for _, t := range s.Tiers {
		n += t.Size
	}
	return n
}

// TierPlan slices a ranked list into disjoint contiguous tiers.
// Tiers past the end of the list are returned empty.
func TierPlan(ranked []string, specs []TierSpec) []contracts.Tier {
	tiers := make([]contracts.Tier, 0, len(specs))
	start := 0
	for _, spec := range specs {
		end := start + spec.Size
		if end > len(ranked) {
			end = len(ranked)
		}
		if start > end {
			start = end
		}
		symbols := make([]string, end-start)
		copy(symbols, ranked[start:end])
		tiers = append(tiers, contracts.Tier{
			Name:      spec.Name,
			Symbols:   symbols,
			BatchSize: spec.BatchSize,
		})
		start = end
	}
	return tiers
}
