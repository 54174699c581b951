// Package league holds the static league ladder and the daily reward
// defaults. Both are immutable after Load.
package league

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed leagues.yaml
var defaultYAML []byte

type Colors struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
	Text      string `yaml:"text" json:"text"`
	Glow      string `yaml:"glow" json:"glow"`
}

type Tier struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Image       string `yaml:"image" json:"image"`
	Description string `yaml:"description" json:"description"`
	Threshold   int64  `yaml:"threshold" json:"coin_requirement"`
	Reward      int64  `yaml:"reward" json:"reward"`
	Colors      Colors `yaml:"colors" json:"colors"`
}

type file struct {
	Leagues       []Tier  `yaml:"leagues"`
	DailyLadder   []int64 `yaml:"daily_ladder"`
	DailyFallback int64   `yaml:"daily_fallback"`
}

type Catalog struct {
	tiers         []Tier
	ladder        []int64
	dailyFallback int64
}

var (
	ErrEmpty         = errors.New("league catalog is empty")
	ErrBadThresholds = errors.New("league thresholds must start at 0 and strictly increase")
	ErrBadIDs        = errors.New("league ids must be contiguous from 1")
)

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse league catalog: %w", err)
	}
	if len(f.Leagues) == 0 {
		return nil, ErrEmpty
	}
	tiers := append([]Tier(nil), f.Leagues...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].ID < tiers[j].ID })
	for i, t := range tiers {
		if t.ID != i+1 {
			return nil, ErrBadIDs
		}
		if i == 0 && t.Threshold != 0 {
			return nil, ErrBadThresholds
		}
		if i > 0 && t.Threshold <= tiers[i-1].Threshold {
			return nil, ErrBadThresholds
		}
	}
	if f.DailyFallback <= 0 {
		f.DailyFallback = 500
	}
	return &Catalog{tiers: tiers, ladder: f.DailyLadder, dailyFallback: f.DailyFallback}, nil
}

// Default returns the embedded catalog. It panics if the embedded file is
// invalid, which can only happen at build time.
func Default() *Catalog {
	c, err := Load(defaultYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Derive returns the highest tier whose threshold is <= coins.
func (c *Catalog) Derive(coins int64) int {
	// tiers are sorted by threshold, find the first one above coins
	i := sort.Search(len(c.tiers), func(i int) bool { return c.tiers[i].Threshold > coins })
	if i == 0 {
		return c.tiers[0].ID
	}
	return c.tiers[i-1].ID
}

func (c *Catalog) Get(id int) (Tier, bool) {
	if id < 1 || id > len(c.tiers) {
		return Tier{}, false
	}
	return c.tiers[id-1], true
}

// Next returns the tier after id, if any.
func (c *Catalog) Next(id int) (Tier, bool) {
	return c.Get(id + 1)
}

func (c *Catalog) Reward(id int) int64 {
	t, ok := c.Get(id)
	if !ok {
		return 0
	}
	return t.Reward
}

func (c *Catalog) Max() int { return len(c.tiers) }

func (c *Catalog) All() []Tier {
	return append([]Tier(nil), c.tiers...)
}

// DailyReward returns the default reward for a streak day (1..7).
func (c *Catalog) DailyReward(day int) int64 {
	if day >= 1 && day <= len(c.ladder) {
		return c.ladder[day-1]
	}
	return c.dailyFallback
}
