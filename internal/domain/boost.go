package domain

import (
	"math"
	"time"
)

type BoostType string

const (
	BoostMultiTouch  BoostType = "multiTouch"
	BoostEnergyLimit BoostType = "energyLimit"
	BoostChargeSpeed BoostType = "chargeSpeed"
)

const (
	MaxBoostLevel        = 3
	BoostBaseCost        = 2000
	BoostGrowthFactor    = 1.5
	DailyRockets         = 3
	RocketEnergy         = 500
	MultiTouchTapBonus   = 2
	EnergyLimitBonus     = 500
	ChargeSpeedRegenStep = 0.2
)

// ParseBoostType accepts both the camelCase names used by the client and
// the snake_case column prefixes.
func ParseBoostType(s string) (BoostType, bool) {
	switch s {
	case "multiTouch", "multi_touch":
		return BoostMultiTouch, true
	case "energyLimit", "energy_limit":
		return BoostEnergyLimit, true
	case "chargeSpeed", "charge_speed":
		return BoostChargeSpeed, true
	}
	return "", false
}

// BoostCost is floor(base * growth^level).
func BoostCost(level int) int64 {
	return int64(math.Floor(BoostBaseCost * math.Pow(BoostGrowthFactor, float64(level))))
}

// RegenInterval is the time between single energy points at the given
// charge speed level.
func RegenInterval(chargeSpeedLevel int) time.Duration {
	mult := 1 + ChargeSpeedRegenStep*float64(chargeSpeedLevel)
	return time.Duration(float64(time.Second) / mult)
}

type BoostProfile struct {
	UserID           int64     `db:"user_id" json:"user_id"`
	MultiTouchLevel  int       `db:"multi_touch_level" json:"multi_touch_level"`
	EnergyLimitLevel int       `db:"energy_limit_level" json:"energy_limit_level"`
	ChargeSpeedLevel int       `db:"charge_speed_level" json:"charge_speed_level"`
	DailyRockets     int       `db:"daily_rockets" json:"daily_rockets"`
	MaxDailyRockets  int       `db:"max_daily_rockets" json:"max_daily_rockets"`
	EnergyFullUsed   bool      `db:"energy_full_used" json:"energy_full_used"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

func NewBoostProfile(userID int64) *BoostProfile {
	return &BoostProfile{
		UserID:          userID,
		DailyRockets:    DailyRockets,
		MaxDailyRockets: DailyRockets,
	}
}

func (p *BoostProfile) Level(t BoostType) int {
	switch t {
	case BoostMultiTouch:
		return p.MultiTouchLevel
	case BoostEnergyLimit:
		return p.EnergyLimitLevel
	case BoostChargeSpeed:
		return p.ChargeSpeedLevel
	}
	return 0
}

func (p *BoostProfile) SetLevel(t BoostType, level int) {
	switch t {
	case BoostMultiTouch:
		p.MultiTouchLevel = level
	case BoostEnergyLimit:
		p.EnergyLimitLevel = level
	case BoostChargeSpeed:
		p.ChargeSpeedLevel = level
	}
}

// BoostView is the per-track summary sent to the client. Cost is always
// derived from level.
type BoostView struct {
	Level    int   `json:"level"`
	Cost     int64 `json:"cost"`
	MaxLevel int   `json:"max_level"`
}

func (p *BoostProfile) View(t BoostType) BoostView {
	lvl := p.Level(t)
	return BoostView{Level: lvl, Cost: BoostCost(lvl), MaxLevel: MaxBoostLevel}
}
