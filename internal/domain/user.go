package domain

import "time"

// New player defaults.
const (
	DefaultCoins      int64 = 1000
	DefaultLeague           = 1
	DefaultHourlyEarn int64 = 10
	DefaultEarnPerTap       = 1
	DefaultEnergy           = 100
	DefaultMaxEnergy        = 100
)

type User struct {
	ID                int64      `db:"id" json:"id"`
	TgID              int64      `db:"tg_id" json:"tg_id"`
	Username          string     `db:"username" json:"username"`
	FirstName         string     `db:"first_name" json:"first_name"`
	Coins             int64      `db:"coins" json:"coins"`
	Energy            int        `db:"energy" json:"energy"`
	MaxEnergy         int        `db:"max_energy" json:"max_energy"`
	EarnPerTap        int        `db:"earn_per_tap" json:"earn_per_tap"`
	HourlyEarn        int64      `db:"hourly_earn" json:"hourly_earn"`
	League            int        `db:"league" json:"league"`
	LastEnergyRegen   time.Time  `db:"last_energy_regen" json:"last_energy_regen"`
	LastHourlyCollect time.Time  `db:"last_hourly_collect" json:"last_hourly_collect"`
	IsBanned          bool       `db:"is_banned" json:"is_banned"`
	DailyStreak       int        `db:"daily_streak" json:"daily_streak"`
	LastDailyClaim    *time.Time `db:"last_daily_claim" json:"last_daily_claim,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// NewUser returns a player account populated with starting values.
func NewUser(tgID int64, username, firstName string, now time.Time) *User {
	return &User{
		TgID:              tgID,
		Username:          username,
		FirstName:         firstName,
		Coins:             DefaultCoins,
		Energy:            DefaultEnergy,
		MaxEnergy:         DefaultMaxEnergy,
		EarnPerTap:        DefaultEarnPerTap,
		HourlyEarn:        DefaultHourlyEarn,
		League:            DefaultLeague,
		LastEnergyRegen:   now,
		LastHourlyCollect: now,
	}
}

// PlayerStats is the aggregate shown on the admin dashboard.
type PlayerStats struct {
	Players           int64 `json:"players"`
	Banned            int64 `json:"banned"`
	TotalCoins        int64 `json:"total_coins"`
	TransactionsToday int64 `json:"transactions_today"`
}

// ListQuery is the paging/search input of admin list screens.
type ListQuery struct {
	Search string
	Limit  int
	Offset int
}

// Normalize clamps paging values to sane bounds.
func (q ListQuery) Normalize() ListQuery {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
