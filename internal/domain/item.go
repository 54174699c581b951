package domain

import (
	"math"
	"time"
)

type Item struct {
	ID               int64     `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Image            string    `db:"image" json:"image"`
	Category         string    `db:"category" json:"category"`
	BaseHourlyIncome int64     `db:"base_hourly_income" json:"base_hourly_income"`
	BaseUpgradeCost  int64     `db:"base_upgrade_cost" json:"base_upgrade_cost"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type UserItem struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	ItemID       int64     `db:"item_id" json:"item_id"`
	Level        int       `db:"level" json:"level"`
	HourlyIncome int64     `db:"hourly_income" json:"hourly_income"`
	UpgradeCost  int64     `db:"upgrade_cost" json:"upgrade_cost"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Upgrade raises an owned item one level: income x1.5, next cost x2.
func (ui *UserItem) Upgrade() {
	ui.Level++
	ui.HourlyIncome = int64(math.Floor(float64(ui.HourlyIncome) * 1.5))
	ui.UpgradeCost *= 2
}
