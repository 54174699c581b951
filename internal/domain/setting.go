package domain

import "time"

// Well-known app_settings keys.
const (
	SettingTokenListingDate = "token_listing_date"
	SettingReferralReward   = "referral_reward"
	SettingComboReward      = "daily_combo_reward"
)

type AppSetting struct {
	ID          int64     `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Description string    `db:"description" json:"description"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LeagueRecord is the admin-editable copy of a league tier. Gameplay reads
// the embedded catalog instead.
type LeagueRecord struct {
	ID              int64  `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	Description     string `db:"description" json:"description"`
	Image           string `db:"image" json:"image"`
	CoinRequirement int64  `db:"coin_requirement" json:"coin_requirement"`
	Reward          int64  `db:"reward" json:"reward"`
	ColorPrimary    string `db:"color_primary" json:"color_primary"`
	ColorSecondary  string `db:"color_secondary" json:"color_secondary"`
}
