package domain

import "time"

// Transaction kinds written to the coin ledger.
const (
	TxTap          = "tap"
	TxBatchUpdate  = "batch_update"
	TxHourly       = "hourly_earnings"
	TxTaskReward   = "task_reward"
	TxDailyReward  = "daily_reward"
	TxDailyCombo   = "daily_combo"
	TxLeagueReward = "league_reward"
	TxBoostUpgrade = "boost_upgrade"
	TxItemUpgrade  = "item_upgrade"
	TxReferral     = "referral_reward"
	TxAdminAdjust  = "admin_adjust"
)

type Transaction struct {
	ID          int64                  `db:"id" json:"id"`
	UserID      int64                  `db:"user_id" json:"user_id"`
	Type        string                 `db:"type" json:"type"`
	Amount      int64                  `db:"amount" json:"amount"`
	Description string                 `db:"description" json:"description"`
	BatchID     *string                `db:"batch_id" json:"batch_id,omitempty"`
	Meta        map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// TransactionQuery filters the admin ledger view.
type TransactionQuery struct {
	UserID int64
	Type   string
	Limit  int
	Offset int
}
