package domain

import "time"

type Referral struct {
	ID           int64      `db:"id" json:"id"`
	ReferrerID   int64      `db:"referrer_id" json:"referrer_id"`
	ReferredID   int64      `db:"referred_id" json:"referred_id"`
	RewardAmount int64      `db:"reward_amount" json:"reward_amount"`
	IsClaimed    bool       `db:"is_claimed" json:"is_claimed"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ClaimedAt    *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
}
