package domain

import "time"

const (
	StreakCycle        = 7
	StreakPageDays     = 30
	DefaultDailyReward = 500
	ComboSize          = 3
	DefaultComboReward = 100000
	HourlyCollectCap   = 24
	ReferralReward     = 100000
)

type DailyReward struct {
	ID     int64 `db:"id" json:"id"`
	Day    int   `db:"day" json:"day"`
	Reward int64 `db:"reward" json:"reward"`
}

type DailyClaim struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ClaimDate time.Time `db:"claim_date" json:"claim_date"`
	Day       int       `db:"day" json:"day"`
	Reward    int64     `db:"reward" json:"reward"`
	ClaimedAt time.Time `db:"claimed_at" json:"claimed_at"`
}

type DailyCombo struct {
	ID        int64     `db:"id" json:"id"`
	Date      time.Time `db:"combo_date" json:"date"`
	CardIDs   []int64   `db:"card_ids" json:"card_ids"`
	Reward    int64     `db:"reward" json:"reward"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ComboProgress struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Date         time.Time `db:"combo_date" json:"date"`
	FoundCardIDs []int64   `db:"found_card_ids" json:"found_card_ids"`
	IsCompleted  bool      `db:"is_completed" json:"is_completed"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (p *ComboProgress) Has(id int64) bool {
	for _, f := range p.FoundCardIDs {
		if f == id {
			return true
		}
	}
	return false
}

// Covers reports whether every card of the combo has been found.
func (p *ComboProgress) Covers(c *DailyCombo) bool {
	for _, id := range c.CardIDs {
		if !p.Has(id) {
			return false
		}
	}
	return true
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StreakDay maps a streak length onto the 1..7 reward cycle.
func StreakDay(streak int) int {
	if streak <= 0 {
		return 1
	}
	return ((streak - 1) % StreakCycle) + 1
}

// ConsecutiveRun counts consecutive calendar days ending at `end` in a list
// of distinct claim dates sorted newest first.
func ConsecutiveRun(dates []time.Time, end time.Time) int {
	expect := DateOf(end)
	run := 0
	for _, d := range dates {
		d = DateOf(d)
		if d.After(expect) {
			continue
		}
		if !d.Equal(expect) {
			break
		}
		run++
		expect = expect.AddDate(0, 0, -1)
	}
	return run
}
