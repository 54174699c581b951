// Package store defines the record store contract shared by the Postgres
// repositories and the in-memory store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrPrecondition is returned by conditional updates that matched no row.
	ErrPrecondition = errors.New("precondition failed")
)

// Store is the typed record store. WithTx runs fn against a transactional
// view; any error returned by fn rolls every write back.
type Store interface {
	Users() UserRepo
	Boosts() BoostRepo
	Items() ItemRepo
	Tasks() TaskRepo
	Daily() DailyRepo
	Combos() ComboRepo
	Referrals() ReferralRepo
	Transactions() TransactionRepo
	Settings() SettingsRepo
	Leagues() LeagueRepo
	Audit() AuditRepo
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type UserRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// Lock reads the user and holds the row until the transaction ends, so
	// actions of one player run one after another.
	Lock(ctx context.Context, id int64) (*domain.User, error)
	GetByTgID(ctx context.Context, tgID int64) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// Update writes profile fields only; counters go through the atomic
	// methods below.
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q domain.ListQuery) ([]*domain.User, int, error)

	// AddCoins applies delta atomically and fails with ErrInsufficientFunds
	// if the balance would go negative.
	AddCoins(ctx context.Context, id, delta int64) (int64, error)
	// AddCoinsFloor applies delta atomically, clamping the result at zero.
	AddCoinsFloor(ctx context.Context, id, delta int64) (int64, error)
	SetCoins(ctx context.Context, id, coins int64) error
	// AddEnergy applies delta atomically, clamped to [0, max_energy].
	AddEnergy(ctx context.Context, id int64, delta int) (int, error)
	FillEnergy(ctx context.Context, id int64) (int, error)
	AddStats(ctx context.Context, id int64, earnPerTap, maxEnergy int) (int, int, error)
	// PromoteLeague moves the cached league up to tier and applies the
	// stat bonus once. It returns false when the stored league is already
	// at or above tier.
	PromoteLeague(ctx context.Context, id int64, tier, earnPerTap, maxEnergy int) (bool, error)
	SetHourlyEarn(ctx context.Context, id, hourly int64) error
	// TouchHourlyCollect moves last_hourly_collect from prev to at and fails
	// with ErrPrecondition if another collection got there first.
	TouchHourlyCollect(ctx context.Context, id int64, prev, at time.Time) error
	SetDailyStreak(ctx context.Context, id int64, streak int, day time.Time) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	TopByLeague(ctx context.Context, league, limit int) ([]*domain.User, error)
	Stats(ctx context.Context, since time.Time) (domain.PlayerStats, error)
}

type BoostRepo interface {
	Get(ctx context.Context, userID int64) (*domain.BoostProfile, error)
	Create(ctx context.Context, p *domain.BoostProfile) error
	Update(ctx context.Context, p *domain.BoostProfile) error
	List(ctx context.Context, q domain.ListQuery) ([]*domain.BoostProfile, int, error)
	// SetLevel moves a track from level from to level to. It fails with
	// ErrPrecondition when the stored level is no longer from.
	SetLevel(ctx context.Context, userID int64, t domain.BoostType, from, to int) error
	// UseRocket decrements the daily rocket count if it is positive.
	UseRocket(ctx context.Context, userID int64) (int, error)
	// MarkFullEnergyUsed sets the daily flag if it is not already set.
	MarkFullEnergyUsed(ctx context.Context, userID int64) error
	ResetDaily(ctx context.Context) (int64, error)
}

type ItemRepo interface {
	List(ctx context.Context) ([]*domain.Item, error)
	Get(ctx context.Context, id int64) (*domain.Item, error)
	Create(ctx context.Context, it *domain.Item) error
	Update(ctx context.Context, it *domain.Item) error
	Delete(ctx context.Context, id int64) error
	IDs(ctx context.Context) ([]int64, error)

	UserItems(ctx context.Context, userID int64) ([]*domain.UserItem, error)
	GetUserItem(ctx context.Context, userID, itemID int64) (*domain.UserItem, error)
	CreateUserItem(ctx context.Context, ui *domain.UserItem) error
	UpdateUserItem(ctx context.Context, ui *domain.UserItem) error
	SumHourlyIncome(ctx context.Context, userID int64) (int64, error)
}

type TaskRepo interface {
	List(ctx context.Context, activeOnly bool) ([]*domain.Task, error)
	Get(ctx context.Context, id int64) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id int64) error

	GetProgress(ctx context.Context, userID, taskID int64) (*domain.UserTask, error)
	CreateProgress(ctx context.Context, ut *domain.UserTask) error
	UpdateProgress(ctx context.Context, ut *domain.UserTask) error
	// Complete marks a finished, not yet completed task. Anything else is
	// ErrPrecondition.
	Complete(ctx context.Context, id int64, at time.Time) error
	ListProgress(ctx context.Context, userID int64) ([]*domain.UserTask, error)
}

type DailyRepo interface {
	Rewards(ctx context.Context) ([]*domain.DailyReward, error)
	RewardForDay(ctx context.Context, day int) (*domain.DailyReward, error)
	CreateReward(ctx context.Context, r *domain.DailyReward) error
	UpdateReward(ctx context.Context, r *domain.DailyReward) error
	DeleteReward(ctx context.Context, id int64) error

	GetClaim(ctx context.Context, userID int64, date time.Time) (*domain.DailyClaim, error)
	// InsertClaim fails with ErrConflict if a claim for that date exists.
	InsertClaim(ctx context.Context, c *domain.DailyClaim) error
	// ClaimDates returns up to limit distinct claim dates earlier than
	// before, newest first.
	ClaimDates(ctx context.Context, userID int64, before time.Time, limit int) ([]time.Time, error)
}

type ComboRepo interface {
	GetByDate(ctx context.Context, date time.Time) (*domain.DailyCombo, error)
	// Create fails with ErrConflict if a combo for that date exists.
	Create(ctx context.Context, c *domain.DailyCombo) error
	Update(ctx context.Context, c *domain.DailyCombo) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit int) ([]*domain.DailyCombo, error)

	GetProgress(ctx context.Context, userID int64, date time.Time) (*domain.ComboProgress, error)
	CreateProgress(ctx context.Context, p *domain.ComboProgress) error
	UpdateProgress(ctx context.Context, p *domain.ComboProgress) error
}

type ReferralRepo interface {
	Create(ctx context.Context, r *domain.Referral) error
	Get(ctx context.Context, id int64) (*domain.Referral, error)
	ListByReferrer(ctx context.Context, referrerID int64) ([]*domain.Referral, error)
	List(ctx context.Context, q domain.ListQuery) ([]*domain.Referral, int, error)
	Update(ctx context.Context, r *domain.Referral) error
	Delete(ctx context.Context, id int64) error
	// MarkClaimed flips is_claimed once; a second call fails with
	// ErrPrecondition.
	MarkClaimed(ctx context.Context, id int64, at time.Time) error
}

type TransactionRepo interface {
	// Insert fails with ErrConflict when BatchID is already recorded.
	Insert(ctx context.Context, t *domain.Transaction) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error)
	List(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, int, error)
	Each(ctx context.Context, fn func(*domain.Transaction) error) error
}

type SettingsRepo interface {
	List(ctx context.Context) ([]*domain.AppSetting, error)
	Get(ctx context.Context, key string) (*domain.AppSetting, error)
	Create(ctx context.Context, s *domain.AppSetting) error
	Update(ctx context.Context, s *domain.AppSetting) error
	Delete(ctx context.Context, id int64) error
}

type LeagueRepo interface {
	List(ctx context.Context) ([]*domain.LeagueRecord, error)
	Create(ctx context.Context, l *domain.LeagueRecord) error
	Update(ctx context.Context, l *domain.LeagueRecord) error
	Delete(ctx context.Context, id int64) error
}

type AuditRepo interface {
	Create(ctx context.Context, l *domain.AuditLog) error
	Recent(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}
