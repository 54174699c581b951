package repository

import (
	"context"
	"errors"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, tg_id, username, first_name, coins, energy, max_energy, earn_per_tap,
	hourly_earn, league, last_energy_regen, last_hourly_collect, is_banned,
	daily_streak, last_daily_claim, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.TgID,
		&u.Username,
		&u.FirstName,
		&u.Coins,
		&u.Energy,
		&u.MaxEnergy,
		&u.EarnPerTap,
		&u.HourlyEarn,
		&u.League,
		&u.LastEnergyRegen,
		&u.LastHourlyCollect,
		&u.IsBanned,
		&u.DailyStreak,
		&u.LastDailyClaim,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) Lock(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (r *UserRepository) GetByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tg_id = $1`, tgID))
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (tg_id, username, first_name, coins, energy, max_energy,
			earn_per_tap, hourly_earn, league, last_energy_regen, last_hourly_collect)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		u.TgID, u.Username, u.FirstName, u.Coins, u.Energy, u.MaxEnergy,
		u.EarnPerTap, u.HourlyEarn, u.League, u.LastEnergyRegen, u.LastHourlyCollect,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	return affected(r.db.Exec(ctx,
		`UPDATE users SET username = $2, first_name = $3, updated_at = NOW() WHERE id = $1`,
		u.ID, u.Username, u.FirstName,
	))
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func (r *UserRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.User, int, error) {
	q = q.Normalize()
	pattern := likePattern(q.Search)

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE username ILIKE $1 OR tg_id::text LIKE $1`, pattern,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username ILIKE $1 OR tg_id::text LIKE $1
		 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		pattern, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) AddCoins(ctx context.Context, id, delta int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx,
		`UPDATE users SET coins = coins + $2, updated_at = NOW()
		 WHERE id = $1 AND coins + $2 >= 0
		 RETURNING coins`,
		id, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	err = mapErr(err)
	if errors.Is(err, store.ErrNotFound) {
		// distinguish a missing user from a guard failure
		if _, gerr := r.GetByID(ctx, id); gerr == nil {
			return 0, store.ErrInsufficientFunds
		}
	}
	return 0, err
}

func (r *UserRepository) AddCoinsFloor(ctx context.Context, id, delta int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx,
		`UPDATE users SET coins = GREATEST(coins + $2, 0), updated_at = NOW()
		 WHERE id = $1
		 RETURNING coins`,
		id, delta,
	).Scan(&balance)
	return balance, mapErr(err)
}

func (r *UserRepository) SetCoins(ctx context.Context, id, coins int64) error {
	return affected(r.db.Exec(ctx,
		`UPDATE users SET coins = $2, updated_at = NOW() WHERE id = $1`, id, coins,
	))
}

func (r *UserRepository) AddEnergy(ctx context.Context, id int64, delta int) (int, error) {
	var energy int
	err := r.db.QueryRow(ctx,
		`UPDATE users
		 SET energy = LEAST(max_energy, GREATEST(0, energy + $2)),
		     last_energy_regen = NOW(), updated_at = NOW()
		 WHERE id = $1
		 RETURNING energy`,
		id, delta,
	).Scan(&energy)
	return energy, mapErr(err)
}

func (r *UserRepository) FillEnergy(ctx context.Context, id int64) (int, error) {
	var energy int
	err := r.db.QueryRow(ctx,
		`UPDATE users SET energy = max_energy, updated_at = NOW() WHERE id = $1 RETURNING energy`, id,
	).Scan(&energy)
	return energy, mapErr(err)
}

func (r *UserRepository) AddStats(ctx context.Context, id int64, earnPerTap, maxEnergy int) (int, int, error) {
	var ept, me int
	err := r.db.QueryRow(ctx,
		`UPDATE users
		 SET earn_per_tap = earn_per_tap + $2, max_energy = max_energy + $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING earn_per_tap, max_energy`,
		id, earnPerTap, maxEnergy,
	).Scan(&ept, &me)
	return ept, me, mapErr(err)
}

func (r *UserRepository) PromoteLeague(ctx context.Context, id int64, tier, earnPerTap, maxEnergy int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET league = $2, earn_per_tap = earn_per_tap + $3, max_energy = max_energy + $4, updated_at = NOW()
		 WHERE id = $1 AND league < $2`,
		id, tier, earnPerTap, maxEnergy,
	)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) SetHourlyEarn(ctx context.Context, id, hourly int64) error {
	return affected(r.db.Exec(ctx,
		`UPDATE users SET hourly_earn = $2, updated_at = NOW() WHERE id = $1`, id, hourly,
	))
}

func (r *UserRepository) TouchHourlyCollect(ctx context.Context, id int64, prev, at time.Time) error {
	return guarded(r.db.Exec(ctx,
		`UPDATE users SET last_hourly_collect = $3, updated_at = NOW()
		 WHERE id = $1 AND last_hourly_collect = $2`, id, prev, at,
	))
}

func (r *UserRepository) SetDailyStreak(ctx context.Context, id int64, streak int, day time.Time) error {
	return affected(r.db.Exec(ctx,
		`UPDATE users SET daily_streak = $2, last_daily_claim = $3, updated_at = NOW() WHERE id = $1`,
		id, streak, day,
	))
}

func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	return affected(r.db.Exec(ctx,
		`UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1`, id, banned,
	))
}

func (r *UserRepository) TopByLeague(ctx context.Context, league, limit int) ([]*domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE league = $1 AND NOT is_banned
		 ORDER BY coins DESC, id ASC
		 LIMIT $2`,
		league, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Stats(ctx context.Context, since time.Time) (domain.PlayerStats, error) {
	var s domain.PlayerStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_banned),
		        COALESCE(SUM(coins), 0)::BIGINT,
		        (SELECT COUNT(*) FROM transactions WHERE created_at >= $1)
		 FROM users`,
		since,
	).Scan(&s.Players, &s.Banned, &s.TotalCoins, &s.TransactionsToday)
	return s, err
}
