package repository

import (
	"context"
	"fmt"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"github.com/jackc/pgx/v5"
)

const boostColumns = `user_id, multi_touch_level, energy_limit_level, charge_speed_level,
	daily_rockets, max_daily_rockets, energy_full_used, updated_at`

type BoostRepository struct {
	db DBTX
}

func scanBoost(row pgx.Row) (*domain.BoostProfile, error) {
	var p domain.BoostProfile
	if err := row.Scan(
		&p.UserID,
		&p.MultiTouchLevel,
		&p.EnergyLimitLevel,
		&p.ChargeSpeedLevel,
		&p.DailyRockets,
		&p.MaxDailyRockets,
		&p.EnergyFullUsed,
		&p.UpdatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *BoostRepository) Get(ctx context.Context, userID int64) (*domain.BoostProfile, error) {
	return scanBoost(r.db.QueryRow(ctx, `SELECT `+boostColumns+` FROM user_boosts WHERE user_id = $1`, userID))
}

func (r *BoostRepository) Create(ctx context.Context, p *domain.BoostProfile) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO user_boosts (user_id, multi_touch_level, energy_limit_level, charge_speed_level,
			daily_rockets, max_daily_rockets, energy_full_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING updated_at`,
		p.UserID, p.MultiTouchLevel, p.EnergyLimitLevel, p.ChargeSpeedLevel,
		p.DailyRockets, p.MaxDailyRockets, p.EnergyFullUsed,
	).Scan(&p.UpdatedAt)
	return mapErr(err)
}

func (r *BoostRepository) Update(ctx context.Context, p *domain.BoostProfile) error {
	return affected(r.db.Exec(ctx,
		`UPDATE user_boosts
		 SET multi_touch_level = $2, energy_limit_level = $3, charge_speed_level = $4,
		     daily_rockets = $5, max_daily_rockets = $6, energy_full_used = $7, updated_at = NOW()
		 WHERE user_id = $1`,
		p.UserID, p.MultiTouchLevel, p.EnergyLimitLevel, p.ChargeSpeedLevel,
		p.DailyRockets, p.MaxDailyRockets, p.EnergyFullUsed,
	))
}

func (r *BoostRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.BoostProfile, int, error) {
	q = q.Normalize()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_boosts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+boostColumns+` FROM user_boosts ORDER BY user_id DESC LIMIT $1 OFFSET $2`,
		q.Limit, q.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.BoostProfile
	for rows.Next() {
		p, err := scanBoost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func levelColumn(t domain.BoostType) (string, error) {
	switch t {
	case domain.BoostMultiTouch:
		return "multi_touch_level", nil
	case domain.BoostEnergyLimit:
		return "energy_limit_level", nil
	case domain.BoostChargeSpeed:
		return "charge_speed_level", nil
	}
	return "", fmt.Errorf("unknown boost type %q", t)
}

func (r *BoostRepository) SetLevel(ctx context.Context, userID int64, t domain.BoostType, from, to int) error {
	col, err := levelColumn(t)
	if err != nil {
		return err
	}
	return guarded(r.db.Exec(ctx,
		`UPDATE user_boosts SET `+col+` = $3, updated_at = NOW() WHERE user_id = $1 AND `+col+` = $2`,
		userID, from, to,
	))
}

func (r *BoostRepository) UseRocket(ctx context.Context, userID int64) (int, error) {
	var left int
	err := r.db.QueryRow(ctx,
		`UPDATE user_boosts SET daily_rockets = daily_rockets - 1, updated_at = NOW()
		 WHERE user_id = $1 AND daily_rockets > 0
		 RETURNING daily_rockets`,
		userID,
	).Scan(&left)
	if err = mapErr(err); err == store.ErrNotFound {
		return 0, store.ErrPrecondition
	}
	return left, err
}

func (r *BoostRepository) MarkFullEnergyUsed(ctx context.Context, userID int64) error {
	return guarded(r.db.Exec(ctx,
		`UPDATE user_boosts SET energy_full_used = TRUE, updated_at = NOW()
		 WHERE user_id = $1 AND NOT energy_full_used`,
		userID,
	))
}

func (r *BoostRepository) ResetDaily(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_boosts SET daily_rockets = max_daily_rockets, energy_full_used = FALSE, updated_at = NOW()`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
