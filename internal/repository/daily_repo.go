package repository

import (
	"context"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

type DailyRepository struct {
	db DBTX
}

func (r *DailyRepository) Rewards(ctx context.Context) ([]*domain.DailyReward, error) {
	rows, err := r.db.Query(ctx, `SELECT id, day, reward FROM daily_rewards ORDER BY day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DailyReward
	for rows.Next() {
		var dr domain.DailyReward
		if err := rows.Scan(&dr.ID, &dr.Day, &dr.Reward); err != nil {
			return nil, err
		}
		out = append(out, &dr)
	}
	return out, rows.Err()
}

func (r *DailyRepository) RewardForDay(ctx context.Context, day int) (*domain.DailyReward, error) {
	var dr domain.DailyReward
	err := r.db.QueryRow(ctx, `SELECT id, day, reward FROM daily_rewards WHERE day = $1`, day).
		Scan(&dr.ID, &dr.Day, &dr.Reward)
	if err != nil {
		return nil, mapErr(err)
	}
	return &dr, nil
}

func (r *DailyRepository) CreateReward(ctx context.Context, dr *domain.DailyReward) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO daily_rewards (day, reward) VALUES ($1, $2) RETURNING id`, dr.Day, dr.Reward,
	).Scan(&dr.ID))
}

func (r *DailyRepository) UpdateReward(ctx context.Context, dr *domain.DailyReward) error {
	return affected(r.db.Exec(ctx,
		`UPDATE daily_rewards SET day = $2, reward = $3 WHERE id = $1`, dr.ID, dr.Day, dr.Reward,
	))
}

func (r *DailyRepository) DeleteReward(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM daily_rewards WHERE id = $1`, id))
}

func (r *DailyRepository) GetClaim(ctx context.Context, userID int64, date time.Time) (*domain.DailyClaim, error) {
	var c domain.DailyClaim
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, claim_date, day, reward, claimed_at
		 FROM user_daily_rewards WHERE user_id = $1 AND claim_date = $2`,
		userID, date,
	).Scan(&c.ID, &c.UserID, &c.ClaimDate, &c.Day, &c.Reward, &c.ClaimedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *DailyRepository) InsertClaim(ctx context.Context, c *domain.DailyClaim) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO user_daily_rewards (user_id, claim_date, day, reward)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, claimed_at`,
		c.UserID, c.ClaimDate, c.Day, c.Reward,
	).Scan(&c.ID, &c.ClaimedAt))
}

func (r *DailyRepository) ClaimDates(ctx context.Context, userID int64, before time.Time, limit int) ([]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT claim_date FROM user_daily_rewards
		 WHERE user_id = $1 AND claim_date < $2
		 ORDER BY claim_date DESC
		 LIMIT $3`,
		userID, before, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}
