package repository

import (
	"context"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

type ComboRepository struct {
	db DBTX
}

func scanCombo(row pgx.Row) (*domain.DailyCombo, error) {
	var c domain.DailyCombo
	if err := row.Scan(&c.ID, &c.Date, &c.CardIDs, &c.Reward, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *ComboRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailyCombo, error) {
	return scanCombo(r.db.QueryRow(ctx,
		`SELECT id, combo_date, card_ids, reward, created_at FROM global_daily_combo WHERE combo_date = $1`, date,
	))
}

func (r *ComboRepository) Create(ctx context.Context, c *domain.DailyCombo) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO global_daily_combo (combo_date, card_ids, reward)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.Date, c.CardIDs, c.Reward,
	).Scan(&c.ID, &c.CreatedAt))
}

func (r *ComboRepository) Update(ctx context.Context, c *domain.DailyCombo) error {
	return affected(r.db.Exec(ctx,
		`UPDATE global_daily_combo SET combo_date = $2, card_ids = $3, reward = $4 WHERE id = $1`,
		c.ID, c.Date, c.CardIDs, c.Reward,
	))
}

func (r *ComboRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM global_daily_combo WHERE id = $1`, id))
}

func (r *ComboRepository) List(ctx context.Context, limit int) ([]*domain.DailyCombo, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, combo_date, card_ids, reward, created_at FROM global_daily_combo
		 ORDER BY combo_date DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DailyCombo
	for rows.Next() {
		c, err := scanCombo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ComboRepository) GetProgress(ctx context.Context, userID int64, date time.Time) (*domain.ComboProgress, error) {
	var p domain.ComboProgress
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, combo_date, found_card_ids, is_completed, updated_at
		 FROM user_daily_combo_progress WHERE user_id = $1 AND combo_date = $2`,
		userID, date,
	).Scan(&p.ID, &p.UserID, &p.Date, &p.FoundCardIDs, &p.IsCompleted, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *ComboRepository) CreateProgress(ctx context.Context, p *domain.ComboProgress) error {
	if p.FoundCardIDs == nil {
		p.FoundCardIDs = []int64{}
	}
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO user_daily_combo_progress (user_id, combo_date, found_card_ids, is_completed)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, updated_at`,
		p.UserID, p.Date, p.FoundCardIDs, p.IsCompleted,
	).Scan(&p.ID, &p.UpdatedAt))
}

func (r *ComboRepository) UpdateProgress(ctx context.Context, p *domain.ComboProgress) error {
	return affected(r.db.Exec(ctx,
		`UPDATE user_daily_combo_progress SET found_card_ids = $2, is_completed = $3, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.FoundCardIDs, p.IsCompleted,
	))
}
