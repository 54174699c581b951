package repository

import (
	"context"

	"github.com/toprakhenaz/sword-combat/internal/domain"
)

// LeagueRepository backs the admin league editor only.
type LeagueRepository struct {
	db DBTX
}

func (r *LeagueRepository) List(ctx context.Context) ([]*domain.LeagueRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, image, coin_requirement, reward, color_primary, color_secondary
		 FROM leagues ORDER BY coin_requirement`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.LeagueRecord
	for rows.Next() {
		var l domain.LeagueRecord
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.Image, &l.CoinRequirement,
			&l.Reward, &l.ColorPrimary, &l.ColorSecondary); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *LeagueRepository) Create(ctx context.Context, l *domain.LeagueRecord) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO leagues (name, description, image, coin_requirement, reward, color_primary, color_secondary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		l.Name, l.Description, l.Image, l.CoinRequirement, l.Reward, l.ColorPrimary, l.ColorSecondary,
	).Scan(&l.ID))
}

func (r *LeagueRepository) Update(ctx context.Context, l *domain.LeagueRecord) error {
	return affected(r.db.Exec(ctx,
		`UPDATE leagues SET name = $2, description = $3, image = $4, coin_requirement = $5,
		        reward = $6, color_primary = $7, color_secondary = $8
		 WHERE id = $1`,
		l.ID, l.Name, l.Description, l.Image, l.CoinRequirement, l.Reward, l.ColorPrimary, l.ColorSecondary,
	))
}

func (r *LeagueRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM leagues WHERE id = $1`, id))
}
