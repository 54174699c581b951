package repository

import (
	"context"

	"github.com/toprakhenaz/sword-combat/internal/domain"
)

type SettingsRepository struct {
	db DBTX
}

func (r *SettingsRepository) List(ctx context.Context) ([]*domain.AppSetting, error) {
	rows, err := r.db.Query(ctx, `SELECT id, key, value, description, updated_at FROM app_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AppSetting
	for rows.Next() {
		var s domain.AppSetting
		if err := rows.Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (*domain.AppSetting, error) {
	var s domain.AppSetting
	err := r.db.QueryRow(ctx,
		`SELECT id, key, value, description, updated_at FROM app_settings WHERE key = $1`, key,
	).Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *SettingsRepository) Create(ctx context.Context, s *domain.AppSetting) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO app_settings (key, value, description) VALUES ($1, $2, $3) RETURNING id, updated_at`,
		s.Key, s.Value, s.Description,
	).Scan(&s.ID, &s.UpdatedAt))
}

func (r *SettingsRepository) Update(ctx context.Context, s *domain.AppSetting) error {
	return affected(r.db.Exec(ctx,
		`UPDATE app_settings SET key = $2, value = $3, description = $4, updated_at = NOW() WHERE id = $1`,
		s.ID, s.Key, s.Value, s.Description,
	))
}

func (r *SettingsRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM app_settings WHERE id = $1`, id))
}
