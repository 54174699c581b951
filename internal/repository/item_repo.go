package repository

import (
	"context"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

const (
	itemColumns     = `id, name, image, category, base_hourly_income, base_upgrade_cost, created_at`
	userItemColumns = `id, user_id, item_id, level, hourly_income, upgrade_cost, updated_at`
)

type ItemRepository struct {
	db DBTX
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	if err := row.Scan(&it.ID, &it.Name, &it.Image, &it.Category, &it.BaseHourlyIncome, &it.BaseUpgradeCost, &it.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func scanUserItem(row pgx.Row) (*domain.UserItem, error) {
	var ui domain.UserItem
	if err := row.Scan(&ui.ID, &ui.UserID, &ui.ItemID, &ui.Level, &ui.HourlyIncome, &ui.UpgradeCost, &ui.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &ui, nil
}

func (r *ItemRepository) List(ctx context.Context) ([]*domain.Item, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *ItemRepository) Get(ctx context.Context, id int64) (*domain.Item, error) {
	return scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

func (r *ItemRepository) Create(ctx context.Context, it *domain.Item) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO items (name, image, category, base_hourly_income, base_upgrade_cost)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		it.Name, it.Image, it.Category, it.BaseHourlyIncome, it.BaseUpgradeCost,
	).Scan(&it.ID, &it.CreatedAt))
}

func (r *ItemRepository) Update(ctx context.Context, it *domain.Item) error {
	return affected(r.db.Exec(ctx,
		`UPDATE items SET name = $2, image = $3, category = $4, base_hourly_income = $5, base_upgrade_cost = $6
		 WHERE id = $1`,
		it.ID, it.Name, it.Image, it.Category, it.BaseHourlyIncome, it.BaseUpgradeCost,
	))
}

func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id))
}

func (r *ItemRepository) IDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *ItemRepository) UserItems(ctx context.Context, userID int64) ([]*domain.UserItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userItemColumns+` FROM user_items WHERE user_id = $1 ORDER BY item_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UserItem
	for rows.Next() {
		ui, err := scanUserItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ui)
	}
	return out, rows.Err()
}

func (r *ItemRepository) GetUserItem(ctx context.Context, userID, itemID int64) (*domain.UserItem, error) {
	return scanUserItem(r.db.QueryRow(ctx,
		`SELECT `+userItemColumns+` FROM user_items WHERE user_id = $1 AND item_id = $2`, userID, itemID,
	))
}

func (r *ItemRepository) CreateUserItem(ctx context.Context, ui *domain.UserItem) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO user_items (user_id, item_id, level, hourly_income, upgrade_cost)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, updated_at`,
		ui.UserID, ui.ItemID, ui.Level, ui.HourlyIncome, ui.UpgradeCost,
	).Scan(&ui.ID, &ui.UpdatedAt))
}

func (r *ItemRepository) UpdateUserItem(ctx context.Context, ui *domain.UserItem) error {
	return affected(r.db.Exec(ctx,
		`UPDATE user_items SET level = $2, hourly_income = $3, upgrade_cost = $4, updated_at = NOW()
		 WHERE id = $1`,
		ui.ID, ui.Level, ui.HourlyIncome, ui.UpgradeCost,
	))
}

func (r *ItemRepository) SumHourlyIncome(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(hourly_income), 0)::BIGINT FROM user_items WHERE user_id = $1`, userID,
	).Scan(&sum)
	return sum, err
}
