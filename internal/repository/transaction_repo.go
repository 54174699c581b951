package repository

import (
	"context"
	"encoding/json"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, type, amount, description, batch_id::text, meta, created_at`

type TransactionRepository struct {
	db DBTX
}

// Insert writes one ledger row.
func (r *TransactionRepository) Insert(ctx context.Context, tx *domain.Transaction) error {
	metaJSON, err := json.Marshal(tx.Meta)
	if err != nil || tx.Meta == nil {
		metaJSON = []byte("{}")
	}

	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO transactions (user_id, type, amount, description, batch_id, meta)
		 VALUES ($1, $2, $3, $4, $5::uuid, $6)
		 RETURNING id, created_at`,
		tx.UserID, tx.Type, tx.Amount, tx.Description, tx.BatchID, metaJSON,
	).Scan(&tx.ID, &tx.CreatedAt))
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *TransactionRepository) List(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, int, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}

	const filter = `($1 = 0 OR user_id = $1) AND ($2 = '' OR type = $2)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+filter, q.UserID, q.Type).
		Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+filter+`
		 ORDER BY id DESC LIMIT $3 OFFSET $4`,
		q.UserID, q.Type, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanTransactions(rows)
	return out, total, err
}

// Each streams the whole ledger in id order.
func (r *TransactionRepository) Each(ctx context.Context, fn func(*domain.Transaction) error) error {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		metaJSON []byte
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Description, &tx.BatchID, &metaJSON, &tx.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &tx.Meta)
	}
	return &tx, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}
