package repository

import (
	"context"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, actor_id, action, category, target_id, details, ip, created_at`

type AuditRepository struct {
	db DBTX
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	const q = `INSERT INTO audit_logs (actor_id, action, category, target_id, details, ip)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	return r.db.QueryRow(ctx, q,
		entry.ActorID, entry.Action, entry.Category, entry.TargetID, details, entry.IP,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// Recent lists the newest entries first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.AuditLog])
}
