package repository

import (
	"context"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/jackc/pgx/v5"
)

const referralColumns = `id, referrer_id, referred_id, reward_amount, is_claimed, created_at, claimed_at`

type ReferralRepository struct {
	db DBTX
}

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var ref domain.Referral
	if err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.RewardAmount,
		&ref.IsClaimed, &ref.CreatedAt, &ref.ClaimedAt); err != nil {
		return nil, mapErr(err)
	}
	return &ref, nil
}

func (r *ReferralRepository) collect(rows pgx.Rows, err error) ([]*domain.Referral, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *ReferralRepository) Create(ctx context.Context, ref *domain.Referral) error {
	return mapErr(r.db.QueryRow(ctx,
		`INSERT INTO referrals (referrer_id, referred_id, reward_amount)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		ref.ReferrerID, ref.ReferredID, ref.RewardAmount,
	).Scan(&ref.ID, &ref.CreatedAt))
}

func (r *ReferralRepository) Get(ctx context.Context, id int64) (*domain.Referral, error) {
	return scanReferral(r.db.QueryRow(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id))
}

func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]*domain.Referral, error) {
	return r.collect(r.db.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`, referrerID,
	))
}

func (r *ReferralRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Referral, int, error) {
	q = q.Normalize()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM referrals`).Scan(&total); err != nil {
		return nil, 0, err
	}
	out, err := r.collect(r.db.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals ORDER BY id DESC LIMIT $1 OFFSET $2`, q.Limit, q.Offset,
	))
	return out, total, err
}

func (r *ReferralRepository) Update(ctx context.Context, ref *domain.Referral) error {
	return affected(r.db.Exec(ctx,
		`UPDATE referrals SET reward_amount = $2, is_claimed = $3, claimed_at = $4 WHERE id = $1`,
		ref.ID, ref.RewardAmount, ref.IsClaimed, ref.ClaimedAt,
	))
}

func (r *ReferralRepository) Delete(ctx context.Context, id int64) error {
	return affected(r.db.Exec(ctx, `DELETE FROM referrals WHERE id = $1`, id))
}

func (r *ReferralRepository) MarkClaimed(ctx context.Context, id int64, at time.Time) error {
	return guarded(r.db.Exec(ctx,
		`UPDATE referrals SET is_claimed = TRUE, claimed_at = $2 WHERE id = $1 AND NOT is_claimed`, id, at,
	))
}
