// Package repository is the PostgreSQL implementation of store.Store.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/toprakhenaz/sword-combat/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Users() store.UserRepo               { return &UserRepository{db: s.db} }
func (s *Store) Boosts() store.BoostRepo             { return &BoostRepository{db: s.db} }
func (s *Store) Items() store.ItemRepo               { return &ItemRepository{db: s.db} }
func (s *Store) Tasks() store.TaskRepo               { return &TaskRepository{db: s.db} }
func (s *Store) Daily() store.DailyRepo              { return &DailyRepository{db: s.db} }
func (s *Store) Combos() store.ComboRepo             { return &ComboRepository{db: s.db} }
func (s *Store) Referrals() store.ReferralRepo       { return &ReferralRepository{db: s.db} }
func (s *Store) Transactions() store.TransactionRepo { return &TransactionRepository{db: s.db} }
func (s *Store) Settings() store.SettingsRepo        { return &SettingsRepository{db: s.db} }
func (s *Store) Leagues() store.LeagueRepo           { return &LeagueRepository{db: s.db} }
func (s *Store) Audit() store.AuditRepo              { return &AuditRepository{db: s.db} }

// WithTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping is used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// mapErr turns driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// guarded is affected for conditional writes: no rows means the condition
// did not hold.
func guarded(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrPrecondition
	}
	return nil
}

// affected returns ErrNotFound when a write touched no rows.
func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func likePattern(search string) string {
	if search == "" {
		return "%"
	}
	return "%" + search + "%"
}
