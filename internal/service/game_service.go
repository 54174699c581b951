package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("github.com/toprakhenaz/sword-combat/internal/service")

// GameService implements the player-facing server actions. Every action runs
// in a single store transaction.
type GameService struct {
	store   store.Store
	leagues *league.Catalog
	catalog *CatalogService
	now     func() time.Time
}

// NewGameService creates a new game service. A nil catalog reads items and
// tasks straight from the store.
func NewGameService(st store.Store, leagues *league.Catalog, catalog *CatalogService) *GameService {
	if catalog == nil {
		catalog = NewCatalogService(st, nil, 0)
	}
	return &GameService{store: st, leagues: leagues, catalog: catalog, now: time.Now}
}

// SetClock overrides the service clock.
func (s *GameService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *GameService) Leagues() *league.Catalog { return s.leagues }

// run wraps one action in a span, a transaction and the action counter.
func (s *GameService) run(ctx context.Context, action string, userID int64, fn func(ctx context.Context, tx store.Store) error) error {
	ctx, span := tracer.Start(ctx, "GameService."+action,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	err := s.store.WithTx(ctx, func(tx store.Store) error { return fn(ctx, tx) })

	var gerr *domain.GameError
	switch {
	case err == nil:
		GameActions.WithLabelValues(action, "ok").Inc()
	case errors.Is(err, errDuplicateBatch):
		// a retried batch that already landed; the caller answers from the ledger
		GameActions.WithLabelValues(action, "duplicate").Inc()
		span.SetAttributes(attribute.Bool("batch.duplicate", true))
	case errors.As(err, &gerr):
		GameActions.WithLabelValues(action, gerr.Code).Inc()
		span.SetAttributes(attribute.String("game.error", gerr.Code))
	default:
		GameActions.WithLabelValues(action, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithContext(ctx).Error("game action failed", "action", action, "user_id", userID, "error", err)
	}
	return err
}

// player loads an account that is allowed to act.
func player(ctx context.Context, tx store.Store, userID int64) (*domain.User, error) {
	u, err := tx.Users().GetByID(ctx, userID)
	return allowed(userID, u, err)
}

// lockPlayer is player for read-check-write actions: the row stays locked
// until the transaction ends.
func lockPlayer(ctx context.Context, tx store.Store, userID int64) (*domain.User, error) {
	u, err := tx.Users().Lock(ctx, userID)
	return allowed(userID, u, err)
}

func allowed(userID int64, u *domain.User, err error) (*domain.User, error) {
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if u.IsBanned {
		return nil, domain.ErrBanned
	}
	return u, nil
}

// credit adds amount to the balance and writes the ledger row.
func credit(ctx context.Context, tx store.Store, userID, amount int64, kind, desc string, meta map[string]interface{}) (int64, error) {
	balance, err := tx.Users().AddCoins(ctx, userID, amount)
	if errors.Is(err, store.ErrInsufficientFunds) {
		return 0, domain.ErrNotEnoughCoins
	}
	if err != nil {
		return 0, fmt.Errorf("add coins: %w", err)
	}
	if err := tx.Transactions().Insert(ctx, &domain.Transaction{
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Description: desc,
		Meta:        meta,
	}); err != nil {
		return 0, fmt.Errorf("log %s: %w", kind, err)
	}
	if amount > 0 {
		CoinsGranted.WithLabelValues(kind).Add(float64(amount))
	}
	return balance, nil
}

// settingInt reads a numeric app setting, falling back to def.
func settingInt(ctx context.Context, tx store.Store, key string, def int64) int64 {
	st, err := tx.Settings().Get(ctx, key)
	if err != nil {
		return def
	}
	v, err := strconv.ParseInt(st.Value, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// UpdateCoins applies a signed amount and logs it under kind.
func (s *GameService) UpdateCoins(ctx context.Context, userID, amount int64, kind, desc string) (int64, error) {
	var balance int64
	err := s.run(ctx, "update_coins", userID, func(ctx context.Context, tx store.Store) error {
		u, err := player(ctx, tx, userID)
		if err != nil {
			return err
		}
		if amount == 0 {
			balance = u.Coins
			return nil
		}
		balance, err = credit(ctx, tx, userID, amount, kind, desc, nil)
		return err
	})
	return balance, err
}

// BatchResult reports the outcome of ApplyCoinBatch.
type BatchResult struct {
	Balance   int64 `json:"balance"`
	Duplicate bool  `json:"duplicate"`
	Clamped   bool  `json:"clamped"`
}

// ApplyCoinBatch persists a batch of coin deltas as one ledger row. A batch
// whose id is already recorded is acknowledged without being applied again.
// A net debit larger than the balance is clamped at zero.
func (s *GameService) ApplyCoinBatch(ctx context.Context, userID int64, batch *domain.CoinBatch) (*BatchResult, error) {
	res := &BatchResult{}
	err := s.run(ctx, "apply_coin_batch", userID, func(ctx context.Context, tx store.Store) error {
		u, err := player(ctx, tx, userID)
		if err != nil {
			return err
		}

		net := batch.Net()
		meta := map[string]interface{}{"count": batch.Len()}
		for kind, sum := range batch.Breakdown() {
			meta[kind] = sum
		}

		balance, err := tx.Users().AddCoins(ctx, userID, net)
		if errors.Is(err, store.ErrInsufficientFunds) {
			balance, err = tx.Users().AddCoinsFloor(ctx, userID, net)
			res.Clamped = true
			meta["clamped"] = true
			logger.WithContext(ctx).Warn("coin batch clamped at zero", "user_id", userID, "batch_id", batch.ID, "net", net, "coins", u.Coins)
		}
		if err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}

		var batchID *string
		if batch.ID != "" {
			batchID = &batch.ID
		}
		err = tx.Transactions().Insert(ctx, &domain.Transaction{
			UserID:      userID,
			Type:        domain.TxBatchUpdate,
			Amount:      net,
			Description: fmt.Sprintf("Batch of %d updates", batch.Len()),
			BatchID:     batchID,
			Meta:        meta,
		})
		if errors.Is(err, store.ErrConflict) {
			res.Duplicate = true
			return errDuplicateBatch
		}
		if err != nil {
			return fmt.Errorf("log batch: %w", err)
		}
		if net > 0 {
			CoinsGranted.WithLabelValues(domain.TxBatchUpdate).Add(float64(net))
		}
		res.Balance = balance
		return nil
	})
	if errors.Is(err, errDuplicateBatch) {
		// rolled back; report the stored balance
		u, gerr := s.store.Users().GetByID(ctx, userID)
		if gerr != nil {
			return nil, gerr
		}
		return &BatchResult{Balance: u.Coins, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

var errDuplicateBatch = errors.New("batch already applied")

// ApplyEnergyDelta adds a signed energy delta clamped to [0, max_energy].
func (s *GameService) ApplyEnergyDelta(ctx context.Context, userID int64, delta int) (int, error) {
	var energy int
	err := s.run(ctx, "apply_energy", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := player(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		energy, err = tx.Users().AddEnergy(ctx, userID, delta)
		return err
	})
	return energy, err
}

// LeagueSync is the result of SyncLeague.
type LeagueSync struct {
	League     int  `json:"league"`
	Promoted   bool `json:"promoted"`
	EarnPerTap int  `json:"earn_per_tap"`
	MaxEnergy  int  `json:"max_energy"`
}

// League promotion bonus applied once per tier change.
const (
	LeagueTapBonus    = 1
	LeagueEnergyBonus = 50
)

// SyncLeague moves the stored league up to the tier derived from the larger
// of the reported and stored balance. The league column is never written
// outside this derivation.
func (s *GameService) SyncLeague(ctx context.Context, userID, coins int64) (*LeagueSync, error) {
	out := &LeagueSync{}
	err := s.run(ctx, "sync_league", userID, func(ctx context.Context, tx store.Store) error {
		u, err := player(ctx, tx, userID)
		if err != nil {
			return err
		}
		tier := s.leagues.Derive(max(coins, u.Coins))
		out.League, out.EarnPerTap, out.MaxEnergy = u.League, u.EarnPerTap, u.MaxEnergy
		if tier <= u.League {
			return nil
		}
		ok, err := tx.Users().PromoteLeague(ctx, userID, tier, LeagueTapBonus, LeagueEnergyBonus)
		if err != nil {
			return err
		}
		if ok {
			out.Promoted = true
			out.League = tier
			out.EarnPerTap += LeagueTapBonus
			out.MaxEnergy += LeagueEnergyBonus
		}
		return nil
	})
	return out, err
}
