package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

// BoostUpgrade is the result of a successful boost purchase.
type BoostUpgrade struct {
	Type       domain.BoostType `json:"type"`
	Level      int              `json:"level"`
	Cost       int64            `json:"cost"`
	NextCost   int64            `json:"next_cost"`
	EarnPerTap int              `json:"earn_per_tap"`
	MaxEnergy  int              `json:"max_energy"`
	Balance    int64            `json:"balance"`
}

// UpgradeBoost buys the next level of a boost track.
func (s *GameService) UpgradeBoost(ctx context.Context, userID int64, t domain.BoostType) (*BoostUpgrade, error) {
	if _, ok := domain.ParseBoostType(string(t)); !ok {
		return nil, domain.ErrInvalidBoost
	}
	out := &BoostUpgrade{Type: t}
	err := s.run(ctx, "upgrade_boost", userID, func(ctx context.Context, tx store.Store) error {
		u, err := lockPlayer(ctx, tx, userID)
		if err != nil {
			return err
		}
		p, err := s.boostProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		level := p.Level(t)
		if level >= domain.MaxBoostLevel {
			return domain.ErrMaxLevel
		}
		err = tx.Boosts().SetLevel(ctx, userID, t, level, level+1)
		if errors.Is(err, store.ErrPrecondition) {
			return fmt.Errorf("%s moved past level %d concurrently: %w", t, level, err)
		}
		if err != nil {
			return err
		}
		cost := domain.BoostCost(level)
		balance, err := credit(ctx, tx, userID, -cost, domain.TxBoostUpgrade,
			fmt.Sprintf("Upgrade %s to level %d", t, level+1),
			map[string]interface{}{"boost": string(t), "level": level + 1})
		if err != nil {
			return err
		}

		ept, me := u.EarnPerTap, u.MaxEnergy
		switch t {
		case domain.BoostMultiTouch:
			ept, me, err = tx.Users().AddStats(ctx, userID, domain.MultiTouchTapBonus, 0)
		case domain.BoostEnergyLimit:
			ept, me, err = tx.Users().AddStats(ctx, userID, 0, domain.EnergyLimitBonus)
		}
		if err != nil {
			return err
		}

		*out = BoostUpgrade{
			Type:       t,
			Level:      level + 1,
			Cost:       cost,
			NextCost:   domain.BoostCost(level + 1),
			EarnPerTap: ept,
			MaxEnergy:  me,
			Balance:    balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UseRocketBoost spends one daily rocket for a burst of energy.
func (s *GameService) UseRocketBoost(ctx context.Context, userID int64) (energy, rockets int, err error) {
	err = s.run(ctx, "use_rocket", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := player(ctx, tx, userID); err != nil {
			return err
		}
		left, err := tx.Boosts().UseRocket(ctx, userID)
		if errors.Is(err, store.ErrPrecondition) {
			return domain.ErrNoRockets
		}
		if err != nil {
			return err
		}
		rockets = left
		energy, err = tx.Users().AddEnergy(ctx, userID, domain.RocketEnergy)
		return err
	})
	return energy, rockets, err
}

// UseFullEnergyBoost refills energy once per day.
func (s *GameService) UseFullEnergyBoost(ctx context.Context, userID int64) (int, error) {
	var energy int
	err := s.run(ctx, "use_full_energy", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := player(ctx, tx, userID); err != nil {
			return err
		}
		err := tx.Boosts().MarkFullEnergyUsed(ctx, userID)
		if errors.Is(err, store.ErrPrecondition) {
			return domain.ErrFullEnergyUsed
		}
		if err != nil {
			return err
		}
		energy, err = tx.Users().FillEnergy(ctx, userID)
		return err
	})
	return energy, err
}

// ResetDailyBoosts restores rockets and the full-energy flag for everyone.
func (s *GameService) ResetDailyBoosts(ctx context.Context) (int64, error) {
	var n int64
	err := s.run(ctx, "reset_daily_boosts", 0, func(ctx context.Context, tx store.Store) error {
		var err error
		n, err = tx.Boosts().ResetDaily(ctx)
		return err
	})
	return n, err
}

// Boosts returns the player's boost profile.
func (s *GameService) Boosts(ctx context.Context, userID int64) (*domain.BoostProfile, error) {
	return s.boostProfile(ctx, s.store, userID)
}
