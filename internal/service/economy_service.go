package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

// hourlyBonusPerLevel is the multiTouch bonus applied to item income.
const hourlyBonusPerLevel = 0.05

// HourlyCollection is the result of CollectHourlyEarnings. TimeLeft is set
// when the call was too early.
type HourlyCollection struct {
	Amount   int64         `json:"amount"`
	Hours    float64       `json:"hours"`
	Balance  int64         `json:"balance"`
	TimeLeft time.Duration `json:"time_left"`
}

// CollectHourlyEarnings pays out item income accrued since the last
// collection, capped at 24 hours.
func (s *GameService) CollectHourlyEarnings(ctx context.Context, userID int64) (*HourlyCollection, error) {
	out := &HourlyCollection{}
	err := s.run(ctx, "collect_hourly", userID, func(ctx context.Context, tx store.Store) error {
		u, err := lockPlayer(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		elapsed := now.Sub(u.LastHourlyCollect)
		if elapsed < time.Hour {
			out.TimeLeft = time.Hour - elapsed
			return domain.ErrTooEarly
		}

		income, err := tx.Items().SumHourlyIncome(ctx, userID)
		if err != nil {
			return err
		}
		boosts, err := s.boostProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		hours := math.Min(elapsed.Hours(), domain.HourlyCollectCap)
		rate := float64(income) * (1 + hourlyBonusPerLevel*float64(boosts.MultiTouchLevel))
		amount := int64(math.Floor(rate * hours))

		balance := u.Coins
		if amount > 0 {
			balance, err = credit(ctx, tx, userID, amount, domain.TxHourly,
				fmt.Sprintf("Collected %.1f hours of earnings", hours), map[string]interface{}{"hours": hours})
			if err != nil {
				return err
			}
		}
		err = tx.Users().TouchHourlyCollect(ctx, userID, u.LastHourlyCollect, now)
		if errors.Is(err, store.ErrPrecondition) {
			out.TimeLeft = time.Hour
			return domain.ErrTooEarly
		}
		if err != nil {
			return err
		}
		out.Amount, out.Hours, out.Balance = amount, hours, balance
		return nil
	})
	if errors.Is(err, domain.ErrTooEarly) {
		return out, err
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ItemView is a catalog item with the caller's ownership state.
type ItemView struct {
	*domain.Item
	Level        int   `json:"level"`
	HourlyIncome int64 `json:"hourly_income"`
	UpgradeCost  int64 `json:"upgrade_cost"`
}

// Items lists the catalog joined with the player's owned levels.
func (s *GameService) Items(ctx context.Context, userID int64) ([]ItemView, error) {
	items, err := s.catalog.Items(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.Items().UserItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	byItem := make(map[int64]*domain.UserItem, len(owned))
	for _, ui := range owned {
		byItem[ui.ItemID] = ui
	}
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		v := ItemView{Item: it, UpgradeCost: it.BaseUpgradeCost}
		if ui, ok := byItem[it.ID]; ok {
			v.Level, v.HourlyIncome, v.UpgradeCost = ui.Level, ui.HourlyIncome, ui.UpgradeCost
		}
		out = append(out, v)
	}
	return out, nil
}

// ItemUpgrade is the result of UpgradeItem.
type ItemUpgrade struct {
	Item       *domain.UserItem `json:"item"`
	Cost       int64            `json:"cost"`
	HourlyEarn int64            `json:"hourly_earn"`
	Balance    int64            `json:"balance"`
}

// UpgradeItem buys an item at level 1 or raises an owned one.
func (s *GameService) UpgradeItem(ctx context.Context, userID, itemID int64) (*ItemUpgrade, error) {
	out := &ItemUpgrade{}
	err := s.run(ctx, "upgrade_item", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := lockPlayer(ctx, tx, userID); err != nil {
			return err
		}
		item, err := tx.Items().Get(ctx, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrItemNotFound
		}
		if err != nil {
			return err
		}

		var cost int64
		ui, err := tx.Items().GetUserItem(ctx, userID, itemID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			cost = item.BaseUpgradeCost
			ui = &domain.UserItem{
				UserID:       userID,
				ItemID:       itemID,
				Level:        1,
				HourlyIncome: item.BaseHourlyIncome,
				UpgradeCost:  item.BaseUpgradeCost,
			}
			err = tx.Items().CreateUserItem(ctx, ui)
		case err != nil:
			return err
		default:
			cost = ui.UpgradeCost
			ui.Upgrade()
			err = tx.Items().UpdateUserItem(ctx, ui)
		}
		if err != nil {
			return err
		}

		balance, err := credit(ctx, tx, userID, -cost, domain.TxItemUpgrade,
			fmt.Sprintf("Upgrade %s to level %d", item.Name, ui.Level),
			map[string]interface{}{"item_id": itemID, "level": ui.Level})
		if err != nil {
			return err
		}
		hourly, err := tx.Items().SumHourlyIncome(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.Users().SetHourlyEarn(ctx, userID, hourly); err != nil {
			return err
		}
		*out = ItemUpgrade{Item: ui, Cost: cost, HourlyEarn: hourly, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Referrals lists the players invited by userID.
func (s *GameService) Referrals(ctx context.Context, userID int64) ([]*domain.Referral, error) {
	return s.store.Referrals().ListByReferrer(ctx, userID)
}

// ReferralClaim is the result of ClaimReferral.
type ReferralClaim struct {
	ReferralID int64 `json:"referral_id"`
	Reward     int64 `json:"reward"`
	Balance    int64 `json:"balance"`
}

// ClaimReferral pays the referrer's reward for one invited player.
func (s *GameService) ClaimReferral(ctx context.Context, userID, referralID int64) (*ReferralClaim, error) {
	out := &ReferralClaim{ReferralID: referralID}
	err := s.run(ctx, "claim_referral", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := player(ctx, tx, userID); err != nil {
			return err
		}
		ref, err := tx.Referrals().Get(ctx, referralID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && ref.ReferrerID != userID) {
			return domain.ErrReferralNotFound
		}
		if err != nil {
			return err
		}
		err = tx.Referrals().MarkClaimed(ctx, referralID, s.now())
		if errors.Is(err, store.ErrPrecondition) {
			return domain.ErrReferralClaimed
		}
		if err != nil {
			return err
		}
		out.Reward = ref.RewardAmount
		out.Balance, err = credit(ctx, tx, userID, ref.RewardAmount, domain.TxReferral, "Referral reward",
			map[string]interface{}{"referral_id": referralID, "referred_id": ref.ReferredID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
