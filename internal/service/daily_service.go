package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

// DailyStatus is the streak as derived from the claim history.
type DailyStatus struct {
	Streak       int   `json:"streak"`
	ClaimedToday bool  `json:"claimed_today"`
	NextDay      int   `json:"next_day"`
	NextReward   int64 `json:"next_reward"`
}

// DailyStatus derives the player's streak from recent claims.
func (s *GameService) DailyStatus(ctx context.Context, userID int64) (*DailyStatus, error) {
	return s.dailyStatus(ctx, s.store, userID)
}

func (s *GameService) dailyStatus(ctx context.Context, st store.Store, userID int64) (*DailyStatus, error) {
	today := domain.DateOf(s.now())
	out := &DailyStatus{}
	end := today.AddDate(0, 0, -1)
	if _, err := st.Daily().GetClaim(ctx, userID, today); err == nil {
		out.ClaimedToday = true
		end = today
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	streak, err := streakEnding(ctx, st, userID, end)
	if err != nil {
		return nil, err
	}
	out.Streak = streak
	out.NextDay = domain.StreakDay(out.Streak + 1)
	out.NextReward = s.dailyReward(ctx, st, out.NextDay)
	return out, nil
}

// streakEnding counts consecutive claim days ending at end, reading the
// history page by page until the run breaks.
func streakEnding(ctx context.Context, st store.Store, userID int64, end time.Time) (int, error) {
	end = domain.DateOf(end)
	before := end.AddDate(0, 0, 1)
	run := 0
	for {
		dates, err := st.Daily().ClaimDates(ctx, userID, before, domain.StreakPageDays)
		if err != nil {
			return 0, err
		}
		n := domain.ConsecutiveRun(dates, end.AddDate(0, 0, -run))
		run += n
		if n < len(dates) || len(dates) < domain.StreakPageDays {
			return run, nil
		}
		before = domain.DateOf(dates[len(dates)-1])
	}
}

func (s *GameService) dailyReward(ctx context.Context, st store.Store, day int) int64 {
	if r, err := st.Daily().RewardForDay(ctx, day); err == nil {
		return r.Reward
	}
	if s.leagues != nil {
		return s.leagues.DailyReward(day)
	}
	return domain.DefaultDailyReward
}

// DailyClaimResult is the result of ClaimDailyReward.
type DailyClaimResult struct {
	Day     int   `json:"day"`
	Streak  int   `json:"streak"`
	Reward  int64 `json:"reward"`
	Balance int64 `json:"balance"`
}

// ClaimDailyReward grants today's login reward. The cached streak on the
// player row is only written here, from the derived value.
func (s *GameService) ClaimDailyReward(ctx context.Context, userID int64) (*DailyClaimResult, error) {
	out := &DailyClaimResult{}
	err := s.run(ctx, "claim_daily", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := lockPlayer(ctx, tx, userID); err != nil {
			return err
		}
		today := domain.DateOf(s.now())
		if _, err := tx.Daily().GetClaim(ctx, userID, today); err == nil {
			return domain.ErrAlreadyClaimed
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		prior, err := streakEnding(ctx, tx, userID, today.AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		streak := prior + 1
		day := domain.StreakDay(streak)
		reward := s.dailyReward(ctx, tx, day)

		err = tx.Daily().InsertClaim(ctx, &domain.DailyClaim{
			UserID:    userID,
			ClaimDate: today,
			Day:       day,
			Reward:    reward,
		})
		if errors.Is(err, store.ErrConflict) {
			return domain.ErrAlreadyClaimed
		}
		if err != nil {
			return err
		}
		if err := tx.Users().SetDailyStreak(ctx, userID, streak, today); err != nil {
			return err
		}
		balance, err := credit(ctx, tx, userID, reward, domain.TxDailyReward,
			fmt.Sprintf("Daily reward day %d", day), map[string]interface{}{"day": day, "streak": streak})
		if err != nil {
			return err
		}
		*out = DailyClaimResult{Day: day, Streak: streak, Reward: reward, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DailyRewards returns the configured reward ladder.
func (s *GameService) DailyRewards(ctx context.Context) ([]*domain.DailyReward, error) {
	return s.store.Daily().Rewards(ctx)
}

// ComboFind is the result of FindDailyComboCard.
type ComboFind struct {
	CardID       int64   `json:"card_id"`
	FoundCardIDs []int64 `json:"found_card_ids"`
	IsCompleted  bool    `json:"is_completed"`
	Reward       int64   `json:"reward"`
	Balance      int64   `json:"balance,omitempty"`
}

// TodayCombo returns today's global combo, generating it on first use.
func (s *GameService) TodayCombo(ctx context.Context) (*domain.DailyCombo, error) {
	return s.todayCombo(ctx, s.store)
}

func (s *GameService) todayCombo(ctx context.Context, st store.Store) (*domain.DailyCombo, error) {
	today := domain.DateOf(s.now())
	c, err := st.Combos().GetByDate(ctx, today)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ids, err := st.Items().IDs(ctx)
	if err != nil {
		return nil, err
	}
	c = &domain.DailyCombo{
		Date:    today,
		CardIDs: pickCards(ids),
		Reward:  settingInt(ctx, st, domain.SettingComboReward, domain.DefaultComboReward),
	}
	err = st.Combos().Create(ctx, c)
	if errors.Is(err, store.ErrConflict) {
		// another request created it first
		return st.Combos().GetByDate(ctx, today)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// pickCards chooses distinct card ids, falling back to 1..10 when the
// item catalog is too small.
func pickCards(ids []int64) []int64 {
	if len(ids) < domain.ComboSize {
		ids = []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	}
	out := make([]int64, 0, domain.ComboSize)
	for _, i := range rand.Perm(len(ids))[:domain.ComboSize] {
		out = append(out, ids[i])
	}
	return out
}

// FindDailyComboCard reveals the combo card at index. The combo reward is
// granted once, when the last card is found.
func (s *GameService) FindDailyComboCard(ctx context.Context, userID int64, index int) (*ComboFind, error) {
	if index < 0 || index >= domain.ComboSize {
		return nil, domain.ErrInvalidCard
	}
	out := &ComboFind{}
	err := s.run(ctx, "find_combo_card", userID, func(ctx context.Context, tx store.Store) error {
		if _, err := lockPlayer(ctx, tx, userID); err != nil {
			return err
		}
		combo, err := s.todayCombo(ctx, tx)
		if err != nil {
			return err
		}
		if index >= len(combo.CardIDs) {
			return domain.ErrInvalidCard
		}
		card := combo.CardIDs[index]

		p, err := tx.Combos().GetProgress(ctx, userID, combo.Date)
		if errors.Is(err, store.ErrNotFound) {
			p = &domain.ComboProgress{UserID: userID, Date: combo.Date, FoundCardIDs: []int64{}}
			if err := tx.Combos().CreateProgress(ctx, p); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if p.Has(card) {
			return domain.ErrCardFound
		}

		p.FoundCardIDs = append(p.FoundCardIDs, card)
		completing := !p.IsCompleted && p.Covers(combo)
		if completing {
			p.IsCompleted = true
		}
		if err := tx.Combos().UpdateProgress(ctx, p); err != nil {
			return err
		}

		*out = ComboFind{CardID: card, FoundCardIDs: p.FoundCardIDs, IsCompleted: p.IsCompleted}
		if completing {
			balance, err := credit(ctx, tx, userID, combo.Reward, domain.TxDailyCombo, "Daily combo found",
				map[string]interface{}{"date": combo.Date.Format("2006-01-02")})
			if err != nil {
				return err
			}
			out.Reward, out.Balance = combo.Reward, balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ComboProgress returns today's progress, or an empty one.
func (s *GameService) ComboProgress(ctx context.Context, userID int64) (*domain.ComboProgress, error) {
	today := domain.DateOf(s.now())
	p, err := s.store.Combos().GetProgress(ctx, userID, today)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.ComboProgress{UserID: userID, Date: today, FoundCardIDs: []int64{}}, nil
	}
	return p, err
}
