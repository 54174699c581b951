package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"golang.org/x/sync/errgroup"
)

// InitParams identifies the Telegram account opening a session.
type InitParams struct {
	TgID         int64
	Username     string
	FirstName    string
	ReferrerTgID int64
}

// Player is everything a session needs to start.
type Player struct {
	User    *domain.User          `json:"user"`
	Boosts  *domain.BoostProfile  `json:"boosts"`
	Combo   *domain.ComboProgress `json:"combo,omitempty"`
	Daily   *DailyStatus          `json:"daily"`
	Created bool                  `json:"created"`
}

// InitPlayer returns the player for a Telegram account, creating it with
// starting values on first contact.
func (s *GameService) InitPlayer(ctx context.Context, p InitParams) (*Player, error) {
	out := &Player{}
	err := s.run(ctx, "init_player", 0, func(ctx context.Context, tx store.Store) error {
		u, err := tx.Users().GetByTgID(ctx, p.TgID)
		if err == nil {
			if u.IsBanned {
				return domain.ErrBanned
			}
			if p.Username != "" && (u.Username != p.Username || u.FirstName != p.FirstName) {
				u.Username, u.FirstName = p.Username, p.FirstName
				if err := tx.Users().Update(ctx, u); err != nil {
					return err
				}
			}
			out.User = u
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup tg user: %w", err)
		}

		u = domain.NewUser(p.TgID, p.Username, p.FirstName, s.now())
		if err := tx.Users().Create(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Boosts().Create(ctx, domain.NewBoostProfile(u.ID)); err != nil {
			return fmt.Errorf("create boosts: %w", err)
		}
		if p.ReferrerTgID != 0 && p.ReferrerTgID != p.TgID {
			if err := s.attachReferral(ctx, tx, u, p.ReferrerTgID); err != nil {
				return err
			}
		}
		out.User = u
		out.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	userID := out.User.ID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.boostProfile(gctx, s.store, userID)
		out.Boosts = b
		return err
	})
	g.Go(func() error {
		c, err := s.store.Combos().GetProgress(gctx, userID, domain.DateOf(s.now()))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		out.Combo = c
		return err
	})
	g.Go(func() error {
		d, err := s.dailyStatus(gctx, s.store, userID)
		out.Daily = d
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load player %d: %w", userID, err)
	}
	return out, nil
}

func (s *GameService) attachReferral(ctx context.Context, tx store.Store, u *domain.User, referrerTgID int64) error {
	ref, err := tx.Users().GetByTgID(ctx, referrerTgID)
	if errors.Is(err, store.ErrNotFound) {
		logger.WithContext(ctx).Warn("referrer not found", "referrer_tg_id", referrerTgID, "user_id", u.ID)
		return nil
	}
	if err != nil {
		return err
	}
	err = tx.Referrals().Create(ctx, &domain.Referral{
		ReferrerID:   ref.ID,
		ReferredID:   u.ID,
		RewardAmount: settingInt(ctx, tx, domain.SettingReferralReward, domain.ReferralReward),
	})
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}

// boostProfile reads the profile, creating the default one if missing.
func (s *GameService) boostProfile(ctx context.Context, st store.Store, userID int64) (*domain.BoostProfile, error) {
	p, err := st.Boosts().Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	p = domain.NewBoostProfile(userID)
	if err := st.Boosts().Create(ctx, p); err != nil && !errors.Is(err, store.ErrConflict) {
		return nil, err
	}
	return st.Boosts().Get(ctx, userID)
}

// GetPlayer reloads a player by id.
func (s *GameService) GetPlayer(ctx context.Context, userID int64) (*Player, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsBanned {
		return nil, domain.ErrBanned
	}
	return s.InitPlayer(ctx, InitParams{TgID: u.TgID})
}

// LeaderboardEntry is one row of a league leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Coins    int64  `json:"coins"`
}

// Leaderboard lists the richest players of a league.
func (s *GameService) Leaderboard(ctx context.Context, leagueID, limit int) ([]LeaderboardEntry, error) {
	if _, ok := s.leagues.Get(leagueID); !ok {
		return nil, &domain.GameError{Code: "not_found", Message: "League not found"}
	}
	users, err := s.store.Users().TopByLeague(ctx, leagueID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		out = append(out, LeaderboardEntry{Rank: i + 1, UserID: u.ID, Username: u.Username, Coins: u.Coins})
	}
	return out, nil
}

// History returns the player's most recent ledger rows.
func (s *GameService) History(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	return s.store.Transactions().ListByUser(ctx, userID, limit)
}
