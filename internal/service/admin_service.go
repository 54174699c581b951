package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput marks a malformed admin request.
	ErrInvalidInput = errors.New("invalid input")
)

// AdminService provides operator statistics and catalog management.
type AdminService struct {
	store   store.Store
	game    *GameService
	audit   *AuditService
	catalog *CatalogService
	now     func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(st store.Store, game *GameService, audit *AuditService, catalog *CatalogService) *AdminService {
	if catalog == nil {
		catalog = NewCatalogService(st, nil, 0)
	}
	return &AdminService{store: st, game: game, audit: audit, catalog: catalog, now: time.Now}
}

// Stats represents platform statistics
type Stats struct {
	domain.PlayerStats
	Items int `json:"items"`
	Tasks int `json:"tasks"`
}

// GetStats returns platform statistics
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	ps, err := s.store.Users().Stats(ctx, domain.DateOf(s.now()))
	if err != nil {
		return nil, err
	}
	items, err := s.store.Items().List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().List(ctx, false)
	if err != nil {
		return nil, err
	}
	return &Stats{PlayerStats: ps, Items: len(items), Tasks: len(tasks)}, nil
}

// ResolveUser finds a player by internal id, Telegram id or @username.
func (s *AdminService) ResolveUser(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		if u, err := s.store.Users().GetByTgID(ctx, id); err == nil {
			return u, nil
		}
		if u, err := s.store.Users().GetByID(ctx, id); err == nil {
			return u, nil
		}
		return nil, ErrUserNotFound
	}
	name := strings.ToLower(strings.TrimPrefix(identifier, "@"))
	if name == "" {
		return nil, ErrUserNotFound
	}
	users, _, err := s.store.Users().List(ctx, domain.ListQuery{Search: name, Limit: 200})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.ToLower(u.Username) == name {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *AdminService) ListUsers(ctx context.Context, q domain.ListQuery) ([]*domain.User, int, error) {
	return s.store.Users().List(ctx, q)
}

func (s *AdminService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// CreateUser registers a player by Telegram id with starting values.
func (s *AdminService) CreateUser(ctx context.Context, actorID, tgID int64, username, firstName string) (*domain.User, error) {
	p, err := s.game.InitPlayer(ctx, InitParams{TgID: tgID, Username: username, FirstName: firstName})
	if err != nil {
		return nil, err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionCreate, "users", p.User.ID)
	return p.User, nil
}

// UpdateUser writes profile fields.
func (s *AdminService) UpdateUser(ctx context.Context, actorID int64, u *domain.User) error {
	if err := s.store.Users().Update(ctx, u); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionUpdate, "users", u.ID)
	return nil
}

func (s *AdminService) DeleteUser(ctx context.Context, actorID, id int64) error {
	if err := s.store.Users().Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "users", id)
	return nil
}

// SetBanned bans or unbans a player.
func (s *AdminService) SetBanned(ctx context.Context, actorID, userID int64, banned bool) error {
	if err := s.store.Users().SetBanned(ctx, userID, banned); err != nil {
		return err
	}
	action := domain.AuditActionUnban
	if banned {
		action = domain.AuditActionBan
	}
	s.audit.Log(ctx, actorID, action, domain.AuditCategoryPlayer, userID, nil)
	return nil
}

// ToggleBan flips the ban flag and returns the new value.
func (s *AdminService) ToggleBan(ctx context.Context, actorID, userID int64) (bool, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return !u.IsBanned, s.SetBanned(ctx, actorID, userID, !u.IsBanned)
}

// SetCoins overwrites a balance and logs the difference to the ledger.
func (s *AdminService) SetCoins(ctx context.Context, actorID, userID, coins int64) error {
	if coins < 0 {
		return domain.ErrInvalidAmount
	}
	var before int64
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		before = u.Coins
		if err := tx.Users().SetCoins(ctx, userID, coins); err != nil {
			return err
		}
		return tx.Transactions().Insert(ctx, &domain.Transaction{
			UserID:      userID,
			Type:        domain.TxAdminAdjust,
			Amount:      coins - before,
			Description: "Balance set by admin",
			Meta:        map[string]interface{}{"actor_id": actorID, "before": before, "after": coins},
		})
	})
	if err != nil {
		return err
	}
	s.audit.Log(ctx, actorID, domain.AuditActionSetCoins, domain.AuditCategoryPlayer, userID,
		map[string]interface{}{"before": before, "after": coins})
	return nil
}

// AddCoins credits (or debits) a player and returns the new balance.
func (s *AdminService) AddCoins(ctx context.Context, actorID, userID, amount int64) (int64, error) {
	var balance int64
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		balance, err = credit(ctx, tx, userID, amount, domain.TxAdminAdjust, "Adjusted by admin",
			map[string]interface{}{"actor_id": actorID})
		return err
	})
	if err != nil {
		return 0, err
	}
	s.audit.Log(ctx, actorID, domain.AuditActionAddCoins, domain.AuditCategoryPlayer, userID,
		map[string]interface{}{"amount": amount})
	return balance, nil
}

// ResetDaily restores every player's daily boosts.
func (s *AdminService) ResetDaily(ctx context.Context, actorID int64) (int64, error) {
	n, err := s.game.ResetDailyBoosts(ctx)
	if err != nil {
		return 0, err
	}
	s.audit.Log(ctx, actorID, domain.AuditActionResetDaily, domain.AuditCategorySystem, 0,
		map[string]interface{}{"profiles": n})
	return n, nil
}

func (s *AdminService) Leaderboard(ctx context.Context, leagueID, limit int) ([]LeaderboardEntry, error) {
	return s.game.Leaderboard(ctx, leagueID, limit)
}

// Boosts

func (s *AdminService) ListBoosts(ctx context.Context, q domain.ListQuery) ([]*domain.BoostProfile, int, error) {
	return s.store.Boosts().List(ctx, q)
}

func (s *AdminService) UpdateBoosts(ctx context.Context, actorID int64, p *domain.BoostProfile) error {
	for _, lvl := range []int{p.MultiTouchLevel, p.EnergyLimitLevel, p.ChargeSpeedLevel} {
		if lvl < 0 || lvl > domain.MaxBoostLevel {
			return domain.ErrMaxLevel
		}
	}
	if err := s.store.Boosts().Update(ctx, p); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionUpdate, "boosts", p.UserID)
	return nil
}

// Items

func (s *AdminService) ListItems(ctx context.Context) ([]*domain.Item, error) {
	return s.store.Items().List(ctx)
}

func (s *AdminService) SaveItem(ctx context.Context, actorID int64, it *domain.Item) error {
	if it.Name == "" || it.BaseUpgradeCost < 0 || it.BaseHourlyIncome < 0 {
		return fmt.Errorf("%w: name and non-negative values required", ErrInvalidInput)
	}
	action := domain.AuditActionUpdate
	var err error
	if it.ID == 0 {
		action = domain.AuditActionCreate
		err = s.store.Items().Create(ctx, it)
	} else {
		err = s.store.Items().Update(ctx, it)
	}
	if err != nil {
		return err
	}
	s.catalog.Invalidate(ctx)
	s.audit.LogCatalog(ctx, actorID, action, "items", it.ID)
	return nil
}

func (s *AdminService) DeleteItem(ctx context.Context, actorID, id int64) error {
	if err := s.store.Items().Delete(ctx, id); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx)
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "items", id)
	return nil
}

// Tasks

func (s *AdminService) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	return s.store.Tasks().List(ctx, false)
}

func (s *AdminService) SaveTask(ctx context.Context, actorID int64, t *domain.Task) error {
	if t.Title == "" || t.Reward < 0 {
		return fmt.Errorf("%w: title and non-negative reward required", ErrInvalidInput)
	}
	action := domain.AuditActionUpdate
	var err error
	if t.ID == 0 {
		action = domain.AuditActionCreate
		err = s.store.Tasks().Create(ctx, t)
	} else {
		err = s.store.Tasks().Update(ctx, t)
	}
	if err != nil {
		return err
	}
	s.catalog.Invalidate(ctx)
	s.audit.LogCatalog(ctx, actorID, action, "tasks", t.ID)
	return nil
}

func (s *AdminService) DeleteTask(ctx context.Context, actorID, id int64) error {
	if err := s.store.Tasks().Delete(ctx, id); err != nil {
		return err
	}
	s.catalog.Invalidate(ctx)
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "tasks", id)
	return nil
}

// Leagues

func (s *AdminService) ListLeagues(ctx context.Context) ([]*domain.LeagueRecord, error) {
	return s.store.Leagues().List(ctx)
}

func (s *AdminService) SaveLeague(ctx context.Context, actorID int64, l *domain.LeagueRecord) error {
	if l.Name == "" || l.CoinRequirement < 0 || l.Reward < 0 {
		return fmt.Errorf("%w: name and non-negative values required", ErrInvalidInput)
	}
	action := domain.AuditActionUpdate
	var err error
	if l.ID == 0 {
		action = domain.AuditActionCreate
		err = s.store.Leagues().Create(ctx, l)
	} else {
		err = s.store.Leagues().Update(ctx, l)
	}
	if err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, action, "leagues", l.ID)
	return nil
}

func (s *AdminService) DeleteLeague(ctx context.Context, actorID, id int64) error {
	if err := s.store.Leagues().Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "leagues", id)
	return nil
}

// Daily rewards

func (s *AdminService) ListDailyRewards(ctx context.Context) ([]*domain.DailyReward, error) {
	return s.store.Daily().Rewards(ctx)
}

func (s *AdminService) SaveDailyReward(ctx context.Context, actorID int64, r *domain.DailyReward) error {
	if r.Day < 1 || r.Day > domain.StreakCycle || r.Reward < 0 {
		return fmt.Errorf("%w: day must be 1..%d", ErrInvalidInput, domain.StreakCycle)
	}
	action := domain.AuditActionUpdate
	var err error
	if r.ID == 0 {
		action = domain.AuditActionCreate
		err = s.store.Daily().CreateReward(ctx, r)
	} else {
		err = s.store.Daily().UpdateReward(ctx, r)
	}
	if err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, action, "daily_rewards", r.ID)
	return nil
}

func (s *AdminService) DeleteDailyReward(ctx context.Context, actorID, id int64) error {
	if err := s.store.Daily().DeleteReward(ctx, id); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "daily_rewards", id)
	return nil
}

// Combos

func (s *AdminService) ListCombos(ctx context.Context, limit int) ([]*domain.DailyCombo, error) {
	return s.store.Combos().List(ctx, limit)
}

func (s *AdminService) SaveCombo(ctx context.Context, actorID int64, c *domain.DailyCombo) error {
	if len(c.CardIDs) != domain.ComboSize || c.Reward < 0 || c.Date.IsZero() {
		return fmt.Errorf("%w: date and %d card ids required", ErrInvalidInput, domain.ComboSize)
	}
	seen := make(map[int64]bool, len(c.CardIDs))
	for _, id := range c.CardIDs {
		if seen[id] {
			return fmt.Errorf("%w: card ids must be distinct", ErrInvalidInput)
		}
		seen[id] = true
	}
	c.Date = domain.DateOf(c.Date)
	action := domain.AuditActionUpdate
	var err error
	if c.ID == 0 {
		action = domain.AuditActionCreate
		err = s.store.Combos().Create(ctx, c)
	} else {
		err = s.store.Combos().Update(ctx, c)
	}
	if err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, action, "combos", c.ID)
	return nil
}

func (s *AdminService) DeleteCombo(ctx context.Context, actorID, id int64) error {
	if err := s.store.Combos().Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "combos", id)
	return nil
}

// Referrals

func (s *AdminService) ListReferrals(ctx context.Context, q domain.ListQuery) ([]*domain.Referral, int, error) {
	return s.store.Referrals().List(ctx, q)
}

func (s *AdminService) UpdateReferral(ctx context.Context, actorID int64, r *domain.Referral) error {
	if err := s.store.Referrals().Update(ctx, r); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionUpdate, "referrals", r.ID)
	return nil
}

func (s *AdminService) DeleteReferral(ctx context.Context, actorID, id int64) error {
	if err := s.store.Referrals().Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "referrals", id)
	return nil
}

// Transactions

func (s *AdminService) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, int, error) {
	return s.store.Transactions().List(ctx, q)
}

// Settings

func (s *AdminService) ListSettings(ctx context.Context) ([]*domain.AppSetting, error) {
	return s.store.Settings().List(ctx)
}

func (s *AdminService) SaveSetting(ctx context.Context, actorID int64, st *domain.AppSetting) error {
	if st.Key == "" {
		return fmt.Errorf("%w: key required", ErrInvalidInput)
	}
	action := domain.AuditActionUpdate
	var err error
	if st.ID == 0 {
		action = domain.AuditActionCreate
		err = s.store.Settings().Create(ctx, st)
	} else {
		err = s.store.Settings().Update(ctx, st)
	}
	if err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, action, "settings", st.ID)
	return nil
}

func (s *AdminService) DeleteSetting(ctx context.Context, actorID, id int64) error {
	if err := s.store.Settings().Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogCatalog(ctx, actorID, domain.AuditActionDelete, "settings", id)
	return nil
}

func (s *AdminService) RecentAudit(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.audit.Recent(ctx, limit)
}

// LogUpload records an image stored for the catalog.
func (s *AdminService) LogUpload(ctx context.Context, actorID int64, kind, file, ip string) {
	s.audit.LogRequest(ctx, actorID, domain.AuditActionUpload, domain.AuditCategoryCatalog, 0, ip,
		map[string]interface{}{"kind": kind, "file": file})
}
