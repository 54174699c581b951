package memstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

type userRepo struct{ s *Store }

func (r userRepo) find(id int64) (*domain.User, error) {
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

// Lock is GetByID: transactions already run one at a time.
func (r userRepo) Lock(ctx context.Context, id int64) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r userRepo) GetByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.d.users {
		if u.TgID == tgID {
			return copyUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r userRepo) Create(ctx context.Context, u *domain.User) error {
	defer r.s.lock()()
	for _, existing := range r.s.d.users {
		if existing.TgID == u.TgID {
			return store.ErrConflict
		}
	}
	now := r.s.now()
	u.ID = r.s.d.next()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.d.users[u.ID] = copyUser(u)
	return nil
}

func (r userRepo) Update(ctx context.Context, u *domain.User) error {
	defer r.s.lock()()
	cur, err := r.find(u.ID)
	if err != nil {
		return err
	}
	cur.Username, cur.FirstName = u.Username, u.FirstName
	cur.UpdatedAt = r.s.now()
	return nil
}

func (r userRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.users, id)
	delete(r.s.d.boosts, id)
	return nil
}

func (r userRepo) List(ctx context.Context, q domain.ListQuery) ([]*domain.User, int, error) {
	defer r.s.lock()()
	search := strings.ToLower(q.Search)
	all := reverse(values(r.s.d.users, copyUser, func(u *domain.User) bool {
		return search == "" ||
			strings.Contains(strings.ToLower(u.Username), search) ||
			strings.Contains(strconv.FormatInt(u.TgID, 10), search)
	}))
	return page(all, q), len(all), nil
}

func (r userRepo) AddCoins(ctx context.Context, id, delta int64) (int64, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return 0, err
	}
	if u.Coins+delta < 0 {
		return 0, store.ErrInsufficientFunds
	}
	u.Coins += delta
	u.UpdatedAt = r.s.now()
	return u.Coins, nil
}

func (r userRepo) AddCoinsFloor(ctx context.Context, id, delta int64) (int64, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return 0, err
	}
	u.Coins += delta
	if u.Coins < 0 {
		u.Coins = 0
	}
	u.UpdatedAt = r.s.now()
	return u.Coins, nil
}

func (r userRepo) SetCoins(ctx context.Context, id, coins int64) error {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return err
	}
	u.Coins = coins
	u.UpdatedAt = r.s.now()
	return nil
}

func (r userRepo) AddEnergy(ctx context.Context, id int64, delta int) (int, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return 0, err
	}
	u.Energy = min(u.MaxEnergy, max(0, u.Energy+delta))
	u.LastEnergyRegen = r.s.now()
	u.UpdatedAt = u.LastEnergyRegen
	return u.Energy, nil
}

func (r userRepo) FillEnergy(ctx context.Context, id int64) (int, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return 0, err
	}
	u.Energy = u.MaxEnergy
	u.UpdatedAt = r.s.now()
	return u.Energy, nil
}

func (r userRepo) AddStats(ctx context.Context, id int64, earnPerTap, maxEnergy int) (int, int, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return 0, 0, err
	}
	u.EarnPerTap += earnPerTap
	u.MaxEnergy += maxEnergy
	u.UpdatedAt = r.s.now()
	return u.EarnPerTap, u.MaxEnergy, nil
}

func (r userRepo) PromoteLeague(ctx context.Context, id int64, tier, earnPerTap, maxEnergy int) (bool, error) {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return false, err
	}
	if u.League >= tier {
		return false, nil
	}
	u.League = tier
	u.EarnPerTap += earnPerTap
	u.MaxEnergy += maxEnergy
	u.UpdatedAt = r.s.now()
	return true, nil
}

func (r userRepo) SetHourlyEarn(ctx context.Context, id, hourly int64) error {
	return r.mutate(id, func(u *domain.User) { u.HourlyEarn = hourly })
}

func (r userRepo) TouchHourlyCollect(ctx context.Context, id int64, prev, at time.Time) error {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return err
	}
	if !u.LastHourlyCollect.Equal(prev) {
		return store.ErrPrecondition
	}
	u.LastHourlyCollect = at
	u.UpdatedAt = r.s.now()
	return nil
}

func (r userRepo) SetDailyStreak(ctx context.Context, id int64, streak int, day time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.DailyStreak = streak
		u.LastDailyClaim = &day
	})
}

func (r userRepo) SetBanned(ctx context.Context, id int64, banned bool) error {
	return r.mutate(id, func(u *domain.User) { u.IsBanned = banned })
}

func (r userRepo) mutate(id int64, fn func(*domain.User)) error {
	defer r.s.lock()()
	u, err := r.find(id)
	if err != nil {
		return err
	}
	fn(u)
	u.UpdatedAt = r.s.now()
	return nil
}

func (r userRepo) TopByLeague(ctx context.Context, league, limit int) ([]*domain.User, error) {
	defer r.s.lock()()
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	all := values(r.s.d.users, copyUser, func(u *domain.User) bool {
		return u.League == league && !u.IsBanned
	})
	// ties keep id order from values
	sortStable(all, func(a, b *domain.User) bool { return a.Coins > b.Coins })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r userRepo) Stats(ctx context.Context, since time.Time) (domain.PlayerStats, error) {
	defer r.s.lock()()
	var st domain.PlayerStats
	for _, u := range r.s.d.users {
		st.Players++
		st.TotalCoins += u.Coins
		if u.IsBanned {
			st.Banned++
		}
	}
	for _, t := range r.s.d.transactions {
		if !t.CreatedAt.Before(since) {
			st.TransactionsToday++
		}
	}
	return st, nil
}

type boostRepo struct{ s *Store }

func (r boostRepo) find(userID int64) (*domain.BoostProfile, error) {
	p, ok := r.s.d.boosts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (r boostRepo) Get(ctx context.Context, userID int64) (*domain.BoostProfile, error) {
	defer r.s.lock()()
	p, err := r.find(userID)
	if err != nil {
		return nil, err
	}
	return copyOf(p), nil
}

func (r boostRepo) Create(ctx context.Context, p *domain.BoostProfile) error {
	defer r.s.lock()()
	if _, ok := r.s.d.boosts[p.UserID]; ok {
		return store.ErrConflict
	}
	p.UpdatedAt = r.s.now()
	r.s.d.boosts[p.UserID] = copyOf(p)
	return nil
}

func (r boostRepo) Update(ctx context.Context, p *domain.BoostProfile) error {
	defer r.s.lock()()
	if _, err := r.find(p.UserID); err != nil {
		return err
	}
	p.UpdatedAt = r.s.now()
	r.s.d.boosts[p.UserID] = copyOf(p)
	return nil
}

func (r boostRepo) List(ctx context.Context, q domain.ListQuery) ([]*domain.BoostProfile, int, error) {
	defer r.s.lock()()
	all := reverse(values(r.s.d.boosts, copyOf[domain.BoostProfile], nil))
	return page(all, q), len(all), nil
}

func (r boostRepo) SetLevel(ctx context.Context, userID int64, t domain.BoostType, from, to int) error {
	defer r.s.lock()()
	p, err := r.find(userID)
	if err != nil {
		return err
	}
	if p.Level(t) != from {
		return store.ErrPrecondition
	}
	p.SetLevel(t, to)
	p.UpdatedAt = r.s.now()
	return nil
}

func (r boostRepo) UseRocket(ctx context.Context, userID int64) (int, error) {
	defer r.s.lock()()
	p, ok := r.s.d.boosts[userID]
	if !ok || p.DailyRockets <= 0 {
		return 0, store.ErrPrecondition
	}
	p.DailyRockets--
	p.UpdatedAt = r.s.now()
	return p.DailyRockets, nil
}

func (r boostRepo) MarkFullEnergyUsed(ctx context.Context, userID int64) error {
	defer r.s.lock()()
	p, ok := r.s.d.boosts[userID]
	if !ok || p.EnergyFullUsed {
		return store.ErrPrecondition
	}
	p.EnergyFullUsed = true
	p.UpdatedAt = r.s.now()
	return nil
}

func (r boostRepo) ResetDaily(ctx context.Context) (int64, error) {
	defer r.s.lock()()
	var n int64
	now := r.s.now()
	for _, p := range r.s.d.boosts {
		p.DailyRockets = p.MaxDailyRockets
		p.EnergyFullUsed = false
		p.UpdatedAt = now
		n++
	}
	return n, nil
}
