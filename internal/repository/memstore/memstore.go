// Package memstore is an in-process store.Store used for local development
// and tests. Transactions are serialized and roll back by restoring a
// snapshot of the mutable tables. The ledger and audit log are append-only
// and roll back by dropping rows allocated after the snapshot.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

type data struct {
	seq           int64
	users         map[int64]*domain.User
	boosts        map[int64]*domain.BoostProfile
	items         map[int64]*domain.Item
	userItems     map[int64]*domain.UserItem
	tasks         map[int64]*domain.Task
	userTasks     map[int64]*domain.UserTask
	dailyRewards  map[int64]*domain.DailyReward
	claims        map[int64]*domain.DailyClaim
	combos        map[int64]*domain.DailyCombo
	comboProgress map[int64]*domain.ComboProgress
	referrals     map[int64]*domain.Referral
	transactions  map[int64]*domain.Transaction
	settings      map[int64]*domain.AppSetting
	leagues       map[int64]*domain.LeagueRecord
	audit         map[int64]*domain.AuditLog
}

func newData() *data {
	return &data{
		users:         map[int64]*domain.User{},
		boosts:        map[int64]*domain.BoostProfile{},
		items:         map[int64]*domain.Item{},
		userItems:     map[int64]*domain.UserItem{},
		tasks:         map[int64]*domain.Task{},
		userTasks:     map[int64]*domain.UserTask{},
		dailyRewards:  map[int64]*domain.DailyReward{},
		claims:        map[int64]*domain.DailyClaim{},
		combos:        map[int64]*domain.DailyCombo{},
		comboProgress: map[int64]*domain.ComboProgress{},
		referrals:     map[int64]*domain.Referral{},
		transactions:  map[int64]*domain.Transaction{},
		settings:      map[int64]*domain.AppSetting{},
		leagues:       map[int64]*domain.LeagueRecord{},
		audit:         map[int64]*domain.AuditLog{},
	}
}

func (d *data) next() int64 {
	d.seq++
	return d.seq
}

// clone copies the mutable tables. The append-only tables are shared.
func (d *data) clone() *data {
	return &data{
		seq:           d.seq,
		users:         cloneMap(d.users, copyUser),
		boosts:        cloneMap(d.boosts, copyOf[domain.BoostProfile]),
		items:         cloneMap(d.items, copyOf[domain.Item]),
		userItems:     cloneMap(d.userItems, copyOf[domain.UserItem]),
		tasks:         cloneMap(d.tasks, copyOf[domain.Task]),
		userTasks:     cloneMap(d.userTasks, copyUserTask),
		dailyRewards:  cloneMap(d.dailyRewards, copyOf[domain.DailyReward]),
		claims:        cloneMap(d.claims, copyOf[domain.DailyClaim]),
		combos:        cloneMap(d.combos, copyCombo),
		comboProgress: cloneMap(d.comboProgress, copyProgress),
		referrals:     cloneMap(d.referrals, copyReferral),
		transactions:  d.transactions,
		settings:      cloneMap(d.settings, copyOf[domain.AppSetting]),
		leagues:       cloneMap(d.leagues, copyOf[domain.LeagueRecord]),
		audit:         d.audit,
	}
}

// restore rolls d back to snap, truncating the append-only tables to the
// ids snap had allocated.
func (d *data) restore(snap *data) {
	dropAfter(d.transactions, snap.seq)
	dropAfter(d.audit, snap.seq)
	*d = *snap
}

func dropAfter[T any](m map[int64]*T, seq int64) {
	for id := range m {
		if id > seq {
			delete(m, id)
		}
	}
}

// Store implements store.Store in memory.
type Store struct {
	mu     *sync.Mutex
	d      *data
	locked bool
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store seeded with the default daily ladder and
// settings.
func New() *Store {
	s := &Store{mu: &sync.Mutex{}, d: newData(), now: time.Now}
	s.seedDefaults()
	return s
}

// SetClock overrides the time source used for generated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) lock() func() {
	if s.locked {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.locked {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.d.clone()
	tx := &Store{mu: s.mu, d: s.d, locked: true, now: s.now}
	if err := fn(tx); err != nil {
		s.d.restore(snap)
		return err
	}
	return nil
}

func (s *Store) Users() store.UserRepo               { return userRepo{s} }
func (s *Store) Boosts() store.BoostRepo             { return boostRepo{s} }
func (s *Store) Items() store.ItemRepo               { return itemRepo{s} }
func (s *Store) Tasks() store.TaskRepo               { return taskRepo{s} }
func (s *Store) Daily() store.DailyRepo              { return dailyRepo{s} }
func (s *Store) Combos() store.ComboRepo             { return comboRepo{s} }
func (s *Store) Referrals() store.ReferralRepo       { return referralRepo{s} }
func (s *Store) Transactions() store.TransactionRepo { return transactionRepo{s} }
func (s *Store) Settings() store.SettingsRepo        { return settingsRepo{s} }
func (s *Store) Leagues() store.LeagueRepo           { return leagueRepo{s} }
func (s *Store) Audit() store.AuditRepo              { return auditRepo{s} }

func (s *Store) seedDefaults() {
	for day, reward := range []int64{100, 200, 300, 400, 500, 600, 2000} {
		id := s.d.next()
		s.d.dailyRewards[id] = &domain.DailyReward{ID: id, Day: day + 1, Reward: reward}
	}
	now := s.now()
	for _, st := range []domain.AppSetting{
		{Key: domain.SettingTokenListingDate, Value: now.AddDate(0, 3, 0).UTC().Format(time.RFC3339), Description: "Countdown target shown on the home screen"},
		{Key: domain.SettingReferralReward, Value: "100000", Description: "Coins paid to the referrer per invited player"},
		{Key: domain.SettingComboReward, Value: "100000", Description: "Coins paid for finding the daily combo"},
	} {
		st := st
		st.ID = s.d.next()
		st.UpdatedAt = now
		s.d.settings[st.ID] = &st
	}
}

// SeedDemo adds a small item and task catalog for local runs.
func (s *Store) SeedDemo() {
	defer s.lock()()
	now := s.now()
	for _, it := range []domain.Item{
		{Name: "Iron Dagger", Category: "weapons", BaseHourlyIncome: 100, BaseUpgradeCost: 1000},
		{Name: "Oak Shield", Category: "armor", BaseHourlyIncome: 150, BaseUpgradeCost: 1500},
		{Name: "Silver Helm", Category: "armor", BaseHourlyIncome: 250, BaseUpgradeCost: 3000},
		{Name: "War Hammer", Category: "weapons", BaseHourlyIncome: 400, BaseUpgradeCost: 5000},
		{Name: "Dragon Scale", Category: "relics", BaseHourlyIncome: 1000, BaseUpgradeCost: 15000},
	} {
		it := it
		it.ID = s.d.next()
		it.CreatedAt = now
		s.d.items[it.ID] = &it
	}
	for _, t := range []domain.Task{
		{Title: "Join our Telegram channel", Reward: 5000, Platform: "telegram", Category: "social", IsActive: true},
		{Title: "Follow us on X", Reward: 5000, Platform: "x", Category: "social", IsActive: true},
		{Title: "Watch the launch trailer", Reward: 10000, Platform: "youtube", Category: "video", IsActive: true},
	} {
		t := t
		t.ID = s.d.next()
		t.CreatedAt = now
		s.d.tasks[t.ID] = &t
	}
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func cloneMap[T any](m map[int64]*T, cp func(*T) *T) map[int64]*T {
	out := make(map[int64]*T, len(m))
	for k, v := range m {
		out[k] = cp(v)
	}
	return out
}

// values returns copies of the entries matching keep, ordered by id.
func values[T any](m map[int64]*T, cp func(*T) *T, keep func(*T) bool) []*T {
	keys := make([]int64, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		out = append(out, cp(m[k]))
	}
	return out
}

func page[T any](all []*T, q domain.ListQuery) []*T {
	q = q.Normalize()
	if q.Offset >= len(all) {
		return nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[q.Offset:end]
}

func reverse[T any](s []*T) []*T {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.LastDailyClaim != nil {
		t := *u.LastDailyClaim
		c.LastDailyClaim = &t
	}
	return &c
}

func copyUserTask(ut *domain.UserTask) *domain.UserTask {
	c := *ut
	if ut.CompletedAt != nil {
		t := *ut.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyCombo(cb *domain.DailyCombo) *domain.DailyCombo {
	c := *cb
	c.CardIDs = append([]int64(nil), cb.CardIDs...)
	return &c
}

func copyProgress(p *domain.ComboProgress) *domain.ComboProgress {
	c := *p
	c.FoundCardIDs = append([]int64{}, p.FoundCardIDs...)
	return &c
}

func copyReferral(r *domain.Referral) *domain.Referral {
	c := *r
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.BatchID != nil {
		id := *t.BatchID
		c.BatchID = &id
	}
	if t.Meta != nil {
		c.Meta = make(map[string]interface{}, len(t.Meta))
		for k, v := range t.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

func sortStable[T any](s []*T, less func(a, b *T) bool) {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
