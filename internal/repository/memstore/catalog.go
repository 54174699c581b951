package memstore

import (
	"context"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

type itemRepo struct{ s *Store }

func (r itemRepo) List(ctx context.Context) ([]*domain.Item, error) {
	defer r.s.lock()()
	return values(r.s.d.items, copyOf[domain.Item], nil), nil
}

func (r itemRepo) Get(ctx context.Context, id int64) (*domain.Item, error) {
	defer r.s.lock()()
	it, ok := r.s.d.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOf(it), nil
}

func (r itemRepo) Create(ctx context.Context, it *domain.Item) error {
	defer r.s.lock()()
	it.ID = r.s.d.next()
	it.CreatedAt = r.s.now()
	r.s.d.items[it.ID] = copyOf(it)
	return nil
}

func (r itemRepo) Update(ctx context.Context, it *domain.Item) error {
	defer r.s.lock()()
	cur, ok := r.s.d.items[it.ID]
	if !ok {
		return store.ErrNotFound
	}
	it.CreatedAt = cur.CreatedAt
	r.s.d.items[it.ID] = copyOf(it)
	return nil
}

func (r itemRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.items, id)
	for k, ui := range r.s.d.userItems {
		if ui.ItemID == id {
			delete(r.s.d.userItems, k)
		}
	}
	return nil
}

func (r itemRepo) IDs(ctx context.Context) ([]int64, error) {
	defer r.s.lock()()
	var ids []int64
	for _, it := range values(r.s.d.items, copyOf[domain.Item], nil) {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (r itemRepo) UserItems(ctx context.Context, userID int64) ([]*domain.UserItem, error) {
	defer r.s.lock()()
	out := values(r.s.d.userItems, copyOf[domain.UserItem], func(ui *domain.UserItem) bool {
		return ui.UserID == userID
	})
	sortStable(out, func(a, b *domain.UserItem) bool { return a.ItemID < b.ItemID })
	return out, nil
}

func (r itemRepo) findUserItem(userID, itemID int64) *domain.UserItem {
	for _, ui := range r.s.d.userItems {
		if ui.UserID == userID && ui.ItemID == itemID {
			return ui
		}
	}
	return nil
}

func (r itemRepo) GetUserItem(ctx context.Context, userID, itemID int64) (*domain.UserItem, error) {
	defer r.s.lock()()
	ui := r.findUserItem(userID, itemID)
	if ui == nil {
		return nil, store.ErrNotFound
	}
	return copyOf(ui), nil
}

func (r itemRepo) CreateUserItem(ctx context.Context, ui *domain.UserItem) error {
	defer r.s.lock()()
	if r.findUserItem(ui.UserID, ui.ItemID) != nil {
		return store.ErrConflict
	}
	ui.ID = r.s.d.next()
	ui.UpdatedAt = r.s.now()
	r.s.d.userItems[ui.ID] = copyOf(ui)
	return nil
}

func (r itemRepo) UpdateUserItem(ctx context.Context, ui *domain.UserItem) error {
	defer r.s.lock()()
	if _, ok := r.s.d.userItems[ui.ID]; !ok {
		return store.ErrNotFound
	}
	ui.UpdatedAt = r.s.now()
	r.s.d.userItems[ui.ID] = copyOf(ui)
	return nil
}

func (r itemRepo) SumHourlyIncome(ctx context.Context, userID int64) (int64, error) {
	defer r.s.lock()()
	var sum int64
	for _, ui := range r.s.d.userItems {
		if ui.UserID == userID {
			sum += ui.HourlyIncome
		}
	}
	return sum, nil
}

type taskRepo struct{ s *Store }

func (r taskRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Task, error) {
	defer r.s.lock()()
	return values(r.s.d.tasks, copyOf[domain.Task], func(t *domain.Task) bool {
		return t.IsActive || !activeOnly
	}), nil
}

func (r taskRepo) Get(ctx context.Context, id int64) (*domain.Task, error) {
	defer r.s.lock()()
	t, ok := r.s.d.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyOf(t), nil
}

func (r taskRepo) Create(ctx context.Context, t *domain.Task) error {
	defer r.s.lock()()
	t.ID = r.s.d.next()
	t.CreatedAt = r.s.now()
	r.s.d.tasks[t.ID] = copyOf(t)
	return nil
}

func (r taskRepo) Update(ctx context.Context, t *domain.Task) error {
	defer r.s.lock()()
	cur, ok := r.s.d.tasks[t.ID]
	if !ok {
		return store.ErrNotFound
	}
	t.CreatedAt = cur.CreatedAt
	r.s.d.tasks[t.ID] = copyOf(t)
	return nil
}

func (r taskRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.tasks, id)
	for k, ut := range r.s.d.userTasks {
		if ut.TaskID == id {
			delete(r.s.d.userTasks, k)
		}
	}
	return nil
}

func (r taskRepo) GetProgress(ctx context.Context, userID, taskID int64) (*domain.UserTask, error) {
	defer r.s.lock()()
	for _, ut := range r.s.d.userTasks {
		if ut.UserID == userID && ut.TaskID == taskID {
			return copyUserTask(ut), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r taskRepo) CreateProgress(ctx context.Context, ut *domain.UserTask) error {
	defer r.s.lock()()
	for _, cur := range r.s.d.userTasks {
		if cur.UserID == ut.UserID && cur.TaskID == ut.TaskID {
			return store.ErrConflict
		}
	}
	ut.ID = r.s.d.next()
	ut.CreatedAt = r.s.now()
	r.s.d.userTasks[ut.ID] = copyUserTask(ut)
	return nil
}

func (r taskRepo) Complete(ctx context.Context, id int64, at time.Time) error {
	defer r.s.lock()()
	cur, ok := r.s.d.userTasks[id]
	if !ok || cur.IsCompleted || !cur.Ready() {
		return store.ErrPrecondition
	}
	cur.IsCompleted = true
	cur.CompletedAt = &at
	return nil
}

func (r taskRepo) UpdateProgress(ctx context.Context, ut *domain.UserTask) error {
	defer r.s.lock()()
	cur, ok := r.s.d.userTasks[ut.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Progress = ut.Progress
	cur.IsCompleted = ut.IsCompleted
	cur.CompletedAt = nil
	if ut.CompletedAt != nil {
		t := *ut.CompletedAt
		cur.CompletedAt = &t
	}
	return nil
}

func (r taskRepo) ListProgress(ctx context.Context, userID int64) ([]*domain.UserTask, error) {
	defer r.s.lock()()
	out := values(r.s.d.userTasks, copyUserTask, func(ut *domain.UserTask) bool {
		return ut.UserID == userID
	})
	sortStable(out, func(a, b *domain.UserTask) bool { return a.TaskID < b.TaskID })
	return out, nil
}

type dailyRepo struct{ s *Store }

func (r dailyRepo) Rewards(ctx context.Context) ([]*domain.DailyReward, error) {
	defer r.s.lock()()
	out := values(r.s.d.dailyRewards, copyOf[domain.DailyReward], nil)
	sortStable(out, func(a, b *domain.DailyReward) bool { return a.Day < b.Day })
	return out, nil
}

func (r dailyRepo) RewardForDay(ctx context.Context, day int) (*domain.DailyReward, error) {
	defer r.s.lock()()
	for _, dr := range r.s.d.dailyRewards {
		if dr.Day == day {
			return copyOf(dr), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r dailyRepo) CreateReward(ctx context.Context, dr *domain.DailyReward) error {
	defer r.s.lock()()
	for _, cur := range r.s.d.dailyRewards {
		if cur.Day == dr.Day {
			return store.ErrConflict
		}
	}
	dr.ID = r.s.d.next()
	r.s.d.dailyRewards[dr.ID] = copyOf(dr)
	return nil
}

func (r dailyRepo) UpdateReward(ctx context.Context, dr *domain.DailyReward) error {
	defer r.s.lock()()
	if _, ok := r.s.d.dailyRewards[dr.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.d.dailyRewards[dr.ID] = copyOf(dr)
	return nil
}

func (r dailyRepo) DeleteReward(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.dailyRewards[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.dailyRewards, id)
	return nil
}

func (r dailyRepo) findClaim(userID int64, date time.Time) *domain.DailyClaim {
	date = domain.DateOf(date)
	for _, c := range r.s.d.claims {
		if c.UserID == userID && c.ClaimDate.Equal(date) {
			return c
		}
	}
	return nil
}

func (r dailyRepo) GetClaim(ctx context.Context, userID int64, date time.Time) (*domain.DailyClaim, error) {
	defer r.s.lock()()
	c := r.findClaim(userID, date)
	if c == nil {
		return nil, store.ErrNotFound
	}
	return copyOf(c), nil
}

func (r dailyRepo) InsertClaim(ctx context.Context, c *domain.DailyClaim) error {
	defer r.s.lock()()
	if r.findClaim(c.UserID, c.ClaimDate) != nil {
		return store.ErrConflict
	}
	c.ID = r.s.d.next()
	c.ClaimDate = domain.DateOf(c.ClaimDate)
	c.ClaimedAt = r.s.now()
	r.s.d.claims[c.ID] = copyOf(c)
	return nil
}

func (r dailyRepo) ClaimDates(ctx context.Context, userID int64, before time.Time, limit int) ([]time.Time, error) {
	defer r.s.lock()()
	claims := values(r.s.d.claims, copyOf[domain.DailyClaim], func(c *domain.DailyClaim) bool {
		return c.UserID == userID && c.ClaimDate.Before(before)
	})
	sortStable(claims, func(a, b *domain.DailyClaim) bool { return a.ClaimDate.After(b.ClaimDate) })
	var dates []time.Time
	for _, c := range claims {
		if len(dates) == limit {
			break
		}
		dates = append(dates, c.ClaimDate)
	}
	return dates, nil
}

type comboRepo struct{ s *Store }

func (r comboRepo) findCombo(date time.Time) *domain.DailyCombo {
	date = domain.DateOf(date)
	for _, c := range r.s.d.combos {
		if c.Date.Equal(date) {
			return c
		}
	}
	return nil
}

func (r comboRepo) GetByDate(ctx context.Context, date time.Time) (*domain.DailyCombo, error) {
	defer r.s.lock()()
	c := r.findCombo(date)
	if c == nil {
		return nil, store.ErrNotFound
	}
	return copyCombo(c), nil
}

func (r comboRepo) Create(ctx context.Context, c *domain.DailyCombo) error {
	defer r.s.lock()()
	if r.findCombo(c.Date) != nil {
		return store.ErrConflict
	}
	c.ID = r.s.d.next()
	c.Date = domain.DateOf(c.Date)
	c.CreatedAt = r.s.now()
	r.s.d.combos[c.ID] = copyCombo(c)
	return nil
}

func (r comboRepo) Update(ctx context.Context, c *domain.DailyCombo) error {
	defer r.s.lock()()
	cur, ok := r.s.d.combos[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	if other := r.findCombo(c.Date); other != nil && other.ID != c.ID {
		return store.ErrConflict
	}
	c.Date = domain.DateOf(c.Date)
	c.CreatedAt = cur.CreatedAt
	r.s.d.combos[c.ID] = copyCombo(c)
	return nil
}

func (r comboRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.combos[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.combos, id)
	return nil
}

func (r comboRepo) List(ctx context.Context, limit int) ([]*domain.DailyCombo, error) {
	defer r.s.lock()()
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	out := values(r.s.d.combos, copyCombo, nil)
	sortStable(out, func(a, b *domain.DailyCombo) bool { return a.Date.After(b.Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r comboRepo) findProgress(userID int64, date time.Time) *domain.ComboProgress {
	date = domain.DateOf(date)
	for _, p := range r.s.d.comboProgress {
		if p.UserID == userID && p.Date.Equal(date) {
			return p
		}
	}
	return nil
}

func (r comboRepo) GetProgress(ctx context.Context, userID int64, date time.Time) (*domain.ComboProgress, error) {
	defer r.s.lock()()
	p := r.findProgress(userID, date)
	if p == nil {
		return nil, store.ErrNotFound
	}
	return copyProgress(p), nil
}

func (r comboRepo) CreateProgress(ctx context.Context, p *domain.ComboProgress) error {
	defer r.s.lock()()
	if r.findProgress(p.UserID, p.Date) != nil {
		return store.ErrConflict
	}
	p.ID = r.s.d.next()
	p.Date = domain.DateOf(p.Date)
	p.UpdatedAt = r.s.now()
	r.s.d.comboProgress[p.ID] = copyProgress(p)
	return nil
}

func (r comboRepo) UpdateProgress(ctx context.Context, p *domain.ComboProgress) error {
	defer r.s.lock()()
	if _, ok := r.s.d.comboProgress[p.ID]; !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = r.s.now()
	r.s.d.comboProgress[p.ID] = copyProgress(p)
	return nil
}

type referralRepo struct{ s *Store }

func (r referralRepo) Create(ctx context.Context, ref *domain.Referral) error {
	defer r.s.lock()()
	for _, cur := range r.s.d.referrals {
		if cur.ReferredID == ref.ReferredID {
			return store.ErrConflict
		}
	}
	ref.ID = r.s.d.next()
	ref.CreatedAt = r.s.now()
	r.s.d.referrals[ref.ID] = copyReferral(ref)
	return nil
}

func (r referralRepo) Get(ctx context.Context, id int64) (*domain.Referral, error) {
	defer r.s.lock()()
	ref, ok := r.s.d.referrals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyReferral(ref), nil
}

func (r referralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]*domain.Referral, error) {
	defer r.s.lock()()
	return reverse(values(r.s.d.referrals, copyReferral, func(ref *domain.Referral) bool {
		return ref.ReferrerID == referrerID
	})), nil
}

func (r referralRepo) List(ctx context.Context, q domain.ListQuery) ([]*domain.Referral, int, error) {
	defer r.s.lock()()
	all := reverse(values(r.s.d.referrals, copyReferral, nil))
	return page(all, q), len(all), nil
}

func (r referralRepo) Update(ctx context.Context, ref *domain.Referral) error {
	defer r.s.lock()()
	cur, ok := r.s.d.referrals[ref.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.RewardAmount = ref.RewardAmount
	cur.IsClaimed = ref.IsClaimed
	cur.ClaimedAt = nil
	if ref.ClaimedAt != nil {
		t := *ref.ClaimedAt
		cur.ClaimedAt = &t
	}
	return nil
}

func (r referralRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.referrals[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.referrals, id)
	return nil
}

func (r referralRepo) MarkClaimed(ctx context.Context, id int64, at time.Time) error {
	defer r.s.lock()()
	ref, ok := r.s.d.referrals[id]
	if !ok || ref.IsClaimed {
		return store.ErrPrecondition
	}
	ref.IsClaimed = true
	ref.ClaimedAt = &at
	return nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) Insert(ctx context.Context, t *domain.Transaction) error {
	defer r.s.lock()()
	if t.BatchID != nil {
		for _, cur := range r.s.d.transactions {
			if cur.BatchID != nil && *cur.BatchID == *t.BatchID {
				return store.ErrConflict
			}
		}
	}
	t.ID = r.s.d.next()
	t.CreatedAt = r.s.now()
	r.s.d.transactions[t.ID] = copyTransaction(t)
	return nil
}

func (r transactionRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	defer r.s.lock()()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := reverse(values(r.s.d.transactions, copyTransaction, func(t *domain.Transaction) bool {
		return t.UserID == userID
	}))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r transactionRepo) List(ctx context.Context, q domain.TransactionQuery) ([]*domain.Transaction, int, error) {
	defer r.s.lock()()
	all := reverse(values(r.s.d.transactions, copyTransaction, func(t *domain.Transaction) bool {
		return (q.UserID == 0 || t.UserID == q.UserID) && (q.Type == "" || t.Type == q.Type)
	}))
	return page(all, domain.ListQuery{Limit: q.Limit, Offset: q.Offset}), len(all), nil
}

func (r transactionRepo) Each(ctx context.Context, fn func(*domain.Transaction) error) error {
	unlock := r.s.lock()
	all := values(r.s.d.transactions, copyTransaction, nil)
	unlock()
	for _, t := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) List(ctx context.Context) ([]*domain.AppSetting, error) {
	defer r.s.lock()()
	out := values(r.s.d.settings, copyOf[domain.AppSetting], nil)
	sortStable(out, func(a, b *domain.AppSetting) bool { return a.Key < b.Key })
	return out, nil
}

func (r settingsRepo) Get(ctx context.Context, key string) (*domain.AppSetting, error) {
	defer r.s.lock()()
	for _, st := range r.s.d.settings {
		if st.Key == key {
			return copyOf(st), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r settingsRepo) Create(ctx context.Context, st *domain.AppSetting) error {
	defer r.s.lock()()
	for _, cur := range r.s.d.settings {
		if cur.Key == st.Key {
			return store.ErrConflict
		}
	}
	st.ID = r.s.d.next()
	st.UpdatedAt = r.s.now()
	r.s.d.settings[st.ID] = copyOf(st)
	return nil
}

func (r settingsRepo) Update(ctx context.Context, st *domain.AppSetting) error {
	defer r.s.lock()()
	if _, ok := r.s.d.settings[st.ID]; !ok {
		return store.ErrNotFound
	}
	st.UpdatedAt = r.s.now()
	r.s.d.settings[st.ID] = copyOf(st)
	return nil
}

func (r settingsRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.settings[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.settings, id)
	return nil
}

type leagueRepo struct{ s *Store }

func (r leagueRepo) List(ctx context.Context) ([]*domain.LeagueRecord, error) {
	defer r.s.lock()()
	out := values(r.s.d.leagues, copyOf[domain.LeagueRecord], nil)
	sortStable(out, func(a, b *domain.LeagueRecord) bool { return a.CoinRequirement < b.CoinRequirement })
	return out, nil
}

func (r leagueRepo) Create(ctx context.Context, l *domain.LeagueRecord) error {
	defer r.s.lock()()
	l.ID = r.s.d.next()
	r.s.d.leagues[l.ID] = copyOf(l)
	return nil
}

func (r leagueRepo) Update(ctx context.Context, l *domain.LeagueRecord) error {
	defer r.s.lock()()
	if _, ok := r.s.d.leagues[l.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.d.leagues[l.ID] = copyOf(l)
	return nil
}

func (r leagueRepo) Delete(ctx context.Context, id int64) error {
	defer r.s.lock()()
	if _, ok := r.s.d.leagues[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.d.leagues, id)
	return nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, l *domain.AuditLog) error {
	defer r.s.lock()()
	l.ID = r.s.d.next()
	l.CreatedAt = r.s.now()
	r.s.d.audit[l.ID] = copyOf(l)
	return nil
}

func (r auditRepo) Recent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	defer r.s.lock()()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := reverse(values(r.s.d.audit, copyOf[domain.AuditLog], nil))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
