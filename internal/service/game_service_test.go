package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/repository/memstore"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGame(t *testing.T) (*GameService, *memstore.Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	st := memstore.New()
	st.SetClock(clock.now)
	g := NewGameService(st, league.Default(), nil)
	g.SetClock(clock.now)
	return g, st, clock
}

func newPlayer(t *testing.T, g *GameService, tgID int64) *Player {
	t.Helper()
	p, err := g.InitPlayer(context.Background(), InitParams{TgID: tgID, Username: "hero", FirstName: "Hero"})
	if err != nil {
		t.Fatalf("InitPlayer: %v", err)
	}
	return p
}

func assertGameErr(t *testing.T, err error, want *domain.GameError) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %q", err, want.Code)
	}
}

func balance(t *testing.T, st *memstore.Store, userID int64) int64 {
	t.Helper()
	u, err := st.Users().GetByID(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return u.Coins
}

func TestInitPlayerDefaults(t *testing.T) {
	g, _, _ := newTestGame(t)
	p := newPlayer(t, g, 100)

	u := p.User
	if !p.Created {
		t.Error("expected new player")
	}
	if u.Coins != 1000 || u.League != 1 || u.HourlyEarn != 10 || u.EarnPerTap != 1 || u.Energy != 100 || u.MaxEnergy != 100 {
		t.Fatalf("unexpected defaults: %+v", u)
	}
	if p.Boosts.DailyRockets != 3 || p.Boosts.MaxDailyRockets != 3 || p.Boosts.EnergyFullUsed {
		t.Fatalf("unexpected boosts: %+v", p.Boosts)
	}
	if p.Daily.Streak != 0 || p.Daily.ClaimedToday || p.Daily.NextDay != 1 {
		t.Fatalf("unexpected daily status: %+v", p.Daily)
	}

	again := newPlayer(t, g, 100)
	if again.Created || again.User.ID != u.ID {
		t.Fatal("second init must return the same player")
	}
}

func TestInitPlayerBanned(t *testing.T) {
	g, st, _ := newTestGame(t)
	p := newPlayer(t, g, 100)
	if err := st.Users().SetBanned(context.Background(), p.User.ID, true); err != nil {
		t.Fatal(err)
	}

	_, err := g.InitPlayer(context.Background(), InitParams{TgID: 100})
	assertGameErr(t, err, domain.ErrBanned)

	_, err = g.UpdateCoins(context.Background(), p.User.ID, 10, domain.TxTap, "tap")
	assertGameErr(t, err, domain.ErrBanned)
}

func TestInitPlayerCreatesReferral(t *testing.T) {
	g, _, _ := newTestGame(t)
	ctx := context.Background()
	referrer := newPlayer(t, g, 1)

	if _, err := g.InitPlayer(ctx, InitParams{TgID: 2, ReferrerTgID: 1}); err != nil {
		t.Fatal(err)
	}
	refs, err := g.Referrals(ctx, referrer.User.ID)
	if err != nil || len(refs) != 1 {
		t.Fatalf("referrals = %v, %v", refs, err)
	}
	if refs[0].RewardAmount != domain.ReferralReward {
		t.Fatalf("reward = %d", refs[0].RewardAmount)
	}

	claim, err := g.ClaimReferral(ctx, referrer.User.ID, refs[0].ID)
	if err != nil || claim.Balance != 1000+domain.ReferralReward || claim.Reward != domain.ReferralReward {
		t.Fatalf("ClaimReferral = %+v, %v", claim, err)
	}
	_, err = g.ClaimReferral(ctx, referrer.User.ID, refs[0].ID)
	assertGameErr(t, err, domain.ErrReferralClaimed)
}

func TestUpgradeBoostNotEnoughCoins(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	if err := st.Users().SetCoins(ctx, p.User.ID, 1500); err != nil {
		t.Fatal(err)
	}

	_, err := g.UpgradeBoost(ctx, p.User.ID, domain.BoostMultiTouch)
	assertGameErr(t, err, domain.ErrNotEnoughCoins)
	if err.Error() != "Not enough coins" {
		t.Fatalf("message = %q", err.Error())
	}

	b, _ := g.Boosts(ctx, p.User.ID)
	if b.MultiTouchLevel != 0 {
		t.Fatalf("level = %d, want 0", b.MultiTouchLevel)
	}
	if got := balance(t, st, p.User.ID); got != 1500 {
		t.Fatalf("coins = %d, want 1500", got)
	}
}

func TestUpgradeBoostAppliesStats(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	if err := st.Users().SetCoins(ctx, p.User.ID, 10000); err != nil {
		t.Fatal(err)
	}

	res, err := g.UpgradeBoost(ctx, p.User.ID, domain.BoostMultiTouch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Level != 1 || res.Cost != 2000 || res.NextCost != 3000 || res.EarnPerTap != 3 || res.Balance != 8000 {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = g.UpgradeBoost(ctx, p.User.ID, domain.BoostEnergyLimit)
	if err != nil {
		t.Fatal(err)
	}
	if res.MaxEnergy != 600 || res.Balance != 6000 {
		t.Fatalf("unexpected result %+v", res)
	}

	txs, _ := g.History(ctx, p.User.ID, 10)
	if len(txs) != 2 || txs[0].Type != domain.TxBoostUpgrade || txs[0].Amount != -2000 {
		t.Fatalf("unexpected ledger %+v", txs)
	}
}

func TestUpgradeBoostMaxLevel(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	_ = st.Users().SetCoins(ctx, p.User.ID, 1_000_000)

	for i := 0; i < domain.MaxBoostLevel; i++ {
		if _, err := g.UpgradeBoost(ctx, p.User.ID, domain.BoostChargeSpeed); err != nil {
			t.Fatalf("upgrade %d: %v", i, err)
		}
	}
	_, err := g.UpgradeBoost(ctx, p.User.ID, domain.BoostChargeSpeed)
	assertGameErr(t, err, domain.ErrMaxLevel)

	_, err = g.UpgradeBoost(ctx, p.User.ID, domain.BoostType("turbo"))
	assertGameErr(t, err, domain.ErrInvalidBoost)
}

func TestRocketAndFullEnergy(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	_, _ = st.Users().AddEnergy(ctx, p.User.ID, -100)

	energy, rockets, err := g.UseRocketBoost(ctx, p.User.ID)
	if err != nil || rockets != 2 || energy != 100 {
		t.Fatalf("UseRocketBoost = %d, %d, %v", energy, rockets, err)
	}
	for i := 0; i < 2; i++ {
		if _, _, err := g.UseRocketBoost(ctx, p.User.ID); err != nil {
			t.Fatal(err)
		}
	}
	_, _, err = g.UseRocketBoost(ctx, p.User.ID)
	assertGameErr(t, err, domain.ErrNoRockets)

	_, _ = st.Users().AddEnergy(ctx, p.User.ID, -40)
	energy, err = g.UseFullEnergyBoost(ctx, p.User.ID)
	if err != nil || energy != 100 {
		t.Fatalf("UseFullEnergyBoost = %d, %v", energy, err)
	}
	_, err = g.UseFullEnergyBoost(ctx, p.User.ID)
	assertGameErr(t, err, domain.ErrFullEnergyUsed)

	if n, err := g.ResetDailyBoosts(ctx); err != nil || n != 1 {
		t.Fatalf("ResetDailyBoosts = %d, %v", n, err)
	}
	if _, err := g.UseFullEnergyBoost(ctx, p.User.ID); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	task := &domain.Task{Title: "Follow", Reward: 5000, IsActive: true}
	if err := st.Tasks().Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	_, err := g.CompleteTask(ctx, p.User.ID, task.ID)
	assertGameErr(t, err, domain.ErrTaskNotStarted)
	if err.Error() != "cannot complete before starting" {
		t.Fatalf("message = %q", err.Error())
	}

	ut, err := g.StartTask(ctx, p.User.ID, task.ID)
	if err != nil || ut.Progress != 50 {
		t.Fatalf("StartTask = %+v, %v", ut, err)
	}
	_, err = g.CompleteTask(ctx, p.User.ID, task.ID)
	assertGameErr(t, err, domain.ErrTaskNotReady)

	ut, err = g.StartTask(ctx, p.User.ID, task.ID)
	if err != nil || ut.Progress != 100 {
		t.Fatalf("StartTask = %+v, %v", ut, err)
	}
	res, err := g.CompleteTask(ctx, p.User.ID, task.ID)
	if err != nil || res.Reward != 5000 || res.Balance != 6000 {
		t.Fatalf("CompleteTask = %+v, %v", res, err)
	}

	_, err = g.CompleteTask(ctx, p.User.ID, task.ID)
	assertGameErr(t, err, domain.ErrTaskCompleted)
	if got := balance(t, st, p.User.ID); got != 6000 {
		t.Fatalf("coins = %d, reward granted twice", got)
	}

	views, err := g.Tasks(ctx, p.User.ID)
	if err != nil || len(views) != 1 || !views[0].IsCompleted {
		t.Fatalf("Tasks = %+v, %v", views, err)
	}

	_, err = g.StartTask(ctx, p.User.ID, 9999)
	assertGameErr(t, err, domain.ErrTaskNotFound)
}

func TestDailyRewardStreak(t *testing.T) {
	g, st, clock := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)

	wantRewards := []int64{100, 200, 300}
	for day, want := range wantRewards {
		res, err := g.ClaimDailyReward(ctx, p.User.ID)
		if err != nil {
			t.Fatalf("day %d: %v", day+1, err)
		}
		if res.Day != day+1 || res.Reward != want || res.Streak != day+1 {
			t.Fatalf("day %d: %+v", day+1, res)
		}
		_, err = g.ClaimDailyReward(ctx, p.User.ID)
		assertGameErr(t, err, domain.ErrAlreadyClaimed)

		status, _ := g.DailyStatus(ctx, p.User.ID)
		u, _ := st.Users().GetByID(ctx, p.User.ID)
		if u.DailyStreak != status.Streak {
			t.Fatalf("cached streak %d != derived %d", u.DailyStreak, status.Streak)
		}
		clock.advance(24 * time.Hour)
	}

	// missing a day restarts the cycle
	clock.advance(24 * time.Hour)
	res, err := g.ClaimDailyReward(ctx, p.User.ID)
	if err != nil || res.Day != 1 || res.Streak != 1 {
		t.Fatalf("after gap: %+v, %v", res, err)
	}
	if got := balance(t, st, p.User.ID); got != 1000+100+200+300+100 {
		t.Fatalf("coins = %d", got)
	}
}

func TestDailyRewardCycleWraps(t *testing.T) {
	g, _, clock := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)

	var last *DailyClaimResult
	for i := 0; i < 8; i++ {
		var err error
		last, err = g.ClaimDailyReward(ctx, p.User.ID)
		if err != nil {
			t.Fatal(err)
		}
		clock.advance(24 * time.Hour)
	}
	if last.Streak != 8 || last.Day != 1 || last.Reward != 100 {
		t.Fatalf("eighth claim = %+v", last)
	}
}

func TestDailyStreakBeyondOnePage(t *testing.T) {
	g, _, clock := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)

	const days = domain.StreakPageDays + 5
	var last *DailyClaimResult
	for i := 0; i < days; i++ {
		var err error
		last, err = g.ClaimDailyReward(ctx, p.User.ID)
		if err != nil {
			t.Fatalf("claim %d: %v", i+1, err)
		}
		clock.advance(24 * time.Hour)
	}
	if last.Streak != days || last.Day != (days-1)%7+1 {
		t.Fatalf("claim %d = %+v", days, last)
	}
	status, err := g.DailyStatus(ctx, p.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Streak != days || status.ClaimedToday || status.NextDay != days%7+1 {
		t.Fatalf("status next morning = %+v", status)
	}
}

func TestFindDailyComboCard(t *testing.T) {
	g, st, clock := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	combo := &domain.DailyCombo{Date: clock.now(), CardIDs: []int64{5, 9, 2}, Reward: 100000}
	if err := st.Combos().Create(ctx, combo); err != nil {
		t.Fatal(err)
	}

	res, err := g.FindDailyComboCard(ctx, p.User.ID, 0)
	if err != nil || res.CardID != 5 || res.IsCompleted || res.Reward != 0 || len(res.FoundCardIDs) != 1 {
		t.Fatalf("first find = %+v, %v", res, err)
	}
	_, err = g.FindDailyComboCard(ctx, p.User.ID, 0)
	assertGameErr(t, err, domain.ErrCardFound)

	if _, err := g.FindDailyComboCard(ctx, p.User.ID, 1); err != nil {
		t.Fatal(err)
	}
	res, err = g.FindDailyComboCard(ctx, p.User.ID, 2)
	if err != nil || !res.IsCompleted || res.Reward != 100000 || len(res.FoundCardIDs) != 3 {
		t.Fatalf("final find = %+v, %v", res, err)
	}
	if got := balance(t, st, p.User.ID); got != 101000 {
		t.Fatalf("coins = %d", got)
	}

	_, err = g.FindDailyComboCard(ctx, p.User.ID, 3)
	assertGameErr(t, err, domain.ErrInvalidCard)
}

func TestTodayComboGeneratedOnce(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	st.SeedDemo()

	a, err := g.TodayCombo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := g.TodayCombo(ctx)
	if a.ID != b.ID || len(a.CardIDs) != domain.ComboSize {
		t.Fatalf("combo regenerated: %+v vs %+v", a, b)
	}
	seen := map[int64]bool{}
	for _, id := range a.CardIDs {
		if seen[id] {
			t.Fatalf("duplicate card %d", id)
		}
		seen[id] = true
	}
	if a.Reward != domain.DefaultComboReward {
		t.Fatalf("reward = %d", a.Reward)
	}
}

func TestCollectHourlyEarnings(t *testing.T) {
	g, st, clock := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	item := &domain.Item{Name: "Dagger", BaseHourlyIncome: 100, BaseUpgradeCost: 1000}
	if err := st.Items().Create(ctx, item); err != nil {
		t.Fatal(err)
	}
	if _, err := g.UpgradeItem(ctx, p.User.ID, item.ID); err != nil {
		t.Fatal(err)
	}

	clock.advance(30 * time.Minute)
	res, err := g.CollectHourlyEarnings(ctx, p.User.ID)
	assertGameErr(t, err, domain.ErrTooEarly)
	if res == nil || res.TimeLeft != 30*time.Minute {
		t.Fatalf("time left = %+v", res)
	}

	clock.advance(90 * time.Minute)
	res, err = g.CollectHourlyEarnings(ctx, p.User.ID)
	if err != nil || res.Amount != 200 {
		t.Fatalf("collect = %+v, %v", res, err)
	}

	// capped at a day
	clock.advance(100 * time.Hour)
	res, err = g.CollectHourlyEarnings(ctx, p.User.ID)
	if err != nil || res.Amount != 2400 {
		t.Fatalf("capped collect = %+v, %v", res, err)
	}
}

func TestUpgradeItem(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	item := &domain.Item{Name: "Shield", BaseHourlyIncome: 100, BaseUpgradeCost: 400}
	_ = st.Items().Create(ctx, item)

	res, err := g.UpgradeItem(ctx, p.User.ID, item.ID)
	if err != nil || res.Item.Level != 1 || res.Cost != 400 || res.Balance != 600 || res.HourlyEarn != 100 {
		t.Fatalf("buy = %+v, %v", res, err)
	}
	res, err = g.UpgradeItem(ctx, p.User.ID, item.ID)
	if err != nil || res.Item.Level != 2 || res.Item.HourlyIncome != 150 || res.Item.UpgradeCost != 800 || res.Balance != 200 {
		t.Fatalf("upgrade = %+v, %v", res, err)
	}
	_, err = g.UpgradeItem(ctx, p.User.ID, item.ID)
	assertGameErr(t, err, domain.ErrNotEnoughCoins)

	u, _ := st.Users().GetByID(ctx, p.User.ID)
	if u.HourlyEarn != 150 {
		t.Fatalf("hourly_earn = %d", u.HourlyEarn)
	}
	_, err = g.UpgradeItem(ctx, p.User.ID, 9999)
	assertGameErr(t, err, domain.ErrItemNotFound)
}

func TestUpdateCoinsNeverNegative(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)

	_, err := g.UpdateCoins(ctx, p.User.ID, -1001, "test", "")
	assertGameErr(t, err, domain.ErrNotEnoughCoins)
	if got := balance(t, st, p.User.ID); got != 1000 {
		t.Fatalf("coins = %d", got)
	}
	txs, _ := g.History(ctx, p.User.ID, 10)
	if len(txs) != 0 {
		t.Fatal("failed update must not be logged")
	}
}

func TestApplyCoinBatchIsIdempotent(t *testing.T) {
	g, _, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	batch := &domain.CoinBatch{
		ID: "0b8f5c3e-4f2a-4e36-9d7e-3b1f7f3e2a10",
		Deltas: []domain.CoinDelta{
			{Amount: 5, Kind: domain.TxTap},
			{Amount: 5, Kind: domain.TxTap},
			{Amount: -3, Kind: "spend"},
		},
	}

	res, err := g.ApplyCoinBatch(ctx, p.User.ID, batch)
	if err != nil || res.Balance != 1007 || res.Duplicate {
		t.Fatalf("first apply = %+v, %v", res, err)
	}
	dup := GameActions.WithLabelValues("apply_coin_batch", "duplicate")
	failed := GameActions.WithLabelValues("apply_coin_batch", "error")
	dupBefore, failedBefore := testutil.ToFloat64(dup), testutil.ToFloat64(failed)
	res, err = g.ApplyCoinBatch(ctx, p.User.ID, batch)
	if err != nil || !res.Duplicate || res.Balance != 1007 {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if got := testutil.ToFloat64(dup) - dupBefore; got != 1 {
		t.Fatalf("duplicate outcomes counted %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 0 {
		t.Fatalf("retry counted as a failure %v times", got)
	}
	txs, _ := g.History(ctx, p.User.ID, 10)
	if len(txs) != 1 || txs[0].Meta[domain.TxTap] != int64(10) {
		t.Fatalf("ledger = %+v", txs)
	}
}

func TestApplyCoinBatchClampsAtZero(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)

	res, err := g.ApplyCoinBatch(ctx, p.User.ID, &domain.CoinBatch{
		ID:     "9a4c1e0d-0d62-4f5e-8c1f-6b0b8f1a2c33",
		Deltas: []domain.CoinDelta{{Amount: -5000, Kind: "spend"}},
	})
	if err != nil || !res.Clamped || res.Balance != 0 {
		t.Fatalf("apply = %+v, %v", res, err)
	}
	if got := balance(t, st, p.User.ID); got != 0 {
		t.Fatalf("coins = %d", got)
	}
}

func TestSyncLeagueMatchesDerivation(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	p := newPlayer(t, g, 1)
	_, _ = st.Users().AddCoins(ctx, p.User.ID, 9500)

	res, err := g.SyncLeague(ctx, p.User.ID, 10500)
	if err != nil || !res.Promoted || res.League != 2 || res.EarnPerTap != 2 || res.MaxEnergy != 150 {
		t.Fatalf("SyncLeague = %+v, %v", res, err)
	}
	res, _ = g.SyncLeague(ctx, p.User.ID, 10500)
	if res.Promoted {
		t.Fatal("promotion applied twice")
	}

	u, _ := st.Users().GetByID(ctx, p.User.ID)
	if u.League != g.Leagues().Derive(u.Coins) {
		t.Fatalf("cached league %d != derived %d", u.League, g.Leagues().Derive(u.Coins))
	}
	if u.EarnPerTap != 2 || u.MaxEnergy != 150 {
		t.Fatalf("bonus applied more than once: %+v", u)
	}
}

func TestLeaderboard(t *testing.T) {
	g, st, _ := newTestGame(t)
	ctx := context.Background()
	a := newPlayer(t, g, 1)
	b := newPlayer(t, g, 2)
	_, _ = st.Users().AddCoins(ctx, b.User.ID, 500)

	rows, err := g.Leaderboard(ctx, 1, 10)
	if err != nil || len(rows) != 2 || rows[0].UserID != b.User.ID || rows[1].UserID != a.User.ID || rows[0].Rank != 1 {
		t.Fatalf("Leaderboard = %+v, %v", rows, err)
	}
	if _, err := g.Leaderboard(ctx, 99, 10); err == nil {
		t.Fatal("expected error for unknown league")
	}
}
