package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/repository/memstore"
	"github.com/toprakhenaz/sword-combat/internal/service"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	game  *service.GameService
	store *memstore.Store
	clock *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	st := memstore.New()
	st.SetClock(clk.now)
	g := service.NewGameService(st, league.Default(), nil)
	g.SetClock(clk.now)
	return &harness{game: g, store: st, clock: clk}
}

// opts keeps the debounce windows out of the way so tests flush explicitly.
func (h *harness) opts() Options {
	o := DefaultOptions()
	o.CoinWindow = time.Hour
	o.EnergyWindow = time.Hour
	o.Now = h.clock.now
	return o
}

func (h *harness) player(t *testing.T, tgID int64) Identity {
	t.Helper()
	p, err := h.game.InitPlayer(context.Background(), service.InitParams{TgID: tgID, Username: "knight"})
	if err != nil {
		t.Fatalf("InitPlayer: %v", err)
	}
	return Identity{UserID: p.User.ID, TgID: tgID, Username: "knight"}
}

func (h *harness) session(t *testing.T, actions Actions, id Identity, opts Options) *Session {
	t.Helper()
	s := New(id, actions, league.Default(), opts)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func (h *harness) user(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := h.store.Users().GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (h *harness) tap(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		h.clock.advance(50 * time.Millisecond)
		if err := s.Tap(); err != nil {
			t.Fatalf("tap %d: %v", i, err)
		}
	}
}

func TestLeagueUpAndReward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	if err := s.UpdateCoins(ctx, 9500, "test", "test"); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Coins != 10500 || st.League != 2 || st.PreviousLeague != 1 || !st.IsLevelingUp {
		t.Fatalf("after +9500: %+v", st)
	}
	if st.EarnPerTap != 2 || st.MaxEnergy != 150 {
		t.Fatalf("league bonus not applied: ept=%d max=%d", st.EarnPerTap, st.MaxEnergy)
	}
	if st.LeagueReward != 50000 {
		t.Fatalf("pending reward = %d", st.LeagueReward)
	}

	reward, err := s.CollectLeagueReward(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if reward != 50000 {
		t.Fatalf("reward = %d", reward)
	}
	st = s.Snapshot()
	if st.Coins != 60500 || st.IsLevelingUp {
		t.Fatalf("after collect: %+v", st)
	}

	if _, err := s.CollectLeagueReward(ctx); !errors.Is(err, domain.ErrNothingToCollect) {
		t.Fatalf("second collect err = %v", err)
	}

	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	u := h.user(t, id.UserID)
	if u.Coins != 60500 {
		t.Fatalf("stored coins = %d", u.Coins)
	}
	if want := league.Default().Derive(u.Coins); u.League != want {
		t.Fatalf("stored league %d, derived %d", u.League, want)
	}
	if u.EarnPerTap != 2 || u.MaxEnergy != 150 {
		t.Fatalf("stored bonus: ept=%d max=%d", u.EarnPerTap, u.MaxEnergy)
	}
	if st := s.Snapshot(); st.Coins != 60500 || st.League != 2 {
		t.Fatalf("after refresh: %+v", st)
	}
}

func TestLeagueRewardCanReachNextTier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	if err := s.UpdateCoins(ctx, 59000, "test", "test"); err != nil {
		t.Fatal(err)
	}
	if st := s.Snapshot(); st.League != 2 || !st.IsLevelingUp {
		t.Fatalf("after +59000: %+v", st)
	}

	reward, err := s.CollectLeagueReward(ctx)
	if err != nil || reward != 50000 {
		t.Fatalf("first collect = %d, %v", reward, err)
	}
	st := s.Snapshot()
	if st.Coins != 110000 || st.League != 3 || st.PreviousLeague != 2 {
		t.Fatalf("after first collect: %+v", st)
	}
	if !st.IsLevelingUp || st.LeagueReward != 500000 {
		t.Fatalf("iron reward not pending: leveling=%v reward=%d", st.IsLevelingUp, st.LeagueReward)
	}

	reward, err = s.CollectLeagueReward(ctx)
	if err != nil || reward != 500000 {
		t.Fatalf("second collect = %d, %v", reward, err)
	}
	st = s.Snapshot()
	if st.Coins != 610000 || st.IsLevelingUp || st.PreviousLeague != 3 {
		t.Fatalf("after second collect: %+v", st)
	}
	if _, err := s.CollectLeagueReward(ctx); !errors.Is(err, domain.ErrNothingToCollect) {
		t.Fatalf("third collect err = %v", err)
	}
}

func TestRefreshKeepsLevelingFlag(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	if err := s.UpdateCoins(ctx, 9500, "test", "test"); err != nil {
		t.Fatal(err)
	}
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if !st.IsLevelingUp || st.League != 2 || st.PreviousLeague != 1 {
		t.Fatalf("leveling state lost on refresh: %+v", st)
	}
}

func TestUpdateCoinsRejectsNegativeBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	err := s.UpdateCoins(ctx, -2000, "test", "spend")
	if !errors.Is(err, domain.ErrNotEnoughCoins) {
		t.Fatalf("err = %v", err)
	}
	if st := s.Snapshot(); st.Coins != 1000 {
		t.Fatalf("coins changed to %v", st.Coins)
	}
	if err := s.UpdateCoins(ctx, -1000, "test", "spend all"); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if c := h.user(t, id.UserID).Coins; c != 0 {
		t.Fatalf("stored coins = %d", c)
	}
}

func TestTapSpendsEnergyAndFlushes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	h.tap(t, s, 100)
	if err := s.Tap(); !errors.Is(err, domain.ErrNoEnergy) {
		t.Fatalf("tap at zero energy: %v", err)
	}
	st := s.Snapshot()
	if st.Energy != 0 || st.Coins != 1100 {
		t.Fatalf("after taps: energy=%d coins=%v", st.Energy, st.Coins)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	u := h.user(t, id.UserID)
	if u.Coins != 1100 || u.Energy != 0 {
		t.Fatalf("stored coins=%d energy=%d", u.Coins, u.Energy)
	}

	txs, err := h.game.History(ctx, id.UserID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || txs[0].Type != domain.TxBatchUpdate || txs[0].Amount != 100 {
		t.Fatalf("ledger = %+v", txs)
	}
}

func TestTapRateLimit(t *testing.T) {
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	if err := s.Tap(); err != nil {
		t.Fatal(err)
	}
	if err := s.Tap(); !errors.Is(err, domain.ErrTapTooFast) {
		t.Fatalf("second tap err = %v", err)
	}
	h.clock.advance(50 * time.Millisecond)
	if err := s.Tap(); err != nil {
		t.Fatalf("tap after interval: %v", err)
	}
	if st := s.Snapshot(); st.Coins != 1002 || st.Energy != 98 {
		t.Fatalf("state = %+v", st)
	}
}

func TestEnergyClamp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	s.Regen()
	if st := s.Snapshot(); st.Energy != 100 {
		t.Fatalf("regen past max: %d", st.Energy)
	}

	h.tap(t, s, 30)
	if err := s.UseRocketBoost(ctx); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Energy != 100 || st.Boosts.DailyRockets != 2 {
		t.Fatalf("after rocket: energy=%d rockets=%d", st.Energy, st.Boosts.DailyRockets)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if e := h.user(t, id.UserID).Energy; e != 100 {
		t.Fatalf("stored energy = %d", e)
	}
}

func TestFullEnergyRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	h.tap(t, s, 40)
	if err := s.UseFullEnergyBoost(ctx); err != nil {
		t.Fatal(err)
	}
	if st := s.Snapshot(); st.Energy != 100 || !st.Boosts.EnergyFullUsed {
		t.Fatalf("after full energy: %+v", st)
	}

	// a second session for the same player believes the boost is unused
	other := New(id, h.game, league.Default(), h.opts())
	defer other.Close(ctx)
	other.ready = true
	other.energy = 10
	err := other.UseFullEnergyBoost(ctx)
	if !errors.Is(err, domain.ErrFullEnergyUsed) {
		t.Fatalf("err = %v", err)
	}
	if st := other.Snapshot(); st.Energy != 10 || st.Boosts.EnergyFullUsed {
		t.Fatalf("not rolled back: energy=%d used=%v", st.Energy, st.Boosts.EnergyFullUsed)
	}
}

func TestUpgradeBoostNotEnoughCoins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	if _, err := h.store.Users().AddCoins(ctx, id.UserID, 500); err != nil {
		t.Fatal(err)
	}
	s := h.session(t, h.game, id, h.opts())

	_, err := s.UpgradeBoost(ctx, domain.BoostMultiTouch)
	if !errors.Is(err, domain.ErrNotEnoughCoins) {
		t.Fatalf("err = %v", err)
	}
	st := s.Snapshot()
	if st.Coins != 1500 || st.Boosts.MultiTouchLevel != 0 {
		t.Fatalf("state changed: coins=%v level=%d", st.Coins, st.Boosts.MultiTouchLevel)
	}
}

func TestUpgradeBoostFlushesFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	if _, err := h.store.Users().AddCoins(ctx, id.UserID, 1000); err != nil {
		t.Fatal(err)
	}
	s := h.session(t, h.game, id, h.opts())
	h.tap(t, s, 3)

	res, err := s.UpgradeBoost(ctx, domain.BoostMultiTouch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Level != 1 || res.Cost != 2000 {
		t.Fatalf("upgrade = %+v", res)
	}
	st := s.Snapshot()
	if st.Coins != 3 || st.EarnPerTap != 3 || st.Boosts.MultiTouchLevel != 1 {
		t.Fatalf("state = %+v", st)
	}
	if c := h.user(t, id.UserID).Coins; c != 3 {
		t.Fatalf("stored coins = %d", c)
	}
}

func TestUpgradeBoostAfterPendingPromotion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	if err := s.UpdateCoins(ctx, 9500, "test", "test"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpgradeBoost(ctx, domain.BoostMultiTouch); err != nil {
		t.Fatal(err)
	}
	u := h.user(t, id.UserID)
	if u.League != 2 || u.EarnPerTap != 1+service.LeagueTapBonus+domain.MultiTouchTapBonus || u.MaxEnergy != 150 {
		t.Fatalf("stored: league=%d ept=%d max=%d", u.League, u.EarnPerTap, u.MaxEnergy)
	}
	st := s.Snapshot()
	if st.EarnPerTap != u.EarnPerTap || st.MaxEnergy != u.MaxEnergy || st.Coins != 8500 {
		t.Fatalf("local state %+v differs from stored ept=%d max=%d", st, u.EarnPerTap, u.MaxEnergy)
	}
}

func TestRocketRefusedRestoresEnergy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	// another device spends every rocket first
	for i := 0; i < domain.DailyRockets; i++ {
		if _, _, err := h.game.UseRocketBoost(ctx, id.UserID); err != nil {
			t.Fatal(err)
		}
	}
	h.tap(t, s, 20)
	if err := s.UseRocketBoost(ctx); !errors.Is(err, domain.ErrNoRockets) {
		t.Fatalf("err = %v", err)
	}
	st := s.Snapshot()
	if st.Energy != 80 || st.Boosts.DailyRockets != domain.DailyRockets {
		t.Fatalf("not rolled back: energy=%d rockets=%d", st.Energy, st.Boosts.DailyRockets)
	}
	if e := h.user(t, id.UserID).Energy; e != 80 {
		t.Fatalf("stored energy = %d", e)
	}
}

func TestEnergyFlushFailureKeepsDelta(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	f := &flaky{GameService: h.game, energyRefused: 1}
	s := h.session(t, f, id, h.opts())

	h.tap(t, s, 5)
	if err := s.Flush(ctx); err == nil {
		t.Fatal("expected the energy flush to fail")
	}
	if e := h.user(t, id.UserID).Energy; e != 100 {
		t.Fatalf("stored energy after refused write = %d", e)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if e := h.user(t, id.UserID).Energy; e != 95 {
		t.Fatalf("stored energy = %d, want 95", e)
	}
	if st := s.Snapshot(); st.Energy != 95 {
		t.Fatalf("local energy = %d", st.Energy)
	}
}

// gated commits the next passive save and then holds its response until
// release is closed.
type gated struct {
	*service.GameService
	committed chan struct{}
	release   chan struct{}
	once      sync.Once
}

func (g *gated) UpdateCoins(ctx context.Context, userID, amount int64, kind, desc string) (int64, error) {
	bal, err := g.GameService.UpdateCoins(ctx, userID, amount, kind, desc)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.committed)
		<-g.release
	}
	return bal, err
}

func TestRefreshWaitsForInFlightSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	g := &gated{GameService: h.game, committed: make(chan struct{}), release: make(chan struct{})}
	s := h.session(t, g, id, h.opts())

	for i := 0; i < 3600; i++ {
		s.Tick()
	}
	saved := make(chan error, 1)
	go func() { saved <- s.SavePassive(ctx) }()
	<-g.committed

	refreshed := make(chan error, 1)
	go func() { refreshed <- s.Refresh(ctx) }()
	time.Sleep(50 * time.Millisecond)
	close(g.release)

	if err := <-saved; err != nil {
		t.Fatal(err)
	}
	if err := <-refreshed; err != nil {
		t.Fatal(err)
	}
	if c := h.user(t, id.UserID).Coins; c != 1010 {
		t.Fatalf("stored coins = %d", c)
	}
	if st := s.Snapshot(); st.Coins != 1010 {
		t.Fatalf("local coins = %v after refresh, want 1010", st.Coins)
	}
}

// flaky drops the response of the next `lost` coin writes after they were
// applied, and fails the next `refused` ones before they reach the store.
// energyRefused does the same for energy writes.
type flaky struct {
	*service.GameService

	mu            sync.Mutex
	lost          int
	refused       int
	energyRefused int
	batchIDs      []string
}

func (f *flaky) ApplyEnergyDelta(ctx context.Context, userID int64, delta int) (int, error) {
	f.mu.Lock()
	refuse := f.energyRefused > 0
	if refuse {
		f.energyRefused--
	}
	f.mu.Unlock()
	if refuse {
		return 0, errors.New("connection refused")
	}
	return f.GameService.ApplyEnergyDelta(ctx, userID, delta)
}

func (f *flaky) ApplyCoinBatch(ctx context.Context, userID int64, b *domain.CoinBatch) (*service.BatchResult, error) {
	f.mu.Lock()
	f.batchIDs = append(f.batchIDs, b.ID)
	refuse := f.refused > 0
	if refuse {
		f.refused--
	}
	lose := !refuse && f.lost > 0
	if lose {
		f.lost--
	}
	f.mu.Unlock()

	if refuse {
		return nil, errors.New("connection refused")
	}
	res, err := f.GameService.ApplyCoinBatch(ctx, userID, b)
	if lose {
		return nil, errors.New("connection reset")
	}
	return res, err
}

func (f *flaky) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.batchIDs...)
}

func TestCoinFlushRetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	f := &flaky{GameService: h.game, lost: 1}
	s := h.session(t, f, id, h.opts())

	h.tap(t, s, 5)
	if err := s.Flush(ctx); err == nil {
		t.Fatal("expected the first flush to fail")
	}
	if c := h.user(t, id.UserID).Coins; c != 1005 {
		t.Fatalf("stored coins after lost response = %d", c)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if c := h.user(t, id.UserID).Coins; c != 1005 {
		t.Fatalf("batch applied twice: coins = %d", c)
	}
	ids := f.ids()
	if len(ids) != 2 || ids[0] != ids[1] {
		t.Fatalf("retry used a different batch: %v", ids)
	}
	if st := s.Snapshot(); st.Coins != 1005 {
		t.Fatalf("local coins = %v", st.Coins)
	}
}

func TestCoinFlushFailureKeepsQueue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	f := &flaky{GameService: h.game, refused: 1}
	s := h.session(t, f, id, h.opts())

	h.tap(t, s, 4)
	if err := s.Flush(ctx); err == nil {
		t.Fatal("expected flush to fail")
	}
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if c := h.user(t, id.UserID).Coins; c != 1004 {
		t.Fatalf("stored coins = %d", c)
	}
	if st := s.Snapshot(); st.Coins != 1004 {
		t.Fatalf("local coins = %v", st.Coins)
	}
}

func TestDebouncedFlush(t *testing.T) {
	h := newHarness(t)
	id := h.player(t, 1)
	opts := h.opts()
	opts.CoinWindow = 100 * time.Millisecond
	opts.EnergyWindow = 100 * time.Millisecond
	s := h.session(t, h.game, id, opts)

	// below the drift threshold nothing is written
	h.tap(t, s, 3)
	time.Sleep(300 * time.Millisecond)
	if c := h.user(t, id.UserID).Coins; c != 1000 {
		t.Fatalf("small drift written early: coins = %d", c)
	}

	h.tap(t, s, 12)
	deadline := time.Now().Add(3 * time.Second)
	for {
		u := h.user(t, id.UserID)
		if u.Coins == 1015 && u.Energy == 85 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced writes not seen: coins=%d energy=%d", u.Coins, u.Energy)
		}
		time.Sleep(10 * time.Millisecond)
	}

	txs, err := h.game.History(context.Background(), id.UserID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || txs[0].Amount != 15 {
		t.Fatalf("expected one batch of 15, got %+v", txs)
	}
}

func TestPassiveIncome(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	for i := 0; i < 400; i++ {
		s.Tick()
	}
	if err := s.SavePassive(ctx); err != nil {
		t.Fatal(err)
	}
	if c := h.user(t, id.UserID).Coins; c != 1001 {
		t.Fatalf("stored coins = %d", c)
	}
	st := s.Snapshot()
	if st.Coins < 1001.1 || st.Coins > 1001.12 {
		t.Fatalf("local coins = %v", st.Coins)
	}

	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if st := s.Snapshot(); st.Coins < 1001.1 {
		t.Fatalf("fraction lost on refresh: %v", st.Coins)
	}
}

func TestServerActionsMirrorLocally(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	s := h.session(t, h.game, id, h.opts())

	res, err := s.ClaimDailyReward(ctx)
	if err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Coins != float64(1000+res.Reward) || st.DailyStreak != 1 {
		t.Fatalf("after daily claim: %+v", st)
	}
	if _, err := s.ClaimDailyReward(ctx); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v", err)
	}
	if c := h.user(t, id.UserID).Coins; float64(c) != st.Coins {
		t.Fatalf("stored %d, local %v", c, st.Coins)
	}
}

func TestBannedPlayerCannotStart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	if err := h.store.Users().SetBanned(ctx, id.UserID, true); err != nil {
		t.Fatal(err)
	}
	m := NewManager(h.game, league.Default(), h.opts(), time.Minute)
	defer m.Shutdown(ctx)

	if _, err := m.Acquire(ctx, id); !errors.Is(err, domain.ErrBanned) {
		t.Fatalf("err = %v", err)
	}
	if m.Len() != 0 {
		t.Fatal("banned session kept")
	}
}

func TestManagerSharesAndEvicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.player(t, 1)
	m := NewManager(h.game, league.Default(), h.opts(), time.Minute)
	defer m.Shutdown(ctx)

	a, err := m.Acquire(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Acquire(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("expected one session per player")
	}
	h.tap(t, a, 2)

	m.Release(id.UserID)
	h.clock.advance(2 * time.Minute)
	if n := m.sweep(ctx); n != 0 {
		t.Fatalf("referenced session evicted (%d)", n)
	}

	m.Release(id.UserID)
	h.clock.advance(2 * time.Minute)
	if n := m.sweep(ctx); n != 1 {
		t.Fatalf("swept %d sessions", n)
	}
	if m.Len() != 0 {
		t.Fatal("session still listed")
	}
	if c := h.user(t, id.UserID).Coins; c != 1002 {
		t.Fatalf("idle close did not flush: coins = %d", c)
	}
}

func TestShutdownFlushesAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := NewManager(h.game, league.Default(), h.opts(), time.Minute)

	var ids []Identity
	for tg := int64(1); tg <= 3; tg++ {
		id := h.player(t, tg)
		s, err := m.Acquire(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		h.tap(t, s, int(tg))
		ids = append(ids, id)
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	for i, id := range ids {
		if c := h.user(t, id.UserID).Coins; c != 1000+int64(i+1) {
			t.Fatalf("player %d coins = %d", id.UserID, c)
		}
	}
}
