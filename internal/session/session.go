// Package session keeps one authoritative in-memory game state per connected
// player. Intents are applied locally at once and persisted behind the
// player's back through debounced, batched writes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/service"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Actions is the server side a session persists through.
type Actions interface {
	InitPlayer(ctx context.Context, p service.InitParams) (*service.Player, error)
	GetPlayer(ctx context.Context, userID int64) (*service.Player, error)
	UpdateCoins(ctx context.Context, userID, amount int64, kind, desc string) (int64, error)
	ApplyCoinBatch(ctx context.Context, userID int64, batch *domain.CoinBatch) (*service.BatchResult, error)
	ApplyEnergyDelta(ctx context.Context, userID int64, delta int) (int, error)
	SyncLeague(ctx context.Context, userID, coins int64) (*service.LeagueSync, error)
	UpgradeBoost(ctx context.Context, userID int64, t domain.BoostType) (*service.BoostUpgrade, error)
	UseRocketBoost(ctx context.Context, userID int64) (int, int, error)
	UseFullEnergyBoost(ctx context.Context, userID int64) (int, error)
	StartTask(ctx context.Context, userID, taskID int64) (*domain.UserTask, error)
	CompleteTask(ctx context.Context, userID, taskID int64) (*service.TaskCompletion, error)
	ClaimDailyReward(ctx context.Context, userID int64) (*service.DailyClaimResult, error)
	FindDailyComboCard(ctx context.Context, userID int64, index int) (*service.ComboFind, error)
	CollectHourlyEarnings(ctx context.Context, userID int64) (*service.HourlyCollection, error)
	UpgradeItem(ctx context.Context, userID, itemID int64) (*service.ItemUpgrade, error)
	ClaimReferral(ctx context.Context, userID, referralID int64) (*service.ReferralClaim, error)
}

var _ Actions = (*service.GameService)(nil)

// Identity is the authenticated account a session belongs to.
type Identity struct {
	UserID       int64
	TgID         int64
	Username     string
	FirstName    string
	ReferrerTgID int64
}

type Options struct {
	TapInterval  time.Duration
	CoinWindow   time.Duration
	EnergyWindow time.Duration
	TickInterval time.Duration
	SaveInterval time.Duration
	// RegenBase is the regen interval at charge speed level 0.
	RegenBase      time.Duration
	WriteTimeout   time.Duration
	DriftThreshold int64
	QueueCap       int
	Now            func() time.Time
}

func DefaultOptions() Options {
	return Options{
		TapInterval:    50 * time.Millisecond,
		CoinWindow:     time.Second,
		EnergyWindow:   2 * time.Second,
		TickInterval:   time.Second,
		SaveInterval:   30 * time.Second,
		RegenBase:      time.Second,
		WriteTimeout:   10 * time.Second,
		DriftThreshold: 10,
		QueueCap:       50,
		Now:            time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TapInterval <= 0 {
		o.TapInterval = d.TapInterval
	}
	if o.CoinWindow <= 0 {
		o.CoinWindow = d.CoinWindow
	}
	if o.EnergyWindow <= 0 {
		o.EnergyWindow = d.EnergyWindow
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.SaveInterval <= 0 {
		o.SaveInterval = d.SaveInterval
	}
	if o.RegenBase <= 0 {
		o.RegenBase = d.RegenBase
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = d.DriftThreshold
	}
	if o.QueueCap <= 0 {
		o.QueueCap = d.QueueCap
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// State is a point-in-time copy of a session for the client.
type State struct {
	UserID         int64                 `json:"user_id"`
	Coins          float64               `json:"coins"`
	Energy         int                   `json:"energy"`
	MaxEnergy      int                   `json:"max_energy"`
	EarnPerTap     int                   `json:"earn_per_tap"`
	HourlyEarn     int64                 `json:"hourly_earn"`
	League         int                   `json:"league"`
	PreviousLeague int                   `json:"previous_league"`
	IsLevelingUp   bool                  `json:"is_leveling_up"`
	LeagueReward   int64                 `json:"league_reward,omitempty"`
	Boosts         domain.BoostProfile   `json:"boosts"`
	DailyCombo     *domain.ComboProgress `json:"daily_combo,omitempty"`
	DailyStreak    int                   `json:"daily_streak"`
	IsBanned       bool                  `json:"is_banned"`
	Ready          bool                  `json:"ready"`
}

// Session is the reconciler for one player. All methods are safe for
// concurrent use. s.mu is never held while talking to a flusher.
//
// settle is read-held by every write that changes the stored balance from
// the remote call until its local bookkeeping is done, and write-held by
// loads. A load therefore never sees a committed write whose local side is
// still pending. It is never held while waiting on a flusher.
type Session struct {
	id      Identity
	actions Actions
	leagues *league.Catalog
	opts    Options
	log     *slog.Logger

	settle         sync.RWMutex
	mu             sync.Mutex
	ready          bool
	coins          decimal.Decimal
	passive        decimal.Decimal
	lastSaved      int64
	unsavedCoins   int64
	unsavedEnergy  int
	energy         int
	maxEnergy      int
	earnPerTap     int
	hourlyEarn     int64
	league         int
	previousLeague int
	levelingUp     bool
	collecting     bool
	savingPassive  bool
	boosts         domain.BoostProfile
	combo          *domain.ComboProgress
	streak         int
	banned         bool
	limiter        *rate.Limiter

	coinQ   *flusher[domain.CoinDelta, *domain.CoinBatch]
	energyQ *flusher[int, int]
	syncs   sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	runDone  chan struct{}
}

// New creates a session holding starting values until Initialize loads the
// stored player. The flushers start immediately; Close stops them.
func New(id Identity, actions Actions, leagues *league.Catalog, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:         id,
		actions:    actions,
		leagues:    leagues,
		opts:       opts,
		log:        logger.With("user_id", id.UserID),
		coins:      decimal.NewFromInt(domain.DefaultCoins),
		lastSaved:  domain.DefaultCoins,
		energy:     domain.DefaultEnergy,
		maxEnergy:  domain.DefaultMaxEnergy,
		earnPerTap: domain.DefaultEarnPerTap,
		hourlyEarn: domain.DefaultHourlyEarn,
		league:     domain.DefaultLeague,
		boosts:     *domain.NewBoostProfile(id.UserID),
		limiter:    rate.NewLimiter(rate.Every(opts.TapInterval), 1),
		stop:       make(chan struct{}),
		runDone:    make(chan struct{}),
	}
	s.coinQ = newFlusher("coins", opts.CoinWindow, opts.WriteTimeout,
		queue[domain.CoinDelta, *domain.CoinBatch](&coinQueue{ready: s.coinsReady}), s.writeCoins)
	s.energyQ = newFlusher("energy", opts.EnergyWindow, opts.WriteTimeout,
		queue[int, int](&energyQueue{}), s.writeEnergy)
	return s
}

func (s *Session) UserID() int64 { return s.id.UserID }

// Initialize loads the stored player. On failure the session keeps its
// current state and queued writes stay queued until a Refresh succeeds.
func (s *Session) Initialize(ctx context.Context) error {
	s.settle.Lock()
	defer s.settle.Unlock()
	p, err := s.actions.InitPlayer(ctx, service.InitParams{
		TgID:         s.id.TgID,
		Username:     s.id.Username,
		FirstName:    s.id.FirstName,
		ReferrerTgID: s.id.ReferrerTgID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrBanned) {
			s.mu.Lock()
			s.banned = true
			s.mu.Unlock()
			return err
		}
		s.log.Warn("session init failed, keeping local state", "error", err)
		return err
	}
	if p.User.ID != s.id.UserID {
		return fmt.Errorf("session for user %d loaded user %d", s.id.UserID, p.User.ID)
	}
	s.mu.Lock()
	s.load(p, false)
	s.mu.Unlock()
	return nil
}

// load replaces the local snapshot with the stored player. Coins not yet
// written and the fractional passive remainder are kept on top. It reports
// whether a local promotion still has to reach the store.
func (s *Session) load(p *service.Player, keepLeague bool) (resync bool) {
	u := p.User
	s.lastSaved = u.Coins
	s.coins = decimal.NewFromInt(u.Coins + s.unsavedCoins).Add(s.passive)
	s.hourlyEarn = u.HourlyEarn
	s.banned = u.IsBanned
	s.streak = u.DailyStreak
	if p.Daily != nil {
		s.streak = p.Daily.Streak
	}
	if p.Boosts != nil {
		s.boosts = *p.Boosts
	}
	s.combo = p.Combo

	resync = keepLeague && s.league > u.League
	if !resync {
		s.league = u.League
		s.earnPerTap = u.EarnPerTap
		s.maxEnergy = u.MaxEnergy
		if !s.levelingUp {
			s.previousLeague = u.League
		}
	}
	s.energy = clamp(u.Energy+s.unsavedEnergy, 0, s.maxEnergy)
	s.ready = true
	return resync
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Tap spends one energy for earnPerTap coins.
func (s *Session) Tap() error {
	s.mu.Lock()
	if s.banned {
		s.mu.Unlock()
		return domain.ErrBanned
	}
	if s.energy <= 0 {
		s.mu.Unlock()
		return domain.ErrNoEnergy
	}
	if !s.limiter.AllowN(s.opts.Now(), 1) {
		s.mu.Unlock()
		return domain.ErrTapTooFast
	}
	s.energy--
	ept := s.earnPerTap
	s.coins = s.coins.Add(decimal.NewFromInt(int64(ept)))
	s.unsavedCoins += int64(ept)
	s.unsavedEnergy--
	promoted := s.checkLeague()
	s.mu.Unlock()

	Taps.Inc()
	s.coinQ.push(domain.CoinDelta{
		Amount:      int64(ept),
		Kind:        domain.TxTap,
		Description: fmt.Sprintf("Tap for %d coins", ept),
	})
	s.energyQ.push(-1)
	if promoted {
		s.syncLeague()
	}
	return nil
}

// Tick accrues one second of passive income.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.hourlyEarn <= 0 || s.banned {
		s.mu.Unlock()
		return
	}
	inc := decimal.NewFromInt(s.hourlyEarn).Div(decimal.NewFromInt(3600))
	s.coins = s.coins.Add(inc)
	s.passive = s.passive.Add(inc)
	promoted := s.checkLeague()
	s.mu.Unlock()
	if promoted {
		s.syncLeague()
	}
}

// SavePassive persists the whole coins of accrued passive income and keeps
// the fraction for later.
func (s *Session) SavePassive(ctx context.Context) error {
	s.settle.RLock()
	defer s.settle.RUnlock()
	s.mu.Lock()
	whole := s.passive.Floor()
	if s.savingPassive || whole.Sign() <= 0 {
		s.mu.Unlock()
		return nil
	}
	s.savingPassive = true
	s.mu.Unlock()

	amount := whole.IntPart()
	_, err := s.actions.UpdateCoins(ctx, s.id.UserID, amount, domain.TxHourly, "Passive income")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.savingPassive = false
	if err != nil {
		return fmt.Errorf("save passive income: %w", err)
	}
	s.passive = s.passive.Sub(whole)
	s.lastSaved += amount
	return nil
}

// Regen restores one energy point.
func (s *Session) Regen() {
	s.mu.Lock()
	if s.energy >= s.maxEnergy {
		s.mu.Unlock()
		return
	}
	s.energy++
	s.unsavedEnergy++
	s.mu.Unlock()
	s.energyQ.push(1)
}

func (s *Session) regenInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := domain.RegenInterval(s.boosts.ChargeSpeedLevel)
	if s.opts.RegenBase != time.Second {
		d = time.Duration(float64(d) * s.opts.RegenBase.Seconds())
	}
	return d
}

// UpdateCoins applies a signed amount. League rewards are written at once;
// everything else goes through the coin queue.
func (s *Session) UpdateCoins(ctx context.Context, amount int64, kind, desc string) error {
	d := decimal.NewFromInt(amount)
	s.mu.Lock()
	if amount < 0 && s.coins.Add(d).Sign() < 0 {
		s.mu.Unlock()
		return domain.ErrNotEnoughCoins
	}
	s.coins = s.coins.Add(d)

	if kind == domain.TxLeagueReward {
		s.mu.Unlock()
		s.settle.RLock()
		defer s.settle.RUnlock()
		if _, err := s.actions.UpdateCoins(ctx, s.id.UserID, amount, kind, desc); err != nil {
			s.mu.Lock()
			s.coins = s.coins.Sub(d)
			s.mu.Unlock()
			return err
		}
		s.mu.Lock()
		s.lastSaved += amount
		promoted := s.checkLeague()
		s.mu.Unlock()
		if promoted {
			s.syncLeague()
		}
		return nil
	}

	s.unsavedCoins += amount
	promoted := s.checkLeague()
	s.mu.Unlock()
	s.coinQ.push(domain.CoinDelta{Amount: amount, Kind: kind, Description: desc})
	if promoted {
		s.syncLeague()
	}
	return nil
}

// checkLeague promotes the local league when coins reach a higher tier.
// Callers hold s.mu and call syncLeague after unlocking when it returns true.
func (s *Session) checkLeague() bool {
	tier := s.leagues.Derive(s.coins.Floor().IntPart())
	if tier <= s.league {
		return false
	}
	s.previousLeague = s.league
	s.league = tier
	s.levelingUp = true
	s.earnPerTap += service.LeagueTapBonus
	s.maxEnergy += service.LeagueEnergyBonus
	return true
}

func (s *Session) syncLeague() {
	s.mu.Lock()
	coins := s.coins.Floor().IntPart()
	s.mu.Unlock()

	s.syncs.Add(1)
	go func() {
		defer s.syncs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		defer cancel()
		if _, err := s.actions.SyncLeague(ctx, s.id.UserID, coins); err != nil {
			s.log.Warn("league sync failed", "coins", coins, "error", err)
		}
	}()
}

// CollectLeagueReward pays the reward of the league just reached.
func (s *Session) CollectLeagueReward(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if !s.levelingUp || s.collecting {
		s.mu.Unlock()
		return 0, domain.ErrNothingToCollect
	}
	s.collecting = true
	collected := s.league
	tier, _ := s.leagues.Get(collected)
	s.mu.Unlock()

	var err error
	if tier.Reward > 0 {
		err = s.UpdateCoins(ctx, tier.Reward, domain.TxLeagueReward, "League reward: "+tier.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collecting = false
	if err != nil {
		return 0, err
	}
	// the reward itself may have reached the next tier, whose reward is
	// still pending
	if s.league == collected {
		s.levelingUp = false
		s.previousLeague = s.league
	}
	return tier.Reward, nil
}

// UpgradeBoost buys the next boost level. Queued coins are written first and
// the local state changes only after the server confirms.
func (s *Session) UpgradeBoost(ctx context.Context, t domain.BoostType) (*service.BoostUpgrade, error) {
	if _, ok := domain.ParseBoostType(string(t)); !ok {
		return nil, domain.ErrInvalidBoost
	}
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotReady
	}
	level := s.boosts.Level(t)
	if level >= domain.MaxBoostLevel {
		s.mu.Unlock()
		return nil, domain.ErrMaxLevel
	}
	if s.coins.LessThan(decimal.NewFromInt(domain.BoostCost(level))) {
		s.mu.Unlock()
		return nil, domain.ErrNotEnoughCoins
	}
	s.mu.Unlock()

	// pending league syncs change the stored stats the upgrade builds on
	s.syncs.Wait()
	if err := s.coinQ.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush coins before upgrade: %w", err)
	}
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.UpgradeBoost(ctx, s.id.UserID, t)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.boosts.SetLevel(t, res.Level)
	s.coins = s.coins.Sub(decimal.NewFromInt(res.Cost))
	s.lastSaved -= res.Cost
	s.earnPerTap = res.EarnPerTap
	s.maxEnergy = res.MaxEnergy
	return res, nil
}

// UseRocketBoost adds rocket energy at once and undoes it if the server
// refuses.
func (s *Session) UseRocketBoost(ctx context.Context) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return domain.ErrSessionNotReady
	}
	if s.boosts.DailyRockets <= 0 {
		s.mu.Unlock()
		return domain.ErrNoRockets
	}
	before := s.energy
	s.boosts.DailyRockets--
	s.energy = min(s.maxEnergy, s.energy+domain.RocketEnergy)
	gained := s.energy - before
	s.mu.Unlock()

	if err := s.energyQ.Flush(ctx); err != nil {
		s.log.Debug("energy flush before rocket failed", "error", err)
	}
	s.settle.RLock()
	defer s.settle.RUnlock()
	if _, _, err := s.actions.UseRocketBoost(ctx, s.id.UserID); err != nil {
		s.mu.Lock()
		s.boosts.DailyRockets++
		s.energy = max(0, s.energy-gained)
		s.mu.Unlock()
		return err
	}
	return nil
}

// UseFullEnergyBoost refills energy once a day, optimistically.
func (s *Session) UseFullEnergyBoost(ctx context.Context) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return domain.ErrSessionNotReady
	}
	if s.boosts.EnergyFullUsed {
		s.mu.Unlock()
		return domain.ErrFullEnergyUsed
	}
	before := s.energy
	s.boosts.EnergyFullUsed = true
	s.energy = s.maxEnergy
	gained := s.energy - before
	s.mu.Unlock()

	if err := s.energyQ.Flush(ctx); err != nil {
		s.log.Debug("energy flush before full energy failed", "error", err)
	}
	s.settle.RLock()
	defer s.settle.RUnlock()
	if _, err := s.actions.UseFullEnergyBoost(ctx, s.id.UserID); err != nil {
		s.mu.Lock()
		s.boosts.EnergyFullUsed = false
		s.energy = max(0, s.energy-gained)
		s.mu.Unlock()
		return err
	}
	return nil
}

// credited mirrors a server-side grant or debit into the local state.
func (s *Session) credited(amount int64) {
	s.mu.Lock()
	s.coins = s.coins.Add(decimal.NewFromInt(amount))
	s.lastSaved += amount
	promoted := s.checkLeague()
	s.mu.Unlock()
	if promoted {
		s.syncLeague()
	}
}

func (s *Session) ClaimDailyReward(ctx context.Context) (*service.DailyClaimResult, error) {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.ClaimDailyReward(ctx, s.id.UserID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.streak = res.Streak
	s.mu.Unlock()
	s.credited(res.Reward)
	return res, nil
}

func (s *Session) StartTask(ctx context.Context, taskID int64) (*domain.UserTask, error) {
	return s.actions.StartTask(ctx, s.id.UserID, taskID)
}

func (s *Session) CompleteTask(ctx context.Context, taskID int64) (*service.TaskCompletion, error) {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.CompleteTask(ctx, s.id.UserID, taskID)
	if err != nil {
		return nil, err
	}
	s.credited(res.Reward)
	return res, nil
}

// FindComboCard reveals one card of today's combo.
func (s *Session) FindComboCard(ctx context.Context, index int) (*service.ComboFind, error) {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.FindDailyComboCard(ctx, s.id.UserID, index)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.combo = &domain.ComboProgress{
		UserID:       s.id.UserID,
		FoundCardIDs: append([]int64(nil), res.FoundCardIDs...),
		IsCompleted:  res.IsCompleted,
	}
	s.mu.Unlock()
	if res.Reward > 0 {
		s.credited(res.Reward)
	}
	return res, nil
}

func (s *Session) CollectHourlyEarnings(ctx context.Context) (*service.HourlyCollection, error) {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.CollectHourlyEarnings(ctx, s.id.UserID)
	if err != nil {
		return res, err
	}
	s.credited(res.Amount)
	return res, nil
}

func (s *Session) UpgradeItem(ctx context.Context, itemID int64) (*service.ItemUpgrade, error) {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.UpgradeItem(ctx, s.id.UserID, itemID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.hourlyEarn = res.HourlyEarn
	s.mu.Unlock()
	s.credited(-res.Cost)
	return res, nil
}

func (s *Session) ClaimReferral(ctx context.Context, referralID int64) (*service.ReferralClaim, error) {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.ClaimReferral(ctx, s.id.UserID, referralID)
	if err != nil {
		return nil, err
	}
	s.credited(res.Reward)
	return res, nil
}

// Flush writes both queues now.
func (s *Session) Flush(ctx context.Context) error {
	return errors.Join(s.coinQ.Flush(ctx), s.energyQ.Flush(ctx))
}

// Refresh writes everything queued and reloads the stored player. If the
// writes fail the local state is kept as is.
func (s *Session) Refresh(ctx context.Context) error {
	s.syncs.Wait()
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	s.settle.Lock()
	p, err := s.actions.GetPlayer(ctx, s.id.UserID)
	if err != nil {
		s.settle.Unlock()
		return fmt.Errorf("refresh: %w", err)
	}
	s.mu.Lock()
	resync := s.load(p, true)
	s.mu.Unlock()
	s.settle.Unlock()
	if resync {
		s.syncLeague()
	}
	return nil
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	coins, _ := s.coins.Round(2).Float64()
	st := State{
		UserID:         s.id.UserID,
		Coins:          coins,
		Energy:         s.energy,
		MaxEnergy:      s.maxEnergy,
		EarnPerTap:     s.earnPerTap,
		HourlyEarn:     s.hourlyEarn,
		League:         s.league,
		PreviousLeague: s.previousLeague,
		IsLevelingUp:   s.levelingUp,
		Boosts:         s.boosts,
		DailyStreak:    s.streak,
		IsBanned:       s.banned,
		Ready:          s.ready,
	}
	if s.levelingUp {
		st.LeagueReward = s.leagues.Reward(s.league)
	}
	if s.combo != nil {
		c := *s.combo
		c.FoundCardIDs = append([]int64(nil), s.combo.FoundCardIDs...)
		st.DailyCombo = &c
	}
	return st
}

// coinsReady decides whether a debounced coin write is worth sending.
func (s *Session) coinsReady(queued int) bool {
	if queued > s.opts.QueueCap {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drift := s.coins.Sub(decimal.NewFromInt(s.lastSaved)).Abs()
	return drift.GreaterThanOrEqual(decimal.NewFromInt(s.opts.DriftThreshold))
}

func (s *Session) writeCoins(ctx context.Context, b *domain.CoinBatch) error {
	s.settle.RLock()
	defer s.settle.RUnlock()
	res, err := s.actions.ApplyCoinBatch(ctx, s.id.UserID, b)
	FlushWrites.WithLabelValues("coins", flushResult(err)).Inc()
	if errors.Is(err, domain.ErrBanned) {
		s.mu.Lock()
		s.banned = true
		s.unsavedCoins -= b.Net()
		s.mu.Unlock()
		s.log.Warn("dropping coin batch of banned player", "batch_id", b.ID)
		return nil
	}
	if err != nil {
		s.log.Warn("coin flush failed, will retry", "batch_id", b.ID, "deltas", b.Len(), "error", err)
		return err
	}
	if res.Clamped {
		s.log.Warn("coin batch clamped", "batch_id", b.ID, "balance", res.Balance)
	}
	s.mu.Lock()
	s.unsavedCoins -= b.Net()
	s.lastSaved += b.Net()
	s.mu.Unlock()
	return nil
}

func (s *Session) writeEnergy(ctx context.Context, delta int) error {
	s.settle.RLock()
	defer s.settle.RUnlock()
	_, err := s.actions.ApplyEnergyDelta(ctx, s.id.UserID, delta)
	FlushWrites.WithLabelValues("energy", flushResult(err)).Inc()
	if errors.Is(err, domain.ErrBanned) {
		s.mu.Lock()
		s.unsavedEnergy -= delta
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.log.Warn("energy flush failed, will retry", "delta", delta, "error", err)
		return err
	}
	s.mu.Lock()
	s.unsavedEnergy -= delta
	s.mu.Unlock()
	return nil
}

// Run drives passive income, periodic saves and energy regeneration until
// ctx ends or the session is closed.
func (s *Session) Run(ctx context.Context) {
	s.started.Store(true)
	defer close(s.runDone)

	tick := time.NewTicker(s.opts.TickInterval)
	defer tick.Stop()
	save := time.NewTicker(s.opts.SaveInterval)
	defer save.Stop()
	regen := time.NewTimer(s.regenInterval())
	defer regen.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-tick.C:
			s.Tick()
		case <-save.C:
			if err := s.SavePassive(ctx); err != nil {
				s.log.Warn("passive save failed", "error", err)
			}
		case <-regen.C:
			s.Regen()
			regen.Reset(s.regenInterval())
		}
	}
}

// Close stops the loops, saves passive income and writes both queues.
func (s *Session) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		select {
		case <-s.runDone:
		case <-ctx.Done():
		}
	}

	err := errors.Join(s.SavePassive(ctx), s.Flush(ctx))
	s.syncs.Wait()
	s.coinQ.stop()
	s.energyQ.stop()
	return err
}
