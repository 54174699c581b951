package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/logger"

	"golang.org/x/sync/errgroup"
)

type entry struct {
	s        *Session
	refs     int
	lastSeen time.Time
}

// Manager owns the live sessions, one per player. A session lives while it
// has references and is evicted after it has been idle for the idle window.
type Manager struct {
	actions Actions
	leagues *league.Catalog
	opts    Options
	idle    time.Duration

	mu       sync.Mutex
	sessions map[int64]*entry

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(actions Actions, leagues *league.Catalog, opts Options, idle time.Duration) *Manager {
	opts = opts.withDefaults()
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		actions:  actions,
		leagues:  leagues,
		opts:     opts,
		idle:     idle,
		sessions: make(map[int64]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Acquire returns the player's session, creating and starting it on first
// use. Every Acquire must be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, id Identity) (*Session, error) {
	m.mu.Lock()
	if e, ok := m.sessions[id.UserID]; ok {
		e.refs++
		e.lastSeen = m.opts.Now()
		m.mu.Unlock()
		return e.s, nil
	}
	s := New(id, m.actions, m.leagues, m.opts)
	e := &entry{s: s, refs: 1, lastSeen: m.opts.Now()}
	m.sessions[id.UserID] = e
	m.mu.Unlock()
	ActiveSessions.Inc()

	if err := s.Initialize(ctx); err != nil {
		if errors.Is(err, domain.ErrBanned) {
			if m.drop(id.UserID, s) {
				ActiveSessions.Dec()
			}
			_ = s.Close(ctx)
			return nil, err
		}
		logger.WithContext(ctx).Warn("session started without stored state", "user_id", id.UserID, "error", err)
	}

	go s.Run(m.ctx)
	logger.Debug("session started", "user_id", id.UserID)
	return s, nil
}

// Get returns a live session without taking a reference.
func (m *Manager) Get(userID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.opts.Now()
	return e.s, true
}

// Release drops one reference. The session stays warm until the sweeper
// finds it idle.
func (m *Manager) Release(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok && e.refs > 0 {
		e.refs--
		e.lastSeen = m.opts.Now()
	}
}

// Evict closes a player's session at once, for example after a ban.
func (m *Manager) Evict(ctx context.Context, userID int64) error {
	m.mu.Lock()
	e, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	ActiveSessions.Dec()
	return e.s.Close(ctx)
}

func (m *Manager) drop(userID int64, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok && e.s == s {
		delete(m.sessions, userID)
		return true
	}
	return false
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartCleanup runs the idle sweeper until Shutdown.
func (m *Manager) StartCleanup(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.sweep(m.ctx)
			}
		}
	}()
}

// sweep closes unreferenced sessions idle for longer than the idle window.
func (m *Manager) sweep(ctx context.Context) int {
	now := m.opts.Now()
	var stale []*entry

	m.mu.Lock()
	for uid, e := range m.sessions {
		if e.refs == 0 && now.Sub(e.lastSeen) > m.idle {
			delete(m.sessions, uid)
			stale = append(stale, e)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		ActiveSessions.Dec()
		if err := e.s.Close(ctx); err != nil {
			logger.Warn("closing idle session", "user_id", e.s.UserID(), "error", err)
			continue
		}
		logger.Debug("idle session closed", "user_id", e.s.UserID())
	}
	return len(stale)
}

// Shutdown closes every session concurrently, flushing their queues.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		all = append(all, e.s)
	}
	m.sessions = make(map[int64]*entry)
	m.mu.Unlock()

	var g errgroup.Group
	for _, s := range all {
		g.Go(func() error {
			ActiveSessions.Dec()
			return s.Close(ctx)
		})
	}
	err := g.Wait()
	m.cancel()
	logger.Info("sessions closed", "count", len(all))
	return err
}
