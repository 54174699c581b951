package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Pinger is satisfied by both stores and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name string
	ping Pinger
	// optional dependencies degrade readiness instead of failing it
	optional bool
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps     []dependency
	sessions *session.Manager
	started  time.Time
	version  string
}

// NewHealthHandler probes db, and cache when it is non-nil. sessions may be nil.
func NewHealthHandler(db, cache Pinger, sessions *session.Manager, version string) *HealthHandler {
	deps := []dependency{{name: "database", ping: db}}
	if cache != nil {
		deps = append(deps, dependency{name: "cache", ping: cache, optional: true})
	}
	return &HealthHandler{deps: deps, sessions: sessions, started: time.Now(), version: version}
}

type ComponentStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type ReadinessResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime"`
	Sessions   int                        `json:"sessions"`
	Goroutines int                        `json:"goroutines"`
	HeapMB     float64                    `json:"heap_mb"`
	Checks     map[string]ComponentStatus `json:"checks"`
}

// probe pings every dependency concurrently and reports whether all
// required ones answered.
func (h *HealthHandler) probe(ctx context.Context) (map[string]ComponentStatus, bool) {
	var mu sync.Mutex
	out := make(map[string]ComponentStatus, len(h.deps))
	healthy := true

	g, ctx := errgroup.WithContext(ctx)
	for _, d := range h.deps {
		g.Go(func() error {
			start := time.Now()
			err := d.ping.Ping(ctx)
			st := ComponentStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status, st.Error = "unhealthy", err.Error()
				if d.optional {
					st.Status = "degraded"
				}
			}
			mu.Lock()
			out[d.name] = st
			if err != nil && !d.optional {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, healthy
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.probe(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	resp := ReadinessResponse{
		Status:     "ready",
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(m.HeapAlloc>>10) / 1024,
		Checks:     checks,
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}

	code := http.StatusOK
	if !healthy {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// Health is the short probe used by load balancers.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if _, healthy := h.probe(ctx); !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}
