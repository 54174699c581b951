package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/bot"
	"github.com/toprakhenaz/sword-combat/internal/cache"
	"github.com/toprakhenaz/sword-combat/internal/config"
	"github.com/toprakhenaz/sword-combat/internal/db"
	httpServer "github.com/toprakhenaz/sword-combat/internal/http"
	"github.com/toprakhenaz/sword-combat/internal/http/handlers"
	"github.com/toprakhenaz/sword-combat/internal/http/middleware"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/protocol"
	"github.com/toprakhenaz/sword-combat/internal/repository"
	"github.com/toprakhenaz/sword-combat/internal/repository/memstore"
	"github.com/toprakhenaz/sword-combat/internal/service"
	"github.com/toprakhenaz/sword-combat/internal/session"
	"github.com/toprakhenaz/sword-combat/internal/store"
	"github.com/toprakhenaz/sword-combat/internal/telemetry"
	"github.com/toprakhenaz/sword-combat/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

type pingStore interface {
	store.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, version, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	st := openStore(ctx, cfg)

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, caching and shared rate limits disabled", "error", err)
	}
	catalogCache := cache.NewRedis(rdb, "sword:")

	leagues := league.Default()
	catalog := service.NewCatalogService(st, catalogCache, cfg.CatalogTTL)
	game := service.NewGameService(st, leagues, catalog)
	audit := service.NewAuditService(st)
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:         cfg.JWTSecret,
		TTL:               cfg.JWTTTL,
		BotToken:          cfg.BotToken,
		DevMode:           cfg.DevMode,
		AdminPasswordHash: cfg.AdminPasswordHash,
		AdminTelegramIDs:  cfg.AdminTelegramIDs,
	}, game, audit)
	admin := service.NewAdminService(st, game, audit, catalog)

	sessions := session.NewManager(game, leagues, session.Options{}, cfg.SessionIdle)
	sessions.StartCleanup(time.Minute)

	hub := ws.NewHub()
	validator := protocol.MustValidator()

	h := handlers.NewHandler(game, auth, admin, sessions, handlers.HandlerConfig{
		BotUsername:     cfg.BotUsername,
		WebAppShortName: cfg.WebAppShortName,
		UploadDir:       cfg.UploadDir,
		PublicBaseURL:   cfg.PublicBaseURL,
		AllowedOrigin:   cfg.AllowedOrigin,
	})
	h.Conns = hub
	h.Validator = validator

	var cachePing handlers.Pinger
	if p, ok := catalogCache.(handlers.Pinger); ok {
		cachePing = p
	}

	router := httpServer.NewRouter(httpServer.Deps{
		Handler: h,
		Health:  handlers.NewHealthHandler(st, cachePing, sessions, version),
		WS:      ws.NewHandler(ctx, hub, sessions, validator, cfg.AllowedOrigin),
		Tokens:  auth,
		Limiter: middleware.NewRateLimiter(rdb),
		Limits: httpServer.Limits{
			IP:             cfg.IPRateLimit,
			IPWindow:       cfg.IPRateWindow,
			Auth:           cfg.AuthRateLimit,
			AuthWindow:     cfg.AuthRateWindow,
			GameActions:    cfg.GameRateLimit,
			GameWindow:     cfg.GameRateWindow,
			UploadDir:      cfg.UploadDir,
			ServeUploadDir: cfg.PublicBaseURL == "",
		},
	})

	var adminBot *bot.AdminBot
	if cfg.AdminBotEnabled && cfg.BotToken != "" {
		evict := func(ctx context.Context, userID int64) {
			hub.Disconnect(userID)
			if err := sessions.Evict(ctx, userID); err != nil {
				logger.Warn("evict session", "user_id", userID, "error", err)
			}
		}
		adminBot, err = bot.NewAdminBot(cfg.BotToken, bot.NewCommands(admin, evict), cfg.AdminTelegramIDs)
		if err != nil {
			logger.Error("admin bot disabled", "error", err)
		} else {
			go adminBot.Run(ctx)
		}
	}

	go runDailyReset(ctx, game)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreDriver, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if adminBot != nil {
		adminBot.Wait(10 * time.Second)
	}
	// flush every queued batch before the pool closes
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown", "error", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if c, ok := st.(interface{ Close() }); ok {
		c.Close()
	}

	logger.Info("server exited")
}

func openStore(ctx context.Context, cfg *config.Config) pingStore {
	if cfg.StoreDriver == config.DriverMemory {
		st := memstore.New()
		st.SeedDemo()
		logger.Warn("using in-memory store, data is lost on restart")
		return st
	}

	pool := db.Connect(ctx, cfg.DatabaseURL)
	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		logger.Fatal("migrate", "error", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "files", applied)
	}
	return repository.NewStore(pool)
}

// runDailyReset refills daily boosts at every UTC midnight.
func runDailyReset(ctx context.Context, game *service.GameService) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		n, err := game.ResetDailyBoosts(ctx)
		if err != nil {
			logger.Error("daily boost reset", "error", err)
			continue
		}
		logger.Info("daily boosts reset", "profiles", n)
	}
}
