package main

import (
	"context"
	"fmt"

	"github.com/toprakhenaz/sword-combat/internal/config"
	"github.com/toprakhenaz/sword-combat/internal/db"
	"github.com/toprakhenaz/sword-combat/internal/league"
	"github.com/toprakhenaz/sword-combat/internal/repository"
	"github.com/toprakhenaz/sword-combat/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "gamectl",
	Short:        "Sword Combat operator tool",
	SilenceUsage: true,
}

// env bundles what most commands need. Commands that touch the database
// call open and must defer close.
type env struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	store *repository.Store
	game  *service.GameService
	admin *service.AdminService
	auth  *service.AuthService
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return nil, fmt.Errorf("gamectl needs STORE_DRIVER=%s", config.DriverPostgres)
	}
	return cfg, nil
}

func open(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	pool := db.Connect(ctx, cfg.DatabaseURL)
	st := repository.NewStore(pool)
	game := service.NewGameService(st, league.Default(), nil)
	audit := service.NewAuditService(st)
	return &env{
		cfg:   cfg,
		pool:  pool,
		store: st,
		game:  game,
		admin: service.NewAdminService(st, game, audit, nil),
		auth: service.NewAuthService(service.AuthConfig{
			JWTSecret:        cfg.JWTSecret,
			TTL:              cfg.JWTTTL,
			AdminTelegramIDs: cfg.AdminTelegramIDs,
		}, game, audit),
	}, nil
}

func (e *env) close() { e.pool.Close() }
