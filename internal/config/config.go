package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/logger"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	DevMode  bool   `env:"DEV_MODE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	BotToken          string        `env:"BOT_TOKEN"`
	BotUsername       string        `env:"BOT_USERNAME" envDefault:"SwordCombatBot"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTTTL            time.Duration `env:"JWT_TTL" envDefault:"24h"`
	AdminTelegramIDs  []int64       `env:"ADMIN_TELEGRAM_IDS" envSeparator:","`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	AdminBotEnabled   bool          `env:"ADMIN_BOT_ENABLED"`

	// per-user game action limit
	GameRateLimit  int           `env:"GAME_RATE_LIMIT" envDefault:"600"`
	GameRateWindow time.Duration `env:"GAME_RATE_WINDOW" envDefault:"60s"`
	// global per-IP limit
	IPRateLimit  int           `env:"IP_RATE_LIMIT" envDefault:"300"`
	IPRateWindow time.Duration `env:"IP_RATE_WINDOW" envDefault:"60s"`
	// login endpoints, in-process
	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"60s"`

	UploadDir       string `env:"UPLOAD_DIR" envDefault:"uploads"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL"`
	AllowedOrigin   string `env:"ALLOWED_ORIGIN"`
	WebAppShortName string `env:"WEBAPP_SHORT_NAME"`

	SessionIdle  time.Duration `env:"SESSION_IDLE" envDefault:"10m"`
	CatalogTTL   time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	OTelEndpoint string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string        `env:"OTEL_SERVICE_NAME" envDefault:"sword-combat"`
}

// Parse reads the configuration from the environment and validates it.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is not set"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.BotToken == "" && !c.DevMode {
		errs = append(errs, errors.New("BOT_TOKEN is not set"))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether a Telegram id is listed in ADMIN_TELEGRAM_IDS.
func (c *Config) IsAdmin(tgID int64) bool {
	return slices.Contains(c.AdminTelegramIDs, tgID)
}

// Load loads .env if present, then the environment. It exits on invalid
// configuration.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}
