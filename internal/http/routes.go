package http

import (
	"time"

	"github.com/toprakhenaz/sword-combat/internal/http/handlers"
	"github.com/toprakhenaz/sword-combat/internal/http/middleware"
	"github.com/toprakhenaz/sword-combat/internal/service"
	"github.com/toprakhenaz/sword-combat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Limits configures the rate limiters. Zero values fall back to defaults.
type Limits struct {
	IP             int
	IPWindow       time.Duration
	Auth           int
	AuthWindow     time.Duration
	GameActions    int
	GameWindow     time.Duration
	UploadDir      string
	ServeUploadDir bool
}

func (l Limits) withDefaults() Limits {
	if l.IP <= 0 {
		l.IP = 300
	}
	if l.IPWindow <= 0 {
		l.IPWindow = time.Minute
	}
	if l.Auth <= 0 {
		l.Auth = 5
	}
	if l.AuthWindow <= 0 {
		l.AuthWindow = time.Minute
	}
	if l.GameActions <= 0 {
		l.GameActions = 600
	}
	if l.GameWindow <= 0 {
		l.GameWindow = time.Minute
	}
	return l
}

// Deps are the pieces the router wires together. WS and Limiter may be nil.
type Deps struct {
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	WS      *ws.Handler
	Tokens  middleware.TokenParser
	Limiter *middleware.RateLimiter
	Limits  Limits
}

// NewRouter builds the gin engine with the common middleware chain.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics())
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := d.Handler
	lim := d.Limits.withDefaults()
	jwt := middleware.JWT(d.Tokens)

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/health/live", d.Health.Liveness)
	r.GET("/health/ready", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if lim.ServeUploadDir && lim.UploadDir != "" {
		r.Static("/uploads", lim.UploadDir)
	}

	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.ByIP(lim.IP, lim.IPWindow))

	authLimit := middleware.LocalRateLimit(lim.Auth, lim.AuthWindow)
	v1.POST("/auth/telegram", authLimit, h.TelegramLogin)
	v1.POST("/admin/login", authLimit, h.AdminLogin)
	v1.GET("/leagues", h.GetLeagues)

	player := v1.Group("", jwt, middleware.RequireRole(service.RolePlayer), d.Limiter.ByUser(lim.GameActions, lim.GameWindow))
	registerPlayerRoutes(player, h)

	admin := v1.Group("/admin", jwt, middleware.RequireRole(service.RoleAdmin))
	registerAdminRoutes(admin, h)

	if d.WS != nil {
		r.GET("/ws", jwt, middleware.RequireRole(service.RolePlayer), d.WS.Serve)
	}
}

func registerPlayerRoutes(api *gin.RouterGroup, h *handlers.Handler) {
	api.GET("/me", h.Me)
	api.GET("/history", h.History)
	api.GET("/tasks", h.GetTasks)
	api.GET("/items", h.GetItems)
	api.GET("/boosts", h.GetBoosts)
	api.GET("/daily", h.GetDaily)
	api.GET("/combo", h.GetCombo)
	api.GET("/referrals", h.GetReferrals)
	api.POST("/referrals/:id/claim", h.ClaimReferral)
	api.GET("/leaderboard/:league", h.GetLeaderboard)

	game := api.Group("/game")
	{
		game.POST("/tap", h.Tap)
		game.POST("/refresh", h.Refresh)
		game.POST("/collect-hourly", h.CollectHourly)
		game.POST("/boosts/rocket", h.UseRocket)
		game.POST("/boosts/full-energy", h.UseFullEnergy)
		game.POST("/boosts/:type/upgrade", h.UpgradeBoost)
		game.POST("/daily/claim", h.ClaimDaily)
		game.POST("/tasks/:id/start", h.StartTask)
		game.POST("/tasks/:id/complete", h.CompleteTask)
		game.POST("/combo/:index", h.FindCombo)
		game.POST("/league/collect", h.CollectLeague)
		game.POST("/items/:id/upgrade", h.UpgradeItem)
	}
}

func registerAdminRoutes(admin *gin.RouterGroup, h *handlers.Handler) {
	admin.GET("/stats", h.AdminStats)
	admin.GET("/audit", h.AdminAudit)
	admin.POST("/reset-daily", h.AdminResetDaily)

	admin.GET("/users", h.AdminListUsers)
	admin.POST("/users", h.AdminCreateUser)
	admin.GET("/users/:id", h.AdminGetUser)
	admin.PUT("/users/:id", h.AdminUpdateUser)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
	admin.POST("/users/:id/ban", h.AdminToggleBan)
	admin.PUT("/users/:id/coins", h.AdminSetCoins)

	admin.GET("/boosts", h.AdminListBoosts)
	admin.PUT("/boosts/:id", h.AdminUpdateBoosts)

	crud(admin, "/items", h.AdminListItems, h.AdminSaveItem, h.AdminDeleteItem)
	crud(admin, "/tasks", h.AdminListTasks, h.AdminSaveTask, h.AdminDeleteTask)
	crud(admin, "/leagues", h.AdminListLeagues, h.AdminSaveLeague, h.AdminDeleteLeague)
	crud(admin, "/daily-rewards", h.AdminListDailyRewards, h.AdminSaveDailyReward, h.AdminDeleteDailyReward)
	crud(admin, "/combos", h.AdminListCombos, h.AdminSaveCombo, h.AdminDeleteCombo)
	crud(admin, "/settings", h.AdminListSettings, h.AdminSaveSetting, h.AdminDeleteSetting)

	admin.GET("/referrals", h.AdminListReferrals)
	admin.PUT("/referrals/:id", h.AdminUpdateReferral)
	admin.DELETE("/referrals/:id", h.AdminDeleteReferral)

	admin.GET("/transactions", h.AdminListTransactions)

	admin.POST("/uploads/:kind", h.Upload)
}

// crud registers list, create, update and delete for one collection.
func crud(g *gin.RouterGroup, path string, list, save, del gin.HandlerFunc) {
	g.GET(path, list)
	g.POST(path, save)
	g.PUT(path+"/:id", save)
	g.DELETE(path+"/:id", del)
}
