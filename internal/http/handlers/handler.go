package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/http/middleware"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/protocol"
	"github.com/toprakhenaz/sword-combat/internal/service"
	"github.com/toprakhenaz/sword-combat/internal/session"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"github.com/gin-gonic/gin"
)

// HandlerConfig holds configuration for handler
type HandlerConfig struct {
	BotUsername     string
	WebAppShortName string
	UploadDir       string
	PublicBaseURL   string
	AllowedOrigin   string
}

// Disconnector drops a player's open websocket connections.
type Disconnector interface {
	Disconnect(userID int64) int
}

type Handler struct {
	// Conns is optional.
	Conns Disconnector

	Game      *service.GameService
	Auth      *service.AuthService
	Admin     *service.AdminService
	Sessions  *session.Manager
	Validator *protocol.Validator
	cfg       HandlerConfig
}

func NewHandler(game *service.GameService, auth *service.AuthService, admin *service.AdminService, sessions *session.Manager, cfg HandlerConfig) *Handler {
	return &Handler{
		Game:      game,
		Auth:      auth,
		Admin:     admin,
		Sessions:  sessions,
		Validator: protocol.MustValidator(),
		cfg:       cfg,
	}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c *gin.Context) (int64, bool) {
	return middleware.UserID(c)
}

// actorID identifies the operator in audit rows.
func actorID(c *gin.Context) int64 {
	return c.GetInt64(middleware.KeyTgID)
}

func identity(c *gin.Context) (session.Identity, bool) {
	uid, ok := getUserID(c)
	if !ok {
		return session.Identity{}, false
	}
	return session.Identity{UserID: uid, TgID: c.GetInt64(middleware.KeyTgID)}, true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func listQuery(c *gin.Context) domain.ListQuery {
	return domain.ListQuery{
		Search: c.Query("search"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}.Normalize()
}

// gameStatus maps a game error code to an HTTP status.
func gameStatus(code string) int {
	switch code {
	case domain.ErrBanned.Code:
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case domain.ErrTapTooFast.Code:
		return http.StatusTooManyRequests
	case domain.ErrAlreadyClaimed.Code, domain.ErrTaskCompleted.Code, domain.ErrCardFound.Code,
		domain.ErrFullEnergyUsed.Code, domain.ErrNoRockets.Code, domain.ErrMaxLevel.Code:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// respondError renders err for the client. Unknown errors are logged and
// hidden.
func respondError(c *gin.Context, err error) {
	var gerr *domain.GameError
	switch {
	case errors.As(err, &gerr):
		c.JSON(gameStatus(gerr.Code), gin.H{"error": gerr.Message, "code": gerr.Code})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "not_found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists", "code": "conflict"})
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session closed", "code": "unavailable"})
	default:
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
	}
}
