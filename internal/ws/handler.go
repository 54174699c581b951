package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/http/middleware"
	"github.com/toprakhenaz/sword-combat/internal/logger"
	"github.com/toprakhenaz/sword-combat/internal/protocol"
	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated requests and binds them to the player's
// session. The route must sit behind middleware.JWT.
type Handler struct {
	ctx       context.Context
	hub       *Hub
	sessions  *session.Manager
	validator *protocol.Validator
	upgrader  websocket.Upgrader
	statePush time.Duration
}

// NewHandler serves connections until ctx ends. An empty allowedOrigin
// accepts any origin.
func NewHandler(ctx context.Context, hub *Hub, sessions *session.Manager, v *protocol.Validator, allowedOrigin string) *Handler {
	return &Handler{
		ctx:       ctx,
		hub:       hub,
		sessions:  sessions,
		validator: v,
		statePush: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Handler) Serve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}
	id := session.Identity{UserID: userID, TgID: c.GetInt64(middleware.KeyTgID)}

	sess, err := h.sessions.Acquire(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrBanned) {
			c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrBanned.Message, "code": domain.ErrBanned.Code})
			return
		}
		logger.WithContext(c.Request.Context()).Error("ws session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.sessions.Release(userID)
		logger.WithContext(c.Request.Context()).Warn("ws upgrade error", "error", err)
		return
	}

	client := NewClient(conn, sess, h.validator, h.statePush)
	h.hub.register(client)
	go func() {
		defer h.sessions.Release(userID)
		defer h.hub.unregister(client)
		client.Run(h.ctx)
	}()
}
