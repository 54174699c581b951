package handlers

import (
	"errors"
	"net/http"

	"github.com/toprakhenaz/sword-combat/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// TelegramLogin exchanges Telegram init data for a player token. New accounts are
// created on first login.
func (h *Handler) TelegramLogin(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	sess, err := h.Auth.LoginTelegram(c.Request.Context(), req.InitData)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInitData) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  sess.Token,
		"role":   sess.Role,
		"user":   sess.Player.User,
		"boosts": sess.Player.Boosts,
		"new":    sess.Player.Created,
	})
}

type AdminLoginRequest struct {
	Password string `json:"password"`
	InitData string `json:"init_data"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	sess, err := h.Auth.LoginAdmin(c.Request.Context(), req.Password, req.InitData, c.ClientIP())
	switch {
	case errors.Is(err, service.ErrBadCredentials), errors.Is(err, service.ErrInvalidInitData):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case errors.Is(err, service.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin"})
		return
	case err != nil:
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "role": sess.Role})
}
