package handlers

import (
	"net/http"
	"strconv"

	"github.com/toprakhenaz/sword-combat/internal/http/middleware"
	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gin-gonic/gin"
)

// GetReferrals returns the players the caller invited and the share link.
func (h *Handler) GetReferrals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	referrals, err := h.Game.Referrals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var claimable int64
	for _, r := range referrals {
		if !r.IsClaimed {
			claimable += r.RewardAmount
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"referrals": referrals,
		"count":     len(referrals),
		"claimable": claimable,
		"link":      h.referralLink(c.GetInt64(middleware.KeyTgID)),
	})
}

// ClaimReferral pays out one invited player's reward.
func (h *Handler) ClaimReferral(c *gin.Context) {
	refID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.ClaimReferral(c.Request.Context(), refID)
	})
}

// referralLink opens the Web App directly with the inviter's Telegram id
// as start_param.
func (h *Handler) referralLink(tgID int64) string {
	if h.cfg.BotUsername == "" || tgID == 0 {
		return ""
	}
	link := "https://t.me/" + h.cfg.BotUsername
	if h.cfg.WebAppShortName != "" {
		link += "/" + h.cfg.WebAppShortName
	}
	return link + "?startapp=" + strconv.FormatInt(tgID, 10)
}
