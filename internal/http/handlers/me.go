package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the stored account together with the live session state.
func (h *Handler) Me(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	ctx := c.Request.Context()
	s, err := h.Sessions.Acquire(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer h.Sessions.Release(id.UserID)

	p, err := h.Game.GetPlayer(ctx, id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	st := s.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"id":         p.User.ID,
		"tg_id":      p.User.TgID,
		"username":   p.User.Username,
		"first_name": p.User.FirstName,
		"created_at": p.User.CreatedAt,
		"state":      st,
		"boosts":     boostViews(&st.Boosts),
	})
}

// History returns the caller's recent ledger rows.
func (h *Handler) History(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	limit := queryInt(c, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txs, err := h.Game.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
