package handlers

import (
	"net/http"

	"github.com/toprakhenaz/sword-combat/internal/domain"

	"github.com/gin-gonic/gin"
)

func boostViews(p *domain.BoostProfile) map[domain.BoostType]domain.BoostView {
	return map[domain.BoostType]domain.BoostView{
		domain.BoostMultiTouch:  p.View(domain.BoostMultiTouch),
		domain.BoostEnergyLimit: p.View(domain.BoostEnergyLimit),
		domain.BoostChargeSpeed: p.View(domain.BoostChargeSpeed),
	}
}

// GetItems returns the item catalog with the caller's levels.
func (h *Handler) GetItems(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.Game.Items(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetBoosts returns boost levels, next costs and today's rocket state.
func (h *Handler) GetBoosts(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	p, err := h.Game.Boosts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"boosts":            boostViews(p),
		"daily_rockets":     p.DailyRockets,
		"max_daily_rockets": p.MaxDailyRockets,
		"energy_full_used":  p.EnergyFullUsed,
	})
}

// GetDaily returns the streak status and the reward ladder.
func (h *Handler) GetDaily(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	status, err := h.Game.DailyStatus(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	rewards, err := h.Game.DailyRewards(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "rewards": rewards})
}

// GetCombo returns today's combo reward and the caller's finds. The card
// ids themselves stay hidden.
func (h *Handler) GetCombo(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	combo, err := h.Game.TodayCombo(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	progress, err := h.Game.ComboProgress(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	found := []int64{}
	completed := false
	if progress != nil {
		found = progress.FoundCardIDs
		completed = progress.IsCompleted
	}
	c.JSON(http.StatusOK, gin.H{
		"date":           combo.Date,
		"reward":         combo.Reward,
		"cards":          len(combo.CardIDs),
		"found_card_ids": found,
		"is_completed":   completed,
	})
}
