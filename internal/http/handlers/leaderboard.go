package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLeagues returns the league tiers with thresholds and rewards.
func (h *Handler) GetLeagues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"leagues": h.Game.Leagues().All()})
}

// GetLeaderboard returns the richest players of one league.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	leagueID, err := strconv.Atoi(c.Param("league"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid league"})
		return
	}
	limit := queryInt(c, "limit", 100)
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	top, err := h.Game.Leaderboard(c.Request.Context(), leagueID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"league":      leagueID,
		"leaderboard": top,
	})
}
