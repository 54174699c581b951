package handlers

import (
	"net/http"
	"strconv"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gin-gonic/gin"
)

// withSession runs fn against the caller's live session and answers with
// the action result plus the state after it.
func (h *Handler) withSession(c *gin.Context, fn func(s *session.Session) (any, error)) {
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

	res, err := fn(s)
	if err != nil {
		if !c.Writer.Written() {
			respondError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "state": s.Snapshot()})
}

func (h *Handler) Tap(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		if err := s.Tap(); err != nil {
			return nil, err
		}
		return gin.H{"tapped": true}, nil
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		return nil, s.Refresh(c.Request.Context())
	})
}

func (h *Handler) CollectHourly(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		res, err := s.CollectHourlyEarnings(c.Request.Context())
		if err != nil {
			// time_left tells the client when to retry
			if res != nil {
				c.JSON(gameStatus(domain.ErrTooEarly.Code), gin.H{
					"error":     domain.ErrTooEarly.Message,
					"code":      domain.ErrTooEarly.Code,
					"time_left": res.TimeLeft.Seconds(),
				})
			}
			return nil, err
		}
		return res, nil
	})
}

func (h *Handler) UpgradeBoost(c *gin.Context) {
	t, ok := domain.ParseBoostType(c.Param("type"))
	if !ok {
		respondError(c, domain.ErrInvalidBoost)
		return
	}
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.UpgradeBoost(c.Request.Context(), t)
	})
}

func (h *Handler) UseRocket(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		return nil, s.UseRocketBoost(c.Request.Context())
	})
}

func (h *Handler) UseFullEnergy(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		return nil, s.UseFullEnergyBoost(c.Request.Context())
	})
}

func (h *Handler) ClaimDaily(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.ClaimDailyReward(c.Request.Context())
	})
}

func (h *Handler) FindCombo(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, domain.ErrInvalidCard)
		return
	}
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.FindComboCard(c.Request.Context(), index)
	})
}

func (h *Handler) CollectLeague(c *gin.Context) {
	h.withSession(c, func(s *session.Session) (any, error) {
		reward, err := s.CollectLeagueReward(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{"reward": reward}, nil
	})
}

func (h *Handler) UpgradeItem(c *gin.Context) {
	itemID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.UpgradeItem(c.Request.Context(), itemID)
	})
}
