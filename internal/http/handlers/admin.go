package handlers

import (
	"context"
	"net/http"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/logger"

	"github.com/gin-gonic/gin"
)

// saveRecord binds a JSON record and hands it to save. On PUT the id comes
// from the path and overrides the body.
func saveRecord[T any](c *gin.Context, setID func(*T, int64), save func(ctx context.Context, actor int64, rec *T) error) {
	var rec T
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	status := http.StatusCreated
	if c.Param("id") != "" {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		setID(&rec, id)
		status = http.StatusOK
	} else {
		setID(&rec, 0)
	}
	if err := save(c.Request.Context(), actorID(c), &rec); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, rec)
}

func deleteRecord(c *gin.Context, del func(ctx context.Context, actor, id int64) error) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := del(c.Request.Context(), actorID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listAll[T any](c *gin.Context, key string, list func(ctx context.Context) ([]T, error)) {
	rows, err := list(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: rows})
}

// evict closes a player's live session so it reloads after an operator
// edit. Queued deltas are flushed first.
func (h *Handler) evict(c *gin.Context, userID int64) {
	if h.Conns != nil {
		h.Conns.Disconnect(userID)
	}
	if err := h.Sessions.Evict(c.Request.Context(), userID); err != nil {
		logger.WithContext(c.Request.Context()).Warn("evict session", "user_id", userID, "error", err)
	}
}

func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.Admin.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "active_sessions": h.Sessions.Len()})
}

func (h *Handler) AdminAudit(c *gin.Context) {
	logs, err := h.Admin.RecentAudit(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": logs})
}

// Users

func (h *Handler) AdminListUsers(c *gin.Context) {
	q := listQuery(c)
	users, total, err := h.Admin.ListUsers(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": total, "limit": q.Limit, "offset": q.Offset})
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	u, err := h.Admin.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type createUserRequest struct {
	TgID      int64  `json:"tg_id" binding:"required,min=1"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

func (h *Handler) AdminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	u, err := h.Admin.CreateUser(c.Request.Context(), actorID(c), req.TgID, req.Username, req.FirstName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) AdminUpdateUser(c *gin.Context) {
	saveRecord(c, func(u *domain.User, id int64) { u.ID = id }, func(ctx context.Context, actor int64, u *domain.User) error {
		h.evict(c, u.ID)
		return h.Admin.UpdateUser(ctx, actor, u)
	})
}

func (h *Handler) AdminDeleteUser(c *gin.Context) {
	deleteRecord(c, func(ctx context.Context, actor, id int64) error {
		h.evict(c, id)
		return h.Admin.DeleteUser(ctx, actor, id)
	})
}

func (h *Handler) AdminToggleBan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.evict(c, id)
	banned, err := h.Admin.ToggleBan(c.Request.Context(), actorID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "is_banned": banned})
}

type coinsRequest struct {
	Coins *int64 `json:"coins"`
	Add   *int64 `json:"add"`
}

// AdminSetCoins overwrites the balance with coins, or adjusts it by add.
func (h *Handler) AdminSetCoins(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req coinsRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Coins == nil) == (req.Add == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of coins or add is required"})
		return
	}

	ctx := c.Request.Context()
	h.evict(c, id)
	var balance int64
	var err error
	if req.Coins != nil {
		balance = *req.Coins
		err = h.Admin.SetCoins(ctx, actorID(c), id, *req.Coins)
	} else {
		balance, err = h.Admin.AddCoins(ctx, actorID(c), id, *req.Add)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "coins": balance})
}

func (h *Handler) AdminResetDaily(c *gin.Context) {
	n, err := h.Admin.ResetDaily(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": n})
}

// Boosts

func (h *Handler) AdminListBoosts(c *gin.Context) {
	q := listQuery(c)
	rows, total, err := h.Admin.ListBoosts(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boosts": rows, "total": total})
}

func (h *Handler) AdminUpdateBoosts(c *gin.Context) {
	saveRecord(c, func(p *domain.BoostProfile, id int64) { p.UserID = id }, func(ctx context.Context, actor int64, p *domain.BoostProfile) error {
		h.evict(c, p.UserID)
		return h.Admin.UpdateBoosts(ctx, actor, p)
	})
}

// Catalog collections

func (h *Handler) AdminListItems(c *gin.Context) { listAll(c, "items", h.Admin.ListItems) }
func (h *Handler) AdminSaveItem(c *gin.Context) {
	saveRecord(c, func(it *domain.Item, id int64) { it.ID = id }, h.Admin.SaveItem)
}
func (h *Handler) AdminDeleteItem(c *gin.Context) { deleteRecord(c, h.Admin.DeleteItem) }

func (h *Handler) AdminListTasks(c *gin.Context) { listAll(c, "tasks", h.Admin.ListTasks) }
func (h *Handler) AdminSaveTask(c *gin.Context) {
	saveRecord(c, func(t *domain.Task, id int64) { t.ID = id }, h.Admin.SaveTask)
}
func (h *Handler) AdminDeleteTask(c *gin.Context) { deleteRecord(c, h.Admin.DeleteTask) }

func (h *Handler) AdminListLeagues(c *gin.Context) { listAll(c, "leagues", h.Admin.ListLeagues) }
func (h *Handler) AdminSaveLeague(c *gin.Context) {
	saveRecord(c, func(l *domain.LeagueRecord, id int64) { l.ID = id }, h.Admin.SaveLeague)
}
func (h *Handler) AdminDeleteLeague(c *gin.Context) { deleteRecord(c, h.Admin.DeleteLeague) }

func (h *Handler) AdminListDailyRewards(c *gin.Context) {
	listAll(c, "daily_rewards", h.Admin.ListDailyRewards)
}
func (h *Handler) AdminSaveDailyReward(c *gin.Context) {
	saveRecord(c, func(r *domain.DailyReward, id int64) { r.ID = id }, h.Admin.SaveDailyReward)
}
func (h *Handler) AdminDeleteDailyReward(c *gin.Context) { deleteRecord(c, h.Admin.DeleteDailyReward) }

func (h *Handler) AdminListCombos(c *gin.Context) {
	listAll(c, "combos", func(ctx context.Context) ([]*domain.DailyCombo, error) {
		return h.Admin.ListCombos(ctx, queryInt(c, "limit", 30))
	})
}
func (h *Handler) AdminSaveCombo(c *gin.Context) {
	saveRecord(c, func(dc *domain.DailyCombo, id int64) { dc.ID = id }, h.Admin.SaveCombo)
}
func (h *Handler) AdminDeleteCombo(c *gin.Context) { deleteRecord(c, h.Admin.DeleteCombo) }

func (h *Handler) AdminListSettings(c *gin.Context) { listAll(c, "settings", h.Admin.ListSettings) }
func (h *Handler) AdminSaveSetting(c *gin.Context) {
	saveRecord(c, func(s *domain.AppSetting, id int64) { s.ID = id }, h.Admin.SaveSetting)
}
func (h *Handler) AdminDeleteSetting(c *gin.Context) { deleteRecord(c, h.Admin.DeleteSetting) }

// Referrals

func (h *Handler) AdminListReferrals(c *gin.Context) {
	q := listQuery(c)
	rows, total, err := h.Admin.ListReferrals(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": rows, "total": total})
}

func (h *Handler) AdminUpdateReferral(c *gin.Context) {
	saveRecord(c, func(r *domain.Referral, id int64) { r.ID = id }, h.Admin.UpdateReferral)
}

func (h *Handler) AdminDeleteReferral(c *gin.Context) { deleteRecord(c, h.Admin.DeleteReferral) }

// Transactions

func (h *Handler) AdminListTransactions(c *gin.Context) {
	q := domain.TransactionQuery{
		UserID: int64(queryInt(c, "user_id", 0)),
		Type:   c.Query("type"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	rows, total, err := h.Admin.ListTransactions(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows, "total": total})
}
