package handlers

import (
	"net/http"

	"github.com/toprakhenaz/sword-combat/internal/session"

	"github.com/gin-gonic/gin"
)

// GetTasks returns active tasks with the caller's progress.
func (h *Handler) GetTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	tasks, err := h.Game.Tasks(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// StartTask advances a task by one step. Two steps make it completable.
func (h *Handler) StartTask(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.StartTask(c.Request.Context(), taskID)
	})
}

func (h *Handler) CompleteTask(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.withSession(c, func(s *session.Session) (any, error) {
		return s.CompleteTask(c.Request.Context(), taskID)
	})
}
