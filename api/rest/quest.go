package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/game/quest"
	"github.com/emberveil/companion-server/game/ranking"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/gin-gonic/gin"
)

// QuestHandler handles quest board REST endpoints.
type QuestHandler struct {
	quests  *quest.Service
	ranking *ranking.Service
	auditor *audit.Service
}

// NewQuestHandler creates a new QuestHandler.
func NewQuestHandler(questSvc *quest.Service, rankingSvc *ranking.Service, auditor *audit.Service) *QuestHandler {
	return &QuestHandler{quests: questSvc, ranking: rankingSvc, auditor: auditor}
}

// Board handles GET /api/quests.
func (h *QuestHandler) Board(c *gin.Context) {
	actorID := mw.GetProfileID(c)
	entries, err := h.quests.Board(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": entries, "count": len(entries)})
}

// Accept handles POST /api/quests/:id/accept.
func (h *QuestHandler) Accept(c *gin.Context) {
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	actorID := mw.GetProfileID(c)
	qp, err := h.quests.Accept(c.Request.Context(), actorID, questID)
	if err != nil {
		switch {
		case errors.Is(err, quest.ErrQuestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		case errors.Is(err, quest.ErrAlreadyAccepted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already accepted"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionQuestAccept,
		Request:   gin.H{"quest_id": questID},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, qp)
}

// Complete handles POST /api/quests/:id/complete. The response carries
// the profile after rewards so the client can show level-ups immediately.
func (h *QuestHandler) Complete(c *gin.Context) {
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	actorID := mw.GetProfileID(c)
	profile, err := h.quests.Complete(c.Request.Context(), actorID, questID)
	if err != nil {
		switch {
		case errors.Is(err, quest.ErrQuestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		case errors.Is(err, quest.ErrNotAccepted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest not accepted"})
		case errors.Is(err, quest.ErrAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already completed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	// Keep the cached leaderboard in step with the new level.
	h.ranking.Touch(c.Request.Context(), profile)

	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionQuestComplete,
		Request:   gin.H{"quest_id": questID},
		Response:  gin.H{"level": profile.Level, "gold": profile.Gold},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
