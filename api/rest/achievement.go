package rest

import (
	"net/http"
	"strconv"

	"github.com/emberveil/companion-server/game/achievement"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/gin-gonic/gin"
)

// AchievementHandler handles achievement REST endpoints.
type AchievementHandler struct {
	achievements *achievement.Service
	members      *membership.Service
}

// NewAchievementHandler creates a new AchievementHandler.
func NewAchievementHandler(a *achievement.Service, members *membership.Service) *AchievementHandler {
	return &AchievementHandler{achievements: a, members: members}
}

// Mine handles GET /api/achievements.
func (h *AchievementHandler) Mine(c *gin.Context) {
	h.respond(c, mw.GetProfileID(c))
}

// ForProfile handles GET /api/profiles/:id/achievements. Badges are
// public; anyone can view anyone's.
func (h *AchievementHandler) ForProfile(c *gin.Context) {
	profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	h.respond(c, profileID)
}

func (h *AchievementHandler) respond(c *gin.Context, profileID int64) {
	p, err := h.members.GetProfile(c.Request.Context(), profileID)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	list, err := h.achievements.ForProfile(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	earned := 0
	for _, a := range list {
		if a.Earned {
			earned++
		}
	}
	c.JSON(http.StatusOK, gin.H{"achievements": list, "earned": earned})
}
