package rest

import (
	"net/http"

	"github.com/emberveil/companion-server/game/ranking"
	"github.com/gin-gonic/gin"
)

// RankingHandler handles leaderboard REST endpoints.
type RankingHandler struct {
	ranking *ranking.Service
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingSvc *ranking.Service) *RankingHandler {
	return &RankingHandler{ranking: rankingSvc}
}

// Players handles GET /api/ranking/players.
func (h *RankingHandler) Players(c *gin.Context) {
	entries, err := h.ranking.TopPlayers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries, "count": len(entries)})
}

// Guilds handles GET /api/ranking/guilds.
func (h *RankingHandler) Guilds(c *gin.Context) {
	entries, err := h.ranking.TopGuilds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries, "count": len(entries)})
}
