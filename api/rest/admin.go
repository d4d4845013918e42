package rest

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/game/ranking"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// onlineSetKey mirrors the presence set maintained by the SSE endpoint.
const onlineSetKey = "presence:online"

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db      *gorm.DB
	cache   cache.Cache
	ranking *ranking.Service
	sched   *scheduler.Scheduler
	auditor *audit.Service
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	c cache.Cache,
	rankingSvc *ranking.Service,
	sched *scheduler.Scheduler,
	auditor *audit.Service,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{db: db, cache: c, ranking: rankingSvc, sched: sched, auditor: auditor, logger: logger}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var profiles, guilds, messages int64
	h.db.Model(&model.Profile{}).Count(&profiles)
	h.db.Model(&model.Guild{}).Count(&guilds)
	h.db.Model(&model.GuildMessage{}).Count(&messages)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	online, _ := h.cache.SMembers(ctx, onlineSetKey)

	c.JSON(http.StatusOK, gin.H{
		"profiles":        profiles,
		"guilds":          guilds,
		"messages":        messages,
		"online":          len(online),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// BanProfile bans or unbans a profile.
// POST /api/admin/profiles/:id/ban
func (h *AdminHandler) BanProfile(c *gin.Context) {
	profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	result := h.db.Model(&model.Profile{}).Where("id = ?", profileID).Update("banned", req.Ban)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	h.logger.Info("admin ban change",
		zap.Int64("profile_id", profileID),
		zap.Bool("banned", req.Ban))
	h.auditor.Log(audit.Entry{
		TraceID: mw.GetTraceID(c),
		Action:  audit.ActionAdminBan,
		Request: gin.H{"profile_id": profileID, "ban": req.Ban},
		IP:      c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "banned": req.Ban})
}

// RefreshRanking rebuilds the cached player leaderboard immediately.
// POST /api/admin/ranking/refresh
func (h *AdminHandler) RefreshRanking(c *gin.Context) {
	if err := h.ranking.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// AuditTrail returns the most recent audit entries.
// GET /api/admin/audit
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	var logs []model.AuditLog
	if err := h.db.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs, "count": len(logs)})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so
// the server cannot be accidentally deployed without protection. Set a
// non-empty server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
