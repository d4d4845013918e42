package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db      *gorm.DB
	cache   cache.Cache
	sec     config.SecurityConfig
	game    config.GameConfig
	auditor *audit.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, game config.GameConfig, auditor *audit.Service) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, game: game, auditor: auditor}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=6,max=64"`
	Class    string `json:"class" binding:"max=32"`
}

// Register handles POST /api/auth/register.
// A new profile starts at level 1 with the configured starting gold.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	class := req.Class
	if class == "" {
		class = "Adventurer"
	}
	profile := model.Profile{
		Username:     req.Username,
		PasswordHash: string(hash),
		Class:        class,
		Status:       "online",
		Level:        1,
		Gold:         int64(h.game.StartingGold),
	}
	if err := h.db.Create(&profile).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	token, err := h.issueSession(c, profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &profile.ID,
		Action:    audit.ActionRegister,
		Request:   gin.H{"username": req.Username},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, gin.H{"token": token, "profile": profile})
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=6,max=64"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var profile model.Profile
	err := h.db.Where("username = ?", req.Username).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if profile.Banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	}

	token, err := h.issueSession(c, profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Update last login (best-effort).
	now := time.Now()
	_ = h.db.Model(&profile).Update("last_login_at", now).Error

	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &profile.ID,
		Action:    audit.ActionLogin,
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"token": token, "profile": profile})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, "session:"+tokenStr)

	profileID := mw.GetProfileID(c)
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &profileID,
		Action:    audit.ActionLogout,
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. The old session is revoked and
// a fresh token issued.
func (h *AuthHandler) Refresh(c *gin.Context) {
	profileID := mw.GetProfileID(c)
	if profileID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	header := c.GetHeader("Authorization")
	oldToken := strings.TrimPrefix(header, "Bearer ")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, "session:"+oldToken)

	newToken, err := h.issueSession(c, profileID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	profileID := mw.GetProfileID(c)
	var profile model.Profile
	if err := h.db.First(&profile, profileID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// issueSession signs a JWT and stores the session in the cache so the
// Auth middleware's Exists check works uniformly across backends.
func (h *AuthHandler) issueSession(c *gin.Context, profileID int64) (string, error) {
	token, err := mw.GenerateToken(profileID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	sessionKey := "session:" + token
	_ = h.cache.Set(ctx, sessionKey, strconv.FormatInt(profileID, 10), h.sec.JWTTTLH)
	return token, nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
