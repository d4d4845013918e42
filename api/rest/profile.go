package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/game/achievement"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProfileHandler handles profile REST endpoints.
type ProfileHandler struct {
	db      *gorm.DB
	members *membership.Service
	store   *storage.Store
	auditor *audit.Service
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(db *gorm.DB, members *membership.Service, store *storage.Store, auditor *audit.Service) *ProfileHandler {
	return &ProfileHandler{db: db, members: members, store: store, auditor: auditor}
}

// profileView is the public card for one profile. The guild block is nil
// for unaffiliated profiles.
type profileView struct {
	*model.Profile
	DisplayName string     `json:"display_name"`
	StatusColor string     `json:"status_color"`
	Guild       *guildInfo `json:"guild,omitempty"`
}

type guildInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsLeader bool   `json:"is_leader"`
}

func (h *ProfileHandler) view(p *model.Profile) *profileView {
	v := &profileView{
		Profile:     p,
		DisplayName: p.DisplayName(),
		StatusColor: achievement.StatusColor(p.Status),
	}
	if p.GuildID != nil {
		var g model.Guild
		if err := h.db.First(&g, *p.GuildID).Error; err == nil {
			role := ""
			if p.GuildRole != nil {
				role = *p.GuildRole
			}
			v.Guild = &guildInfo{
				ID:       g.ID,
				Name:     g.Name,
				Role:     role,
				IsLeader: membership.IsLeader(&g, p.ID),
			}
		}
	}
	return v
}

// Get handles GET /api/profiles/:id.
func (h *ProfileHandler) Get(c *gin.Context) {
	profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := h.members.GetProfile(c.Request.Context(), profileID)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(p))
}

// List handles GET /api/profiles. It returns every non-banned profile,
// newest first, for the community directory.
func (h *ProfileHandler) List(c *gin.Context) {
	var profiles []model.Profile
	if err := h.db.Where("banned = false").
		Order("created_at DESC, id DESC").
		Find(&profiles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	views := make([]*profileView, 0, len(profiles))
	for i := range profiles {
		views = append(views, h.view(&profiles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"profiles": views, "count": len(views)})
}

// Update handles PUT /api/profiles/:id. Profiles are self-service only;
// membership and currency fields are rejected by the service layer.
func (h *ProfileHandler) Update(c *gin.Context) {
	profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := mw.GetProfileID(c)
	p, err := h.members.UpdateOwnProfile(c.Request.Context(), actorID, profileID, fields)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionProfileUpdate,
		Request:   fields,
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, h.view(p))
}

// UploadAvatar handles POST /api/profiles/avatar. The stored URL replaces
// the caller's avatar_url.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	actorID := mw.GetProfileID(c)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	url, err := h.store.Save(file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, storage.ErrBadContentType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		}
		return
	}

	if err := h.db.Model(&model.Profile{}).Where("id = ?", actorID).
		Update("avatar_url", url).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}
