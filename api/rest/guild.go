package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/storage"
	"github.com/gin-gonic/gin"
)

// GuildHandler handles guild REST endpoints. All membership writes go
// through the membership service.
type GuildHandler struct {
	members *membership.Service
	store   *storage.Store
	auditor *audit.Service
}

// NewGuildHandler creates a new GuildHandler.
func NewGuildHandler(members *membership.Service, store *storage.Store, auditor *audit.Service) *GuildHandler {
	return &GuildHandler{members: members, store: store, auditor: auditor}
}

// List handles GET /api/guilds.
func (h *GuildHandler) List(c *gin.Context) {
	guilds, err := h.members.ListGuilds(c.Request.Context())
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guilds": guilds, "count": len(guilds)})
}

type createGuildRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=32"`
	Description string `json:"description" binding:"max=500"`
	AvatarURL   string `json:"avatar_url" binding:"max=255"`
}

// Create handles POST /api/guilds.
func (h *GuildHandler) Create(c *gin.Context) {
	var req createGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := mw.GetProfileID(c)
	guild, err := h.members.CreateGuild(c.Request.Context(), actorID, req.Name, req.Description, req.AvatarURL)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionGuildCreate,
		Request:   gin.H{"name": req.Name},
		Response:  gin.H{"guild_id": guild.ID},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, guild)
}

// memberView is one row of a guild's member list.
type memberView struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Class       string `json:"class"`
	Level       int    `json:"level"`
	Role        string `json:"role"`
	IsLeader    bool   `json:"is_leader"`
}

// Detail handles GET /api/guilds/:id. The member list carries a derived
// is_leader flag; a guild whose creator has left shows no leader at all.
func (h *GuildHandler) Detail(c *gin.Context) {
	guildID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	guild, err := h.members.GetGuild(ctx, guildID)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	members, err := h.members.GuildMembers(ctx, guildID)
	if err != nil {
		respondMembershipError(c, err)
		return
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		role := ""
		if m.GuildRole != nil {
			role = *m.GuildRole
		}
		views = append(views, memberView{
			ID:          m.ID,
			DisplayName: m.DisplayName(),
			AvatarURL:   m.AvatarURL,
			Class:       m.Class,
			Level:       m.Level,
			Role:        role,
			IsLeader:    membership.IsLeader(&guild.Guild, m.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"guild": guild, "members": views})
}

// Join handles POST /api/guilds/:id/join.
func (h *GuildHandler) Join(c *gin.Context) {
	guildID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	actorID := mw.GetProfileID(c)
	if err := h.members.JoinGuild(c.Request.Context(), actorID, guildID); err != nil {
		respondMembershipError(c, err)
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionGuildJoin,
		Request:   gin.H{"guild_id": guildID},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "joined"})
}

// Leave handles POST /api/guilds/leave. The route carries no guild id;
// you can only leave the guild you are in.
func (h *GuildHandler) Leave(c *gin.Context) {
	actorID := mw.GetProfileID(c)
	if err := h.members.LeaveGuild(c.Request.Context(), actorID); err != nil {
		respondMembershipError(c, err)
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionGuildLeave,
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "left"})
}

// Update handles PUT /api/guilds/:id. Only the creator may edit.
func (h *GuildHandler) Update(c *gin.Context) {
	guildID, err := strconv.ParseInt(c.Param("id"), 10, 64)
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
	guild, err := h.members.UpdateGuild(c.Request.Context(), actorID, guildID, fields)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionGuildUpdate,
		Request:   fields,
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, guild)
}

// UploadAvatar handles POST /api/guilds/:id/avatar. Only the creator may
// change the guild's banner.
func (h *GuildHandler) UploadAvatar(c *gin.Context) {
	guildID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
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

	actorID := mw.GetProfileID(c)
	guild, err := h.members.UpdateGuild(c.Request.Context(), actorID, guildID,
		map[string]interface{}{"avatar_url": url})
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": guild.AvatarURL})
}

