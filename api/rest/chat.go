package rest

import (
	"errors"
	"net/http"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/game/chat"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat REST endpoints. Two channels exist: "global",
// open to everyone, and "guild", scoped to the caller's current guild.
type ChatHandler struct {
	chat    *chat.Service
	members *membership.Service
	auditor *audit.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatSvc *chat.Service, members *membership.Service, auditor *audit.Service) *ChatHandler {
	return &ChatHandler{chat: chatSvc, members: members, auditor: auditor}
}

// resolveChannel maps the :channel route param to a channel guild id for
// the calling profile.
func (h *ChatHandler) resolveChannel(c *gin.Context, p *model.Profile) (int64, bool) {
	switch c.Param("channel") {
	case "global":
		return model.GlobalChannelID, true
	case "guild":
		if p.GuildID == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "not in a guild"})
			return 0, false
		}
		return *p.GuildID, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return 0, false
	}
}

// History handles GET /api/chat/:channel/messages. Messages come back
// oldest first, capped at the configured history length.
func (h *ChatHandler) History(c *gin.Context) {
	actorID := mw.GetProfileID(c)
	p, err := h.members.GetProfile(c.Request.Context(), actorID)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	channel, ok := h.resolveChannel(c, p)
	if !ok {
		return
	}

	msgs, err := h.chat.History(c.Request.Context(), p, channel)
	if err != nil {
		if errors.Is(err, chat.ErrNotGuildChat) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this guild"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Send handles POST /api/chat/:channel/messages.
func (h *ChatHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := mw.GetProfileID(c)
	p, err := h.members.GetProfile(c.Request.Context(), actorID)
	if err != nil {
		respondMembershipError(c, err)
		return
	}
	channel, ok := h.resolveChannel(c, p)
	if !ok {
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), p, channel, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, chat.ErrNotGuildChat):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this guild"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionChatSend,
		Request:   gin.H{"channel": c.Param("channel")},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, msg)
}
