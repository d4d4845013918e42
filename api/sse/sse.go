package sse

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	"github.com/emberveil/companion-server/game/chat"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const announceChannel = "announce"

// onlineSetKey tracks which profiles currently hold an open stream.
const onlineSetKey = "presence:online"

// Handler handles the SSE chat stream endpoint.
type Handler struct {
	pubsub  cache.PubSub
	c       cache.Cache
	members *membership.Service
	sec     config.SecurityConfig
	logger  *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, members *membership.Service, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, members: members, sec: sec, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>.
//
// The stream is forward-only: it carries messages sent after the
// subscription opened, never a backfill (clients fetch history over
// REST first). Every client gets the global chat channel plus system
// announcements; members of a guild also get that guild's channel.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.c.Exists(ctx, "session:"+tokenStr)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	profile, err := h.members.GetProfile(ctx, claims.ProfileID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown profile"})
		return
	}

	channels := []string{announceChannel, chat.ChannelKey(model.GlobalChannelID)}
	if profile.GuildID != nil {
		channels = append(channels, chat.ChannelKey(*profile.GuildID))
	}

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, channels...)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Presence tracking for the admin metrics endpoint.
	member := strconv.FormatInt(profile.ID, 10)
	_ = h.c.SAdd(ctx, onlineSetKey, member)
	defer func() {
		offCtx, offCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer offCancel()
		_ = h.c.SRem(offCtx, onlineSetKey, member)
	}()

	// Send initial connected event.
	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"profile_id\": %d}\n\n", profile.ID)
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventName(msg.Channel), msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// eventName maps a pubsub channel to the SSE event type the client sees.
func eventName(channel string) string {
	if channel == announceChannel {
		return "announce"
	}
	return "chat"
}

// Announce publishes a system announcement to all connected clients.
func (h *Handler) Announce(ctx context.Context, message string) error {
	return h.pubsub.Publish(ctx, announceChannel, message)
}
