package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Errors returned by chat operations.
var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
	ErrNotGuildChat  = errors.New("not a member of this guild")
)

// ChannelKey returns the cache/pubsub key for a chat channel.
// Guild 0 is the global channel every profile can use.
func ChannelKey(guildID int64) string {
	if guildID == model.GlobalChannelID {
		return "chat:global"
	}
	return fmt.Sprintf("chat:guild:%d", guildID)
}

// Service persists chat messages, keeps a capped per-channel history in
// the cache, and publishes each message for live SSE delivery.
type Service struct {
	db      *gorm.DB
	cache   cache.Cache
	pubsub  cache.PubSub
	history int
	maxLen  int
	logger  *zap.Logger
}

// NewService creates a chat Service. history caps how many recent messages
// a channel keeps; maxLen caps a single message's rune count.
func NewService(db *gorm.DB, c cache.Cache, ps cache.PubSub, history, maxLen int, logger *zap.Logger) *Service {
	if history <= 0 {
		history = 50
	}
	if maxLen <= 0 {
		maxLen = 500
	}
	return &Service{db: db, cache: c, pubsub: ps, history: history, maxLen: maxLen, logger: logger}
}

// Send validates, persists and fans out one message. For guild channels
// the sender must currently be a member of that guild.
func (svc *Service) Send(ctx context.Context, sender *model.Profile, guildID int64, content string) (*model.GuildMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(content)) > svc.maxLen {
		return nil, ErrMessageTooLong
	}
	if guildID != model.GlobalChannelID {
		if sender.GuildID == nil || *sender.GuildID != guildID {
			return nil, ErrNotGuildChat
		}
	}

	msg := &model.GuildMessage{
		GuildID:    guildID,
		ProfileID:  sender.ID,
		SenderName: sender.DisplayName(),
		Content:    content,
	}
	if err := svc.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(msg)
	key := ChannelKey(guildID)
	if err := svc.cache.LPush(ctx, key, string(payload)); err != nil {
		svc.logger.Warn("chat history push failed", zap.String("channel", key), zap.Error(err))
	} else if err := svc.cache.LTrim(ctx, key, 0, int64(svc.history)-1); err != nil {
		svc.logger.Warn("chat history trim failed", zap.String("channel", key), zap.Error(err))
	}
	if err := svc.pubsub.Publish(ctx, key, string(payload)); err != nil {
		svc.logger.Warn("chat publish failed", zap.String("channel", key), zap.Error(err))
	}
	return msg, nil
}

// History returns a channel's recent messages, oldest first. It reads the
// cache and falls back to the database when the cache is cold, warming it
// on the way out.
func (svc *Service) History(ctx context.Context, viewer *model.Profile, guildID int64) ([]model.GuildMessage, error) {
	if guildID != model.GlobalChannelID {
		if viewer.GuildID == nil || *viewer.GuildID != guildID {
			return nil, ErrNotGuildChat
		}
	}

	key := ChannelKey(guildID)
	raw, err := svc.cache.LRange(ctx, key, 0, int64(svc.history)-1)
	if err == nil && len(raw) > 0 {
		msgs := make([]model.GuildMessage, 0, len(raw))
		ok := true
		for i := len(raw) - 1; i >= 0; i-- { // list is newest-first
			var m model.GuildMessage
			if json.Unmarshal([]byte(raw[i]), &m) != nil {
				ok = false
				break
			}
			msgs = append(msgs, m)
		}
		if ok {
			return msgs, nil
		}
	}

	var msgs []model.GuildMessage
	if err := svc.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("id DESC").
		Limit(svc.history).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	// Reverse to oldest-first, warming the cache newest-first as we go.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	for _, m := range msgs {
		payload, _ := json.Marshal(m)
		_ = svc.cache.LPush(ctx, key, string(payload))
	}
	_ = svc.cache.LTrim(ctx, key, 0, int64(svc.history)-1)
	return msgs, nil
}
