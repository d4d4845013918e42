package model

import "time"

// GlobalChannelID is the GuildID used for the global chat channel.
const GlobalChannelID int64 = 0

// GuildMessage is one chat message. GuildID 0 means the global channel;
// any other value scopes the message to that guild's channel.
type GuildMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID    int64     `gorm:"index:idx_msg_guild;not null" json:"guild_id"`
	ProfileID  int64     `gorm:"not null" json:"profile_id"`
	SenderName string    `gorm:"size:64" json:"sender_name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"index:idx_msg_created;autoCreateTime:milli" json:"created_at"`
}
