package model

import "time"

// GuildRole labels a profile's role inside its guild.
// It is meaningful only while GuildID is set, and it is always written
// together with GuildID: both nil, or both non-nil.
type GuildRole = string

const (
	GuildRoleLeader GuildRole = "Leader"
	GuildRoleMember GuildRole = "Member"
)

// Profile represents a player account and its in-game character card.
type Profile struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string `gorm:"size:64;not null" json:"-"`
	Banned       bool   `gorm:"default:false" json:"-"`

	FirstName string `gorm:"size:32" json:"first_name"`
	LastName  string `gorm:"size:32" json:"last_name"`
	AvatarURL string `gorm:"size:255" json:"avatar_url"`
	Bio       string `gorm:"type:text" json:"bio"`
	Class     string `gorm:"size:32" json:"class"`
	Status    string `gorm:"size:32" json:"status"`
	Gender    string `gorm:"size:16" json:"gender"`

	Level     int   `gorm:"default:1" json:"level"`
	CurrentXP int64 `gorm:"default:0" json:"current_xp"`
	Gold      int64 `gorm:"default:0" json:"gold"`

	GuildID   *int64  `gorm:"index:idx_profile_guild" json:"guild_id"`
	GuildRole *string `gorm:"size:16" json:"guild_role"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Affiliated reports whether the profile currently belongs to a guild.
func (p *Profile) Affiliated() bool {
	return p.GuildID != nil
}

// DisplayName returns the name shown on cards and in chat.
func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Username
	}
}
