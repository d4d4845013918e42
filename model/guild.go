package model

import "time"

// Guild represents a player-created guild.
//
// CreatedBy is immutable after creation and is the single source of truth
// for leadership: read paths derive "is leader" by comparing a member's id
// to CreatedBy rather than trusting the stored role string.
type Guild struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	AvatarURL   string    `gorm:"size:255" json:"avatar_url"`
	Level       int       `gorm:"default:1" json:"level"`
	CreatedBy   int64     `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
