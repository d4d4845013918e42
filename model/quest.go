package model

import (
	"time"

	"gorm.io/datatypes"
)

// Quest is a quest definition shown on the quest board.
type Quest struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:64;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	XPReward    int64     `gorm:"default:0" json:"xp_reward"`
	GoldReward  int64     `gorm:"default:0" json:"gold_reward"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// QuestStatus represents the completion state of an accepted quest.
type QuestStatus = int

const (
	QuestStatusInProgress QuestStatus = 0
	QuestStatusCompleted  QuestStatus = 1
)

// QuestProgress tracks one profile's progress on one quest.
type QuestProgress struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID   int64          `gorm:"uniqueIndex:idx_quest_profile;not null" json:"profile_id"`
	QuestID     int64          `gorm:"uniqueIndex:idx_quest_profile;not null" json:"quest_id"`
	Status      int            `gorm:"default:0" json:"status"`
	Progress    datatypes.JSON `json:"progress"` // {"kill_count": 3, ...}
	AcceptedAt  time.Time      `gorm:"autoCreateTime" json:"accepted_at"`
	CompletedAt *time.Time     `json:"completed_at"`
}
