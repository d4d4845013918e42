package quest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emberveil/companion-server/game/progression"
	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Errors returned by quest operations.
var (
	ErrQuestNotFound    = errors.New("quest not found")
	ErrAlreadyAccepted  = errors.New("quest already accepted")
	ErrNotAccepted      = errors.New("quest not accepted")
	ErrAlreadyCompleted = errors.New("quest already completed")
)

// Service runs the quest board: accepting quests, marking them complete
// and paying out rewards through the progression service.
type Service struct {
	db          *gorm.DB
	progression *progression.Service
	logger      *zap.Logger
}

// NewService creates a quest Service.
func NewService(db *gorm.DB, prog *progression.Service, logger *zap.Logger) *Service {
	return &Service{db: db, progression: prog, logger: logger}
}

// BoardEntry is a quest definition plus the viewing profile's status.
// Status is nil when the profile has not accepted the quest.
type BoardEntry struct {
	model.Quest
	Status      *int       `json:"status"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Board returns every quest with the profile's progress folded in.
func (svc *Service) Board(ctx context.Context, profileID int64) ([]BoardEntry, error) {
	var quests []model.Quest
	if err := svc.db.WithContext(ctx).Order("id ASC").Find(&quests).Error; err != nil {
		return nil, err
	}
	var progress []model.QuestProgress
	if err := svc.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Find(&progress).Error; err != nil {
		return nil, err
	}
	byQuest := make(map[int64]*model.QuestProgress, len(progress))
	for i := range progress {
		byQuest[progress[i].QuestID] = &progress[i]
	}

	out := make([]BoardEntry, 0, len(quests))
	for _, q := range quests {
		entry := BoardEntry{Quest: q}
		if qp, ok := byQuest[q.ID]; ok {
			status := qp.Status
			entry.Status = &status
			accepted := qp.AcceptedAt
			entry.AcceptedAt = &accepted
			entry.CompletedAt = qp.CompletedAt
		}
		out = append(out, entry)
	}
	return out, nil
}

// Accept puts a quest in progress for the profile. Accepting the same
// quest twice is rejected rather than silently ignored.
func (svc *Service) Accept(ctx context.Context, profileID, questID int64) (*model.QuestProgress, error) {
	var q model.Quest
	if err := svc.db.WithContext(ctx).First(&q, questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}

	empty, _ := json.Marshal(map[string]int{})
	qp := &model.QuestProgress{
		ProfileID: profileID,
		QuestID:   questID,
		Status:    model.QuestStatusInProgress,
		Progress:  datatypes.JSON(empty),
	}
	if err := svc.db.WithContext(ctx).Create(qp).Error; err != nil {
		// The (profile_id, quest_id) unique index catches repeats.
		var existing model.QuestProgress
		if lookupErr := svc.db.WithContext(ctx).
			Where("profile_id = ? AND quest_id = ?", profileID, questID).
			First(&existing).Error; lookupErr == nil {
			return nil, ErrAlreadyAccepted
		}
		return nil, err
	}
	return qp, nil
}

// Complete finishes an in-progress quest and grants its rewards. The
// status flip is guarded so a double submit pays out only once.
func (svc *Service) Complete(ctx context.Context, profileID, questID int64) (*model.Profile, error) {
	var q model.Quest
	if err := svc.db.WithContext(ctx).First(&q, questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}

	now := time.Now()
	res := svc.db.WithContext(ctx).Model(&model.QuestProgress{}).
		Where("profile_id = ? AND quest_id = ? AND status = ?",
			profileID, questID, model.QuestStatusInProgress).
		Updates(map[string]interface{}{
			"status":       model.QuestStatusCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing model.QuestProgress
		err := svc.db.WithContext(ctx).
			Where("profile_id = ? AND quest_id = ?", profileID, questID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAccepted
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrAlreadyCompleted
	}

	if q.GoldReward > 0 {
		if err := svc.progression.GrantGold(ctx, profileID, q.GoldReward); err != nil {
			return nil, err
		}
	}
	profile, err := svc.progression.GrantXP(ctx, profileID, q.XPReward)
	if err != nil {
		return nil, err
	}
	svc.logger.Info("quest completed",
		zap.Int64("profile_id", profileID),
		zap.Int64("quest_id", questID),
		zap.Int64("xp", q.XPReward),
		zap.Int64("gold", q.GoldReward))
	return profile, nil
}

// CompletedCount reports how many quests the profile has finished.
func (svc *Service) CompletedCount(ctx context.Context, profileID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.QuestProgress{}).
		Where("profile_id = ? AND status = ?", profileID, model.QuestStatusCompleted).
		Count(&n).Error
	return n, err
}

// SeedQuests inserts the given quests if the board is empty.
func (svc *Service) SeedQuests(ctx context.Context, quests []model.Quest) error {
	if len(quests) == 0 {
		return nil
	}
	var n int64
	if err := svc.db.WithContext(ctx).Model(&model.Quest{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return svc.db.WithContext(ctx).Create(&quests).Error
}

// SeedBoard inserts the built-in default quest board if the table is empty.
func (svc *Service) SeedBoard(ctx context.Context) error {
	defaults := []model.Quest{
		{Title: "First Steps", Description: "Fill in your character card.", XPReward: 50, GoldReward: 10},
		{Title: "Window Shopping", Description: "Buy any item from the shop.", XPReward: 75, GoldReward: 0},
		{Title: "Strength in Numbers", Description: "Join or found a guild.", XPReward: 100, GoldReward: 25},
		{Title: "Town Crier", Description: "Send a message in the global chat.", XPReward: 50, GoldReward: 5},
		{Title: "Veteran", Description: "Reach level 5.", XPReward: 250, GoldReward: 100},
	}
	return svc.SeedQuests(ctx, defaults)
}
