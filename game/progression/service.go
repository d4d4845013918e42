package progression

import (
	"context"
	"errors"

	"github.com/emberveil/companion-server/events"
	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientGold is returned when a spend would take gold negative.
var ErrInsufficientGold = errors.New("insufficient gold")

// XPForLevel returns the XP needed to advance from the given level to the
// next one. The curve is linear: 100 XP per current level.
func XPForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level) * 100
}

// Service applies XP and gold changes to profiles. It is the only writer
// of the level, current_xp and gold columns.
type Service struct {
	db     *gorm.DB
	hub    *events.Hub
	logger *zap.Logger
}

// NewService creates a progression Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// UseHub makes the service emit level-up events through the given hub.
func (svc *Service) UseHub(hub *events.Hub) {
	svc.hub = hub
}

// GrantXP adds XP to a profile and applies any level-ups, carrying excess
// XP over into the new level. Returns the updated profile.
func (svc *Service) GrantXP(ctx context.Context, profileID, amount int64) (*model.Profile, error) {
	if amount < 0 {
		return nil, errors.New("xp amount must not be negative")
	}
	var p model.Profile
	levelsGained := 0
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, profileID).Error; err != nil {
			return err
		}
		p.CurrentXP += amount
		levelsGained = 0
		for p.CurrentXP >= XPForLevel(p.Level) {
			p.CurrentXP -= XPForLevel(p.Level)
			p.Level++
			levelsGained++
		}
		if levelsGained > 0 {
			svc.logger.Info("level up",
				zap.Int64("profile_id", profileID),
				zap.Int("level", p.Level),
				zap.Int("gained", levelsGained))
		}
		return tx.Model(&p).Updates(map[string]interface{}{
			"level":      p.Level,
			"current_xp": p.CurrentXP,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if levelsGained > 0 && svc.hub != nil {
		// Emitted after commit so listeners observe the persisted level.
		if _, err := svc.hub.Emit(ctx, events.ProfileLevelUp, events.LevelUp{
			ProfileID: p.ID,
			Username:  p.Username,
			Level:     p.Level,
		}); err != nil {
			svc.logger.Warn("level up event", zap.Error(err))
		}
	}
	return &p, nil
}

// GrantGold credits gold to a profile.
func (svc *Service) GrantGold(ctx context.Context, profileID, amount int64) error {
	if amount < 0 {
		return errors.New("gold amount must not be negative")
	}
	return svc.db.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ?", profileID).
		Update("gold", gorm.Expr("gold + ?", amount)).Error
}

// SpendGold debits gold with a guarded update so the balance can never go
// negative, even under concurrent purchases.
func (svc *Service) SpendGold(ctx context.Context, tx *gorm.DB, profileID, amount int64) error {
	if tx == nil {
		tx = svc.db
	}
	res := tx.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ? AND gold >= ?", profileID, amount).
		Update("gold", gorm.Expr("gold - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientGold
	}
	return nil
}
