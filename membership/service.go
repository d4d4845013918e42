package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emberveil/companion-server/events"
	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns every write to Profile.GuildID and Profile.GuildRole.
// Handlers never touch those columns directly; they call into here so
// the pairing invariant (both set or both nil) holds on every path.
type Service struct {
	db     *gorm.DB
	hub    *events.Hub
	logger *zap.Logger
}

// NewService creates a membership Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// UseHub makes the service emit guild lifecycle events through the given hub.
func (svc *Service) UseHub(hub *events.Hub) {
	svc.hub = hub
}

func (svc *Service) emit(ctx context.Context, event string, change events.GuildChange) {
	if svc.hub == nil {
		return
	}
	if _, err := svc.hub.Emit(ctx, event, change); err != nil {
		svc.logger.Warn("guild event", zap.String("event", event), zap.Error(err))
	}
}

// GuildSummary is a guild plus its live member count.
type GuildSummary struct {
	model.Guild
	MemberCount int64 `json:"member_count"`
}

// CreateGuild inserts a guild and makes the creator its Leader, atomically.
// The creator must not already belong to a guild.
func (svc *Service) CreateGuild(ctx context.Context, creatorID int64, name, description, avatarURL string) (*model.Guild, error) {
	if creatorID == 0 {
		return nil, ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: guild name must not be empty", ErrValidation)
	}

	guild := &model.Guild{
		Name:        name,
		Description: description,
		AvatarURL:   avatarURL,
		Level:       1,
		CreatedBy:   creatorID,
	}
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var creator model.Profile
		if err := tx.First(&creator, creatorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if creator.Affiliated() {
			return ErrAlreadyInGuild
		}

		if err := tx.Create(guild).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateName
			}
			return err
		}

		// Guarded write: a concurrent join between the read above and
		// here would make this touch zero rows, which aborts the whole
		// transaction so no leaderless guild is left behind.
		res := tx.Model(&model.Profile{}).
			Where("id = ? AND guild_id IS NULL", creatorID).
			Updates(map[string]interface{}{
				"guild_id":   guild.ID,
				"guild_role": model.GuildRoleLeader,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyInGuild
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("guild created",
		zap.Int64("guild_id", guild.ID),
		zap.String("name", guild.Name),
		zap.Int64("created_by", creatorID))
	svc.emit(ctx, events.GuildCreated, events.GuildChange{
		GuildID:   guild.ID,
		GuildName: guild.Name,
		ProfileID: creatorID,
	})
	return guild, nil
}

// JoinGuild affiliates a profile with an existing guild as a Member.
func (svc *Service) JoinGuild(ctx context.Context, profileID, guildID int64) error {
	if profileID == 0 {
		return ErrNotAuthenticated
	}
	var guildName string
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guild model.Guild
		if err := tx.First(&guild, guildID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		res := tx.Model(&model.Profile{}).
			Where("id = ? AND guild_id IS NULL", profileID).
			Updates(map[string]interface{}{
				"guild_id":   guildID,
				"guild_role": model.GuildRoleMember,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the profile does not exist or it is already
			// affiliated; tell them apart with one more read.
			var p model.Profile
			if err := tx.First(&p, profileID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			return ErrAlreadyInGuild
		}
		guildName = guild.Name
		return nil
	})
	if err != nil {
		return err
	}
	svc.emit(ctx, events.GuildJoined, events.GuildChange{
		GuildID:   guildID,
		GuildName: guildName,
		ProfileID: profileID,
	})
	return nil
}

// LeaveGuild clears a profile's affiliation. A Leader may leave like any
// other member; the guild stays up and leadership is not reassigned.
func (svc *Service) LeaveGuild(ctx context.Context, profileID int64) error {
	if profileID == 0 {
		return ErrNotAuthenticated
	}
	var before model.Profile
	if svc.hub != nil {
		// Best-effort read of the guild being left, for the event payload.
		_ = svc.db.WithContext(ctx).First(&before, profileID).Error
	}
	res := svc.db.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ? AND guild_id IS NOT NULL", profileID).
		Updates(map[string]interface{}{
			"guild_id":   nil,
			"guild_role": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var p model.Profile
		if err := svc.db.WithContext(ctx).First(&p, profileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return ErrNotInGuild
	}
	if before.GuildID != nil {
		svc.emit(ctx, events.GuildLeft, events.GuildChange{
			GuildID:   *before.GuildID,
			ProfileID: profileID,
		})
	}
	return nil
}

// guildUpdatable lists the guild columns an edit may touch.
var guildUpdatable = map[string]bool{
	"name":        true,
	"description": true,
	"avatar_url":  true,
	"level":       true,
}

// UpdateGuild applies a partial edit to a guild. Only the creator may edit,
// and created_by itself can never change.
func (svc *Service) UpdateGuild(ctx context.Context, actorID, guildID int64, fields map[string]interface{}) (*model.Guild, error) {
	if actorID == 0 {
		return nil, ErrNotAuthenticated
	}
	for k := range fields {
		if !guildUpdatable[k] {
			return nil, fmt.Errorf("%w: field %q is not editable", ErrValidation, k)
		}
	}
	if raw, ok := fields["name"]; ok {
		name, _ := raw.(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: guild name must not be empty", ErrValidation)
		}
		fields["name"] = name
	}

	var guild model.Guild
	if err := svc.db.WithContext(ctx).First(&guild, guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if guild.CreatedBy != actorID {
		return nil, ErrNotAuthorized
	}
	if len(fields) == 0 {
		return &guild, nil
	}
	if err := svc.db.WithContext(ctx).Model(&guild).Updates(fields).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &guild, nil
}

// profileUpdatable lists the profile columns a self-edit may touch.
// Membership columns, currency and progression are all managed elsewhere
// and are rejected here rather than silently dropped.
var profileUpdatable = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"bio":        true,
	"avatar_url": true,
	"class":      true,
	"status":     true,
	"gender":     true,
}

// UpdateOwnProfile applies a partial self-edit to the actor's profile.
func (svc *Service) UpdateOwnProfile(ctx context.Context, actorID, profileID int64, fields map[string]interface{}) (*model.Profile, error) {
	if actorID == 0 {
		return nil, ErrNotAuthenticated
	}
	if actorID != profileID {
		return nil, ErrNotAuthorized
	}
	for k := range fields {
		if !profileUpdatable[k] {
			return nil, fmt.Errorf("%w: field %q is not editable", ErrValidation, k)
		}
	}

	var profile model.Profile
	if err := svc.db.WithContext(ctx).First(&profile, profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(fields) > 0 {
		if err := svc.db.WithContext(ctx).Model(&profile).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return &profile, nil
}

// GetProfile loads one profile by id.
func (svc *Service) GetProfile(ctx context.Context, profileID int64) (*model.Profile, error) {
	var p model.Profile
	if err := svc.db.WithContext(ctx).First(&p, profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetGuild loads one guild with its live member count.
func (svc *Service) GetGuild(ctx context.Context, guildID int64) (*GuildSummary, error) {
	var g model.Guild
	if err := svc.db.WithContext(ctx).First(&g, guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	count, err := svc.MemberCount(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return &GuildSummary{Guild: g, MemberCount: count}, nil
}

// ListGuilds returns all guilds with live member counts, newest first.
func (svc *Service) ListGuilds(ctx context.Context) ([]GuildSummary, error) {
	var guilds []model.Guild
	if err := svc.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&guilds).Error; err != nil {
		return nil, err
	}

	type row struct {
		GuildID int64
		N       int64
	}
	var rows []row
	if err := svc.db.WithContext(ctx).Model(&model.Profile{}).
		Select("guild_id, COUNT(*) AS n").
		Where("guild_id IS NOT NULL").
		Group("guild_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.GuildID] = r.N
	}

	out := make([]GuildSummary, 0, len(guilds))
	for _, g := range guilds {
		out = append(out, GuildSummary{Guild: g, MemberCount: counts[g.ID]})
	}
	return out, nil
}

// GuildMembers returns the current members of a guild.
func (svc *Service) GuildMembers(ctx context.Context, guildID int64) ([]model.Profile, error) {
	var g model.Guild
	if err := svc.db.WithContext(ctx).First(&g, guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var members []model.Profile
	if err := svc.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at ASC, id ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// MemberCount counts a guild's current members from the profiles table.
// The count is never stored on the guild row, so it cannot drift.
func (svc *Service) MemberCount(ctx context.Context, guildID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Profile{}).
		Where("guild_id = ?", guildID).
		Count(&n).Error
	return n, err
}

// IsLeader reports whether the profile leads the guild. Leadership is
// derived from Guild.CreatedBy, not from the stored role string.
func IsLeader(g *model.Guild, profileID int64) bool {
	return g != nil && g.CreatedBy == profileID
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
