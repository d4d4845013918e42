package ranking

import (
	"context"
	"sort"
	"strconv"

	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// levelBoardKey is the sorted set holding the player leaderboard.
// Members are profile ids; scores pack level and carried XP so ties on
// level order by progress within the level.
const levelBoardKey = "ranking:level"

func packScore(level int, xp int64) float64 {
	return float64(level)*1_000_000 + float64(xp)
}

// PlayerEntry is one row of the player leaderboard.
type PlayerEntry struct {
	Rank      int    `json:"rank"`
	ProfileID int64  `json:"profile_id"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	AvatarURL string `json:"avatar_url"`
	Level     int    `json:"level"`
	CurrentXP int64  `json:"current_xp"`
}

// GuildEntry is one row of the guild leaderboard.
type GuildEntry struct {
	Rank        int    `json:"rank"`
	GuildID     int64  `json:"guild_id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Level       int    `json:"level"`
	MemberCount int64  `json:"member_count"`
}

// Service serves leaderboards. Player ranking reads the cached sorted set
// and falls back to the database when the set is cold; guild ranking is
// always computed live from member counts.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	top    int
	logger *zap.Logger
}

// NewService creates a ranking Service. top caps the leaderboard length.
func NewService(db *gorm.DB, c cache.Cache, top int, logger *zap.Logger) *Service {
	if top <= 0 {
		top = 100
	}
	return &Service{db: db, cache: c, top: top, logger: logger}
}

// Refresh rebuilds the player sorted set from the database. The scheduler
// calls this periodically; admins can trigger it on demand.
func (svc *Service) Refresh(ctx context.Context) error {
	var profiles []model.Profile
	if err := svc.db.WithContext(ctx).
		Where("banned = false").
		Find(&profiles).Error; err != nil {
		return err
	}
	for _, p := range profiles {
		if err := svc.cache.ZAdd(ctx, levelBoardKey, packScore(p.Level, p.CurrentXP),
			strconv.FormatInt(p.ID, 10)); err != nil {
			return err
		}
	}
	svc.logger.Debug("player ranking refreshed", zap.Int("profiles", len(profiles)))
	return nil
}

// Touch updates one profile's leaderboard score, keeping the cached board
// warm between full refreshes.
func (svc *Service) Touch(ctx context.Context, p *model.Profile) {
	if err := svc.cache.ZAdd(ctx, levelBoardKey, packScore(p.Level, p.CurrentXP),
		strconv.FormatInt(p.ID, 10)); err != nil {
		svc.logger.Warn("ranking touch failed", zap.Int64("profile_id", p.ID), zap.Error(err))
	}
}

// TopPlayers returns the player leaderboard, highest level first.
func (svc *Service) TopPlayers(ctx context.Context) ([]PlayerEntry, error) {
	ids, err := svc.cache.ZRevRange(ctx, levelBoardKey, 0, int64(svc.top)-1)
	if err == nil && len(ids) > 0 {
		if entries, ok := svc.playersFromIDs(ctx, ids); ok {
			return entries, nil
		}
	}
	return svc.topPlayersFromDB(ctx)
}

func (svc *Service) playersFromIDs(ctx context.Context, ids []string) ([]PlayerEntry, bool) {
	numeric := make([]int64, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		numeric = append(numeric, id)
	}
	var profiles []model.Profile
	if err := svc.db.WithContext(ctx).
		Where("id IN ? AND banned = false", numeric).
		Find(&profiles).Error; err != nil {
		return nil, false
	}
	byID := make(map[int64]*model.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}

	entries := make([]PlayerEntry, 0, len(numeric))
	for _, id := range numeric {
		p, ok := byID[id]
		if !ok {
			continue // banned or deleted since the set was built
		}
		entries = append(entries, PlayerEntry{
			Rank:      len(entries) + 1,
			ProfileID: p.ID,
			Name:      p.DisplayName(),
			Class:     p.Class,
			AvatarURL: p.AvatarURL,
			Level:     p.Level,
			CurrentXP: p.CurrentXP,
		})
	}
	return entries, true
}

func (svc *Service) topPlayersFromDB(ctx context.Context) ([]PlayerEntry, error) {
	var profiles []model.Profile
	if err := svc.db.WithContext(ctx).
		Where("banned = false").
		Order("level DESC, current_xp DESC, id ASC").
		Limit(svc.top).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	entries := make([]PlayerEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, PlayerEntry{
			Rank:      len(entries) + 1,
			ProfileID: p.ID,
			Name:      p.DisplayName(),
			Class:     p.Class,
			AvatarURL: p.AvatarURL,
			Level:     p.Level,
			CurrentXP: p.CurrentXP,
		})
	}
	return entries, nil
}

// TopGuilds ranks guilds by live member count, then guild level. Counts
// come straight from the profiles table, never from a stored column.
func (svc *Service) TopGuilds(ctx context.Context) ([]GuildEntry, error) {
	var guilds []model.Guild
	if err := svc.db.WithContext(ctx).Find(&guilds).Error; err != nil {
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

	entries := make([]GuildEntry, 0, len(guilds))
	for _, g := range guilds {
		entries = append(entries, GuildEntry{
			GuildID:     g.ID,
			Name:        g.Name,
			AvatarURL:   g.AvatarURL,
			Level:       g.Level,
			MemberCount: counts[g.ID],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.MemberCount != b.MemberCount {
			return a.MemberCount > b.MemberCount
		}
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		return a.GuildID < b.GuildID
	})
	if len(entries) > svc.top {
		entries = entries[:svc.top]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
