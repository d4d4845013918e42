package achievement

import (
	"context"

	"github.com/emberveil/companion-server/model"
	"gorm.io/gorm"
)

// Achievement is one earnable badge. Definitions are static; whether a
// profile has earned one is evaluated live from its current stats.
type Achievement struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Earned      bool   `json:"earned"`
}

// stats is everything the rules below look at.
type stats struct {
	profile         *model.Profile
	questsCompleted int64
	itemsOwned      int64
	messagesSent    int64
}

type definition struct {
	key         string
	title       string
	description string
	icon        string
	earned      func(s stats) bool
}

var definitions = []definition{
	{"first_steps", "First Steps", "Reach level 2.", "footprints",
		func(s stats) bool { return s.profile.Level >= 2 }},
	{"seasoned", "Seasoned Adventurer", "Reach level 5.", "medal",
		func(s stats) bool { return s.profile.Level >= 5 }},
	{"legend", "Living Legend", "Reach level 10.", "crown",
		func(s stats) bool { return s.profile.Level >= 10 }},
	{"guilded", "Guilded", "Belong to a guild.", "flag",
		func(s stats) bool { return s.profile.Affiliated() }},
	{"founder", "Founder", "Create a guild of your own.", "castle",
		func(s stats) bool {
			return s.profile.Affiliated() && s.profile.GuildRole != nil &&
				*s.profile.GuildRole == model.GuildRoleLeader
		}},
	{"quest_taker", "Quest Taker", "Complete your first quest.", "scroll",
		func(s stats) bool { return s.questsCompleted >= 1 }},
	{"quest_master", "Quest Master", "Complete five quests.", "scrolls",
		func(s stats) bool { return s.questsCompleted >= 5 }},
	{"collector", "Collector", "Own three different items.", "backpack",
		func(s stats) bool { return s.itemsOwned >= 3 }},
	{"wealthy", "Dragon's Hoard", "Hold 500 gold at once.", "coins",
		func(s stats) bool { return s.profile.Gold >= 500 }},
	{"chatterbox", "Chatterbox", "Send ten chat messages.", "megaphone",
		func(s stats) bool { return s.messagesSent >= 10 }},
}

// statusColors maps a profile's status string to the badge color the
// client renders next to the name. Unknown statuses fall back to gray.
var statusColors = map[string]string{
	"online":  "green",
	"away":    "yellow",
	"busy":    "red",
	"offline": "gray",
}

// StatusColor returns the badge color for a status string.
func StatusColor(status string) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return "gray"
}

// Service evaluates achievements for profiles.
type Service struct {
	db *gorm.DB
}

// NewService creates an achievement Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ForProfile returns every achievement with its earned flag for one
// profile. Nothing is stored; badges appear and disappear with the stats
// that back them.
func (svc *Service) ForProfile(ctx context.Context, p *model.Profile) ([]Achievement, error) {
	s := stats{profile: p}
	if err := svc.db.WithContext(ctx).Model(&model.QuestProgress{}).
		Where("profile_id = ? AND status = ?", p.ID, model.QuestStatusCompleted).
		Count(&s.questsCompleted).Error; err != nil {
		return nil, err
	}
	if err := svc.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("profile_id = ?", p.ID).
		Count(&s.itemsOwned).Error; err != nil {
		return nil, err
	}
	if err := svc.db.WithContext(ctx).Model(&model.GuildMessage{}).
		Where("profile_id = ?", p.ID).
		Count(&s.messagesSent).Error; err != nil {
		return nil, err
	}

	out := make([]Achievement, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, Achievement{
			Key:         def.key,
			Title:       def.title,
			Description: def.description,
			Icon:        def.icon,
			Earned:      def.earned(s),
		})
	}
	return out, nil
}
