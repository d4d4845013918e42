package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
)

// ItemDef is one shop catalog entry in items.json.
type ItemDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	PriceGold   int64  `json:"price_gold"`
	ImageURL    string `json:"image_url"`
}

// QuestDef is one quest board entry in quests.json.
type QuestDef struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	XPReward    int64  `json:"xp_reward"`
	GoldReward  int64  `json:"gold_reward"`
}

var knownItemTypes = map[string]bool{
	model.ItemTypeWeapon:     true,
	model.ItemTypeArmor:      true,
	model.ItemTypeConsumable: true,
	model.ItemTypeQuest:      true,
	model.ItemTypeMisc:       true,
}

// Loader reads game content definitions from a directory of JSON files.
// Missing files are not an error; the built-in defaults cover them.
type Loader struct {
	Dir    string
	Items  []model.ShopItem
	Quests []model.Quest

	logger *zap.Logger
}

// NewLoader creates a Loader for the given content directory.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{Dir: dir, logger: logger}
}

// Load reads every content file it can find under Dir. Entries that fail
// validation are skipped with a warning rather than failing the load.
func (l *Loader) Load() error {
	loaders := []func() error{
		l.loadItems,
		l.loadQuests,
	}
	for _, fn := range loaders {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) path(file string) string {
	return filepath.Join(l.Dir, file)
}

func (l *Loader) loadItems() error {
	defs, err := loadJSONArray[ItemDef](l.path("items.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" || d.PriceGold < 0 {
			l.logger.Warn("skipping invalid item definition", zap.String("name", d.Name))
			continue
		}
		typ := d.Type
		if !knownItemTypes[typ] {
			typ = model.ItemTypeMisc
		}
		l.Items = append(l.Items, model.ShopItem{
			Name:        name,
			Description: d.Description,
			Type:        typ,
			PriceGold:   d.PriceGold,
			ImageURL:    d.ImageURL,
		})
	}
	return nil
}

func (l *Loader) loadQuests() error {
	defs, err := loadJSONArray[QuestDef](l.path("quests.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, d := range defs {
		title := strings.TrimSpace(d.Title)
		if title == "" || d.XPReward < 0 || d.GoldReward < 0 {
			l.logger.Warn("skipping invalid quest definition", zap.String("title", d.Title))
			continue
		}
		l.Quests = append(l.Quests, model.Quest{
			Title:       title,
			Description: d.Description,
			XPReward:    d.XPReward,
			GoldReward:  d.GoldReward,
		})
	}
	return nil
}

func loadJSONArray[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	var arr []*T
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("content: parse %s: %w", path, err)
	}
	return arr, nil
}
