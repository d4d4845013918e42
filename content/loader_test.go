package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emberveil/companion-server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoad_MissingFilesAreFine(t *testing.T) {
	l := NewLoader(t.TempDir(), zap.NewNop())
	require.NoError(t, l.Load())
	assert.Empty(t, l.Items)
	assert.Empty(t, l.Quests)
}

func TestLoad_Items(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items.json", `[
		{"name": "Steel Dagger", "description": "Quick and quiet.", "type": "weapon", "price_gold": 35},
		{"name": "Feast Ration", "type": "consumable", "price_gold": 8, "image_url": "/img/ration.png"}
	]`)

	l := NewLoader(dir, zap.NewNop())
	require.NoError(t, l.Load())
	require.Len(t, l.Items, 2)
	assert.Equal(t, "Steel Dagger", l.Items[0].Name)
	assert.Equal(t, model.ItemTypeWeapon, l.Items[0].Type)
	assert.Equal(t, int64(35), l.Items[0].PriceGold)
	assert.Equal(t, "/img/ration.png", l.Items[1].ImageURL)
}

func TestLoad_SkipsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "items.json", `[
		{"name": "  ", "type": "weapon", "price_gold": 10},
		{"name": "Cursed Idol", "type": "weapon", "price_gold": -5},
		{"name": "Plain Rock", "type": "mineral", "price_gold": 1}
	]`)
	writeFile(t, dir, "quests.json", `[
		{"title": "", "xp_reward": 10},
		{"title": "Gold Rush", "xp_reward": 10, "gold_reward": -1},
		{"title": "Keeper", "xp_reward": 40, "gold_reward": 5}
	]`)

	l := NewLoader(dir, zap.NewNop())
	require.NoError(t, l.Load())

	// Unknown item types fall back to misc; blank or negative entries drop.
	require.Len(t, l.Items, 1)
	assert.Equal(t, "Plain Rock", l.Items[0].Name)
	assert.Equal(t, model.ItemTypeMisc, l.Items[0].Type)

	require.Len(t, l.Quests, 1)
	assert.Equal(t, "Keeper", l.Quests[0].Title)
}

func TestLoad_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quests.json", `{not json`)

	l := NewLoader(dir, zap.NewNop())
	assert.Error(t, l.Load())
}
