package model_test

import (
	"testing"
	"time"

	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Profile
	p := &model.Profile{Username: "test_user", PasswordHash: "hash", Class: "Mage"}
	require.NoError(t, db.Create(p).Error)
	assert.Greater(t, p.ID, int64(0))

	var found model.Profile
	require.NoError(t, db.First(&found, p.ID).Error)
	assert.Equal(t, "test_user", found.Username)
	assert.Equal(t, 1, found.Level)
	assert.Nil(t, found.GuildID)
	assert.Nil(t, found.GuildRole)

	// Guild
	guild := &model.Guild{Name: "TestGuild", CreatedBy: p.ID, Level: 1}
	require.NoError(t, db.Create(guild).Error)

	// GuildMessage
	msg := &model.GuildMessage{GuildID: guild.ID, ProfileID: p.ID, SenderName: "test_user", Content: "hello"}
	require.NoError(t, db.Create(msg).Error)

	// ShopItem + InventoryItem
	item := &model.ShopItem{Name: "Iron Sword", Type: model.ItemTypeWeapon, PriceGold: 50}
	require.NoError(t, db.Create(item).Error)
	inv := &model.InventoryItem{ProfileID: p.ID, ShopItemID: item.ID, Name: item.Name, Type: item.Type, Quantity: 1}
	require.NoError(t, db.Create(inv).Error)

	// Quest + QuestProgress
	quest := &model.Quest{Title: "First Steps", XPReward: 50, GoldReward: 10}
	require.NoError(t, db.Create(quest).Error)
	qp := &model.QuestProgress{ProfileID: p.ID, QuestID: quest.ID}
	require.NoError(t, db.Create(qp).Error)

	// AuditLog
	al := &model.AuditLog{TraceID: "trace-001", Action: "guild_create", CreatedAt: time.Now()}
	require.NoError(t, db.Create(al).Error)
}

func TestGuildName_Unique(t *testing.T) {
	db := testutil.SetupTestDB(t)

	require.NoError(t, db.Create(&model.Guild{Name: "Dragons", CreatedBy: 1}).Error)
	err := db.Create(&model.Guild{Name: "Dragons", CreatedBy: 2}).Error
	assert.Error(t, err)

	var count int64
	db.Model(&model.Guild{}).Where("name = ?", "Dragons").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestItemIcon_Lookup(t *testing.T) {
	assert.Equal(t, "sword", model.ItemIcon(model.ItemTypeWeapon))
	assert.Equal(t, "shield", model.ItemIcon(model.ItemTypeArmor))
	assert.Equal(t, "droplet", model.ItemIcon(model.ItemTypeConsumable))
	assert.Equal(t, "scroll", model.ItemIcon(model.ItemTypeQuest))
	assert.Equal(t, "gem", model.ItemIcon(model.ItemTypeMisc))
	assert.Equal(t, "backpack", model.ItemIcon("unknown"))
}

func TestProfileDisplayName(t *testing.T) {
	p := &model.Profile{Username: "alice42"}
	assert.Equal(t, "alice42", p.DisplayName())
	p.FirstName = "Alice"
	assert.Equal(t, "Alice", p.DisplayName())
	p.LastName = "Moura"
	assert.Equal(t, "Alice Moura", p.DisplayName())
}
