package model

import "time"

// ItemType distinguishes item categories for display and filtering.
type ItemType = string

const (
	ItemTypeWeapon     ItemType = "weapon"
	ItemTypeArmor      ItemType = "armor"
	ItemTypeConsumable ItemType = "consumable"
	ItemTypeQuest      ItemType = "quest"
	ItemTypeMisc       ItemType = "misc"
)

// itemIcons maps an item type to the icon name the client renders.
var itemIcons = map[ItemType]string{
	ItemTypeWeapon:     "sword",
	ItemTypeArmor:      "shield",
	ItemTypeConsumable: "droplet",
	ItemTypeQuest:      "scroll",
	ItemTypeMisc:       "gem",
}

// ItemIcon returns the icon name for an item type, falling back to a
// generic backpack icon for unknown types.
func ItemIcon(t ItemType) string {
	if icon, ok := itemIcons[t]; ok {
		return icon
	}
	return "backpack"
}

// ShopItem is one purchasable entry in the shop.
type ShopItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Type        string    `gorm:"size:16;not null" json:"type"`
	PriceGold   int64     `gorm:"not null" json:"price_gold"`
	ImageURL    string    `gorm:"size:255" json:"image_url"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// InventoryItem is a stack of items owned by a profile.
type InventoryItem struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID  int64     `gorm:"uniqueIndex:idx_inv_profile_item;not null" json:"profile_id"`
	ShopItemID int64     `gorm:"uniqueIndex:idx_inv_profile_item;not null" json:"shop_item_id"`
	Name       string    `gorm:"size:64;not null" json:"name"`
	Type       string    `gorm:"size:16;not null" json:"type"`
	Quantity   int       `gorm:"default:1" json:"quantity"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
