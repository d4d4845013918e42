package shop

import (
	"context"
	"errors"

	"github.com/emberveil/companion-server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Errors returned by purchase operations.
var (
	ErrItemNotFound     = errors.New("item not found")
	ErrInsufficientGold = errors.New("insufficient gold")
)

// Service sells shop items and manages per-profile inventories.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a shop Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// ListItems returns the full catalog.
func (svc *Service) ListItems(ctx context.Context) ([]model.ShopItem, error) {
	var items []model.ShopItem
	err := svc.db.WithContext(ctx).Order("price_gold ASC, id ASC").Find(&items).Error
	return items, err
}

// Buy purchases one unit of an item for the profile. The gold debit and
// the inventory credit happen in one transaction; a guarded update on the
// gold column keeps concurrent purchases from overspending. Repeat buys
// of the same item stack onto the existing inventory row.
func (svc *Service) Buy(ctx context.Context, profileID, itemID int64) (*model.InventoryItem, error) {
	var owned model.InventoryItem
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.ShopItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		res := tx.Model(&model.Profile{}).
			Where("id = ? AND gold >= ?", profileID, item.PriceGold).
			Update("gold", gorm.Expr("gold - ?", item.PriceGold))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientGold
		}

		err := tx.Where("profile_id = ? AND shop_item_id = ?", profileID, itemID).
			First(&owned).Error
		switch {
		case err == nil:
			owned.Quantity++
			return tx.Model(&owned).Update("quantity", owned.Quantity).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			owned = model.InventoryItem{
				ProfileID:  profileID,
				ShopItemID: itemID,
				Name:       item.Name,
				Type:       item.Type,
				Quantity:   1,
			}
			return tx.Create(&owned).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("item purchased",
		zap.Int64("profile_id", profileID),
		zap.Int64("item_id", itemID))
	return &owned, nil
}

// Inventory lists everything the profile owns, newest first.
func (svc *Service) Inventory(ctx context.Context, profileID int64) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := svc.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("updated_at DESC, id DESC").
		Find(&items).Error
	return items, err
}

// SeedItems inserts the given catalog if the shop table is empty.
func (svc *Service) SeedItems(ctx context.Context, items []model.ShopItem) error {
	if len(items) == 0 {
		return nil
	}
	var n int64
	if err := svc.db.WithContext(ctx).Model(&model.ShopItem{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return svc.db.WithContext(ctx).Create(&items).Error
}

// SeedCatalog inserts the built-in default catalog if the table is empty.
func (svc *Service) SeedCatalog(ctx context.Context) error {
	defaults := []model.ShopItem{
		{Name: "Iron Sword", Description: "A dependable blade for new adventurers.", Type: model.ItemTypeWeapon, PriceGold: 50},
		{Name: "Oak Shield", Description: "Blocks more than it looks like it should.", Type: model.ItemTypeArmor, PriceGold: 40},
		{Name: "Healing Potion", Description: "Restores a modest amount of vitality.", Type: model.ItemTypeConsumable, PriceGold: 15},
		{Name: "Mana Potion", Description: "Refills the well, one sip at a time.", Type: model.ItemTypeConsumable, PriceGold: 20},
		{Name: "Traveler's Map", Description: "Marks places you have not been yet.", Type: model.ItemTypeQuest, PriceGold: 30},
		{Name: "Lucky Charm", Description: "Probably does nothing. Probably.", Type: model.ItemTypeMisc, PriceGold: 75},
	}
	return svc.SeedItems(ctx, defaults)
}
