package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/game/shop"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/gin-gonic/gin"
)

// ShopHandler handles shop and inventory REST endpoints.
type ShopHandler struct {
	shop    *shop.Service
	auditor *audit.Service
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(shopSvc *shop.Service, auditor *audit.Service) *ShopHandler {
	return &ShopHandler{shop: shopSvc, auditor: auditor}
}

// shopItemView decorates a catalog row with its display icon.
type shopItemView struct {
	model.ShopItem
	Icon string `json:"icon"`
}

// ListItems handles GET /api/shop/items.
func (h *ShopHandler) ListItems(c *gin.Context) {
	items, err := h.shop.ListItems(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	views := make([]shopItemView, 0, len(items))
	for _, item := range items {
		views = append(views, shopItemView{ShopItem: item, Icon: model.ItemIcon(item.Type)})
	}
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}

// Buy handles POST /api/shop/items/:id/buy.
func (h *ShopHandler) Buy(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	actorID := mw.GetProfileID(c)
	owned, err := h.shop.Buy(c.Request.Context(), actorID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, shop.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		case errors.Is(err, shop.ErrInsufficientGold):
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient gold"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	h.auditor.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		ProfileID: &actorID,
		Action:    audit.ActionShopBuy,
		Request:   gin.H{"item_id": itemID},
		Response:  gin.H{"quantity": owned.Quantity},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, owned)
}

// inventoryView decorates an owned stack with its display icon.
type inventoryView struct {
	model.InventoryItem
	Icon string `json:"icon"`
}

// Inventory handles GET /api/inventory. Only your own bag is visible.
func (h *ShopHandler) Inventory(c *gin.Context) {
	actorID := mw.GetProfileID(c)
	items, err := h.shop.Inventory(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	views := make([]inventoryView, 0, len(items))
	for _, item := range items {
		views = append(views, inventoryView{InventoryItem: item, Icon: model.ItemIcon(item.Type)})
	}
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}
