package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipeComponent maps a Square catalog variation (optionally narrowed to one
// modifier) to the inventory it consumes per unit sold. ModifierID "" is the
// base rule.
type RecipeComponent struct {
	ID              uint            `gorm:"primaryKey"`
	VariationID     string          `gorm:"size:64;not null;uniqueIndex:ux_recipe_variation_item_modifier,priority:1"`
	InventoryItemID uint            `gorm:"not null;uniqueIndex:ux_recipe_variation_item_modifier,priority:2"`
	InventoryItem   InventoryItem   `gorm:"foreignKey:InventoryItemID"`
	QtyPerSale      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ModifierID      string          `gorm:"size:64;not null;default:'';uniqueIndex:ux_recipe_variation_item_modifier,priority:3"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
