package models

import "time"

// CatalogVariation: local copy of Square catalog variations, used to pick
// variation ids when mapping recipes.
type CatalogVariation struct {
	VariationID   string `gorm:"primaryKey;size:64"`
	ItemName      string `gorm:"size:255"`
	VariationName string `gorm:"size:255"`
	SKU           string `gorm:"column:sku;size:100"`
	SyncedAt      time.Time
}
