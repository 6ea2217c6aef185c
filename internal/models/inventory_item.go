package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemTypeMaterial ItemType = "MATERIAL"
	ItemTypeUtensil  ItemType = "UTENSIL"
	ItemTypeOther    ItemType = "OTHER"
)

// MaxItemDecimals: ledger deltas are never stored with more than 3 decimals.
const MaxItemDecimals = 3

type InventoryItem struct {
	ID                uint                `gorm:"primaryKey"`
	Name              string              `gorm:"size:120;not null;unique"`
	Type              ItemType            `gorm:"size:20;not null"`
	UOM               string              `gorm:"column:uom;size:32;not null"` // kg, l, pcs...
	Decimals          int32               `gorm:"not null;default:0"`
	LowStockThreshold decimal.NullDecimal `gorm:"type:decimal(18,3)"`
	Active            bool                `gorm:"not null;default:true"`
	Balance           *InventoryBalance   `gorm:"foreignKey:ItemID"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeMaterial, ItemTypeUtensil, ItemTypeOther:
		return true
	}
	return false
}

// Precision returns the item's decimal places capped at MaxItemDecimals.
func (i InventoryItem) Precision() int32 {
	if i.Decimals < 0 {
		return 0
	}
	if i.Decimals > MaxItemDecimals {
		return MaxItemDecimals
	}
	return i.Decimals
}
