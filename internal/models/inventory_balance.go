package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryBalance: running sum of the item's ledger deltas.
// Only written through additive upserts, never overwritten.
type InventoryBalance struct {
	ItemID    uint            `gorm:"primaryKey;autoIncrement:false"`
	OnHand    decimal.Decimal `gorm:"type:decimal(18,3);not null;default:0"`
	UpdatedAt time.Time
}
