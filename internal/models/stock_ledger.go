package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerReason string

const (
	ReasonSale          LedgerReason = "SALE"
	ReasonRefund        LedgerReason = "REFUND"
	ReasonManual        LedgerReason = "MANUAL"
	ReasonPhysicalCount LedgerReason = "PHYSICAL_COUNT"
	ReasonRecon         LedgerReason = "RECON"
)

func (r LedgerReason) Valid() bool {
	switch r {
	case ReasonSale, ReasonRefund, ReasonManual, ReasonPhysicalCount, ReasonRecon:
		return true
	}
	return false
}

// StockLedger is append-only. (square_event_id, item_id, reason) is unique so a
// redelivered Square event can never write the same delta twice; rows without
// an event id (MANUAL, RECON) never collide because NULLs are distinct.
type StockLedger struct {
	ID              uint            `gorm:"primaryKey"`
	ItemID          uint            `gorm:"not null;uniqueIndex:ux_ledger_event_item_reason,priority:2;index:idx_ledger_item_occurred,priority:1"`
	Item            InventoryItem   `gorm:"foreignKey:ItemID"`
	Delta           decimal.Decimal `gorm:"type:decimal(18,3);not null"`
	Reason          LedgerReason    `gorm:"size:20;not null;uniqueIndex:ux_ledger_event_item_reason,priority:3;index"`
	SquareEventID   *string         `gorm:"size:100;uniqueIndex:ux_ledger_event_item_reason,priority:1"`
	SquarePaymentID *string         `gorm:"size:100"`
	SquareRefundID  *string         `gorm:"size:100"`
	SquareOrderID   *string         `gorm:"size:100;index"`
	OccurredAt      time.Time       `gorm:"not null;index:idx_ledger_item_occurred,priority:2"`
	CreatedAt       time.Time
	Note            *string `gorm:"size:255"`
}
