package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashIncome is money counted from the till for one day.
type CashIncome struct {
	ID        uint            `gorm:"primaryKey"`
	Date      time.Time       `gorm:"type:date;index;not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes     *string         `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ElectronicIncome is a card or delivery-platform payout.
type ElectronicIncome struct {
	ID        uint            `gorm:"primaryKey"`
	Date      time.Time       `gorm:"type:date;index;not null"`
	Channel   string          `gorm:"size:50;not null"` // square, doordash, ubereats...
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes     *string         `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
