package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID          uint            `gorm:"primaryKey"`
	Date        time.Time       `gorm:"type:date;index;not null"`
	PaymentType string          `gorm:"size:50;not null"` // cash, card, transfer...
	PaidTo      string          `gorm:"size:120;not null"`
	Description *string         `gorm:"size:255"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
