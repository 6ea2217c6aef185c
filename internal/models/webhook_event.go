package models

import "time"

type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "RECEIVED"
	WebhookProcessed WebhookStatus = "PROCESSED"
	WebhookSkipped   WebhookStatus = "SKIPPED"
	WebhookError     WebhookStatus = "ERROR"
)

// Terminal statuses are never reprocessed; ERROR is retried on redelivery.
func (s WebhookStatus) Terminal() bool {
	return s == WebhookProcessed || s == WebhookSkipped
}

type WebhookEvent struct {
	ID          uint          `gorm:"primaryKey"`
	EventID     string        `gorm:"size:100;not null;uniqueIndex"`
	Type        string        `gorm:"size:64;not null"`
	Status      WebhookStatus `gorm:"size:20;not null;index"`
	ProcessedAt *time.Time
	Error       *string `gorm:"size:1000"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
