package webhook

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grill-backend/internal/models"
)

const maxErrorLength = 1000

// EventStore is the dedup table for Square webhook deliveries.
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// Begin records the event as RECEIVED if it is new and returns its current
// status. Concurrent callers for the same id all see the same row.
func (s *EventStore) Begin(ctx context.Context, eventID, eventType string) (models.WebhookStatus, error) {
	db := s.db.WithContext(ctx)

	ev := models.WebhookEvent{EventID: eventID, Type: eventType, Status: models.WebhookReceived}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&ev).Error
	if err != nil {
		return "", fmt.Errorf("record webhook event %s: %w", eventID, err)
	}

	var current models.WebhookEvent
	if err := db.Where("event_id = ?", eventID).First(&current).Error; err != nil {
		return "", fmt.Errorf("load webhook event %s: %w", eventID, err)
	}
	return current.Status, nil
}

func (s *EventStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.transition(ctx, eventID, models.WebhookProcessed, nil)
}

func (s *EventStore) MarkSkipped(ctx context.Context, eventID string) error {
	return s.transition(ctx, eventID, models.WebhookSkipped, nil)
}

func (s *EventStore) MarkError(ctx context.Context, eventID, msg string) error {
	msg = truncateUTF8(msg, maxErrorLength)
	return s.transition(ctx, eventID, models.WebhookError, &msg)
}

func (s *EventStore) Get(ctx context.Context, eventID string) (models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&ev).Error
	return ev, err
}

// transition only moves events out of RECEIVED or ERROR; terminal rows are
// never rewritten.
func (s *EventStore) transition(ctx context.Context, eventID string, status models.WebhookStatus, errMsg *string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status IN ?", eventID,
			[]models.WebhookStatus{models.WebhookReceived, models.WebhookError}).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": now,
			"error":        errMsg,
		}).Error
	if err != nil {
		return fmt.Errorf("mark webhook event %s %s: %w", eventID, status, err)
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
