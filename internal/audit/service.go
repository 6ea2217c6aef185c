package audit

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"grill-backend/internal/auth"
	"grill-backend/internal/models"
)

// Actor identifies who triggered a change. UserID is nil for the scheduler
// and CLI.
type Actor struct {
	UserID   *uint
	UserName string
}

var System = Actor{UserName: "system"}

// ActorFromCtx reads the authenticated user placed in Locals by the JWT middleware.
func ActorFromCtx(c *fiber.Ctx) Actor {
	id, ok := c.Locals(auth.CtxUserIDKey).(uint)
	if !ok {
		return System
	}
	name, _ := c.Locals(auth.CtxUserNameKey).(string)
	return Actor{UserID: &id, UserName: name}
}

type LogOptions struct {
	Actor       Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(db *gorm.DB, opts LogOptions) error {
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.Actor.UserID,
		UserName:    opts.Actor.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
