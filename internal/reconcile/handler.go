package reconcile

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/audit"
	"grill-backend/internal/models"
)

const maxWindow = 31 * 24 * time.Hour

type TriggerRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Date  string `json:"date"`
}

// Window resolves the request to a UTC range. An empty request means
// yesterday.
func (r TriggerRequest) Window(now time.Time) (time.Time, time.Time, error) {
	switch {
	case r.Date != "":
		day, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		return day, DayEnd(day), nil

	case r.Start != "" || r.End != "":
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "start must be RFC3339")
		}
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "end must be RFC3339")
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "end must be after start")
		}
		if end.Sub(start) > maxWindow {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "window cannot exceed 31 days")
		}
		return start.UTC(), end.UTC(), nil
	}

	start, end := PreviousDay(now)
	return start, end, nil
}

// POST /api/admin/reconcile
func TriggerHandler(db *gorm.DB, svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TriggerRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}

		start, end, err := body.Window(time.Now())
		if err != nil {
			return err
		}

		report, err := svc.ReconcileRange(c.UserContext(), start, end)
		if err != nil {
			log.Error("manual reconciliation failed", zap.Error(err))
			return fiber.NewError(fiber.StatusBadGateway, "reconciliation failed: "+err.Error())
		}

		if err := audit.WriteLog(db.WithContext(c.UserContext()), audit.LogOptions{
			Actor:       audit.ActorFromCtx(c),
			EntityType:  "reconciliation",
			Action:      models.AuditActionReconcile,
			Description: "Manual reconciliation " + report.StartAt.Format(time.RFC3339) + " to " + report.EndAt.Format(time.RFC3339),
			After:       report,
		}); err != nil {
			log.Error("audit log write failed", zap.Error(err))
		}

		return c.JSON(report)
	}
}
