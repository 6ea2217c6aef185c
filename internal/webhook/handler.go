package webhook

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"grill-backend/internal/square"
)

// SquareHandler serves POST /webhooks/square. The raw body is verified as
// received, before any JSON decoding.
func SquareHandler(p *Processor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := append([]byte(nil), c.Body()...)

		res, err := p.Handle(c.UserContext(), body, c.Get(square.SignatureHeader))
		switch {
		case errors.Is(err, ErrInvalidSignature):
			return fiber.NewError(fiber.StatusBadRequest, "Invalid webhook signature")
		case errors.Is(err, square.ErrMalformedPayload):
			return fiber.NewError(fiber.StatusBadRequest, "Invalid webhook payload")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to process webhook")
		}

		resp := fiber.Map{"ok": true}
		if res.Duplicate {
			resp["duplicate"] = true
		}
		if res.Skipped {
			resp["skipped"] = true
		}
		return c.JSON(resp)
	}
}
