package catalog

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type VariationResponse struct {
	VariationID   string `json:"variation_id"`
	ItemName      string `json:"item_name"`
	VariationName string `json:"variation_name"`
	SKU           string `json:"sku"`
	SyncedAt      string `json:"synced_at"`
}

// POST /api/admin/catalog/sync
func SyncHandler(s *Syncer, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := s.Sync(c.UserContext())
		if err != nil {
			log.Error("catalog sync failed", zap.Error(err))
			return fiber.NewError(fiber.StatusBadGateway, "catalog sync failed")
		}
		return c.JSON(fiber.Map{"synced": n})
	}
}

// GET /api/admin/catalog?q=burger
func ListHandler(s *Syncer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := s.List(c.UserContext(), c.Query("q"))
		if err != nil {
			return err
		}

		resp := make([]VariationResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, VariationResponse{
				VariationID:   r.VariationID,
				ItemName:      r.ItemName,
				VariationName: r.VariationName,
				SKU:           r.SKU,
				SyncedAt:      r.SyncedAt.UTC().Format(time.RFC3339),
			})
		}
		return c.JSON(resp)
	}
}
