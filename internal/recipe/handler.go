package recipe

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/audit"
	"grill-backend/internal/models"
)

type UpsertRecipeRequest struct {
	VariationID     string          `json:"variation_id"`
	InventoryItemID uint            `json:"inventory_item_id"`
	QtyPerSale      decimal.Decimal `json:"qty_per_sale"`
	ModifierID      string          `json:"modifier_id"`
	Remove          bool            `json:"remove"`
}

type Handler struct {
	db     *gorm.DB
	store  *Store
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, store *Store, log *zap.Logger) *Handler {
	return &Handler{db: db, store: store, logger: log}
}

// GET /api/admin/recipes/:variation
func (h *Handler) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		variationID := strings.TrimSpace(c.Params("variation"))
		if variationID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "variation id is required")
		}

		comps, err := h.store.ForVariation(c.UserContext(), variationID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"variation_id": variationID,
			"components":   comps,
		})
	}
}

// POST /api/admin/recipes
// {"variation_id":"...","inventory_item_id":1,"qty_per_sale":0.25,"modifier_id":"","remove":false}
func (h *Handler) Upsert() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpsertRecipeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Remove {
			removed, err := h.store.Delete(c.UserContext(), body.VariationID, body.InventoryItemID, body.ModifierID)
			if err != nil {
				return err
			}
			if !removed {
				return fiber.NewError(fiber.StatusNotFound, "recipe component not found")
			}
			h.writeAudit(c, audit.LogOptions{
				EntityType:  "recipe_component",
				EntityID:    body.InventoryItemID,
				Action:      models.AuditActionDelete,
				Description: "Recipe component removed from " + body.VariationID,
				Before:      body,
			})
			return c.JSON(fiber.Map{"removed": true})
		}

		comp, err := h.store.Upsert(c.UserContext(), UpsertInput{
			VariationID:     body.VariationID,
			InventoryItemID: body.InventoryItemID,
			QtyPerSale:      body.QtyPerSale,
			ModifierID:      body.ModifierID,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidComponent):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, ErrUnknownItem):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return err
		}

		h.writeAudit(c, audit.LogOptions{
			EntityType:  "recipe_component",
			EntityID:    comp.ID,
			Action:      models.AuditActionUpdate,
			Description: "Recipe component saved for " + comp.VariationID + ": " + comp.InventoryItemName,
			After:       comp,
		})

		return c.JSON(comp)
	}
}

func (h *Handler) writeAudit(c *fiber.Ctx, opts audit.LogOptions) {
	opts.Actor = audit.ActorFromCtx(c)
	if err := audit.WriteLog(h.db.WithContext(c.UserContext()), opts); err != nil {
		h.logger.Error("audit log write failed", zap.Error(err))
	}
}
