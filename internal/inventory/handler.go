package inventory

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/audit"
	"grill-backend/internal/models"
)

type CreateItemRequest struct {
	Name              string              `json:"name"`
	Type              models.ItemType     `json:"type"`
	UOM               string              `json:"uom"`
	Decimals          int32               `json:"decimals"`
	LowStockThreshold decimal.NullDecimal `json:"low_stock_threshold"`
	InitialOnHand     decimal.NullDecimal `json:"initial_on_hand"`
}

// UpdateItemRequest: absent fields are left alone. low_stock_threshold may be
// sent as null to clear it.
type UpdateItemRequest struct {
	Name              *string          `json:"name"`
	Type              *models.ItemType `json:"type"`
	UOM               *string          `json:"uom"`
	Decimals          *int32           `json:"decimals"`
	LowStockThreshold json.RawMessage  `json:"low_stock_threshold"`
	Active            *bool            `json:"active"`
}

type AdjustRequest struct {
	Delta  decimal.Decimal     `json:"delta"`
	Reason models.LedgerReason `json:"reason"`
	Note   string              `json:"note"`
}

type Handler struct {
	db     *gorm.DB
	items  *ItemStore
	ledger *LedgerStore
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, items *ItemStore, ledger *LedgerStore, log *zap.Logger) *Handler {
	return &Handler{db: db, items: items, ledger: ledger, logger: log}
}

// GET /api/admin/items
func (h *Handler) ListItems() fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := h.items.List(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}

// GET /api/admin/low-stock
func (h *Handler) LowStock() fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := h.items.LowStock(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}

// POST /api/admin/items
func (h *Handler) CreateItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Type = models.ItemType(strings.ToUpper(string(body.Type)))

		item, err := h.items.Create(c.UserContext(), NewItem{
			Name:              body.Name,
			Type:              body.Type,
			UOM:               body.UOM,
			Decimals:          body.Decimals,
			LowStockThreshold: body.LowStockThreshold,
			InitialOnHand:     body.InitialOnHand,
		})
		if err != nil {
			return httpError(err)
		}

		h.writeAudit(c, audit.LogOptions{
			EntityType:  "inventory_item",
			EntityID:    item.ID,
			Action:      models.AuditActionCreate,
			Description: "Inventory item created: " + item.Name,
			After:       item,
		})

		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// PATCH /api/admin/items/:id
func (h *Handler) UpdateItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body UpdateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		upd := ItemUpdate{
			Name:     body.Name,
			UOM:      body.UOM,
			Decimals: body.Decimals,
			Active:   body.Active,
		}
		if body.Type != nil {
			t := models.ItemType(strings.ToUpper(string(*body.Type)))
			upd.Type = &t
		}
		if len(body.LowStockThreshold) > 0 {
			var threshold decimal.NullDecimal
			if err := json.Unmarshal(body.LowStockThreshold, &threshold); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "low_stock_threshold must be a number or null")
			}
			upd.LowStockThreshold = &threshold
		}

		before, after, err := h.items.Update(c.UserContext(), id, upd)
		if err != nil {
			return httpError(err)
		}

		h.writeAudit(c, audit.LogOptions{
			EntityType:  "inventory_item",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Inventory item updated: " + after.Name,
			Before:      before,
			After:       after,
		})

		return c.JSON(after)
	}
}

// POST /api/admin/items/:id/adjust
func (h *Handler) AdjustItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var body AdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		entry, err := h.ledger.AdjustManual(c.UserContext(), id, body.Delta, body.Reason, body.Note)
		if err != nil {
			return httpError(err)
		}

		item, err := h.items.Get(c.UserContext(), id)
		if err != nil {
			return err
		}

		h.writeAudit(c, audit.LogOptions{
			EntityType:  "inventory_item",
			EntityID:    id,
			Action:      models.AuditActionAdjust,
			Description: string(entry.Reason) + " adjustment " + entry.Delta.String() + " " + item.UOM + " on " + item.Name,
			After:       fiber.Map{"ledger_id": entry.ID, "delta": entry.Delta, "on_hand": item.OnHand},
		})

		return c.JSON(fiber.Map{
			"item":      item,
			"ledger_id": entry.ID,
		})
	}
}

// GET /api/admin/items/:id/ledger?limit=20
func (h *Handler) ItemLedger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		if _, err := h.items.Get(c.UserContext(), id); err != nil {
			return httpError(err)
		}

		entries, err := h.ledger.RecentForItem(c.UserContext(), id, c.QueryInt("limit", 20))
		if err != nil {
			return err
		}
		return c.JSON(entries)
	}
}

// GET /api/admin/ledger?item_id=&reason=&start=&end=&limit=&offset=
func (h *Handler) ListLedger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := LedgerFilter{
			Limit:  c.QueryInt("limit", defaultLedgerLimit),
			Offset: c.QueryInt("offset", 0),
		}

		if v := c.Query("item_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil || id == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid item_id")
			}
			itemID := uint(id)
			f.ItemID = &itemID
		}
		if v := c.Query("reason"); v != "" {
			f.Reason = models.LedgerReason(strings.ToUpper(v))
			if !f.Reason.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "invalid reason")
			}
		}

		var err error
		if f.Start, err = parseTimeQuery(c, "start", false); err != nil {
			return err
		}
		if f.End, err = parseTimeQuery(c, "end", true); err != nil {
			return err
		}

		entries, err := h.ledger.ListLedger(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"entries": entries,
			"limit":   f.normalized().Limit,
			"offset":  f.normalized().Offset,
		})
	}
}

func (h *Handler) writeAudit(c *fiber.Ctx, opts audit.LogOptions) {
	opts.Actor = audit.ActorFromCtx(c)
	if err := audit.WriteLog(h.db.WithContext(c.UserContext()), opts); err != nil {
		h.logger.Error("audit log write failed", zap.Error(err))
	}
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// parseTimeQuery accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseTimeQuery(c *fiber.Ctx, key string, endOfDay bool) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+" (use RFC3339 or YYYY-MM-DD)")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAdjustment), errors.Is(err, ErrInvalidItem):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fiber.NewError(fiber.StatusConflict, "an item with this name already exists")
	}
	return err
}
