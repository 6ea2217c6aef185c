package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grill-backend/internal/metrics"
	"grill-backend/internal/models"
	"grill-backend/internal/recipe"
	"grill-backend/internal/square"
)

// Usage is the total quantity of one inventory item consumed by an order,
// already rounded to the item's precision.
type Usage struct {
	ItemID   uint
	ItemName string
	Decimals int32
	Quantity decimal.Decimal
}

// RoundQty rounds half away from zero to the given precision, capped at 3
// decimals.
func RoundQty(q decimal.Decimal, decimals int32) decimal.Decimal {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > models.MaxItemDecimals {
		decimals = models.MaxItemDecimals
	}
	return q.Round(decimals)
}

// ComputeUsage resolves every line item of order against its recipe
// components and returns the per-item totals plus the variation ids that had
// no mapping.
//
// A component with a modifier applies only when that modifier is on the line.
// A base component applies unless a component for the same item on the same
// variation names a modifier that is on the line; the override replaces the
// base amount instead of adding to it.
func ComputeUsage(order square.Order, components map[string][]recipe.Component) (map[uint]Usage, []string) {
	totals := make(map[uint]Usage)
	var unmapped []string
	seenUnmapped := make(map[string]bool)

	for _, li := range order.LineItems {
		variationID := li.CatalogObjectID
		if variationID == "" {
			continue
		}
		sold, err := decimal.NewFromString(li.Quantity)
		if err != nil || !sold.IsPositive() {
			continue
		}

		comps := components[variationID]
		if len(comps) == 0 {
			if !seenUnmapped[variationID] {
				seenUnmapped[variationID] = true
				unmapped = append(unmapped, variationID)
			}
			continue
		}

		applied := make(map[string]bool, len(li.Modifiers))
		for _, m := range li.Modifiers {
			if m.CatalogObjectID != "" {
				applied[m.CatalogObjectID] = true
			}
		}

		overridden := make(map[uint]bool)
		for _, c := range comps {
			if c.ModifierID != "" && applied[c.ModifierID] {
				overridden[c.InventoryItemID] = true
			}
		}

		for _, c := range comps {
			if c.ModifierID != "" {
				if !applied[c.ModifierID] {
					continue
				}
			} else if overridden[c.InventoryItemID] {
				continue
			}

			u := totals[c.InventoryItemID]
			u.ItemID = c.InventoryItemID
			u.ItemName = c.InventoryItemName
			u.Decimals = c.ItemDecimals
			u.Quantity = u.Quantity.Add(c.QtyPerSale.Mul(sold))
			totals[c.InventoryItemID] = u
		}
	}

	for id, u := range totals {
		u.Quantity = RoundQty(u.Quantity, u.Decimals)
		totals[id] = u
	}
	return totals, unmapped
}

// ComponentSource is the recipe lookup the calculator depends on.
type ComponentSource interface {
	ComponentsByVariationIDs(ctx context.Context, variationIDs []string) (map[string][]recipe.Component, error)
}

// Calculator wraps ComputeUsage with the bulk recipe lookup shared by the
// webhook processor and reconciliation.
type Calculator struct {
	recipes ComponentSource
	logger  *zap.Logger
}

func NewCalculator(recipes ComponentSource, log *zap.Logger) *Calculator {
	return &Calculator{recipes: recipes, logger: log}
}

func (c *Calculator) Compute(ctx context.Context, order square.Order) (map[uint]Usage, error) {
	ids := make([]string, 0, len(order.LineItems))
	seen := make(map[string]bool, len(order.LineItems))
	for _, li := range order.LineItems {
		if li.CatalogObjectID != "" && !seen[li.CatalogObjectID] {
			seen[li.CatalogObjectID] = true
			ids = append(ids, li.CatalogObjectID)
		}
	}

	comps, err := c.recipes.ComponentsByVariationIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve recipes for order %s: %w", order.ID, err)
	}

	usage, unmapped := ComputeUsage(order, comps)
	for _, v := range unmapped {
		metrics.UnmappedLineItems.Inc()
		c.logger.Warn("order line has no recipe mapping",
			zap.String("order_id", order.ID),
			zap.String("variation_id", v))
	}
	return usage, nil
}
