package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grill-backend/internal/models"
)

var (
	ErrInvalidComponent = errors.New("invalid recipe component")
	ErrUnknownItem      = errors.New("inventory item not found")
)

// Component is a recipe row joined with the inventory item it consumes.
type Component struct {
	ID                uint            `json:"id"`
	VariationID       string          `json:"variation_id"`
	InventoryItemID   uint            `json:"inventory_item_id"`
	InventoryItemName string          `json:"inventory_item_name"`
	ItemDecimals      int32           `json:"item_decimals"`
	UOM               string          `json:"uom"`
	QtyPerSale        decimal.Decimal `json:"qty_per_sale"`
	ModifierID        string          `json:"modifier_id"`
}

type UpsertInput struct {
	VariationID     string
	InventoryItemID uint
	QtyPerSale      decimal.Decimal
	ModifierID      string
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ComponentsByVariationIDs loads every component for the given variations in
// a single query, grouped by variation id.
func (s *Store) ComponentsByVariationIDs(ctx context.Context, variationIDs []string) (map[string][]Component, error) {
	out := make(map[string][]Component)
	if len(variationIDs) == 0 {
		return out, nil
	}

	var rows []models.RecipeComponent
	err := s.db.WithContext(ctx).
		Joins("InventoryItem").
		Where("recipe_components.variation_id IN ?", variationIDs).
		Order("recipe_components.id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load recipe components: %w", err)
	}

	for _, r := range rows {
		out[r.VariationID] = append(out[r.VariationID], toComponent(r))
	}
	return out, nil
}

func (s *Store) ForVariation(ctx context.Context, variationID string) ([]Component, error) {
	byVar, err := s.ComponentsByVariationIDs(ctx, []string{variationID})
	if err != nil {
		return nil, err
	}
	if byVar[variationID] == nil {
		return []Component{}, nil
	}
	return byVar[variationID], nil
}

// Upsert creates the (variation, item, modifier) rule or replaces its quantity.
func (s *Store) Upsert(ctx context.Context, in UpsertInput) (Component, error) {
	in.VariationID = strings.TrimSpace(in.VariationID)
	in.ModifierID = strings.TrimSpace(in.ModifierID)

	if in.VariationID == "" {
		return Component{}, fmt.Errorf("%w: variation_id is required", ErrInvalidComponent)
	}
	if in.InventoryItemID == 0 {
		return Component{}, fmt.Errorf("%w: inventory_item_id is required", ErrInvalidComponent)
	}
	if !in.QtyPerSale.IsPositive() {
		return Component{}, fmt.Errorf("%w: qty_per_sale must be positive", ErrInvalidComponent)
	}

	var result Component
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InventoryItem
		if err := tx.First(&item, in.InventoryItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownItem
			}
			return err
		}

		row := models.RecipeComponent{
			VariationID:     in.VariationID,
			InventoryItemID: in.InventoryItemID,
			QtyPerSale:      in.QtyPerSale,
			ModifierID:      in.ModifierID,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variation_id"}, {Name: "inventory_item_id"}, {Name: "modifier_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"qty_per_sale", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		var saved models.RecipeComponent
		err = tx.Joins("InventoryItem").
			Where("recipe_components.variation_id = ? AND recipe_components.inventory_item_id = ? AND recipe_components.modifier_id = ?",
				in.VariationID, in.InventoryItemID, in.ModifierID).
			First(&saved).Error
		if err != nil {
			return err
		}
		result = toComponent(saved)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownItem) {
			return Component{}, err
		}
		return Component{}, fmt.Errorf("upsert recipe component: %w", err)
	}
	return result, nil
}

// Delete removes one rule. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, variationID string, itemID uint, modifierID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("variation_id = ? AND inventory_item_id = ? AND modifier_id = ?",
			strings.TrimSpace(variationID), itemID, strings.TrimSpace(modifierID)).
		Delete(&models.RecipeComponent{})
	if res.Error != nil {
		return false, fmt.Errorf("delete recipe component: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func toComponent(r models.RecipeComponent) Component {
	return Component{
		ID:                r.ID,
		VariationID:       r.VariationID,
		InventoryItemID:   r.InventoryItemID,
		InventoryItemName: r.InventoryItem.Name,
		ItemDecimals:      r.InventoryItem.Precision(),
		UOM:               r.InventoryItem.UOM,
		QtyPerSale:        r.QtyPerSale,
		ModifierID:        r.ModifierID,
	}
}
