package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/models"
)

var ErrInvalidItem = errors.New("invalid inventory item")

// ItemView is an item joined with its current balance.
type ItemView struct {
	ID                uint                `json:"id"`
	Name              string              `json:"name"`
	Type              models.ItemType     `json:"type"`
	UOM               string              `json:"uom"`
	Decimals          int32               `json:"decimals"`
	LowStockThreshold decimal.NullDecimal `json:"low_stock_threshold"`
	Active            bool                `json:"active"`
	OnHand            decimal.Decimal     `json:"on_hand"`
	IsLowStock        bool                `json:"is_low_stock"`
}

type NewItem struct {
	Name              string
	Type              models.ItemType
	UOM               string
	Decimals          int32
	LowStockThreshold decimal.NullDecimal
	InitialOnHand     decimal.NullDecimal
}

// ItemUpdate carries only the fields the caller supplied.
type ItemUpdate struct {
	Name              *string
	Type              *models.ItemType
	UOM               *string
	Decimals          *int32
	LowStockThreshold *decimal.NullDecimal
	Active            *bool
}

type ItemStore struct {
	db     *gorm.DB
	ledger *LedgerStore
	logger *zap.Logger
}

func NewItemStore(db *gorm.DB, ledger *LedgerStore, log *zap.Logger) *ItemStore {
	return &ItemStore{db: db, ledger: ledger, logger: log}
}

func (s *ItemStore) List(ctx context.Context) ([]ItemView, error) {
	var items []models.InventoryItem
	if err := s.db.WithContext(ctx).Preload("Balance").Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	return toViews(items), nil
}

func (s *ItemStore) LowStock(ctx context.Context) ([]ItemView, error) {
	var items []models.InventoryItem
	err := s.db.WithContext(ctx).
		Preload("Balance").
		Joins("LEFT JOIN inventory_balances b ON b.item_id = inventory_items.id").
		Where("inventory_items.low_stock_threshold IS NOT NULL").
		Where("COALESCE(b.on_hand, 0) <= inventory_items.low_stock_threshold").
		Order("inventory_items.name ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list low stock items: %w", err)
	}
	return toViews(items), nil
}

func (s *ItemStore) Get(ctx context.Context, id uint) (ItemView, error) {
	var item models.InventoryItem
	if err := s.db.WithContext(ctx).Preload("Balance").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ItemView{}, ErrItemNotFound
		}
		return ItemView{}, err
	}
	return toView(item), nil
}

// Create inserts the item and seeds its balance. A non-null InitialOnHand is
// written as a MANUAL "Initial balance" ledger entry so the balance always
// equals the ledger sum.
func (s *ItemStore) Create(ctx context.Context, in NewItem) (ItemView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.UOM = strings.TrimSpace(in.UOM)
	if in.Type == "" {
		in.Type = models.ItemTypeMaterial
	}
	if err := validateItem(in.Name, in.Type, in.UOM, in.Decimals); err != nil {
		return ItemView{}, err
	}

	item := models.InventoryItem{
		Name:              in.Name,
		Type:              in.Type,
		UOM:               in.UOM,
		Decimals:          in.Decimals,
		LowStockThreshold: in.LowStockThreshold,
		Active:            true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Balance").Create(&item).Error; err != nil {
			return err
		}

		opening := decimal.Zero
		if in.InitialOnHand.Valid {
			opening = RoundQty(in.InitialOnHand.Decimal, item.Precision())
		}
		if opening.IsZero() {
			return s.ledger.ApplyDelta(tx, item.ID, decimal.Zero)
		}

		_, _, err := s.ledger.AppendIfNew(tx, Entry{
			ItemID:     item.ID,
			Delta:      opening,
			Reason:     models.ReasonManual,
			OccurredAt: time.Now(),
			Note:       "Initial balance",
		})
		if err != nil {
			return err
		}
		return s.ledger.ApplyDelta(tx, item.ID, opening)
	})
	if err != nil {
		return ItemView{}, fmt.Errorf("create inventory item: %w", err)
	}

	s.logger.Info("inventory item created", zap.Uint("item_id", item.ID), zap.String("name", item.Name))
	return s.Get(ctx, item.ID)
}

// Update applies the supplied fields only. An empty update is a read.
func (s *ItemStore) Update(ctx context.Context, id uint, upd ItemUpdate) (ItemView, ItemView, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return ItemView{}, ItemView{}, err
	}

	cols, err := upd.columns()
	if err != nil {
		return ItemView{}, ItemView{}, err
	}
	if len(cols) == 0 {
		return before, before, nil
	}

	res := s.db.WithContext(ctx).Model(&models.InventoryItem{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return ItemView{}, ItemView{}, fmt.Errorf("update inventory item %d: %w", id, res.Error)
	}

	after, err := s.Get(ctx, id)
	if err != nil {
		return ItemView{}, ItemView{}, err
	}
	return before, after, nil
}

func (u ItemUpdate) columns() (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidItem)
		}
		cols["name"] = name
	}
	if u.Type != nil {
		if !u.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, *u.Type)
		}
		cols["type"] = *u.Type
	}
	if u.UOM != nil {
		uom := strings.TrimSpace(*u.UOM)
		if uom == "" {
			return nil, fmt.Errorf("%w: uom cannot be empty", ErrInvalidItem)
		}
		cols["uom"] = uom
	}
	if u.Decimals != nil {
		if *u.Decimals < 0 || *u.Decimals > models.MaxItemDecimals {
			return nil, fmt.Errorf("%w: decimals must be between 0 and %d", ErrInvalidItem, models.MaxItemDecimals)
		}
		cols["decimals"] = *u.Decimals
	}
	if u.LowStockThreshold != nil {
		cols["low_stock_threshold"] = *u.LowStockThreshold
	}
	if u.Active != nil {
		cols["active"] = *u.Active
	}
	return cols, nil
}

func validateItem(name string, typ models.ItemType, uom string, decimals int32) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	case !typ.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidItem, typ)
	case uom == "":
		return fmt.Errorf("%w: uom is required", ErrInvalidItem)
	case decimals < 0 || decimals > models.MaxItemDecimals:
		return fmt.Errorf("%w: decimals must be between 0 and %d", ErrInvalidItem, models.MaxItemDecimals)
	}
	return nil
}

func toView(i models.InventoryItem) ItemView {
	v := ItemView{
		ID:                i.ID,
		Name:              i.Name,
		Type:              i.Type,
		UOM:               i.UOM,
		Decimals:          i.Decimals,
		LowStockThreshold: i.LowStockThreshold,
		Active:            i.Active,
	}
	if i.Balance != nil {
		v.OnHand = i.Balance.OnHand
	}
	if i.LowStockThreshold.Valid {
		v.IsLowStock = v.OnHand.LessThanOrEqual(i.LowStockThreshold.Decimal)
	}
	return v
}

func toViews(items []models.InventoryItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, i := range items {
		out = append(out, toView(i))
	}
	return out
}
