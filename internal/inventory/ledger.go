package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grill-backend/internal/metrics"
	"grill-backend/internal/models"
)

var (
	ErrItemNotFound      = errors.New("inventory item not found")
	ErrInvalidAdjustment = errors.New("invalid adjustment")
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 200
	maxNoteLength      = 255
)

// Entry is a ledger row before it is written. Empty correlation ids are
// stored as NULL.
type Entry struct {
	ItemID     uint
	Delta      decimal.Decimal
	Reason     models.LedgerReason
	EventID    string
	PaymentID  string
	RefundID   string
	OrderID    string
	OccurredAt time.Time
	Note       string
}

// Correlation tags every entry written for one order.
type Correlation struct {
	Reason     models.LedgerReason
	EventID    string
	PaymentID  string
	RefundID   string
	OrderID    string
	OccurredAt time.Time
	Note       string
}

type ApplyResult struct {
	Inserted   int
	Duplicates int
}

type LedgerStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLedgerStore(db *gorm.DB, log *zap.Logger) *LedgerStore {
	return &LedgerStore{db: db, logger: log}
}

// AppendIfNew inserts the entry unless its (event, item, reason) key already
// exists. inserted is false for a duplicate; that is not an error.
func (s *LedgerStore) AppendIfNew(tx *gorm.DB, e Entry) (uint, bool, error) {
	row := models.StockLedger{
		ItemID:          e.ItemID,
		Delta:           e.Delta,
		Reason:          e.Reason,
		SquareEventID:   nullable(e.EventID),
		SquarePaymentID: nullable(e.PaymentID),
		SquareRefundID:  nullable(e.RefundID),
		SquareOrderID:   nullable(e.OrderID),
		OccurredAt:      e.OccurredAt.UTC(),
		Note:            nullable(e.Note),
	}

	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return 0, false, fmt.Errorf("append ledger entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.LedgerDuplicates.Inc()
		s.logger.Warn("skipping duplicate ledger entry",
			zap.Uint("item_id", e.ItemID),
			zap.String("reason", string(e.Reason)),
			zap.String("event_id", e.EventID))
		return 0, false, nil
	}

	metrics.LedgerEntries.WithLabelValues(string(e.Reason)).Inc()
	return row.ID, true, nil
}

// ApplyDelta adds delta to the item's balance, creating the row at zero first
// if needed. Balances are never overwritten.
func (s *LedgerStore) ApplyDelta(tx *gorm.DB, itemID uint, delta decimal.Decimal) error {
	bal := models.InventoryBalance{ItemID: itemID, OnHand: delta, UpdatedAt: time.Now().UTC()}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"on_hand":    gorm.Expr("inventory_balances.on_hand + excluded.on_hand"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&bal).Error
	if err != nil {
		return fmt.Errorf("apply balance delta for item %d: %w", itemID, err)
	}
	return nil
}

// Record appends one entry and moves the balance in a single transaction.
func (s *LedgerStore) Record(ctx context.Context, e Entry) (uint, bool, error) {
	var (
		id       uint
		inserted bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		id, inserted, err = s.AppendIfNew(tx, e)
		if err != nil || !inserted {
			return err
		}
		return s.ApplyDelta(tx, e.ItemID, e.Delta)
	})
	if err != nil {
		return 0, false, err
	}
	return id, inserted, nil
}

// ApplyUsage writes sign × quantity for every item of one order. All items
// commit together; items already recorded for the same event are skipped.
func (s *LedgerStore) ApplyUsage(ctx context.Context, usage map[uint]Usage, corr Correlation, sign int) (ApplyResult, error) {
	var result ApplyResult
	if len(usage) == 0 {
		return result, nil
	}

	// fixed order keeps concurrent writers from deadlocking on balance rows
	itemIDs := make([]uint, 0, len(usage))
	for id := range usage {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	factor := decimal.NewFromInt(int64(sign))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result = ApplyResult{}
		for _, id := range itemIDs {
			u := usage[id]
			delta := RoundQty(u.Quantity.Mul(factor), u.Decimals)
			if delta.IsZero() {
				continue
			}

			_, inserted, err := s.AppendIfNew(tx, Entry{
				ItemID:     id,
				Delta:      delta,
				Reason:     corr.Reason,
				EventID:    corr.EventID,
				PaymentID:  corr.PaymentID,
				RefundID:   corr.RefundID,
				OrderID:    corr.OrderID,
				OccurredAt: corr.OccurredAt,
				Note:       corr.Note,
			})
			if err != nil {
				return err
			}
			if !inserted {
				result.Duplicates++
				continue
			}
			if err := s.ApplyDelta(tx, id, delta); err != nil {
				return err
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// AdjustManual is the operator write path. The delta must be non-zero both as
// given and after rounding to the item's precision.
func (s *LedgerStore) AdjustManual(ctx context.Context, itemID uint, delta decimal.Decimal, reason models.LedgerReason, note string) (models.StockLedger, error) {
	reason = models.LedgerReason(strings.ToUpper(strings.TrimSpace(string(reason))))
	if reason != models.ReasonManual && reason != models.ReasonPhysicalCount {
		return models.StockLedger{}, fmt.Errorf("%w: reason must be MANUAL or PHYSICAL_COUNT", ErrInvalidAdjustment)
	}
	if delta.IsZero() {
		return models.StockLedger{}, fmt.Errorf("%w: delta must be non-zero", ErrInvalidAdjustment)
	}
	note = strings.TrimSpace(note)
	if len(note) > maxNoteLength {
		return models.StockLedger{}, fmt.Errorf("%w: note must be at most %d bytes", ErrInvalidAdjustment, maxNoteLength)
	}

	var entry models.StockLedger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InventoryItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		rounded := RoundQty(delta, item.Precision())
		if rounded.IsZero() {
			return fmt.Errorf("%w: delta rounds to zero at %d decimals", ErrInvalidAdjustment, item.Precision())
		}

		id, _, err := s.AppendIfNew(tx, Entry{
			ItemID:     itemID,
			Delta:      rounded,
			Reason:     reason,
			OccurredAt: time.Now(),
			Note:       note,
		})
		if err != nil {
			return err
		}
		if err := s.ApplyDelta(tx, itemID, rounded); err != nil {
			return err
		}
		return tx.First(&entry, id).Error
	})
	if err != nil {
		return models.StockLedger{}, err
	}

	s.logger.Info("manual stock adjustment",
		zap.Uint("item_id", itemID),
		zap.String("reason", string(reason)),
		zap.String("delta", entry.Delta.String()))
	return entry, nil
}

// UsageTotalsForOrder sums SALE and RECON deltas recorded for an order, by item.
func (s *LedgerStore) UsageTotalsForOrder(ctx context.Context, orderID string) (map[uint]decimal.Decimal, error) {
	var rows []struct {
		ItemID uint
		Total  decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&models.StockLedger{}).
		Select("item_id, SUM(delta) AS total").
		Where("square_order_id = ? AND reason IN ?", orderID,
			[]models.LedgerReason{models.ReasonSale, models.ReasonRecon}).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum ledger usage for order %s: %w", orderID, err)
	}

	out := make(map[uint]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.ItemID] = r.Total
	}
	return out, nil
}

type LedgerFilter struct {
	ItemID *uint
	Reason models.LedgerReason
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

type LedgerEntryView struct {
	ID              uint                `json:"id"`
	ItemID          uint                `json:"item_id"`
	ItemName        string              `json:"item_name"`
	UOM             string              `json:"uom"`
	Delta           decimal.Decimal     `json:"delta"`
	Reason          models.LedgerReason `json:"reason"`
	SquareEventID   *string             `json:"square_event_id"`
	SquarePaymentID *string             `json:"square_payment_id"`
	SquareRefundID  *string             `json:"square_refund_id"`
	SquareOrderID   *string             `json:"square_order_id"`
	OccurredAt      time.Time           `json:"occurred_at"`
	CreatedAt       time.Time           `json:"created_at"`
	Note            *string             `json:"note"`
}

func (f LedgerFilter) normalized() LedgerFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLedgerLimit
	case f.Limit > maxLedgerLimit:
		f.Limit = maxLedgerLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (s *LedgerStore) ListLedger(ctx context.Context, f LedgerFilter) ([]LedgerEntryView, error) {
	f = f.normalized()

	q := s.db.WithContext(ctx).Joins("Item")
	if f.ItemID != nil {
		q = q.Where("stock_ledgers.item_id = ?", *f.ItemID)
	}
	if f.Reason != "" {
		q = q.Where("stock_ledgers.reason = ?", f.Reason)
	}
	if f.Start != nil {
		q = q.Where("stock_ledgers.occurred_at >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("stock_ledgers.occurred_at <= ?", f.End.UTC())
	}

	var rows []models.StockLedger
	err := q.Order("stock_ledgers.occurred_at DESC, stock_ledgers.id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	out := make([]LedgerEntryView, 0, len(rows))
	for _, r := range rows {
		out = append(out, LedgerEntryView{
			ID:              r.ID,
			ItemID:          r.ItemID,
			ItemName:        r.Item.Name,
			UOM:             r.Item.UOM,
			Delta:           r.Delta,
			Reason:          r.Reason,
			SquareEventID:   r.SquareEventID,
			SquarePaymentID: r.SquarePaymentID,
			SquareRefundID:  r.SquareRefundID,
			SquareOrderID:   r.SquareOrderID,
			OccurredAt:      r.OccurredAt,
			CreatedAt:       r.CreatedAt,
			Note:            r.Note,
		})
	}
	return out, nil
}

func (s *LedgerStore) RecentForItem(ctx context.Context, itemID uint, limit int) ([]LedgerEntryView, error) {
	return s.ListLedger(ctx, LedgerFilter{ItemID: &itemID, Limit: limit})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
