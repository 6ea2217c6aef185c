package finance

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

var (
	ErrEntryNotFound = errors.New("finance entry not found")
	ErrInvalidEntry  = errors.New("invalid finance entry")
)

const (
	moneyDecimals        = 2
	maxLabelLength       = 50
	maxPaidToLength      = 120
	maxNotesLength       = 120
	maxDescriptionLength = 255
)

type ExpenseInput struct {
	Date        time.Time
	PaymentType string
	PaidTo      string
	Description string
	Amount      decimal.Decimal
}

// ExpensePatch carries only the fields the caller supplied. An empty
// Description clears it.
type ExpensePatch struct {
	Date        *time.Time
	PaymentType *string
	PaidTo      *string
	Description *string
	Amount      *decimal.Decimal
}

type CashIncomeInput struct {
	Date   time.Time
	Amount decimal.Decimal
	Notes  string
}

type CashIncomePatch struct {
	Date   *time.Time
	Amount *decimal.Decimal
	Notes  *string
}

type ElectronicIncomeInput struct {
	Date    time.Time
	Channel string
	Amount  decimal.Decimal
	Notes   string
}

type ElectronicIncomePatch struct {
	Date    *time.Time
	Channel *string
	Amount  *decimal.Decimal
	Notes   *string
}

// Store keeps the manual bookkeeping entries: expenses, till cash and
// electronic payouts. Amounts are rounded to cents on the way in.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, logger: log}
}

// ----- expenses -----

func (s *Store) ListExpenses(ctx context.Context, r Range) ([]models.Expense, error) {
	return listInRange[models.Expense](ctx, s.db, r)
}

func (s *Store) CreateExpense(ctx context.Context, in ExpenseInput) (models.Expense, error) {
	paymentType, err := requiredText("payment_type", in.PaymentType, maxLabelLength)
	if err != nil {
		return models.Expense{}, err
	}
	paidTo, err := requiredText("paid_to", in.PaidTo, maxPaidToLength)
	if err != nil {
		return models.Expense{}, err
	}
	desc, err := optionalText("description", in.Description, maxDescriptionLength)
	if err != nil {
		return models.Expense{}, err
	}
	amount, err := money(in.Amount)
	if err != nil {
		return models.Expense{}, err
	}

	row := models.Expense{
		Date:        Day(in.Date),
		PaymentType: paymentType,
		PaidTo:      paidTo,
		Description: desc,
		Amount:      amount,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return row, nil
}

func (s *Store) UpdateExpense(ctx context.Context, id uint, p ExpensePatch) (before, after models.Expense, err error) {
	cols := map[string]any{}
	if p.Date != nil {
		cols["date"] = Day(*p.Date)
	}
	if p.PaymentType != nil {
		if cols["payment_type"], err = requiredText("payment_type", *p.PaymentType, maxLabelLength); err != nil {
			return
		}
	}
	if p.PaidTo != nil {
		if cols["paid_to"], err = requiredText("paid_to", *p.PaidTo, maxPaidToLength); err != nil {
			return
		}
	}
	if p.Description != nil {
		if cols["description"], err = optionalText("description", *p.Description, maxDescriptionLength); err != nil {
			return
		}
	}
	if p.Amount != nil {
		if cols["amount"], err = money(*p.Amount); err != nil {
			return
		}
	}
	return update[models.Expense](ctx, s.db, id, cols)
}

func (s *Store) DeleteExpense(ctx context.Context, id uint) (models.Expense, error) {
	return remove[models.Expense](ctx, s.db, id)
}

// ----- cash income -----

func (s *Store) ListCashIncome(ctx context.Context, r Range) ([]models.CashIncome, error) {
	return listInRange[models.CashIncome](ctx, s.db, r)
}

func (s *Store) CreateCashIncome(ctx context.Context, in CashIncomeInput) (models.CashIncome, error) {
	notes, err := optionalText("notes", in.Notes, maxNotesLength)
	if err != nil {
		return models.CashIncome{}, err
	}
	amount, err := money(in.Amount)
	if err != nil {
		return models.CashIncome{}, err
	}

	row := models.CashIncome{Date: Day(in.Date), Amount: amount, Notes: notes}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.CashIncome{}, fmt.Errorf("create cash income: %w", err)
	}
	return row, nil
}

func (s *Store) UpdateCashIncome(ctx context.Context, id uint, p CashIncomePatch) (before, after models.CashIncome, err error) {
	cols := map[string]any{}
	if p.Date != nil {
		cols["date"] = Day(*p.Date)
	}
	if p.Amount != nil {
		if cols["amount"], err = money(*p.Amount); err != nil {
			return
		}
	}
	if p.Notes != nil {
		if cols["notes"], err = optionalText("notes", *p.Notes, maxNotesLength); err != nil {
			return
		}
	}
	return update[models.CashIncome](ctx, s.db, id, cols)
}

func (s *Store) DeleteCashIncome(ctx context.Context, id uint) (models.CashIncome, error) {
	return remove[models.CashIncome](ctx, s.db, id)
}

// ----- electronic income -----

func (s *Store) ListElectronicIncome(ctx context.Context, r Range) ([]models.ElectronicIncome, error) {
	return listInRange[models.ElectronicIncome](ctx, s.db, r)
}

func (s *Store) CreateElectronicIncome(ctx context.Context, in ElectronicIncomeInput) (models.ElectronicIncome, error) {
	channel, err := requiredText("channel", in.Channel, maxLabelLength)
	if err != nil {
		return models.ElectronicIncome{}, err
	}
	notes, err := optionalText("notes", in.Notes, maxNotesLength)
	if err != nil {
		return models.ElectronicIncome{}, err
	}
	amount, err := money(in.Amount)
	if err != nil {
		return models.ElectronicIncome{}, err
	}

	row := models.ElectronicIncome{Date: Day(in.Date), Channel: channel, Amount: amount, Notes: notes}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.ElectronicIncome{}, fmt.Errorf("create electronic income: %w", err)
	}
	return row, nil
}

func (s *Store) UpdateElectronicIncome(ctx context.Context, id uint, p ElectronicIncomePatch) (before, after models.ElectronicIncome, err error) {
	cols := map[string]any{}
	if p.Date != nil {
		cols["date"] = Day(*p.Date)
	}
	if p.Channel != nil {
		if cols["channel"], err = requiredText("channel", *p.Channel, maxLabelLength); err != nil {
			return
		}
	}
	if p.Amount != nil {
		if cols["amount"], err = money(*p.Amount); err != nil {
			return
		}
	}
	if p.Notes != nil {
		if cols["notes"], err = optionalText("notes", *p.Notes, maxNotesLength); err != nil {
			return
		}
	}
	return update[models.ElectronicIncome](ctx, s.db, id, cols)
}

func (s *Store) DeleteElectronicIncome(ctx context.Context, id uint) (models.ElectronicIncome, error) {
	return remove[models.ElectronicIncome](ctx, s.db, id)
}

// ----- shared -----

func listInRange[T any](ctx context.Context, db *gorm.DB, r Range) ([]T, error) {
	var rows []T
	err := db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", r.From, r.To).
		Order("date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %T: %w", rows, err)
	}
	return rows, nil
}

func find[T any](ctx context.Context, db *gorm.DB, id uint) (T, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, ErrEntryNotFound
		}
		return row, err
	}
	return row, nil
}

func update[T any](ctx context.Context, db *gorm.DB, id uint, cols map[string]any) (before, after T, err error) {
	if len(cols) == 0 {
		err = fmt.Errorf("%w: no fields provided for update", ErrInvalidEntry)
		return
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if before, err = find[T](ctx, tx, id); err != nil {
			return err
		}
		row := before
		if err := tx.Model(&row).Updates(cols).Error; err != nil {
			return err
		}
		after, err = find[T](ctx, tx, id)
		return err
	})
	return
}

func remove[T any](ctx context.Context, db *gorm.DB, id uint) (T, error) {
	var deleted T
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := find[T](ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&row).Error; err != nil {
			return err
		}
		deleted = row
		return nil
	})
	return deleted, err
}

func requiredText(field, v string, max int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidEntry, field)
	}
	if len(v) > max {
		return "", fmt.Errorf("%w: %s must be at most %d bytes", ErrInvalidEntry, field, max)
	}
	return v, nil
}

// optionalText stores blank input as NULL.
func optionalText(field, v string, max int) (*string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if len(v) > max {
		return nil, fmt.Errorf("%w: %s must be at most %d bytes", ErrInvalidEntry, field, max)
	}
	return &v, nil
}

func money(v decimal.Decimal) (decimal.Decimal, error) {
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount must not be negative", ErrInvalidEntry)
	}
	return v.Round(moneyDecimals), nil
}
