package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grill-backend/internal/models"
)

const DateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("invalid date range")

// Range is an inclusive span of whole UTC days.
type Range struct {
	From time.Time
	To   time.Time
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseRange reads YYYY-MM-DD bounds. A missing bound falls back to the
// calendar month containing now.
func ParseRange(from, to string, now time.Time) (Range, error) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	r := Range{From: first, To: first.AddDate(0, 1, -1)}

	if from != "" {
		t, err := time.Parse(DateLayout, from)
		if err != nil {
			return Range{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidRange)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(DateLayout, to)
		if err != nil {
			return Range{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidRange)
		}
		r.To = t
	}
	if r.From.After(r.To) {
		return Range{}, fmt.Errorf("%w: from must not be after to", ErrInvalidRange)
	}
	return r, nil
}

type ExpenseView struct {
	ID          uint            `json:"id"`
	Date        string          `json:"date"`
	PaymentType string          `json:"payment_type"`
	PaidTo      string          `json:"paid_to"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type CashIncomeView struct {
	ID     uint            `json:"id"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

type ElectronicIncomeView struct {
	ID      uint            `json:"id"`
	Date    string          `json:"date"`
	Channel string          `json:"channel"`
	Amount  decimal.Decimal `json:"amount"`
	Notes   string          `json:"notes"`
}

type RangeView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ExpenseSection struct {
	Total decimal.Decimal `json:"total"`
	Rows  []ExpenseView   `json:"rows"`
}

type CashIncomeSection struct {
	Total decimal.Decimal  `json:"total"`
	Rows  []CashIncomeView `json:"rows"`
}

type ElectronicIncomeSection struct {
	Total     decimal.Decimal            `json:"total"`
	ByChannel map[string]decimal.Decimal `json:"by_channel"`
	Rows      []ElectronicIncomeView     `json:"rows"`
}

// Tracker is the money summary for a date range.
type Tracker struct {
	Range            RangeView               `json:"range"`
	Expenses         ExpenseSection          `json:"expenses"`
	CashIncome       CashIncomeSection       `json:"cash_income"`
	ElectronicIncome ElectronicIncomeSection `json:"electronic_income"`
	NetIncome        decimal.Decimal         `json:"net_income"`
}

// Tracker totals every entry in r. Net income is cash plus electronic
// income minus expenses.
func (s *Store) Tracker(ctx context.Context, r Range) (Tracker, error) {
	expenses, err := s.ListExpenses(ctx, r)
	if err != nil {
		return Tracker{}, err
	}
	cash, err := s.ListCashIncome(ctx, r)
	if err != nil {
		return Tracker{}, err
	}
	electronic, err := s.ListElectronicIncome(ctx, r)
	if err != nil {
		return Tracker{}, err
	}

	t := Tracker{
		Range:            RangeView{From: r.From.Format(DateLayout), To: r.To.Format(DateLayout)},
		Expenses:         ExpenseSection{Total: decimal.Zero, Rows: make([]ExpenseView, 0, len(expenses))},
		CashIncome:       CashIncomeSection{Total: decimal.Zero, Rows: make([]CashIncomeView, 0, len(cash))},
		ElectronicIncome: ElectronicIncomeSection{Total: decimal.Zero, ByChannel: map[string]decimal.Decimal{}, Rows: make([]ElectronicIncomeView, 0, len(electronic))},
	}

	for _, e := range expenses {
		t.Expenses.Total = t.Expenses.Total.Add(e.Amount)
		t.Expenses.Rows = append(t.Expenses.Rows, toExpenseView(e))
	}
	for _, c := range cash {
		t.CashIncome.Total = t.CashIncome.Total.Add(c.Amount)
		t.CashIncome.Rows = append(t.CashIncome.Rows, toCashIncomeView(c))
	}
	for _, e := range electronic {
		t.ElectronicIncome.Total = t.ElectronicIncome.Total.Add(e.Amount)
		t.ElectronicIncome.ByChannel[e.Channel] = t.ElectronicIncome.ByChannel[e.Channel].Add(e.Amount)
		t.ElectronicIncome.Rows = append(t.ElectronicIncome.Rows, toElectronicIncomeView(e))
	}

	t.NetIncome = t.CashIncome.Total.Add(t.ElectronicIncome.Total).Sub(t.Expenses.Total)

	s.logger.Debug("finance tracker built",
		zap.String("from", t.Range.From),
		zap.String("to", t.Range.To),
		zap.Int("entries", len(expenses)+len(cash)+len(electronic)))
	return t, nil
}

func toExpenseView(e models.Expense) ExpenseView {
	return ExpenseView{
		ID:          e.ID,
		Date:        e.Date.Format(DateLayout),
		PaymentType: e.PaymentType,
		PaidTo:      e.PaidTo,
		Description: deref(e.Description),
		Amount:      e.Amount,
	}
}

func toCashIncomeView(c models.CashIncome) CashIncomeView {
	return CashIncomeView{ID: c.ID, Date: c.Date.Format(DateLayout), Amount: c.Amount, Notes: deref(c.Notes)}
}

func toElectronicIncomeView(e models.ElectronicIncome) ElectronicIncomeView {
	return ElectronicIncomeView{
		ID:      e.ID,
		Date:    e.Date.Format(DateLayout),
		Channel: e.Channel,
		Amount:  e.Amount,
		Notes:   deref(e.Notes),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
