package finance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grill-backend/internal/database/dbtest"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dbtest.Open(t), zap.NewNop())
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, time.February, 17, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		from, to string
		want     [2]string
		wantErr  bool
	}{
		{"defaults to current month", "", "", [2]string{"2024-02-01", "2024-02-29"}, false},
		{"explicit bounds", "2024-01-10", "2024-01-20", [2]string{"2024-01-10", "2024-01-20"}, false},
		{"open end uses month end", "2024-02-05", "", [2]string{"2024-02-05", "2024-02-29"}, false},
		{"single day", "2024-03-01", "2024-03-01", [2]string{"2024-03-01", "2024-03-01"}, false},
		{"from after to", "2024-02-10", "2024-02-01", [2]string{}, true},
		{"bad format", "02/10/2024", "", [2]string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRange(tt.from, tt.to, now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("ParseRange() error = %v, want ErrInvalidRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange() error: %v", err)
			}
			got := [2]string{r.From.Format(DateLayout), r.To.Format(DateLayout)}
			if got != tt.want {
				t.Errorf("ParseRange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_CreateExpenseValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ExpenseInput
	}{
		{"missing payment type", ExpenseInput{Date: day("2024-05-01"), PaidTo: "Sysco", Amount: dec("1")}},
		{"blank paid to", ExpenseInput{Date: day("2024-05-01"), PaymentType: "card", PaidTo: "  ", Amount: dec("1")}},
		{"negative amount", ExpenseInput{Date: day("2024-05-01"), PaymentType: "card", PaidTo: "Sysco", Amount: dec("-0.01")}},
		{"long description", ExpenseInput{Date: day("2024-05-01"), PaymentType: "card", PaidTo: "Sysco",
			Description: strings.Repeat("x", maxDescriptionLength+1), Amount: dec("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateExpense(ctx, tt.in); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("CreateExpense() error = %v, want ErrInvalidEntry", err)
			}
		})
	}

	e, err := s.CreateExpense(ctx, ExpenseInput{
		Date: day("2024-05-01"), PaymentType: " card ", PaidTo: "Sysco", Description: "  ", Amount: dec("12.345"),
	})
	if err != nil {
		t.Fatalf("CreateExpense() error: %v", err)
	}
	if e.PaymentType != "card" || e.Description != nil {
		t.Errorf("expense = %+v, want trimmed payment type and NULL description", e)
	}
	if !e.Amount.Equal(dec("12.35")) {
		t.Errorf("amount = %s, want 12.35", e.Amount)
	}
}

func TestStore_UpdateExpense(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e, err := s.CreateExpense(ctx, ExpenseInput{
		Date: day("2024-05-01"), PaymentType: "cash", PaidTo: "Baker", Description: "rolls", Amount: dec("30"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.UpdateExpense(ctx, e.ID, ExpensePatch{}); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("empty patch error = %v, want ErrInvalidEntry", err)
	}
	amount := dec("31.5")
	if _, _, err := s.UpdateExpense(ctx, e.ID+100, ExpensePatch{Amount: &amount}); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing row error = %v, want ErrEntryNotFound", err)
	}

	blank := ""
	moved := day("2024-05-04")
	before, after, err := s.UpdateExpense(ctx, e.ID, ExpensePatch{Amount: &amount, Description: &blank, Date: &moved})
	if err != nil {
		t.Fatalf("UpdateExpense() error: %v", err)
	}
	if !before.Amount.Equal(dec("30")) || before.Description == nil {
		t.Errorf("before = %+v", before)
	}
	if !after.Amount.Equal(amount) || after.Description != nil || after.PaidTo != "Baker" {
		t.Errorf("after = %+v, want amount 31.5, NULL description, paid_to kept", after)
	}
	if got := after.Date.Format(DateLayout); got != "2024-05-04" {
		t.Errorf("date = %s, want 2024-05-04", got)
	}
}

func TestStore_DeleteIncome(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ci, err := s.CreateCashIncome(ctx, CashIncomeInput{Date: day("2024-05-01"), Amount: dec("200"), Notes: "lunch till"})
	if err != nil {
		t.Fatal(err)
	}
	ei, err := s.CreateElectronicIncome(ctx, ElectronicIncomeInput{Date: day("2024-05-01"), Channel: "ubereats", Amount: dec("80")})
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteCashIncome(ctx, ci.ID)
	if err != nil {
		t.Fatalf("DeleteCashIncome() error: %v", err)
	}
	if deleted.Notes == nil || *deleted.Notes != "lunch till" {
		t.Errorf("deleted = %+v, want the removed row", deleted)
	}
	if _, err := s.DeleteCashIncome(ctx, ci.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("second delete error = %v, want ErrEntryNotFound", err)
	}
	if _, err := s.DeleteElectronicIncome(ctx, ei.ID); err != nil {
		t.Fatalf("DeleteElectronicIncome() error: %v", err)
	}

	r := Range{From: day("2024-05-01"), To: day("2024-05-31")}
	cash, _ := s.ListCashIncome(ctx, r)
	electronic, _ := s.ListElectronicIncome(ctx, r)
	if len(cash) != 0 || len(electronic) != 0 {
		t.Errorf("remaining rows = %d cash, %d electronic, want none", len(cash), len(electronic))
	}
}

func TestStore_Tracker(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mustExpense := func(date, paidTo, amount string) {
		t.Helper()
		if _, err := s.CreateExpense(ctx, ExpenseInput{
			Date: day(date), PaymentType: "card", PaidTo: paidTo, Amount: dec(amount),
		}); err != nil {
			t.Fatal(err)
		}
	}
	mustExpense("2024-05-01", "Butcher", "120.50")
	mustExpense("2024-05-31", "Gas", "60")
	mustExpense("2024-06-01", "Rent", "1500") // outside the range

	for _, ci := range []CashIncomeInput{
		{Date: day("2024-05-01"), Amount: dec("300")},
		{Date: day("2024-05-15"), Amount: dec("150.25")},
	} {
		if _, err := s.CreateCashIncome(ctx, ci); err != nil {
			t.Fatal(err)
		}
	}
	for _, ei := range []ElectronicIncomeInput{
		{Date: day("2024-05-02"), Channel: "doordash", Amount: dec("40")},
		{Date: day("2024-05-03"), Channel: "doordash", Amount: dec("10")},
		{Date: day("2024-05-03"), Channel: "ubereats", Amount: dec("25.75")},
		{Date: day("2024-04-30"), Channel: "ubereats", Amount: dec("99")}, // outside the range
	} {
		if _, err := s.CreateElectronicIncome(ctx, ei); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Tracker(ctx, Range{From: day("2024-05-01"), To: day("2024-05-31")})
	if err != nil {
		t.Fatalf("Tracker() error: %v", err)
	}

	if got.Range.From != "2024-05-01" || got.Range.To != "2024-05-31" {
		t.Errorf("range = %+v", got.Range)
	}
	if len(got.Expenses.Rows) != 2 || !got.Expenses.Total.Equal(dec("180.5")) {
		t.Fatalf("expenses = %s over %d rows, want 180.5 over 2", got.Expenses.Total, len(got.Expenses.Rows))
	}
	if got.Expenses.Rows[0].PaidTo != "Butcher" || got.Expenses.Rows[1].Date != "2024-05-31" {
		t.Errorf("expense rows out of date order: %+v", got.Expenses.Rows)
	}
	if !got.CashIncome.Total.Equal(dec("450.25")) {
		t.Errorf("cash total = %s, want 450.25", got.CashIncome.Total)
	}
	if !got.ElectronicIncome.Total.Equal(dec("75.75")) {
		t.Errorf("electronic total = %s, want 75.75", got.ElectronicIncome.Total)
	}
	if !got.ElectronicIncome.ByChannel["doordash"].Equal(dec("50")) || !got.ElectronicIncome.ByChannel["ubereats"].Equal(dec("25.75")) {
		t.Errorf("by channel = %v", got.ElectronicIncome.ByChannel)
	}
	if !got.NetIncome.Equal(dec("345.5")) {
		t.Errorf("net income = %s, want 345.5", got.NetIncome)
	}
}

func TestStore_TrackerEmptyRange(t *testing.T) {
	s := newStore(t)
	got, err := s.Tracker(context.Background(), Range{From: day("2023-01-01"), To: day("2023-01-31")})
	if err != nil {
		t.Fatalf("Tracker() error: %v", err)
	}
	if !got.NetIncome.IsZero() || got.Expenses.Rows == nil || len(got.Expenses.Rows) != 0 {
		t.Errorf("tracker = %+v, want zero totals and empty rows", got)
	}
}
