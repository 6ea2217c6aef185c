package finance

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/audit"
	"grill-backend/internal/models"
)

type CreateExpenseRequest struct {
	Date        string              `json:"date"` // "2025-12-09"
	PaymentType string              `json:"payment_type"`
	PaidTo      string              `json:"paid_to"`
	Description string              `json:"description"`
	Amount      decimal.NullDecimal `json:"amount"`
}

type UpdateExpenseRequest struct {
	Date        *string          `json:"date"`
	PaymentType *string          `json:"payment_type"`
	PaidTo      *string          `json:"paid_to"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
}

type CreateCashIncomeRequest struct {
	Date   string              `json:"date"`
	Amount decimal.NullDecimal `json:"amount"`
	Notes  string              `json:"notes"`
}

type UpdateCashIncomeRequest struct {
	Date   *string          `json:"date"`
	Amount *decimal.Decimal `json:"amount"`
	Notes  *string          `json:"notes"`
}

type CreateElectronicIncomeRequest struct {
	Date    string              `json:"date"`
	Channel string              `json:"channel"`
	Amount  decimal.NullDecimal `json:"amount"`
	Notes   string              `json:"notes"`
}

type UpdateElectronicIncomeRequest struct {
	Date    *string          `json:"date"`
	Channel *string          `json:"channel"`
	Amount  *decimal.Decimal `json:"amount"`
	Notes   *string          `json:"notes"`
}

type Handler struct {
	db     *gorm.DB
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(db *gorm.DB, store *Store, log *zap.Logger) *Handler {
	return &Handler{db: db, store: store, logger: log, now: time.Now}
}

// GET /api/admin/finance/tracker?from=2025-12-01&to=2025-12-31
func (h *Handler) Tracker() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := h.rangeFromQuery(c)
		if err != nil {
			return err
		}
		t, err := h.store.Tracker(c.UserContext(), r)
		if err != nil {
			return err
		}
		return c.JSON(t)
	}
}

// ----- expenses -----

// GET /api/admin/finance/expenses
func (h *Handler) ListExpenses() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := h.rangeFromQuery(c)
		if err != nil {
			return err
		}
		rows, err := h.store.ListExpenses(c.UserContext(), r)
		if err != nil {
			return err
		}
		res := make([]ExpenseView, 0, len(rows))
		for _, e := range rows {
			res = append(res, toExpenseView(e))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/finance/expenses
func (h *Handler) CreateExpense() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseDate(body.Date)
		if err != nil {
			return err
		}
		if !body.Amount.Valid {
			return fiber.NewError(fiber.StatusBadRequest, "amount is required")
		}

		e, err := h.store.CreateExpense(c.UserContext(), ExpenseInput{
			Date:        date,
			PaymentType: body.PaymentType,
			PaidTo:      body.PaidTo,
			Description: body.Description,
			Amount:      body.Amount.Decimal,
		})
		if err != nil {
			return httpError(err)
		}

		view := toExpenseView(e)
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "expense",
			EntityID:    e.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Expense recorded: %s to %s", e.Amount.StringFixed(moneyDecimals), e.PaidTo),
			After:       view,
		})
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// PUT /api/admin/finance/expenses/:id
func (h *Handler) UpdateExpense() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body UpdateExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseOptionalDate(body.Date)
		if err != nil {
			return err
		}

		before, after, err := h.store.UpdateExpense(c.UserContext(), id, ExpensePatch{
			Date:        date,
			PaymentType: body.PaymentType,
			PaidTo:      body.PaidTo,
			Description: body.Description,
			Amount:      body.Amount,
		})
		if err != nil {
			return httpError(err)
		}

		view := toExpenseView(after)
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "expense",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Expense updated",
			Before:      toExpenseView(before),
			After:       view,
		})
		return c.JSON(view)
	}
}

// DELETE /api/admin/finance/expenses/:id
func (h *Handler) DeleteExpense() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		e, err := h.store.DeleteExpense(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "expense",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "Expense deleted",
			Before:      toExpenseView(e),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----- cash income -----

// GET /api/admin/finance/cash-income
func (h *Handler) ListCashIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := h.rangeFromQuery(c)
		if err != nil {
			return err
		}
		rows, err := h.store.ListCashIncome(c.UserContext(), r)
		if err != nil {
			return err
		}
		res := make([]CashIncomeView, 0, len(rows))
		for _, ci := range rows {
			res = append(res, toCashIncomeView(ci))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/finance/cash-income
func (h *Handler) CreateCashIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCashIncomeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseDate(body.Date)
		if err != nil {
			return err
		}
		if !body.Amount.Valid {
			return fiber.NewError(fiber.StatusBadRequest, "amount is required")
		}

		ci, err := h.store.CreateCashIncome(c.UserContext(), CashIncomeInput{
			Date:   date,
			Amount: body.Amount.Decimal,
			Notes:  body.Notes,
		})
		if err != nil {
			return httpError(err)
		}

		view := toCashIncomeView(ci)
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "cash_income",
			EntityID:    ci.ID,
			Action:      models.AuditActionCreate,
			Description: "Cash income recorded: " + ci.Amount.StringFixed(moneyDecimals),
			After:       view,
		})
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// PUT /api/admin/finance/cash-income/:id
func (h *Handler) UpdateCashIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body UpdateCashIncomeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseOptionalDate(body.Date)
		if err != nil {
			return err
		}

		before, after, err := h.store.UpdateCashIncome(c.UserContext(), id, CashIncomePatch{
			Date:   date,
			Amount: body.Amount,
			Notes:  body.Notes,
		})
		if err != nil {
			return httpError(err)
		}

		view := toCashIncomeView(after)
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "cash_income",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Cash income updated",
			Before:      toCashIncomeView(before),
			After:       view,
		})
		return c.JSON(view)
	}
}

// DELETE /api/admin/finance/cash-income/:id
func (h *Handler) DeleteCashIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		ci, err := h.store.DeleteCashIncome(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "cash_income",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "Cash income deleted",
			Before:      toCashIncomeView(ci),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----- electronic income -----

// GET /api/admin/finance/electronic-income
func (h *Handler) ListElectronicIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := h.rangeFromQuery(c)
		if err != nil {
			return err
		}
		rows, err := h.store.ListElectronicIncome(c.UserContext(), r)
		if err != nil {
			return err
		}
		res := make([]ElectronicIncomeView, 0, len(rows))
		for _, ei := range rows {
			res = append(res, toElectronicIncomeView(ei))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/finance/electronic-income
func (h *Handler) CreateElectronicIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateElectronicIncomeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseDate(body.Date)
		if err != nil {
			return err
		}
		if !body.Amount.Valid {
			return fiber.NewError(fiber.StatusBadRequest, "amount is required")
		}

		ei, err := h.store.CreateElectronicIncome(c.UserContext(), ElectronicIncomeInput{
			Date:    date,
			Channel: body.Channel,
			Amount:  body.Amount.Decimal,
			Notes:   body.Notes,
		})
		if err != nil {
			return httpError(err)
		}

		view := toElectronicIncomeView(ei)
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "electronic_income",
			EntityID:    ei.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Electronic income recorded: %s via %s", ei.Amount.StringFixed(moneyDecimals), ei.Channel),
			After:       view,
		})
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// PUT /api/admin/finance/electronic-income/:id
func (h *Handler) UpdateElectronicIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body UpdateElectronicIncomeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		date, err := parseOptionalDate(body.Date)
		if err != nil {
			return err
		}

		before, after, err := h.store.UpdateElectronicIncome(c.UserContext(), id, ElectronicIncomePatch{
			Date:    date,
			Channel: body.Channel,
			Amount:  body.Amount,
			Notes:   body.Notes,
		})
		if err != nil {
			return httpError(err)
		}

		view := toElectronicIncomeView(after)
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "electronic_income",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "Electronic income updated",
			Before:      toElectronicIncomeView(before),
			After:       view,
		})
		return c.JSON(view)
	}
}

// DELETE /api/admin/finance/electronic-income/:id
func (h *Handler) DeleteElectronicIncome() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		ei, err := h.store.DeleteElectronicIncome(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		h.writeAudit(c, audit.LogOptions{
			EntityType:  "electronic_income",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "Electronic income deleted",
			Before:      toElectronicIncomeView(ei),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *Handler) rangeFromQuery(c *fiber.Ctx) (Range, error) {
	r, err := ParseRange(c.Query("from"), c.Query("to"), h.now().UTC())
	if err != nil {
		return Range{}, httpError(err)
	}
	return r, nil
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

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return t, nil
}

func parseOptionalDate(v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := parseDate(*v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidEntry), errors.Is(err, ErrInvalidRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}
