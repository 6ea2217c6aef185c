package finance

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grill-backend/internal/database/dbtest"
	"grill-backend/internal/models"
)

func newFinanceApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	h := NewHandler(db, NewStore(db, zap.NewNop()), zap.NewNop())
	h.now = func() time.Time { return time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC) }

	app := fiber.New()
	app.Get("/tracker", h.Tracker())
	app.Get("/expenses", h.ListExpenses())
	app.Post("/expenses", h.CreateExpense())
	app.Put("/expenses/:id", h.UpdateExpense())
	app.Delete("/expenses/:id", h.DeleteExpense())
	app.Post("/cash-income", h.CreateCashIncome())
	app.Put("/cash-income/:id", h.UpdateCashIncome())
	app.Post("/electronic-income", h.CreateElectronicIncome())
	app.Delete("/electronic-income/:id", h.DeleteElectronicIncome())
	return app, db
}

func send(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func TestHandler_CreateValidation(t *testing.T) {
	app, _ := newFinanceApp(t)

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"expense ok", "/expenses", `{"date":"2024-05-02","payment_type":"card","paid_to":"Butcher","amount":"40"}`, fiber.StatusCreated},
		{"expense bad date", "/expenses", `{"date":"05/02/2024","payment_type":"card","paid_to":"Butcher","amount":"40"}`, fiber.StatusBadRequest},
		{"expense missing amount", "/expenses", `{"date":"2024-05-02","payment_type":"card","paid_to":"Butcher"}`, fiber.StatusBadRequest},
		{"expense negative amount", "/expenses", `{"date":"2024-05-02","payment_type":"card","paid_to":"Butcher","amount":"-1"}`, fiber.StatusBadRequest},
		{"cash ok", "/cash-income", `{"date":"2024-05-02","amount":120.5,"notes":"dinner"}`, fiber.StatusCreated},
		{"cash long notes", "/cash-income", fmt.Sprintf(`{"date":"2024-05-02","amount":1,"notes":%q}`, strings.Repeat("n", maxNotesLength+1)), fiber.StatusBadRequest},
		{"electronic missing channel", "/electronic-income", `{"date":"2024-05-02","amount":"10"}`, fiber.StatusBadRequest},
		{"electronic ok", "/electronic-income", `{"date":"2024-05-02","channel":"doordash","amount":"10"}`, fiber.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := send(t, app, http.MethodPost, tt.path, tt.body)
			if code != tt.want {
				t.Errorf("POST %s = %d %s, want %d", tt.path, code, raw, tt.want)
			}
		})
	}
}

func TestHandler_UpdateAndDeleteExpense(t *testing.T) {
	app, db := newFinanceApp(t)

	code, raw := send(t, app, http.MethodPost, "/expenses",
		`{"date":"2024-05-02","payment_type":"card","paid_to":"Butcher","description":"brisket","amount":"40"}`)
	if code != fiber.StatusCreated {
		t.Fatalf("create = %d %s", code, raw)
	}
	var created ExpenseView
	_ = json.Unmarshal(raw, &created)
	path := fmt.Sprintf("/expenses/%d", created.ID)

	if code, _ := send(t, app, http.MethodPut, path, `{}`); code != fiber.StatusBadRequest {
		t.Errorf("empty update = %d, want 400", code)
	}
	if code, _ := send(t, app, http.MethodPut, "/expenses/999", `{"amount":"1"}`); code != fiber.StatusNotFound {
		t.Errorf("update missing = %d, want 404", code)
	}

	code, raw = send(t, app, http.MethodPut, path, `{"paid_to":"Market","amount":"42.10"}`)
	if code != fiber.StatusOK {
		t.Fatalf("update = %d %s", code, raw)
	}
	var updated ExpenseView
	_ = json.Unmarshal(raw, &updated)
	if updated.PaidTo != "Market" || updated.Description != "brisket" || !updated.Amount.Equal(dec("42.10")) {
		t.Errorf("updated = %+v", updated)
	}

	if code, _ := send(t, app, http.MethodDelete, path, ""); code != fiber.StatusNoContent {
		t.Errorf("delete = %d, want 204", code)
	}
	if code, _ := send(t, app, http.MethodDelete, path, ""); code != fiber.StatusNotFound {
		t.Errorf("second delete = %d, want 404", code)
	}

	var actions []models.AuditAction
	if err := db.Model(&models.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", "expense", created.ID).
		Order("id ASC").Pluck("action", &actions).Error; err != nil {
		t.Fatal(err)
	}
	want := []models.AuditAction{models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete}
	if fmt.Sprint(actions) != fmt.Sprint(want) {
		t.Errorf("audit actions = %v, want %v", actions, want)
	}
}

func TestHandler_TrackerDefaultsToCurrentMonth(t *testing.T) {
	app, _ := newFinanceApp(t)

	for _, body := range []string{
		`{"date":"2024-05-01","amount":"100"}`,
		`{"date":"2024-04-30","amount":"999"}`,
	} {
		if code, raw := send(t, app, http.MethodPost, "/cash-income", body); code != fiber.StatusCreated {
			t.Fatalf("create cash = %d %s", code, raw)
		}
	}
	if code, raw := send(t, app, http.MethodPost, "/expenses",
		`{"date":"2024-05-31","payment_type":"cash","paid_to":"Ice","amount":"12.5"}`); code != fiber.StatusCreated {
		t.Fatalf("create expense = %d %s", code, raw)
	}

	code, raw := send(t, app, http.MethodGet, "/tracker", "")
	if code != fiber.StatusOK {
		t.Fatalf("tracker = %d %s", code, raw)
	}
	var got Tracker
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v (%s)", err, raw)
	}
	if got.Range != (RangeView{From: "2024-05-01", To: "2024-05-31"}) {
		t.Errorf("range = %+v, want May 2024", got.Range)
	}
	if !got.NetIncome.Equal(dec("87.5")) {
		t.Errorf("net_income = %s, want 87.5", got.NetIncome)
	}

	if code, _ := send(t, app, http.MethodGet, "/tracker?from=2024-05-10&to=2024-05-01", ""); code != fiber.StatusBadRequest {
		t.Errorf("inverted range = %d, want 400", code)
	}
	if code, _ := send(t, app, http.MethodGet, "/expenses?from=2024-13-01", ""); code != fiber.StatusBadRequest {
		t.Errorf("bad from = %d, want 400", code)
	}
}

func TestHandler_DeleteElectronicIncome(t *testing.T) {
	app, _ := newFinanceApp(t)

	code, raw := send(t, app, http.MethodPost, "/electronic-income", `{"date":"2024-05-02","channel":"ubereats","amount":"33"}`)
	if code != fiber.StatusCreated {
		t.Fatalf("create = %d %s", code, raw)
	}
	var ei ElectronicIncomeView
	_ = json.Unmarshal(raw, &ei)

	if code, _ := send(t, app, http.MethodDelete, "/electronic-income/abc", ""); code != fiber.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", code)
	}
	if code, _ := send(t, app, http.MethodDelete, fmt.Sprintf("/electronic-income/%d", ei.ID), ""); code != fiber.StatusNoContent {
		t.Errorf("delete = %d, want 204", code)
	}
}
