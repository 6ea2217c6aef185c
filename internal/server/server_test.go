package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grill-backend/internal/config"
	"grill-backend/internal/database/dbtest"
	"grill-backend/internal/square"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	signatureKey = "webhook-key"
	notifyURL    = "https://grill.example.com/webhooks/square"
)

// squareStub serves the single order the webhook refers to.
func squareStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/orders/O1":
			_, _ = io.WriteString(w, `{"order":{"id":"O1","state":"COMPLETED","closed_at":"2024-05-01T12:00:00Z",
				"line_items":[{"quantity":"2","catalog_object_id":"V1"}]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errors":[{"code":"NOT_FOUND"}]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Square.SignatureKey = signatureKey
	cfg.Square.NotificationURL = notifyURL
	cfg.Square.LocationID = "LOC"

	db := dbtest.Open(t)
	sq := square.NewClient(cfg.Square, zap.NewNop(), square.WithBaseURL(squareStub(t).URL))
	return New(cfg, Wire(cfg, db, sq, zap.NewNop()))
}

func call(t *testing.T, app *fiber.App, method, path, body, token string, headers ...string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func adminToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	reg := `{"name":"Chef","email":"chef@example.com","password":"grill-master"}`
	if code, raw := call(t, app, http.MethodPost, "/api/auth/register-admin", reg, ""); code != fiber.StatusCreated {
		t.Fatalf("register = %d %s", code, raw)
	}
	code, raw := call(t, app, http.MethodPost, "/api/auth/login", `{"email":"chef@example.com","password":"grill-master"}`, "")
	if code != fiber.StatusOK {
		t.Fatalf("login = %d %s", code, raw)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Token == "" {
		t.Fatalf("login body = %s", raw)
	}
	return out.Token
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	code, raw := call(t, app, http.MethodGet, "/healthz", "", "")
	if code != fiber.StatusOK || !strings.Contains(string(raw), `"ok"`) {
		t.Errorf("healthz = %d %s", code, raw)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)
	paths := []string{"/api/admin/items", "/api/admin/ledger", "/api/admin/catalog", "/api/admin/audit-logs", "/api/admin/finance/tracker"}
	for _, p := range paths {
		code, raw := call(t, app, http.MethodGet, p, "", "")
		if code != fiber.StatusUnauthorized {
			t.Errorf("GET %s = %d, want 401", p, code)
		}
		if !strings.Contains(string(raw), `"error"`) {
			t.Errorf("GET %s body = %s, want error envelope", p, raw)
		}
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app := newTestApp(t)
	body := `{"event_id":"E1","type":"payment.updated","data":{"object":{"payment_id":"P1"}}}`
	code, _ := call(t, app, http.MethodPost, "/webhooks/square", body, "", square.SignatureHeader, "bogus")
	if code != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestSaleWebhookDepletesStock(t *testing.T) {
	app := newTestApp(t)
	token := adminToken(t, app)

	code, raw := call(t, app, http.MethodPost, "/api/admin/items",
		`{"name":"Beef patty","type":"material","uom":"pc","decimals":2,"initial_on_hand":"10"}`, token)
	if code != fiber.StatusCreated {
		t.Fatalf("create item = %d %s", code, raw)
	}
	var item struct {
		ID uint `json:"id"`
	}
	_ = json.Unmarshal(raw, &item)

	recipeBody := fmt.Sprintf(`{"variation_id":"V1","inventory_item_id":%d,"qty_per_sale":"0.5"}`, item.ID)
	if code, raw := call(t, app, http.MethodPost, "/api/admin/recipes", recipeBody, token); code >= 300 {
		t.Fatalf("upsert recipe = %d %s", code, raw)
	}

	event := `{"event_id":"E1","type":"payment.updated","data":{"type":"payment","id":"P1",` +
		`"object":{"payment":{"id":"P1","status":"COMPLETED","order_id":"O1"}}}}`
	sig := square.ComputeSignature(signatureKey, notifyURL, []byte(event))

	code, raw = call(t, app, http.MethodPost, "/webhooks/square", event, "", square.SignatureHeader, sig)
	if code != fiber.StatusOK || string(raw) != `{"ok":true}` {
		t.Fatalf("webhook = %d %s", code, raw)
	}
	code, raw = call(t, app, http.MethodPost, "/webhooks/square", event, "", square.SignatureHeader, sig)
	if code != fiber.StatusOK || !strings.Contains(string(raw), `"duplicate":true`) {
		t.Fatalf("replayed webhook = %d %s", code, raw)
	}

	code, raw = call(t, app, http.MethodGet, "/api/admin/items", "", token)
	if code != fiber.StatusOK {
		t.Fatalf("list items = %d %s", code, raw)
	}
	var items []struct {
		ID     uint            `json:"id"`
		OnHand decimal.Decimal `json:"on_hand"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("decode items: %v (%s)", err, raw)
	}
	if len(items) != 1 || !items[0].OnHand.Round(3).Equal(decimal.NewFromInt(9)) {
		t.Errorf("items = %+v, want on_hand 9", items)
	}

	code, raw = call(t, app, http.MethodGet, fmt.Sprintf("/api/admin/items/%d/ledger", item.ID), "", token)
	if code != fiber.StatusOK || !strings.Contains(string(raw), `"SALE"`) {
		t.Errorf("item ledger = %d %s", code, raw)
	}
}

func TestStaffGetsReadOnlyStockViews(t *testing.T) {
	app := newTestApp(t)
	token := adminToken(t, app)

	staff := `{"name":"Sam","email":"sam@example.com","password":"line-cook-1"}`
	if code, raw := call(t, app, http.MethodPost, "/api/admin/users", staff, token); code != fiber.StatusCreated {
		t.Fatalf("create staff = %d %s", code, raw)
	}
	code, raw := call(t, app, http.MethodPost, "/api/auth/login", `{"email":"sam@example.com","password":"line-cook-1"}`, "")
	if code != fiber.StatusOK {
		t.Fatalf("staff login = %d %s", code, raw)
	}
	var out struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(raw, &out)

	for _, p := range []string{"/api/items", "/api/low-stock"} {
		if code, raw := call(t, app, http.MethodGet, p, "", out.Token); code != fiber.StatusOK {
			t.Errorf("GET %s = %d %s, want 200", p, code, raw)
		}
	}
	for _, p := range []string{"/api/admin/items", "/api/admin/finance/tracker"} {
		if code, _ := call(t, app, http.MethodGet, p, "", out.Token); code != fiber.StatusForbidden {
			t.Errorf("GET %s = %d, want 403", p, code)
		}
	}
}

func TestFinanceTrackerRoute(t *testing.T) {
	app := newTestApp(t)
	token := adminToken(t, app)

	entries := []struct{ path, body string }{
		{"/api/admin/finance/expenses", `{"date":"2024-05-02","payment_type":"card","paid_to":"Butcher","amount":"40.00"}`},
		{"/api/admin/finance/cash-income", `{"date":"2024-05-02","amount":"100"}`},
		{"/api/admin/finance/electronic-income", `{"date":"2024-05-03","channel":"doordash","amount":"25.50"}`},
	}
	for _, e := range entries {
		if code, raw := call(t, app, http.MethodPost, e.path, e.body, token); code != fiber.StatusCreated {
			t.Fatalf("POST %s = %d %s", e.path, code, raw)
		}
	}

	code, raw := call(t, app, http.MethodGet, "/api/admin/finance/tracker?from=2024-05-01&to=2024-05-31", "", token)
	if code != fiber.StatusOK {
		t.Fatalf("tracker = %d %s", code, raw)
	}
	var tr struct {
		NetIncome decimal.Decimal `json:"net_income"`
	}
	if err := json.Unmarshal(raw, &tr); err != nil {
		t.Fatalf("decode tracker: %v (%s)", err, raw)
	}
	if !tr.NetIncome.Equal(decimal.RequireFromString("85.50")) {
		t.Errorf("net_income = %s, want 85.50", tr.NetIncome)
	}

	code, raw = call(t, app, http.MethodGet, "/api/admin/audit-logs", "", token)
	if code != fiber.StatusOK || !strings.Contains(string(raw), `"electronic_income"`) {
		t.Errorf("audit logs = %d %s", code, raw)
	}
}
