package square

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"grill-backend/internal/config"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.SquareConfig{
		AccessToken: "token-123",
		Environment: "sandbox",
		LocationID:  "LOC1",
		APIVersion:  "2024-10-17",
	}
	return NewClient(cfg, zap.NewNop(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestClient_GetOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders/O1" {
			t.Errorf("path = %s, want /v2/orders/O1", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Square-Version"); got != "2024-10-17" {
			t.Errorf("Square-Version = %q", got)
		}
		_, _ = w.Write([]byte(`{"order":{"id":"O1","state":"COMPLETED","closed_at":"2024-05-01T10:00:00Z",
			"line_items":[{"quantity":"2","catalog_object_id":"VAR1","modifiers":[{"catalog_object_id":"MOD1"}]}]}}`))
	}))

	order, err := c.GetOrder(context.Background(), "O1")
	if err != nil {
		t.Fatalf("GetOrder() error: %v", err)
	}
	if order.ID != "O1" || len(order.LineItems) != 1 {
		t.Fatalf("order = %+v", order)
	}
	li := order.LineItems[0]
	if li.Quantity != "2" || li.CatalogObjectID != "VAR1" || len(li.Modifiers) != 1 || li.Modifiers[0].CatalogObjectID != "MOD1" {
		t.Errorf("line item = %+v", li)
	}
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND","detail":"missing"}]}`))
	}))

	_, err := c.GetPayment(context.Background(), "P404")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPayment() error = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should unwrap to *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Errors[0].Code != "NOT_FOUND" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClient_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.GetRefund(context.Background(), "R1")
	if err == nil {
		t.Fatal("GetRefund() should fail on 500")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("500 should not be reported as ErrNotFound")
	}
}

func TestClient_SearchOrdersPaginates(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders/search" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req searchOrdersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if len(req.LocationIDs) != 1 || req.LocationIDs[0] != "LOC1" {
			t.Errorf("LocationIDs = %v", req.LocationIDs)
		}
		if got := req.Query.Filter.StateFilter.States; len(got) != 1 || got[0] != StatusCompleted {
			t.Errorf("States = %v", got)
		}
		if req.Query.Filter.DateTimeFilter.ClosedAt.StartAt != "2024-05-01T00:00:00Z" {
			t.Errorf("StartAt = %s", req.Query.Filter.DateTimeFilter.ClosedAt.StartAt)
		}

		calls++
		switch req.Cursor {
		case "":
			_, _ = w.Write([]byte(`{"orders":[{"id":"O1"},{"id":"O2"}],"cursor":"page2"}`))
		case "page2":
			_, _ = w.Write([]byte(`{"orders":[{"id":"O3"}]}`))
		default:
			t.Errorf("unexpected cursor %q", req.Cursor)
		}
	}))

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	orders, err := c.SearchOrders(context.Background(), start, start.Add(24*time.Hour-time.Millisecond))
	if err != nil {
		t.Fatalf("SearchOrders() error: %v", err)
	}
	if len(orders) != 3 || calls != 2 {
		t.Errorf("got %d orders in %d calls, want 3 in 2", len(orders), calls)
	}
}

func TestClient_ListCatalogVariations(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("types") != "ITEM" {
			t.Errorf("types = %q", r.URL.Query().Get("types"))
		}
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"objects":[
				{"type":"ITEM","id":"I1","item_data":{"name":"Burger","variations":[
					{"id":"V1","item_variation_data":{"name":"Regular","sku":"BRG-R"}},
					{"id":"V2","item_variation_data":{"name":"Double"}}]}},
				{"type":"CATEGORY","id":"C1"}],"cursor":"next"}`))
			return
		}
		_, _ = w.Write([]byte(`{"objects":[{"type":"ITEM","id":"I2","item_data":{"name":"Fries","variations":[{"id":"V3"}]}}]}`))
	}))

	vars, err := c.ListCatalogVariations(context.Background())
	if err != nil {
		t.Fatalf("ListCatalogVariations() error: %v", err)
	}
	if len(vars) != 3 {
		t.Fatalf("got %d variations, want 3", len(vars))
	}
	if vars[0] != (CatalogVariation{VariationID: "V1", ItemName: "Burger", VariationName: "Regular", SKU: "BRG-R"}) {
		t.Errorf("vars[0] = %+v", vars[0])
	}
	if vars[2].VariationID != "V3" || vars[2].ItemName != "Fries" {
		t.Errorf("vars[2] = %+v", vars[2])
	}
}
