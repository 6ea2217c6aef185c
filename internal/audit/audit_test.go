package audit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"grill-backend/internal/database/dbtest"
	"grill-backend/internal/models"
)

func TestWriteLogAndList(t *testing.T) {
	db := dbtest.Open(t)

	uid := uint(3)
	entries := []LogOptions{
		{Actor: Actor{UserID: &uid, UserName: "ada"}, EntityType: "inventory_item", EntityID: 1, Action: models.AuditActionCreate, After: map[string]string{"name": "Bun"}},
		{Actor: System, EntityType: "reconciliation", Action: models.AuditActionReconcile, Description: "nightly"},
		{Actor: Actor{UserID: &uid, UserName: "ada"}, EntityType: "inventory_item", EntityID: 2, Action: models.AuditActionAdjust},
	}
	for _, e := range entries {
		if err := WriteLog(db, e); err != nil {
			t.Fatalf("WriteLog() error: %v", err)
		}
	}

	var first models.AuditLog
	if err := db.Where("entity_id = ?", 1).First(&first).Error; err != nil {
		t.Fatal(err)
	}
	if first.BeforeData != "null" || first.AfterData != `{"name":"Bun"}` {
		t.Errorf("before/after = %q / %q", first.BeforeData, first.AfterData)
	}

	app := fiber.New()
	app.Get("/audit-logs", ListAuditLogsHandler(db))

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?entity_type=inventory_item", 2},
		{"?entity_type=inventory_item&entity_id=2", 1},
		{"?user_id=3", 2},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", "/audit-logs"+tt.query, nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		var got []AuditLogResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if len(got) != tt.want {
			t.Errorf("GET /audit-logs%s returned %d rows, want %d", tt.query, len(got), tt.want)
		}
	}
}
