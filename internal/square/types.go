package square

import (
	"strings"
	"time"
)

const StatusCompleted = "COMPLETED"

type Order struct {
	ID         string          `json:"id"`
	LocationID string          `json:"location_id,omitempty"`
	State      string          `json:"state,omitempty"`
	LineItems  []OrderLineItem `json:"line_items,omitempty"`
	CreatedAt  string          `json:"created_at,omitempty"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
	ClosedAt   string          `json:"closed_at,omitempty"`
}

type OrderLineItem struct {
	UID             string                  `json:"uid,omitempty"`
	Name            string                  `json:"name,omitempty"`
	Quantity        string                  `json:"quantity"`
	CatalogObjectID string                  `json:"catalog_object_id,omitempty"`
	Modifiers       []OrderLineItemModifier `json:"modifiers,omitempty"`
}

type OrderLineItemModifier struct {
	UID             string `json:"uid,omitempty"`
	Name            string `json:"name,omitempty"`
	CatalogObjectID string `json:"catalog_object_id,omitempty"`
}

type Payment struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	OrderID   string `json:"order_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type Refund struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PaymentID   string `json:"payment_id,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

// CatalogVariation is one sellable variation flattened out of a catalog ITEM.
type CatalogVariation struct {
	VariationID   string
	ItemName      string
	VariationName string
	SKU           string
}

func (p *Payment) Completed() bool {
	return p != nil && strings.EqualFold(p.Status, StatusCompleted)
}

func (r *Refund) Completed() bool {
	return r != nil && strings.EqualFold(r.Status, StatusCompleted)
}

// FirstTime returns the first parseable RFC3339 timestamp among candidates.
func FirstTime(candidates ...string) (time.Time, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, c); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
