package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"grill-backend/internal/config"
)

const (
	productionBaseURL = "https://connect.squareup.com"
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	userAgent         = "grill-backend/1.0"
)

var ErrNotFound = errors.New("square object not found")

// APIError is a non-2xx response from the Square API.
type APIError struct {
	StatusCode int
	Errors     []APIErrorDetail `json:"errors"`
}

type APIErrorDetail struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("square api %d: %s %s", e.StatusCode, e.Errors[0].Code, e.Errors[0].Detail)
	}
	return fmt.Sprintf("square api %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL     string
	accessToken string
	apiVersion  string
	locationID  string
	http        *http.Client
	logger      *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(cfg config.SquareConfig, log *zap.Logger, opts ...Option) *Client {
	base := sandboxBaseURL
	if cfg.Environment == "production" {
		base = productionBaseURL
	}
	c := &Client{
		baseURL:     base,
		accessToken: cfg.AccessToken,
		apiVersion:  cfg.APIVersion,
		locationID:  cfg.LocationID,
		http:        &http.Client{Timeout: 30 * time.Second},
		logger:      log,
	}
	for _, opt := range opts {
		opt(c)
	}

	log.Info("square client initialized",
		zap.String("environment", cfg.Environment),
		zap.String("location_id", cfg.LocationID))
	return c
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, fmt.Errorf("retrieve order %s: %w", orderID, err)
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("retrieve order %s: %w", orderID, ErrNotFound)
	}
	return resp.Order, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}
	var resp struct {
		Payment *Payment `json:"payment"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	if resp.Payment == nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, ErrNotFound)
	}
	return resp.Payment, nil
}

func (c *Client) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	if refundID == "" {
		return nil, errors.New("refund id is required")
	}
	var resp struct {
		Refund *Refund `json:"refund"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/refunds/"+url.PathEscape(refundID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get refund %s: %w", refundID, err)
	}
	if resp.Refund == nil {
		return nil, fmt.Errorf("get refund %s: %w", refundID, ErrNotFound)
	}
	return resp.Refund, nil
}

type searchOrdersRequest struct {
	LocationIDs   []string          `json:"location_ids"`
	Query         searchOrdersQuery `json:"query"`
	Cursor        string            `json:"cursor,omitempty"`
	ReturnEntries bool              `json:"return_entries"`
}

type searchOrdersQuery struct {
	Filter struct {
		DateTimeFilter struct {
			ClosedAt timeRange `json:"closed_at"`
		} `json:"date_time_filter"`
		StateFilter struct {
			States []string `json:"states"`
		} `json:"state_filter"`
	} `json:"filter"`
	Sort struct {
		SortField string `json:"sort_field"`
		SortOrder string `json:"sort_order"`
	} `json:"sort"`
}

type timeRange struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

// SearchOrders returns every COMPLETED order closed within [startAt, endAt],
// following cursors until the result set is exhausted.
func (c *Client) SearchOrders(ctx context.Context, startAt, endAt time.Time) ([]Order, error) {
	if c.locationID == "" {
		return nil, errors.New("square location id is not configured")
	}

	req := searchOrdersRequest{LocationIDs: []string{c.locationID}}
	req.Query.Filter.DateTimeFilter.ClosedAt = timeRange{
		StartAt: startAt.UTC().Format(time.RFC3339Nano),
		EndAt:   endAt.UTC().Format(time.RFC3339Nano),
	}
	req.Query.Filter.StateFilter.States = []string{StatusCompleted}
	req.Query.Sort.SortField = "CLOSED_AT"
	req.Query.Sort.SortOrder = "ASC"

	var orders []Order
	for {
		var resp struct {
			Orders []Order `json:"orders"`
			Cursor string  `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodPost, "/v2/orders/search", req, &resp); err != nil {
			return nil, fmt.Errorf("search orders: %w", err)
		}
		orders = append(orders, resp.Orders...)
		if resp.Cursor == "" {
			break
		}
		req.Cursor = resp.Cursor
	}
	return orders, nil
}

type catalogObject struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	ItemData *struct {
		Name       string `json:"name"`
		Variations []struct {
			ID                string `json:"id"`
			ItemVariationData *struct {
				Name string `json:"name"`
				SKU  string `json:"sku"`
			} `json:"item_variation_data"`
		} `json:"variations"`
	} `json:"item_data"`
}

// ListCatalogVariations pages through catalog ITEM objects and flattens their
// variations.
func (c *Client) ListCatalogVariations(ctx context.Context) ([]CatalogVariation, error) {
	var out []CatalogVariation
	cursor := ""
	for {
		q := url.Values{"types": {"ITEM"}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp struct {
			Objects []catalogObject `json:"objects"`
			Cursor  string          `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodGet, "/v2/catalog/list?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("list catalog: %w", err)
		}

		for _, obj := range resp.Objects {
			if obj.Type != "ITEM" || obj.ItemData == nil {
				continue
			}
			for _, v := range obj.ItemData.Variations {
				cv := CatalogVariation{VariationID: v.ID, ItemName: obj.ItemData.Name}
				if v.ItemVariationData != nil {
					cv.VariationName = v.ItemVariationData.Name
					cv.SKU = v.ItemVariationData.SKU
				}
				out = append(out, cv)
			}
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiVersion != "" {
		req.Header.Set("Square-Version", c.apiVersion)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		c.logger.Debug("square api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
