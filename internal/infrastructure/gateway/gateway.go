// Package gateway implements the request-response client of the backend
// of record. It is a thin I/O wrapper: transition legality, merge ordering
// and rollback all live in the sync core.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/application/sync"
	"github.com/foodhub/ordersync/internal/domain/order"
	"github.com/foodhub/ordersync/internal/infrastructure/auth"
)

// maxResponseSize is the maximum allowed response size from the backend (4MB)
const maxResponseSize = 4 * 1024 * 1024

// Config holds gateway settings
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client is the REST client of the backend of record
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials auth.Provider
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewClient creates a gateway client. Requests are stamped with the
// credential supplied by the provider and bounded by the configured
// timeout.
func NewClient(cfg Config, credentials auth.Provider, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base URL: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		credentials: credentials,
		validate:    validator.New(),
		logger:      logger,
	}, nil
}

// CreateOrder implements sync.Gateway
func (c *Client) CreateOrder(ctx context.Context, draft order.Draft) (order.Order, error) {
	if err := draft.Validate(); err != nil {
		return order.Order{}, err
	}
	body := createOrderRequest{
		RestaurantID: draft.RestaurantID,
		Items:        toItemDTOs(draft.Items),
	}
	var resp orderDTO
	if err := c.do(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return order.Order{}, err
	}
	return c.toDomain(resp)
}

// TransitionOrder implements sync.Gateway. A 409 response carries the
// server's current order and is returned as a *sync.ConflictError.
func (c *Client) TransitionOrder(ctx context.Context, orderID string, target order.Status) (order.Order, error) {
	body := transitionRequest{Status: target.String()}
	var resp orderDTO
	err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/status", body, &resp)
	if err != nil {
		var conflict *conflictResponse
		if httpErr, ok := err.(*httpError); ok && httpErr.status == http.StatusConflict {
			conflict = httpErr.conflict
		}
		if conflict != nil {
			current, convErr := c.toDomain(conflict.Order)
			if convErr != nil {
				return order.Order{}, convErr
			}
			return order.Order{}, &sync.ConflictError{Current: current}
		}
		return order.Order{}, err
	}
	return c.toDomain(resp)
}

// FetchOrders implements sync.Gateway and sync.Fetcher
func (c *Client) FetchOrders(ctx context.Context) ([]order.Order, error) {
	var resp []orderDTO
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, err
	}
	orders := make([]order.Order, 0, len(resp))
	for _, dto := range resp {
		o, err := c.toDomain(dto)
		if err != nil {
			// A malformed entry must not poison the whole reconciliation.
			c.logger.Warn("skipping malformed order in list response",
				zap.String("order_id", dto.ID),
				zap.Error(err),
			)
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// FetchOrder implements sync.Gateway
func (c *Client) FetchOrder(ctx context.Context, orderID string) (order.Order, error) {
	var resp orderDTO
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return order.Order{}, err
	}
	return c.toDomain(resp)
}

// httpError carries the response status for error mapping
type httpError struct {
	status   int
	body     string
	conflict *conflictResponse
}

func (e *httpError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	cred, err := c.credentials.Credential(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve credential: %w", err)
	}
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		he := &httpError{status: resp.StatusCode, body: string(data)}
		var conflict conflictResponse
		if json.Unmarshal(data, &conflict) == nil && conflict.Order.ID != "" {
			he.conflict = &conflict
		}
		return he
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpError{status: resp.StatusCode, body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
