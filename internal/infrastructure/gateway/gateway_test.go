package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/application/sync"
	"github.com/foodhub/ordersync/internal/domain/order"
	"github.com/foodhub/ordersync/internal/infrastructure/auth"
)

func wireOrder(id, status string, updatedAt time.Time) map[string]any {
	return map[string]any{
		"id":            id,
		"customerId":    "cust-1",
		"restaurantId":  "rest-1",
		"items":         []map[string]any{{"name": "Margherita", "quantity": 1, "unitPrice": "12", "amount": "12"}},
		"totalAmount":   "12",
		"status":        status,
		"paymentStatus": "PENDING",
		"createdAt":     updatedAt.Add(-time.Minute).Format(time.RFC3339),
		"updatedAt":     updatedAt.Format(time.RFC3339),
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds, err := auth.NewStaticProvider(order.RoleRestaurant, "rest-1", "test-token")
	require.NoError(t, err)

	client, err := NewClient(Config{BaseURL: srv.URL, RequestTimeout: time.Second}, creds, zap.NewNop())
	require.NoError(t, err)
	return client, srv
}

func TestClient_TransitionOrder(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/o-1/status", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CONFIRMED", body["status"])

		_ = json.NewEncoder(w).Encode(wireOrder("o-1", "CONFIRMED", now))
	}))

	got, err := client.TransitionOrder(context.Background(), "o-1", order.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Equal(t, now, got.UpdatedAt.UTC())
	assert.True(t, got.TotalAmount.Equal(got.Items[0].Amount))
}

func TestClient_TransitionConflict(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"order": wireOrder("o-1", "CANCELLED", now)})
	}))

	_, err := client.TransitionOrder(context.Background(), "o-1", order.StatusPreparing)
	var conflict *sync.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, order.StatusCancelled, conflict.Current.Status)
}

func TestClient_TransitionConflictWithoutBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	_, err := client.TransitionOrder(context.Background(), "o-1", order.StatusPreparing)
	require.Error(t, err)
	var conflict *sync.ConflictError
	assert.False(t, errors.As(err, &conflict))
}

func TestClient_FetchOrders(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			wireOrder("o-1", "PLACED", now),
			wireOrder("o-2", "BOGUS", now), // malformed entry is skipped
			wireOrder("o-3", "READY", now),
		})
	}))

	orders, err := client.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-1", orders[0].ID)
	assert.Equal(t, "o-3", orders[1].ID)
}

func TestClient_FetchOrder(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/o-9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(wireOrder("o-9", "OUT_FOR_DELIVERY", now))
	}))

	got, err := client.FetchOrder(context.Background(), "o-9")
	require.NoError(t, err)
	assert.Equal(t, order.StatusOutForDelivery, got.Status)
}

func TestClient_CreateOrder(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		_ = json.NewEncoder(w).Encode(wireOrder("new-1", "PLACED", now))
	}))

	draft := order.Draft{RestaurantID: "rest-1", Items: []order.Item{{Name: "Margherita", Quantity: 1}}}
	got, err := client.CreateOrder(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "new-1", got.ID)
	assert.Equal(t, order.StatusPlaced, got.Status)
}

func TestClient_ServerErrorSurfaces(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.FetchOrders(context.Background())
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client going away; an
		// unread POST body masks the disconnect and the handler would
		// outlive the test.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.TransitionOrder(ctx, "o-1", order.StatusConfirmed)
	assert.Error(t, err)
}

func TestNewClient_Validation(t *testing.T) {
	creds, err := auth.NewStaticProvider(order.RoleCustomer, "cust-1", "")
	require.NoError(t, err)

	_, err = NewClient(Config{}, creds, zap.NewNop())
	assert.Error(t, err)
}
