package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/foodhub/ordersync/internal/application/sync"
	"github.com/foodhub/ordersync/internal/domain/order"
)

func TestDecodeEnvelope(t *testing.T) {
	payload := []byte(`{
		"event": "orderUpdated",
		"order": {
			"id": "ord-1",
			"customerId": "cust-1",
			"restaurantId": "rest-1",
			"items": [{"name": "Margherita", "quantity": 2, "unitPrice": "9.50", "amount": "19.00"}],
			"totalAmount": "19.00",
			"status": "CONFIRMED",
			"paymentStatus": "PAID",
			"createdAt": "2025-06-01T12:00:00Z",
			"updatedAt": "2025-06-01T12:05:00Z"
		}
	}`)

	msg, err := decodeEnvelope(payload)
	require.NoError(t, err)
	assert.Equal(t, appsync.PushOrderUpdated, msg.Kind)
	assert.Equal(t, "ord-1", msg.Order.ID)
	assert.Equal(t, order.StatusConfirmed, msg.Order.Status)
	assert.Equal(t, order.PaymentPaid, msg.Order.PaymentStatus)
	require.Len(t, msg.Order.Items, 1)
	assert.Equal(t, "Margherita", msg.Order.Items[0].Name)
	assert.True(t, msg.Order.TotalAmount.Equal(msg.Order.Items[0].Amount))
	assert.Equal(t, time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC), msg.Order.UpdatedAt)
}

func TestDecodeEnvelope_NewOrder(t *testing.T) {
	payload := []byte(`{
		"event": "newOrder",
		"order": {
			"id": "ord-2",
			"customerId": "cust-1",
			"restaurantId": "rest-1",
			"totalAmount": "5.00",
			"status": "PLACED",
			"updatedAt": "2025-06-01T12:00:00Z"
		}
	}`)

	msg, err := decodeEnvelope(payload)
	require.NoError(t, err)
	assert.Equal(t, appsync.PushNewOrder, msg.Kind)
	assert.Equal(t, order.StatusPlaced, msg.Order.Status)
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `push!`},
		{"unknown event", `{"event": "orderDeleted", "order": {}}`},
		{"order not an object", `{"event": "orderUpdated", "order": "gone"}`},
		{"missing id", `{"event": "orderUpdated", "order": {"status": "PLACED", "updatedAt": "2025-06-01T12:00:00Z"}}`},
		{"unknown status", `{"event": "orderUpdated", "order": {"id": "ord-1", "status": "EATEN", "updatedAt": "2025-06-01T12:00:00Z"}}`},
		{"zero timestamp", `{"event": "orderUpdated", "order": {"id": "ord-1", "status": "PLACED"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEnvelope([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestRoomNaming(t *testing.T) {
	room := appsync.Room{Role: order.RoleRestaurant, OwnerID: "rest-42"}
	assert.Equal(t, "orders:room:restaurant:rest-42", roomChannel(room))
	assert.Equal(t, "restaurant.rest-42", bindingKey(room))

	room = appsync.Room{Role: order.RoleCustomer, OwnerID: "cust-7"}
	assert.Equal(t, "orders:room:customer:cust-7", roomChannel(room))
	assert.Equal(t, "customer.cust-7", bindingKey(room))
}
