package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	appsync "github.com/foodhub/ordersync/internal/application/sync"
	"github.com/foodhub/ordersync/internal/domain/order"
)

// pushOrder is the wire shape of an order inside a push delivery. It
// mirrors the REST gateway's order payload.
type pushOrder struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customerId"`
	RestaurantID  string          `json:"restaurantId"`
	Items         []pushItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type pushItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Amount    decimal.Decimal `json:"amount"`
}

// decodeEnvelope parses a raw push payload into a push message. Payloads
// that do not decode or fail structural validation are rejected; the
// caller drops them and keeps consuming.
func decodeEnvelope(payload []byte) (appsync.PushMessage, error) {
	var env pushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return appsync.PushMessage{}, fmt.Errorf("failed to decode push envelope: %w", err)
	}

	var kind appsync.PushKind
	switch appsync.PushKind(env.Event) {
	case appsync.PushNewOrder:
		kind = appsync.PushNewOrder
	case appsync.PushOrderUpdated:
		kind = appsync.PushOrderUpdated
	default:
		return appsync.PushMessage{}, fmt.Errorf("unknown push event %q", env.Event)
	}

	var dto pushOrder
	if err := json.Unmarshal(env.Order, &dto); err != nil {
		return appsync.PushMessage{}, fmt.Errorf("failed to decode pushed order: %w", err)
	}

	items := make([]order.Item, len(dto.Items))
	for i, it := range dto.Items {
		items[i] = order.Item{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Amount:    it.Amount,
		}
	}
	o := order.Order{
		ID:            dto.ID,
		CustomerID:    dto.CustomerID,
		RestaurantID:  dto.RestaurantID,
		Items:         items,
		TotalAmount:   dto.TotalAmount,
		Status:        order.Status(dto.Status),
		PaymentStatus: order.PaymentStatus(dto.PaymentStatus),
		CreatedAt:     dto.CreatedAt,
		UpdatedAt:     dto.UpdatedAt,
	}
	if err := o.Validate(); err != nil {
		return appsync.PushMessage{}, err
	}

	return appsync.PushMessage{Kind: kind, Order: o}, nil
}
