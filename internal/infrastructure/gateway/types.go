package gateway

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// orderDTO is the wire shape of an order as served by the backend of record
type orderDTO struct {
	ID            string          `json:"id" validate:"required"`
	CustomerID    string          `json:"customerId" validate:"required"`
	RestaurantID  string          `json:"restaurantId" validate:"required"`
	Items         []itemDTO       `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        string          `json:"status" validate:"required"`
	PaymentStatus string          `json:"paymentStatus"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt" validate:"required"`
}

type itemDTO struct {
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Amount    decimal.Decimal `json:"amount"`
}

type createOrderRequest struct {
	RestaurantID string    `json:"restaurantId"`
	Items        []itemDTO `json:"items"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

// conflictResponse is the body of a 409: the server's current order
type conflictResponse struct {
	Order orderDTO `json:"order"`
}

func toItemDTOs(items []order.Item) []itemDTO {
	out := make([]itemDTO, len(items))
	for i, it := range items {
		out[i] = itemDTO{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Amount:    it.Amount,
		}
	}
	return out
}

// toDomain validates a wire order and converts it to the domain type.
func (c *Client) toDomain(dto orderDTO) (order.Order, error) {
	if err := c.validate.Struct(dto); err != nil {
		return order.Order{}, fmt.Errorf("malformed order payload: %w", err)
	}

	status := order.Status(dto.Status)
	if !status.IsValid() {
		return order.Order{}, fmt.Errorf("unknown order status %q", dto.Status)
	}
	payment := order.PaymentStatus(dto.PaymentStatus)
	if dto.PaymentStatus != "" && !payment.IsValid() {
		return order.Order{}, fmt.Errorf("unknown payment status %q", dto.PaymentStatus)
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
		Status:        status,
		PaymentStatus: payment,
		CreatedAt:     dto.CreatedAt,
		UpdatedAt:     dto.UpdatedAt,
	}
	if err := o.Validate(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}
