package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// OrderSnapshotModel is the cached row for one order. Items are stored
// as a JSON blob; the cache never queries into them.
type OrderSnapshotModel struct {
	OrderID       string    `gorm:"primaryKey;column:order_id"`
	CustomerID    string    `gorm:"column:customer_id;index"`
	RestaurantID  string    `gorm:"column:restaurant_id;index"`
	ItemsJSON     string    `gorm:"column:items_json;type:text"`
	TotalAmount   string    `gorm:"column:total_amount"`
	Status        string    `gorm:"column:status"`
	PaymentStatus string    `gorm:"column:payment_status"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;index"`
}

// TableName returns the table name for order snapshots
func (OrderSnapshotModel) TableName() string {
	return "order_snapshots"
}

type itemRow struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Amount    string `json:"amount"`
}

// FromDomain converts a domain order to its cached row
func (m *OrderSnapshotModel) FromDomain(o order.Order) error {
	rows := make([]itemRow, len(o.Items))
	for i, it := range o.Items {
		rows[i] = itemRow{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
			Amount:    it.Amount.String(),
		}
	}
	blob, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	m.OrderID = o.ID
	m.CustomerID = o.CustomerID
	m.RestaurantID = o.RestaurantID
	m.ItemsJSON = string(blob)
	m.TotalAmount = o.TotalAmount.String()
	m.Status = string(o.Status)
	m.PaymentStatus = string(o.PaymentStatus)
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	return nil
}

// ToDomain converts a cached row back to a domain order
func (m *OrderSnapshotModel) ToDomain() (order.Order, error) {
	var rows []itemRow
	if m.ItemsJSON != "" {
		if err := json.Unmarshal([]byte(m.ItemsJSON), &rows); err != nil {
			return order.Order{}, fmt.Errorf("failed to decode items: %w", err)
		}
	}
	items := make([]order.Item, len(rows))
	for i, row := range rows {
		unitPrice, err := decimal.NewFromString(row.UnitPrice)
		if err != nil {
			return order.Order{}, fmt.Errorf("invalid cached unit price: %w", err)
		}
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return order.Order{}, fmt.Errorf("invalid cached amount: %w", err)
		}
		items[i] = order.Item{
			Name:      row.Name,
			Quantity:  row.Quantity,
			UnitPrice: unitPrice,
			Amount:    amount,
		}
	}

	total, err := decimal.NewFromString(m.TotalAmount)
	if err != nil {
		return order.Order{}, fmt.Errorf("invalid cached total: %w", err)
	}

	return order.Order{
		ID:            m.OrderID,
		CustomerID:    m.CustomerID,
		RestaurantID:  m.RestaurantID,
		Items:         items,
		TotalAmount:   total,
		Status:        order.Status(m.Status),
		PaymentStatus: order.PaymentStatus(m.PaymentStatus),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}
