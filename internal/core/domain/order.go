package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPlaced  OrderStatus = "placed"
	// OrderStatusAborted marks a failed order that still holds reservations
	// its rollback could not return.
	OrderStatusAborted OrderStatus = "aborted"
)

type Order struct {
	ID            int64
	UserID        int64
	OrderDate     time.Time
	OrderQuantity int
	TotalPrice    decimal.Decimal
	Status        OrderStatus
	Items         []OrderLineItem
}

// OrderLineItem holds the price snapshot taken when the line was reserved.
type OrderLineItem struct {
	ID               int64
	OrderID          int64
	ProductID        int64
	Quantity         int
	UnitPrice        decimal.Decimal
	LineTotal        decimal.Decimal
	ReservationToken string
}

type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// DistinctProducts counts the unique product ids across the requested lines.
func DistinctProducts(lines []LineRequest) int {
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		seen[l.ProductID] = struct{}{}
	}
	return len(seen)
}

// OrderEvent is published after an order changes state.
type OrderEvent struct {
	Type          string          `json:"type"`
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	OrderQuantity int             `json:"order_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)
