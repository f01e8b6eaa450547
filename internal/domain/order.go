package domain

import (
	"math"
	"time"
)

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusCompleted = "completed"
)

// TotalTolerance is the maximum allowed deviation between client-claimed and
// server-computed monetary totals, in currency units.
const TotalTolerance = 0.01

// Order represents a customer order with its line-item snapshot. Items are
// captured at checkout time and never re-read from the catalog afterwards.
type Order struct {
	ID           string      `json:"order_id"`
	UserIdentity string      `json:"user_identity"`
	SessionID    string      `json:"session_id,omitempty"`
	Status       string      `json:"status"`
	Items        []OrderItem `json:"items"`
	Subtotal     float64     `json:"subtotal"`
	ShippingCost float64     `json:"shipping_cost"`
	TotalCost    float64     `json:"total_cost"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// OrderItem represents a line item in an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// LineTotal returns the total price for this line item.
func (i *OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// ComputeSubtotal sums the line totals of the given items.
func ComputeSubtotal(items []OrderItem) float64 {
	var subtotal float64
	for i := range items {
		subtotal += items[i].LineTotal()
	}
	return subtotal
}

// WithinTolerance reports whether two monetary values agree within
// TotalTolerance.
func WithinTolerance(a, b float64) bool {
	return math.Abs(a-b) <= TotalTolerance
}

// AmountDue returns the order total in integer currency units, as quoted to
// the payment gateway and confirmed back by the webhook.
func (o *Order) AmountDue() int64 {
	return int64(o.TotalCost)
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusFailed,
		OrderStatusCompleted,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transition.
func IsTerminal(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusFailed
}

// AllowedTransitions defines which status transitions are valid. The webhook
// handler moves pending orders to paid or failed; the settlement worker moves
// paid orders to completed or failed. Terminal states admit nothing.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:   {OrderStatusPaid, OrderStatusFailed},
		OrderStatusPaid:      {OrderStatusCompleted, OrderStatusFailed},
		OrderStatusFailed:    {},
		OrderStatusCompleted: {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}
