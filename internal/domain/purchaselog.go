package domain

import "time"

// PurchaseLog is the fire-and-forget audit record written when an order
// reaches a payment or settlement outcome. Failures to write it never affect
// the order itself.
type PurchaseLog struct {
	ID            string      `json:"id"`
	OrderID       string      `json:"order_id"`
	UserIdentity  string      `json:"user_identity"`
	SessionID     string      `json:"session_id,omitempty"`
	Items         []OrderItem `json:"items"`
	Subtotal      float64     `json:"subtotal"`
	ShippingCost  float64     `json:"shipping_cost"`
	TotalCost     float64     `json:"total_cost"`
	PaymentStatus string      `json:"payment_status"`
	CreatedAt     time.Time   `json:"created_at"`
}
