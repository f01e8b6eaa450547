package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
	pkgkafka "github.com/nthlam/WEB-NOVA-SCI/pkg/kafka"
)

// Kafka topics for order lifecycle events.
var (
	TopicOrderPaid    = pkgkafka.Topic("order", "paid")
	TopicOrderSettled = pkgkafka.Topic("order", "settled")
)

// Aggregate type constant.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceOrders = "webnova-orders"

// OrderPaidData is the payload for an order.paid event. It carries the full
// item snapshot so the settlement worker can decrement stock without a join
// back to the order at consume time.
type OrderPaidData struct {
	OrderID          string          `json:"order_id"`
	UserIdentity     string          `json:"user_identity"`
	SessionID        string          `json:"session_id"`
	PaymentRequestID string          `json:"payment_request_id"`
	Items            []OrderItemData `json:"items"`
	TotalCost        float64         `json:"total_cost"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// OrderSettledData is the payload for an order.settled event, published after
// the settlement worker reaches a terminal status for a paid order.
type OrderSettledData struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// Producer publishes order lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the ordering service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderPaid publishes an order.paid event after payment confirmation.
// The settlement consumer picks it up to reserve stock and finalize the order.
func (p *Producer) PublishOrderPaid(ctx context.Context, order *domain.Order, paymentRequestID string) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	data := OrderPaidData{
		OrderID:          order.ID,
		UserIdentity:     order.UserIdentity,
		SessionID:        order.SessionID,
		PaymentRequestID: paymentRequestID,
		Items:            items,
		TotalCost:        order.TotalCost,
	}

	event, err := pkgkafka.NewEvent(TopicOrderPaid, order.ID, AggregateTypeOrder, SourceOrders, data)
	if err != nil {
		return fmt.Errorf("create order.paid event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderPaid, event); err != nil {
		return fmt.Errorf("publish order.paid event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.paid event",
		slog.String("order_id", order.ID),
		slog.String("payment_request_id", paymentRequestID),
	)

	return nil
}

// PublishOrderSettled publishes an order.settled event with the terminal
// status the settlement worker reached.
func (p *Producer) PublishOrderSettled(ctx context.Context, orderID, status, reason string) error {
	data := OrderSettledData{
		OrderID: orderID,
		Status:  status,
		Reason:  reason,
	}

	event, err := pkgkafka.NewEvent(TopicOrderSettled, orderID, AggregateTypeOrder, SourceOrders, data)
	if err != nil {
		return fmt.Errorf("create order.settled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderSettled, event); err != nil {
		return fmt.Errorf("publish order.settled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.settled event",
		slog.String("order_id", orderID),
		slog.String("status", status),
	)

	return nil
}
