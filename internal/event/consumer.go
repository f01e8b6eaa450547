package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pkgkafka "github.com/nthlam/WEB-NOVA-SCI/pkg/kafka"
)

// SettlementService defines the interface required by the event consumer.
type SettlementService interface {
	SettleOrder(ctx context.Context, orderID string) error
}

// Consumer processes order.paid events by handing them to the settlement
// worker. Deduplication and retry happen in the surrounding kafka plumbing;
// this handler only translates the event into a settlement call.
type Consumer struct {
	settlement SettlementService
	logger     *slog.Logger
}

// NewConsumer creates a new event consumer for the settlement worker.
func NewConsumer(settlement SettlementService, logger *slog.Logger) *Consumer {
	return &Consumer{
		settlement: settlement,
		logger:     logger,
	}
}

// HandleOrderPaid processes an order.paid event by settling the order: stock
// is reserved for every item, and the order moves to its terminal status.
func (c *Consumer) HandleOrderPaid(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderPaidData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.paid data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.paid event",
		slog.String("order_id", data.OrderID),
		slog.String("payment_request_id", data.PaymentRequestID),
	)

	if err := c.settlement.SettleOrder(ctx, data.OrderID); err != nil {
		return fmt.Errorf("settle order %s: %w", data.OrderID, err)
	}

	return nil
}
