package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
	"github.com/nthlam/WEB-NOVA-SCI/internal/repository"
	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

// SettlementService converts a confirmed payment into a committed inventory
// decrement. Stock for each line item is reserved through the ledger's
// atomic conditional decrement; a shortage on any item rolls back every
// decrement already applied in the attempt and fails the order.
type SettlementService struct {
	orders       repository.OrderRepository
	ledger       repository.InventoryLedger
	purchaseLogs repository.PurchaseLogRepository
	publisher    OrderEventPublisher
	logger       *slog.Logger
}

// NewSettlementService creates a new settlement service.
func NewSettlementService(
	orders repository.OrderRepository,
	ledger repository.InventoryLedger,
	purchaseLogs repository.PurchaseLogRepository,
	publisher OrderEventPublisher,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		orders:       orders,
		ledger:       ledger,
		purchaseLogs: purchaseLogs,
		publisher:    publisher,
		logger:       logger,
	}
}

// SettleOrder settles one paid order. It is safe under at-least-once
// delivery: a re-run against an order that already reached a terminal status
// is a no-op, checked before any stock mutation. A returned error means no
// durable state changed, so the dispatch layer may retry freely.
func (s *SettlementService) SettleOrder(ctx context.Context, orderID string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("order", orderID)
		}
		return fmt.Errorf("load order for settlement: %w", err)
	}

	if order.Status != domain.OrderStatusPaid {
		s.logger.InfoContext(ctx, "settlement skipped, order not paid",
			slog.String("order_id", order.ID),
			slog.String("status", order.Status),
		)
		return nil
	}

	// Items are attempted in snapshot order so that orders competing for the
	// same products contend in a deterministic sequence.
	reserved := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		ok, err := s.ledger.TryReserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.releaseAll(ctx, order.ID, reserved)
			return fmt.Errorf("reserve stock for product %s: %w", item.ProductID, err)
		}
		if !ok {
			s.logger.WarnContext(ctx, "insufficient stock, rolling back settlement",
				slog.String("order_id", order.ID),
				slog.String("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
			)
			s.releaseAll(ctx, order.ID, reserved)
			return s.failOrder(ctx, order, fmt.Sprintf("insufficient stock for product %s", item.ProductID))
		}
		reserved = append(reserved, item)
	}

	won, err := s.orders.UpdateStatusFrom(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusCompleted)
	if err != nil {
		s.releaseAll(ctx, order.ID, reserved)
		return fmt.Errorf("complete order: %w", err)
	}
	if !won {
		// Another actor moved the order between the paid check and the
		// transition; give the stock back and defer to that outcome.
		s.logger.WarnContext(ctx, "lost completion race, releasing reserved stock",
			slog.String("order_id", order.ID),
		)
		s.releaseAll(ctx, order.ID, reserved)
		return nil
	}

	order.Status = domain.OrderStatusCompleted
	s.recordSettlement(ctx, order, domain.OrderStatusCompleted)
	s.publishSettled(ctx, order.ID, domain.OrderStatusCompleted, "")

	s.logger.InfoContext(ctx, "order settled",
		slog.String("order_id", order.ID),
		slog.Int("items", len(order.Items)),
	)

	return nil
}

// failOrder transitions a paid order to failed after a stock shortage. The
// order never stays ambiguous: losing the transition race just means another
// actor already resolved it.
func (s *SettlementService) failOrder(ctx context.Context, order *domain.Order, reason string) error {
	won, err := s.orders.UpdateStatusFrom(ctx, order.ID, domain.OrderStatusPaid, domain.OrderStatusFailed)
	if err != nil {
		return fmt.Errorf("fail order after shortage: %w", err)
	}
	if won {
		order.Status = domain.OrderStatusFailed
		s.recordSettlement(ctx, order, domain.OrderStatusFailed)
		s.publishSettled(ctx, order.ID, domain.OrderStatusFailed, reason)
	}
	return nil
}

// releaseAll compensates every decrement applied in the current attempt, in
// reverse order. Release errors are logged and swallowed so the remaining
// items still get their stock back.
func (s *SettlementService) releaseAll(ctx context.Context, orderID string, reserved []domain.OrderItem) {
	for i := len(reserved) - 1; i >= 0; i-- {
		item := reserved[i]
		if err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.ErrorContext(ctx, "failed to release reserved stock",
				slog.String("order_id", orderID),
				slog.String("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

// recordSettlement writes a best-effort audit entry for a terminal outcome.
func (s *SettlementService) recordSettlement(ctx context.Context, order *domain.Order, status string) {
	entry := &domain.PurchaseLog{
		ID:            uuid.New().String(),
		OrderID:       order.ID,
		UserIdentity:  order.UserIdentity,
		SessionID:     order.SessionID,
		Items:         order.Items,
		Subtotal:      order.Subtotal,
		ShippingCost:  order.ShippingCost,
		TotalCost:     order.TotalCost,
		PaymentStatus: status,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.purchaseLogs.Record(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to record settlement log",
			slog.String("order_id", order.ID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}

// publishSettled emits the settlement outcome, best-effort.
func (s *SettlementService) publishSettled(ctx context.Context, orderID, status, reason string) {
	if err := s.publisher.PublishOrderSettled(ctx, orderID, status, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.settled event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

// ReconcileStalePaid re-dispatches settlement for orders stuck in paid. A
// paid order normally settles within seconds; one sitting past the threshold
// means the original order.paid publish was lost or its consumer group fell
// over, so the sweep republishes and lets the worker's no-op guards absorb
// any overlap with an in-flight settlement.
func (s *SettlementService) ReconcileStalePaid(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := s.orders.ListStalePaid(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale paid orders: %w", err)
	}

	republished := 0
	for i := range stale {
		order := &stale[i]
		if err := s.publisher.PublishOrderPaid(ctx, order, ""); err != nil {
			s.logger.ErrorContext(ctx, "failed to republish order.paid for stale order",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		republished++
	}

	return republished, nil
}
