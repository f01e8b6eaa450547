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

// OrderEventPublisher dispatches order lifecycle events for asynchronous
// consumers. Satisfied by event.Producer.
type OrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, order *domain.Order, paymentRequestID string) error
	PublishOrderSettled(ctx context.Context, orderID, status, reason string) error
}

// WebhookService processes payment-result notifications from the external
// processor. Deliveries arrive at-least-once and possibly out of order, so
// every state change goes through a compare-and-swap on the order status.
type WebhookService struct {
	orders       repository.OrderRepository
	purchaseLogs repository.PurchaseLogRepository
	publisher    OrderEventPublisher
	secret       []byte
	logger       *slog.Logger
}

// NewWebhookService creates a new webhook service. secret is the shared HMAC
// key agreed with the payment processor.
func NewWebhookService(
	orders repository.OrderRepository,
	purchaseLogs repository.PurchaseLogRepository,
	publisher OrderEventPublisher,
	secret []byte,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		orders:       orders,
		purchaseLogs: purchaseLogs,
		publisher:    publisher,
		secret:       secret,
		logger:       logger,
	}
}

// Process handles one payment notification. The sequence is fixed: verify the
// signature before touching any state, look the order up, no-op on anything
// past pending, then apply exactly one compare-and-swap transition.
func (s *WebhookService) Process(ctx context.Context, n *domain.PaymentNotification) error {
	if !n.VerifySignature(s.secret) {
		s.logger.WarnContext(ctx, "webhook signature verification failed",
			slog.String("payment_request_id", n.PaymentRequestID),
			slog.String("reference_id", n.ReferenceID),
		)
		return apperrors.InvalidSignature()
	}

	order, err := s.orders.GetByID(ctx, n.ReferenceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("order", n.ReferenceID)
		}
		return fmt.Errorf("load order for webhook: %w", err)
	}

	// Replay guard: once the order left pending, any further notification is
	// acknowledged without re-evaluating amount or re-triggering settlement.
	// A redelivery carrying a different payment request id is logged as an
	// anomaly for reconciliation but still treated as a no-op.
	if order.Status != domain.OrderStatusPending {
		s.logger.WarnContext(ctx, "webhook for non-pending order ignored",
			slog.String("order_id", order.ID),
			slog.String("order_status", order.Status),
			slog.String("payment_request_id", n.PaymentRequestID),
			slog.String("state", n.State),
		)
		return nil
	}

	switch n.State {
	case domain.PaymentStateSuccess:
		return s.processSuccess(ctx, order, n)
	case domain.PaymentStateFailed:
		return s.processFailure(ctx, order, n)
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown payment state %q", n.State))
	}
}

// processSuccess applies a SUCCESS notification: an amount that disagrees
// with the quoted total fails the order, a matching one marks it paid and
// enqueues settlement.
func (s *WebhookService) processSuccess(ctx context.Context, order *domain.Order, n *domain.PaymentNotification) error {
	if n.Amount != order.AmountDue() {
		won, err := s.orders.UpdateStatusFrom(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusFailed)
		if err != nil {
			return fmt.Errorf("fail order on amount mismatch: %w", err)
		}
		if won {
			s.recordOutcome(ctx, order, domain.OrderStatusFailed)
		}
		s.logger.ErrorContext(ctx, "payment amount mismatch",
			slog.String("order_id", order.ID),
			slog.Int64("expected", order.AmountDue()),
			slog.Int64("got", n.Amount),
		)
		return apperrors.AmountMismatch(order.AmountDue(), n.Amount)
	}

	won, err := s.orders.UpdateStatusFrom(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if !won {
		// A concurrent delivery moved the order first; its winner already
		// recorded the outcome and enqueued settlement.
		s.logger.InfoContext(ctx, "lost payment transition race, treating as replay",
			slog.String("order_id", order.ID),
			slog.String("payment_request_id", n.PaymentRequestID),
		)
		return nil
	}

	order.Status = domain.OrderStatusPaid
	s.recordOutcome(ctx, order, domain.OrderStatusPaid)

	if err := s.publisher.PublishOrderPaid(ctx, order, n.PaymentRequestID); err != nil {
		// The order is paid either way; settlement dispatch is recovered by
		// the reconciliation sweep over paid orders.
		s.logger.ErrorContext(ctx, "failed to publish order.paid event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order marked paid",
		slog.String("order_id", order.ID),
		slog.String("payment_request_id", n.PaymentRequestID),
		slog.Int64("amount", n.Amount),
	)

	return nil
}

// processFailure applies a FAILED notification.
func (s *WebhookService) processFailure(ctx context.Context, order *domain.Order, n *domain.PaymentNotification) error {
	won, err := s.orders.UpdateStatusFrom(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusFailed)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	if won {
		s.recordOutcome(ctx, order, domain.OrderStatusFailed)
	}

	s.logger.InfoContext(ctx, "order marked failed by payment processor",
		slog.String("order_id", order.ID),
		slog.String("payment_request_id", n.PaymentRequestID),
	)

	return nil
}

// recordOutcome writes a best-effort audit entry. Failures are logged and
// swallowed; the audit trail never gates a state transition.
func (s *WebhookService) recordOutcome(ctx context.Context, order *domain.Order, paymentStatus string) {
	entry := &domain.PurchaseLog{
		ID:            uuid.New().String(),
		OrderID:       order.ID,
		UserIdentity:  order.UserIdentity,
		SessionID:     order.SessionID,
		Items:         order.Items,
		Subtotal:      order.Subtotal,
		ShippingCost:  order.ShippingCost,
		TotalCost:     order.TotalCost,
		PaymentStatus: paymentStatus,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.purchaseLogs.Record(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to record purchase log",
			slog.String("order_id", order.ID),
			slog.String("payment_status", paymentStatus),
			slog.String("error", err.Error()),
		)
	}
}
