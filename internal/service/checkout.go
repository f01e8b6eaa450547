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
	"github.com/nthlam/WEB-NOVA-SCI/pkg/pagination"
)

// PaymentGateway mints a scannable payment code for an order total.
type PaymentGateway interface {
	RequestPaymentCode(ctx context.Context, amount int64, reference string) (string, error)
}

// CheckoutService implements cart validation, order creation, and the
// synchronous read paths (status polling and purchase history).
type CheckoutService struct {
	orders  repository.OrderRepository
	gateway PaymentGateway
	logger  *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(orders repository.OrderRepository, gateway PaymentGateway, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		orders:  orders,
		gateway: gateway,
		logger:  logger,
	}
}

// CheckoutItemInput holds a client-submitted cart line.
type CheckoutItemInput struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
}

// CheckoutInput holds the parameters for initiating a checkout. Subtotal and
// TotalCost are the client's claimed figures; the service recomputes both and
// rejects any deviation beyond tolerance instead of correcting it.
type CheckoutInput struct {
	UserIdentity string
	SessionID    string
	Items        []CheckoutItemInput
	ShippingCost float64
	Subtotal     float64
	TotalCost    float64
}

// CheckoutResult is returned to the buyer on a successful checkout.
type CheckoutResult struct {
	OrderID     string `json:"order_id"`
	PaymentCode string `json:"payment_code"`
}

// Checkout validates the cart, persists a pending order, and requests a
// payment code from the gateway. A gateway failure leaves the order pending;
// a delayed webhook for it must still be handleable, so there is no
// compensating deletion.
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.UserIdentity == "" {
		return nil, apperrors.InvalidInput("user identity is required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("cart must contain at least one item")
	}

	items := make([]domain.OrderItem, len(input.Items))
	for i, itemInput := range input.Items {
		if itemInput.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("item %s: quantity must be positive", itemInput.ProductID))
		}
		if itemInput.UnitPrice < 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("item %s: unit price must not be negative", itemInput.ProductID))
		}
		items[i] = domain.OrderItem{
			ProductID: itemInput.ProductID,
			Name:      itemInput.Name,
			UnitPrice: itemInput.UnitPrice,
			Quantity:  itemInput.Quantity,
		}
	}

	// Totals are checked once here and never re-derived. A deviation beyond
	// tolerance signals client-side price tampering and is a hard rejection.
	subtotal := domain.ComputeSubtotal(items)
	if !domain.WithinTolerance(subtotal, input.Subtotal) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("declared subtotal %.2f does not match computed subtotal %.2f", input.Subtotal, subtotal))
	}

	total := subtotal + input.ShippingCost
	if !domain.WithinTolerance(total, input.TotalCost) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("declared total %.2f does not match computed total %.2f", input.TotalCost, total))
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:           uuid.New().String(),
		UserIdentity: input.UserIdentity,
		SessionID:    input.SessionID,
		Status:       domain.OrderStatusPending,
		Items:        items,
		Subtotal:     subtotal,
		ShippingCost: input.ShippingCost,
		TotalCost:    total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	paymentCode, err := s.gateway.RequestPaymentCode(ctx, order.AmountDue(), order.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment code request failed, order left pending",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("order_id", order.ID),
		slog.String("user_identity", order.UserIdentity),
		slog.Float64("total_cost", order.TotalCost),
	)

	return &CheckoutResult{
		OrderID:     order.ID,
		PaymentCode: paymentCode,
	}, nil
}

// OrderStatus holds the polling response for an order.
type OrderStatus struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// GetOrderStatus returns the order's current status. It is the backing read
// for the unauthenticated polling endpoint, so it touches nothing else.
func (s *CheckoutService) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	status, err := s.orders.GetStatus(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order status: %w", err)
	}
	return &OrderStatus{OrderID: orderID, Status: status}, nil
}

// GetOrder retrieves a full order, restricted to its owner.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID, userIdentity string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if order.UserIdentity != userIdentity {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// OrderHistory returns the user's settled orders, newest first.
func (s *CheckoutService) OrderHistory(ctx context.Context, userIdentity string, params pagination.Params) (*pagination.Result[domain.Order], error) {
	orders, total, err := s.orders.ListByUser(ctx, userIdentity, params.Page, params.PerPage)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	result := pagination.NewResult(orders, total, params)
	return &result, nil
}
