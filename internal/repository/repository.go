package repository

import (
	"context"
	"time"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
)

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its items into the store atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetStatus retrieves only the current status of an order.
	GetStatus(ctx context.Context, id string) (string, error)

	// ListByUser returns the given user's non-pending orders, newest first,
	// along with the total count.
	ListByUser(ctx context.Context, userIdentity string, page, perPage int) ([]domain.Order, int, error)

	// ListStalePaid returns orders that have sat in the paid status for
	// longer than olderThan, oldest first, up to limit.
	ListStalePaid(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)

	// UpdateStatusFrom transitions the order status with a compare-and-swap
	// guard: the update applies only if the current status equals from.
	// It returns true if this caller won the transition, false if the
	// precondition no longer held.
	UpdateStatusFrom(ctx context.Context, id, from, to string) (bool, error)
}

// InventoryLedger is the per-product stock counter. Both operations are
// single atomic statements at the store; quantity never goes below zero.
type InventoryLedger interface {
	// TryReserve decrements the product's stock by qty only if the current
	// stock is at least qty. Returns true iff the decrement was applied.
	TryReserve(ctx context.Context, productID string, qty int) (bool, error)

	// Release increments the product's stock by qty. Used only to compensate
	// a partially applied settlement.
	Release(ctx context.Context, productID string, qty int) error
}

// PurchaseLogRepository records terminal order outcomes for auditing.
type PurchaseLogRepository interface {
	Record(ctx context.Context, entry *domain.PurchaseLog) error
}
