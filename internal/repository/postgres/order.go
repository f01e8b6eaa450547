package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/database"
	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order and its items atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orderQuery := `
		INSERT INTO orders (id, user_identity, session_id, status, subtotal, shipping_cost, total_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.UserIdentity,
		o.SessionID,
		o.Status,
		o.Subtotal,
		o.ShippingCost,
		o.TotalCost,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	// Position preserves the snapshot item order; settlement depends on it.
	itemQuery := `
		INSERT INTO order_items (order_id, position, product_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			o.ID,
			i,
			item.ProductID,
			item.Name,
			item.UnitPrice,
			item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID, eagerly loading its items in a
// single query using LEFT JOIN + JSONB_AGG to avoid the N+1 pattern.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	orderQuery := `
		SELECT
			o.id, o.user_identity, o.session_id, o.status, o.subtotal,
			o.shipping_cost, o.total_cost, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'product_id', oi.product_id,
						'name', oi.name,
						'unit_price', oi.unit_price,
						'quantity', oi.quantity
					) ORDER BY oi.position
				) FILTER (WHERE oi.order_id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1
		GROUP BY o.id, o.user_identity, o.session_id, o.status, o.subtotal,
			o.shipping_cost, o.total_cost, o.created_at, o.updated_at`

	var (
		o         domain.Order
		itemsJSON []byte
	)

	err := r.pool.QueryRow(ctx, orderQuery, id).Scan(
		&o.ID,
		&o.UserIdentity,
		&o.SessionID,
		&o.Status,
		&o.Subtotal,
		&o.ShippingCost,
		&o.TotalCost,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	} else {
		o.Items = []domain.OrderItem{}
	}

	return &o, nil
}

// GetStatus retrieves only the order's current status.
func (r *OrderRepository) GetStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("scan order status: %w", err)
	}
	return status, nil
}

// ListByUser returns the user's orders excluding pending ones (a pending
// order is an abandoned or not-yet-paid checkout, not purchase history),
// newest first, with the total count computed in the same query.
func (r *OrderRepository) ListByUser(ctx context.Context, userIdentity string, page, perPage int) ([]domain.Order, int, error) {
	query := `
		SELECT
			o.id, o.user_identity, o.session_id, o.status, o.subtotal,
			o.shipping_cost, o.total_cost, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'product_id', oi.product_id,
						'name', oi.name,
						'unit_price', oi.unit_price,
						'quantity', oi.quantity
					) ORDER BY oi.position
				) FILTER (WHERE oi.order_id IS NOT NULL),
				'[]'::jsonb
			) AS items,
			count(*) OVER() AS total_count
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.user_identity = $1 AND o.status <> 'pending'
		GROUP BY o.id, o.user_identity, o.session_id, o.status, o.subtotal,
			o.shipping_cost, o.total_cost, o.created_at, o.updated_at
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3`

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx, query, userIdentity, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders     []domain.Order
		totalCount int
	)

	for rows.Next() {
		var (
			o         domain.Order
			itemsJSON []byte
		)
		if err := rows.Scan(
			&o.ID,
			&o.UserIdentity,
			&o.SessionID,
			&o.Status,
			&o.Subtotal,
			&o.ShippingCost,
			&o.TotalCost,
			&o.CreatedAt,
			&o.UpdatedAt,
			&itemsJSON,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
			if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
				return nil, 0, fmt.Errorf("unmarshal order items: %w", err)
			}
		} else {
			o.Items = []domain.OrderItem{}
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// ListStalePaid returns orders stuck in the paid status since before the
// olderThan cutoff, oldest first. Used by the settlement reconciliation sweep.
func (r *OrderRepository) ListStalePaid(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	query := `
		SELECT
			o.id, o.user_identity, o.session_id, o.status, o.subtotal,
			o.shipping_cost, o.total_cost, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'product_id', oi.product_id,
						'name', oi.name,
						'unit_price', oi.unit_price,
						'quantity', oi.quantity
					) ORDER BY oi.position
				) FILTER (WHERE oi.order_id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.status = 'paid' AND o.updated_at < $1
		GROUP BY o.id, o.user_identity, o.session_id, o.status, o.subtotal,
			o.shipping_cost, o.total_cost, o.created_at, o.updated_at
		ORDER BY o.updated_at ASC
		LIMIT $2`

	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale paid orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o         domain.Order
			itemsJSON []byte
		)
		if err := rows.Scan(
			&o.ID,
			&o.UserIdentity,
			&o.SessionID,
			&o.Status,
			&o.Subtotal,
			&o.ShippingCost,
			&o.TotalCost,
			&o.CreatedAt,
			&o.UpdatedAt,
			&itemsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan stale order row: %w", err)
		}

		if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
			if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
				return nil, fmt.Errorf("unmarshal order items: %w", err)
			}
		} else {
			o.Items = []domain.OrderItem{}
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale order rows: %w", err)
	}

	return orders, nil
}

// UpdateStatusFrom performs a compare-and-swap status transition. The UPDATE
// applies only when the stored status still equals from, so concurrent
// actors racing for the same transition converge to exactly one winner.
func (r *OrderRepository) UpdateStatusFrom(ctx context.Context, id, from, to string) (bool, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Either the order does not exist or another actor already moved it.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("check order existence: %w", err)
		}
		if !exists {
			return false, apperrors.ErrNotFound
		}
		return false, nil
	}

	return true, nil
}
