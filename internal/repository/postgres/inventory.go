package postgres

import (
	"context"
	"fmt"

	"github.com/nthlam/WEB-NOVA-SCI/pkg/database"
	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

// InventoryLedger implements repository.InventoryLedger on the products
// table. Stock is only ever mutated through single conditional UPDATE
// statements; there is no read-then-write anywhere, so two settlements
// racing for the last unit resolve at the database row without locks.
type InventoryLedger struct {
	pool database.DBTX
}

// NewInventoryLedger creates a new PostgreSQL-backed inventory ledger.
func NewInventoryLedger(pool database.DBTX) *InventoryLedger {
	return &InventoryLedger{pool: pool}
}

// TryReserve atomically decrements the product's stock by qty if and only if
// the current stock covers it. Returns true iff the decrement was applied.
func (l *InventoryLedger) TryReserve(ctx context.Context, productID string, qty int) (bool, error) {
	query := `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2`

	tag, err := l.pool.Exec(ctx, query, productID, qty)
	if err != nil {
		return false, fmt.Errorf("reserve stock for product %s: %w", productID, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Release atomically increments the product's stock by qty. It is only used
// to compensate decrements from a settlement attempt that failed partway.
func (l *InventoryLedger) Release(ctx context.Context, productID string, qty int) error {
	query := `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1`

	tag, err := l.pool.Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("release stock for product %s: %w", productID, err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}

	return nil
}

// GetQuantity returns the current stock count for a product.
func (l *InventoryLedger) GetQuantity(ctx context.Context, productID string) (int, error) {
	var qty int
	err := l.pool.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("get stock for product %s: %w", productID, err)
	}
	return qty, nil
}
