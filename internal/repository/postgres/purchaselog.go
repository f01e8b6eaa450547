package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/database"
)

// PurchaseLogRepository implements repository.PurchaseLogRepository using
// PostgreSQL. Callers treat writes as best-effort; the repository itself
// reports errors normally and leaves the swallowing to the service layer.
type PurchaseLogRepository struct {
	pool database.DBTX
}

// NewPurchaseLogRepository creates a new PostgreSQL-backed audit log repository.
func NewPurchaseLogRepository(pool database.DBTX) *PurchaseLogRepository {
	return &PurchaseLogRepository{pool: pool}
}

// Record inserts a purchase audit entry. Items are stored as a JSONB snapshot.
func (r *PurchaseLogRepository) Record(ctx context.Context, entry *domain.PurchaseLog) error {
	itemsJSON, err := json.Marshal(entry.Items)
	if err != nil {
		return fmt.Errorf("marshal purchase log items: %w", err)
	}

	query := `
		INSERT INTO purchase_logs (id, order_id, user_identity, session_id, items, subtotal, shipping_cost, total_cost, payment_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.OrderID,
		entry.UserIdentity,
		entry.SessionID,
		itemsJSON,
		entry.Subtotal,
		entry.ShippingCost,
		entry.TotalCost,
		entry.PaymentStatus,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert purchase log: %w", err)
	}

	return nil
}
