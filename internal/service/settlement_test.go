package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nthlam/WEB-NOVA-SCI/internal/domain"
	apperrors "github.com/nthlam/WEB-NOVA-SCI/pkg/errors"
)

type mockInventoryLedger struct {
	mock.Mock
}

func (m *mockInventoryLedger) TryReserve(ctx context.Context, productID string, qty int) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *mockInventoryLedger) Release(ctx context.Context, productID string, qty int) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func newSettlementService(repo *mockOrderRepository, ledger *mockInventoryLedger, logs *mockPurchaseLogRepository, pub *mockEventPublisher) *SettlementService {
	return NewSettlementService(repo, ledger, logs, pub, newTestLogger())
}

func paidOrder(items ...domain.OrderItem) *domain.Order {
	if len(items) == 0 {
		items = []domain.OrderItem{{ProductID: "p1", Name: "Laptop", UnitPrice: 1500000, Quantity: 1}}
	}
	return &domain.Order{
		ID:           "order-1",
		UserIdentity: "buyer@webnova.vn",
		Status:       domain.OrderStatusPaid,
		Items:        items,
		TotalCost:    1500005,
	}
}

func TestSettleOrder_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	ledger := new(mockInventoryLedger)
	logs := new(mockPurchaseLogRepository)
	pub := new(mockEventPublisher)
	svc := newSettlementService(repo, ledger, logs, pub)
	ctx := context.Background()

	order := paidOrder(
		domain.OrderItem{ProductID: "p1", Quantity: 2},
		domain.OrderItem{ProductID: "p2", Quantity: 1},
	)
	repo.On("GetByID", ctx, "order-1").Return(order, nil)
	ledger.On("TryReserve", ctx, "p1", 2).Return(true, nil)
	ledger.On("TryReserve", ctx, "p2", 1).Return(true, nil)
	repo.On("UpdateStatusFrom", ctx, "order-1", domain.OrderStatusPaid, domain.OrderStatusCompleted).Return(true, nil)
	logs.On("Record", ctx, mock.AnythingOfType("*domain.PurchaseLog")).Return(nil)
	pub.On("PublishOrderSettled", ctx, "order-1", domain.OrderStatusCompleted, "").Return(nil)

	err := svc.SettleOrder(ctx, "order-1")
	require.NoError(t, err)

	repo.AssertExpectations(t)
	ledger.AssertExpectations(t)
	ledger.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettleOrder_NotPaidIsNoOp(t *testing.T) {
	for _, status := range []string{domain.OrderStatusPending, domain.OrderStatusCompleted, domain.OrderStatusFailed} {
		t.Run(status, func(t *testing.T) {
			repo := new(mockOrderRepository)
			ledger := new(mockInventoryLedger)
			svc := newSettlementService(repo, ledger, new(mockPurchaseLogRepository), new(mockEventPublisher))
			ctx := context.Background()

			o := paidOrder()
			o.Status = status
			repo.On("GetByID", ctx, "order-1").Return(o, nil)

			err := svc.SettleOrder(ctx, "order-1")
			assert.NoError(t, err)
			ledger.AssertNotCalled(t, "TryReserve", mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSettleOrder_OrderNotFound(t *testing.T) {
	repo := new(mockOrderRepository)
	svc := newSettlementService(repo, new(mockInventoryLedger), new(mockPurchaseLogRepository), new(mockEventPublisher))
	ctx := context.Background()

	repo.On("GetByID", ctx, "ghost").Return(nil, apperrors.ErrNotFound)

	err := svc.SettleOrder(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSettleOrder_ShortageRollsBack(t *testing.T) {
	// Item B has insufficient stock after item A succeeds: A's decrement is
	// compensated and the order fails.
	repo := new(mockOrderRepository)
	ledger := new(mockInventoryLedger)
	logs := new(mockPurchaseLogRepository)
	pub := new(mockEventPublisher)
	svc := newSettlementService(repo, ledger, logs, pub)
	ctx := context.Background()

	order := paidOrder(
		domain.OrderItem{ProductID: "pA", Quantity: 1},
		domain.OrderItem{ProductID: "pB", Quantity: 3},
	)
	repo.On("GetByID", ctx, "order-1").Return(order, nil)
	ledger.On("TryReserve", ctx, "pA", 1).Return(true, nil)
	ledger.On("TryReserve", ctx, "pB", 3).Return(false, nil)
	ledger.On("Release", ctx, "pA", 1).Return(nil)
	repo.On("UpdateStatusFrom", ctx, "order-1", domain.OrderStatusPaid, domain.OrderStatusFailed).Return(true, nil)
	logs.On("Record", ctx, mock.AnythingOfType("*domain.PurchaseLog")).Return(nil)
	pub.On("PublishOrderSettled", ctx, "order-1", domain.OrderStatusFailed, mock.AnythingOfType("string")).Return(nil)

	err := svc.SettleOrder(ctx, "order-1")
	require.NoError(t, err)

	repo.AssertExpectations(t)
	ledger.AssertExpectations(t)
	ledger.AssertNotCalled(t, "Release", ctx, "pB", 3)
}

func TestSettleOrder_LedgerErrorReleasesAndRetries(t *testing.T) {
	repo := new(mockOrderRepository)
	ledger := new(mockInventoryLedger)
	svc := newSettlementService(repo, ledger, new(mockPurchaseLogRepository), new(mockEventPublisher))
	ctx := context.Background()

	order := paidOrder(
		domain.OrderItem{ProductID: "pA", Quantity: 1},
		domain.OrderItem{ProductID: "pB", Quantity: 1},
	)
	repo.On("GetByID", ctx, "order-1").Return(order, nil)
	ledger.On("TryReserve", ctx, "pA", 1).Return(true, nil)
	ledger.On("TryReserve", ctx, "pB", 1).Return(false, assert.AnError)
	ledger.On("Release", ctx, "pA", 1).Return(nil)

	err := svc.SettleOrder(ctx, "order-1")
	require.Error(t, err)

	// The order stays paid so the dispatch layer can retry.
	repo.AssertNotCalled(t, "UpdateStatusFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertExpectations(t)
}

func TestSettleOrder_LostCompletionRaceReleasesStock(t *testing.T) {
	repo := new(mockOrderRepository)
	ledger := new(mockInventoryLedger)
	logs := new(mockPurchaseLogRepository)
	pub := new(mockEventPublisher)
	svc := newSettlementService(repo, ledger, logs, pub)
	ctx := context.Background()

	repo.On("GetByID", ctx, "order-1").Return(paidOrder(), nil)
	ledger.On("TryReserve", ctx, "p1", 1).Return(true, nil)
	repo.On("UpdateStatusFrom", ctx, "order-1", domain.OrderStatusPaid, domain.OrderStatusCompleted).Return(false, nil)
	ledger.On("Release", ctx, "p1", 1).Return(nil)

	err := svc.SettleOrder(ctx, "order-1")
	require.NoError(t, err)

	ledger.AssertExpectations(t)
	logs.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishOrderSettled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettleOrder_AuditFailureKeepsTerminalStatus(t *testing.T) {
	repo := new(mockOrderRepository)
	ledger := new(mockInventoryLedger)
	logs := new(mockPurchaseLogRepository)
	pub := new(mockEventPublisher)
	svc := newSettlementService(repo, ledger, logs, pub)
	ctx := context.Background()

	repo.On("GetByID", ctx, "order-1").Return(paidOrder(), nil)
	ledger.On("TryReserve", ctx, "p1", 1).Return(true, nil)
	repo.On("UpdateStatusFrom", ctx, "order-1", domain.OrderStatusPaid, domain.OrderStatusCompleted).Return(true, nil)
	logs.On("Record", ctx, mock.AnythingOfType("*domain.PurchaseLog")).Return(assert.AnError)
	pub.On("PublishOrderSettled", ctx, "order-1", domain.OrderStatusCompleted, "").Return(nil)

	err := svc.SettleOrder(ctx, "order-1")
	assert.NoError(t, err)
}

func TestReconcileStalePaid(t *testing.T) {
	repo := new(mockOrderRepository)
	pub := new(mockEventPublisher)
	svc := newSettlementService(repo, new(mockInventoryLedger), new(mockPurchaseLogRepository), pub)
	ctx := context.Background()

	stale := []domain.Order{
		{ID: "o1", Status: domain.OrderStatusPaid},
		{ID: "o2", Status: domain.OrderStatusPaid},
	}
	repo.On("ListStalePaid", ctx, 10*time.Minute, 100).Return(stale, nil)
	pub.On("PublishOrderPaid", ctx, mock.AnythingOfType("*domain.Order"), "").Return(nil)

	n, err := svc.ReconcileStalePaid(ctx, 10*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	pub.AssertNumberOfCalls(t, "PublishOrderPaid", 2)
}

// --- In-memory fakes for the contention test ---

type memoryLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

func (l *memoryLedger) TryReserve(_ context.Context, productID string, qty int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stock[productID] < qty {
		return false, nil
	}
	l.stock[productID] -= qty
	return true, nil
}

func (l *memoryLedger) Release(_ context.Context, productID string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] += qty
	return nil
}

type memoryOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func (r *memoryOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memoryOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memoryOrderRepo) GetStatus(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return o.Status, nil
}

func (r *memoryOrderRepo) ListByUser(context.Context, string, int, int) ([]domain.Order, int, error) {
	return nil, 0, nil
}

func (r *memoryOrderRepo) ListStalePaid(context.Context, time.Duration, int) ([]domain.Order, error) {
	return nil, nil
}

func (r *memoryOrderRepo) UpdateStatusFrom(_ context.Context, id, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderPaid(context.Context, *domain.Order, string) error { return nil }
func (noopPublisher) PublishOrderSettled(context.Context, string, string, string) error {
	return nil
}

type noopPurchaseLogs struct{}

func (noopPurchaseLogs) Record(context.Context, *domain.PurchaseLog) error { return nil }

func TestSettleOrder_NoOverselling(t *testing.T) {
	// N paid orders race for the last unit of one product: exactly one may
	// complete, the rest fail, and stock never goes negative.
	const n = 16

	ledger := &memoryLedger{stock: map[string]int{"hot": 1}}
	repo := &memoryOrderRepo{orders: make(map[string]*domain.Order)}
	svc := NewSettlementService(repo, ledger, noopPurchaseLogs{}, noopPublisher{}, newTestLogger())
	ctx := context.Background()

	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(ctx, &domain.Order{
			ID:     fmt.Sprintf("order-%d", i),
			Status: domain.OrderStatusPaid,
			Items:  []domain.OrderItem{{ProductID: "hot", Quantity: 1}},
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = svc.SettleOrder(ctx, id)
		}(fmt.Sprintf("order-%d", i))
	}
	wg.Wait()

	completed, failed := 0, 0
	for i := 0; i < n; i++ {
		status, err := repo.GetStatus(ctx, fmt.Sprintf("order-%d", i))
		require.NoError(t, err)
		switch status {
		case domain.OrderStatusCompleted:
			completed++
		case domain.OrderStatusFailed:
			failed++
		}
	}

	assert.Equal(t, 1, completed)
	assert.Equal(t, n-1, failed)
	assert.Equal(t, 0, ledger.stock["hot"])
}
