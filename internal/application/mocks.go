package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/escrowbot/payments/internal/domain"
)

// MockGatewayClient is a hand-rolled test double for the provider port.
type MockGatewayClient struct {
	CreateInvoiceFn    func(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	GetPaymentStatusFn func(ctx context.Context, paymentID string) (*PaymentState, error)

	mu              sync.Mutex
	CreateCalls     int
	StatusCalls     int
	StatusCallsByID map[string]int
}

func (m *MockGatewayClient) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateInvoiceFn != nil {
		return m.CreateInvoiceFn(ctx, req)
	}
	return nil, NewTransportError(nil)
}

func (m *MockGatewayClient) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentState, error) {
	m.mu.Lock()
	m.StatusCalls++
	if m.StatusCallsByID == nil {
		m.StatusCallsByID = map[string]int{}
	}
	m.StatusCallsByID[paymentID]++
	m.mu.Unlock()
	if m.GetPaymentStatusFn != nil {
		return m.GetPaymentStatusFn(ctx, paymentID)
	}
	return nil, NewTransportError(nil)
}

// MockNotifier records delivered messages and optionally fails.
type MockNotifier struct {
	NotifyFn func(ctx context.Context, userID int64, message string) error

	mu       sync.Mutex
	Messages []string
	UserIDs  []int64
}

func (m *MockNotifier) Notify(ctx context.Context, userID int64, message string) error {
	if m.NotifyFn != nil {
		if err := m.NotifyFn(ctx, userID, message); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, message)
	m.UserIDs = append(m.UserIDs, userID)
	return nil
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// MemoryPaymentRepository is an in-memory ledger used by service and worker
// tests. A single mutex stands in for the store's transaction isolation.
type MemoryPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
	balances map[int64]int64
	Credits  int

	FindReconcilableErr error
	UpdateStatusErr     error
}

func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{
		payments: map[string]*domain.Payment{},
		balances: map[int64]int64{},
	}
}

func (r *MemoryPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *payment
	r.payments[payment.PaymentID] = &cp
	return nil
}

func (r *MemoryPaymentRepository) FindByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryPaymentRepository) FindByIDForUpdate(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return r.FindByID(ctx, paymentID)
}

func (r *MemoryPaymentRepository) UpdateStatus(ctx context.Context, payment *domain.Payment) error {
	if r.UpdateStatusErr != nil {
		return r.UpdateStatusErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[payment.PaymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = payment.Status
	p.UpdatedAt = payment.UpdatedAt
	return nil
}

func (r *MemoryPaymentRepository) FindReconcilable(ctx context.Context, horizon time.Time, limit int) ([]*domain.Payment, error) {
	if r.FindReconcilableErr != nil {
		return nil, r.FindReconcilableErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payment
	for _, p := range r.payments {
		if p.IsTerminal() || p.CreatedAt.Before(horizon) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryPaymentRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Payment
	for _, p := range r.payments {
		if p.IsTerminal() || !p.CreatedAt.Before(cutoff) {
			continue
		}
		p.Status = domain.StatusExpired
		p.UpdatedAt = time.Now()
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryPaymentRepository) CreditBalance(ctx context.Context, userID int64, amountCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amountCents
	r.Credits++
	return nil
}

func (r *MemoryPaymentRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID], nil
}

func (r *MemoryPaymentRepository) WithTx(ctx context.Context, fn func(repo PaymentRepository) error) error {
	return fn(r)
}
