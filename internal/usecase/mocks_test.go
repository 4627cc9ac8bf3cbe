//go:build !integration

package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the callback immediately without a real transaction. Assign
// WithTxFunc to exercise rollback behavior.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.Payment
	saves int

	SaveFunc         func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byID: map[string]*model.Payment{}}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clonePayment(p)
	m.byID[p.ID] = cp
	m.saves++
	return nil
}

func (m *MockPaymentRepo) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MockPaymentRepo) find(match func(*model.Payment) bool) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.DeletedAt == nil && match(p) {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return m.find(func(p *model.Payment) bool { return p.ID == id })
}

func (m *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return m.find(func(p *model.Payment) bool { return p.OrderID == orderID })
}

func (m *MockPaymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, paymentKey string) (*model.Payment, error) {
	return m.find(func(p *model.Payment) bool { return p.PaymentKey == paymentKey && paymentKey != "" })
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Payment
	for _, p := range m.byID {
		if p.UserID == userID && p.DeletedAt == nil {
			all = append(all, clonePayment(p))
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MockPaymentRepo) ListCompleted(ctx context.Context, tx repository.Tx, f repository.StatFilters, offset, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.IsCompleted() && p.DeletedAt == nil {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		switch p.Status {
		case model.PaymentStatusReady, model.PaymentStatusInProgress, model.PaymentStatusWaitingForDeposit:
			if p.CreatedAt.Before(olderThan) {
				out = append(out, clonePayment(p))
			}
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) ListFailedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		switch p.Status {
		case model.PaymentStatusAborted, model.PaymentStatusExpired:
			if p.UpdatedAt.Before(olderThan) {
				out = append(out, clonePayment(p))
			}
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) Statistics(ctx context.Context, tx repository.Tx, f repository.StatFilters) (*repository.PaymentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.PaymentStats{CountByStatus: map[model.PaymentStatus]int64{}}
	for _, p := range m.byID {
		if p.DeletedAt != nil {
			continue
		}
		stats.CountByStatus[p.Status]++
		if p.IsCompleted() {
			stats.CompletedTotal += p.TotalAmount
		}
		stats.CanceledTotal += p.CancelAmount
	}
	return stats, nil
}

func (m *MockPaymentRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	if p.Card != nil {
		c := *p.Card
		cp.Card = &c
	}
	if p.VirtualAccount != nil {
		v := *p.VirtualAccount
		cp.VirtualAccount = &v
	}
	return &cp
}

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu   sync.Mutex
	rows []*model.Transaction

	AppendFunc func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{}
}

func (m *MockTransactionRepo) Append(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockTransactionRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.rows {
		if t.PaymentID == paymentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockTransactionRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ---- Mock OutboxRepository ----

type MockOutboxRepo struct {
	mu   sync.Mutex
	rows []*model.PaymentEvent
}

var _ repository.OutboxRepository = (*MockOutboxRepo)(nil)

func NewMockOutboxRepo() *MockOutboxRepo {
	return &MockOutboxRepo{}
}

func (m *MockOutboxRepo) Append(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockOutboxRepo) FetchUndispatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentEvent
	for _, e := range m.rows {
		if e.DispatchedAt == nil {
			cp := *e
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepo) MarkDispatched(ctx context.Context, tx repository.Tx, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		for _, e := range m.rows {
			if e.ID == id {
				e.DispatchedAt = &now
			}
		}
	}
	return nil
}

func (m *MockOutboxRepo) Events() []*model.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PaymentEvent, len(m.rows))
	copy(out, m.rows)
	return out
}

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu           sync.Mutex
	confirmCalls int
	cancelCalls  int

	ConfirmPaymentFunc        func(ctx context.Context, paymentKey string, req adapter.ConfirmRequest) (*adapter.ProviderPaymentRecord, error)
	GetPaymentFunc            func(ctx context.Context, paymentKey string) (*adapter.ProviderPaymentRecord, error)
	GetPaymentByOrderIDFunc   func(ctx context.Context, orderID string) (*adapter.ProviderPaymentRecord, error)
	CancelPaymentFunc         func(ctx context.Context, paymentKey string, req adapter.CancelRequest) (*adapter.ProviderPaymentRecord, error)
	RequestVirtualAccountFunc func(ctx context.Context, req adapter.VirtualAccountRequest) (*adapter.ProviderPaymentRecord, error)
	IssueBillingKeyFunc       func(ctx context.Context, req adapter.BillingKeyRequest) (*adapter.BillingKeyRecord, error)
	ChargeBillingKeyFunc      func(ctx context.Context, billingKey string, req adapter.BillingChargeRequest) (*adapter.ProviderPaymentRecord, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) ConfirmCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmCalls
}

func (m *MockPaymentGateway) CancelCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls
}

func (m *MockPaymentGateway) ConfirmPayment(ctx context.Context, paymentKey string, req adapter.ConfirmRequest) (*adapter.ProviderPaymentRecord, error) {
	m.mu.Lock()
	m.confirmCalls++
	m.mu.Unlock()
	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, paymentKey, req)
	}
	now := time.Now()
	return &adapter.ProviderPaymentRecord{
		PaymentKey:    paymentKey,
		OrderID:       req.OrderID,
		Status:        "DONE",
		TotalAmount:   req.Amount,
		BalanceAmount: req.Amount,
		ApprovedAt:    &now,
	}, nil
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, paymentKey string) (*adapter.ProviderPaymentRecord, error) {
	if m.GetPaymentFunc != nil {
		return m.GetPaymentFunc(ctx, paymentKey)
	}
	return &adapter.ProviderPaymentRecord{PaymentKey: paymentKey, Status: "DONE"}, nil
}

func (m *MockPaymentGateway) GetPaymentByOrderID(ctx context.Context, orderID string) (*adapter.ProviderPaymentRecord, error) {
	if m.GetPaymentByOrderIDFunc != nil {
		return m.GetPaymentByOrderIDFunc(ctx, orderID)
	}
	return &adapter.ProviderPaymentRecord{OrderID: orderID, Status: "DONE"}, nil
}

func (m *MockPaymentGateway) CancelPayment(ctx context.Context, paymentKey string, req adapter.CancelRequest) (*adapter.ProviderPaymentRecord, error) {
	m.mu.Lock()
	m.cancelCalls++
	m.mu.Unlock()
	if m.CancelPaymentFunc != nil {
		return m.CancelPaymentFunc(ctx, paymentKey, req)
	}
	status := "PARTIAL_CANCELED"
	if req.RefundableAmount == 0 {
		status = "CANCELED"
	}
	return &adapter.ProviderPaymentRecord{
		PaymentKey:    paymentKey,
		Status:        status,
		BalanceAmount: req.RefundableAmount,
		Cancels:       []adapter.ProviderCancel{{CancelAmount: req.CancelAmount, CancelReason: req.CancelReason, CanceledAt: time.Now()}},
	}, nil
}

func (m *MockPaymentGateway) RequestVirtualAccount(ctx context.Context, req adapter.VirtualAccountRequest) (*adapter.ProviderPaymentRecord, error) {
	if m.RequestVirtualAccountFunc != nil {
		return m.RequestVirtualAccountFunc(ctx, req)
	}
	return &adapter.ProviderPaymentRecord{OrderID: req.OrderID, Status: "WAITING_FOR_DEPOSIT"}, nil
}

func (m *MockPaymentGateway) IssueBillingKey(ctx context.Context, req adapter.BillingKeyRequest) (*adapter.BillingKeyRecord, error) {
	if m.IssueBillingKeyFunc != nil {
		return m.IssueBillingKeyFunc(ctx, req)
	}
	return &adapter.BillingKeyRecord{BillingKey: "bill_mock", CustomerKey: req.CustomerKey}, nil
}

func (m *MockPaymentGateway) ChargeBillingKey(ctx context.Context, billingKey string, req adapter.BillingChargeRequest) (*adapter.ProviderPaymentRecord, error) {
	if m.ChargeBillingKeyFunc != nil {
		return m.ChargeBillingKeyFunc(ctx, billingKey, req)
	}
	return &adapter.ProviderPaymentRecord{OrderID: req.OrderID, Status: "DONE", TotalAmount: req.Amount}, nil
}
