//go:build !integration

package sched

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/repository"
	"toss-payment-service/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *MockTxManager) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, opts, fn)
	}
	return fn(ctx, nil)
}

// MockOutbox holds undispatched events in order and moves them out on mark.
type MockOutbox struct {
	Pending    []*model.PaymentEvent
	Dispatched []string
	FetchErr   error
	MarkErr    error
}

func (m *MockOutbox) Append(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) error {
	m.Pending = append(m.Pending, e)
	return nil
}

func (m *MockOutbox) FetchUndispatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentEvent, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if limit > len(m.Pending) {
		limit = len(m.Pending)
	}
	out := make([]*model.PaymentEvent, limit)
	copy(out, m.Pending[:limit])
	return out, nil
}

func (m *MockOutbox) MarkDispatched(ctx context.Context, tx repository.Tx, ids []string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.Dispatched = append(m.Dispatched, ids...)
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	var rest []*model.PaymentEvent
	for _, e := range m.Pending {
		if !marked[e.ID] {
			rest = append(rest, e)
		}
	}
	m.Pending = rest
	return nil
}

type MockPublisher struct {
	Published []*model.PaymentEvent
	FailAfter int // publish errors once this many events got through; 0 = never
}

func (m *MockPublisher) Publish(ctx context.Context, e *model.PaymentEvent) error {
	if m.FailAfter > 0 && len(m.Published) >= m.FailAfter {
		return domain.ErrOperationFailed
	}
	m.Published = append(m.Published, e)
	return nil
}

// MockPaymentRepo backs the reconciler; only the list methods matter here.
type MockPaymentRepo struct {
	Stale  []*model.Payment
	Failed []*model.Payment
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, key string) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	return nil
}

func (m *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Payment, int, error) {
	return nil, 0, nil
}

func (m *MockPaymentRepo) ListCompleted(ctx context.Context, tx repository.Tx, f repository.StatFilters, offset, limit int) ([]*model.Payment, error) {
	return nil, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return m.Stale, nil
}

func (m *MockPaymentRepo) ListFailedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return m.Failed, nil
}

func (m *MockPaymentRepo) Statistics(ctx context.Context, tx repository.Tx, f repository.StatFilters) (*repository.PaymentStats, error) {
	return &repository.PaymentStats{CountByStatus: map[model.PaymentStatus]int64{}}, nil
}

func (m *MockPaymentRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	return nil
}

// MockPaymentUC records SyncFromProvider calls; the rest is unused by sched.
type MockPaymentUC struct {
	SyncedOrders []string
	SyncErr      error
}

func (m *MockPaymentUC) Prepare(ctx context.Context, userID string, in usecase.PrepareInput) (*model.Payment, *usecase.PrepareResult, error) {
	return nil, nil, domain.ErrOperationFailed
}

func (m *MockPaymentUC) Confirm(ctx context.Context, in usecase.ConfirmInput) (*model.Payment, error) {
	return nil, domain.ErrOperationFailed
}

func (m *MockPaymentUC) Cancel(ctx context.Context, userID, orderID string, in usecase.CancelInput) (*model.Payment, error) {
	return nil, domain.ErrOperationFailed
}

func (m *MockPaymentUC) SyncFromProvider(ctx context.Context, orderID string) (*model.Payment, error) {
	m.SyncedOrders = append(m.SyncedOrders, orderID)
	if m.SyncErr != nil {
		return nil, m.SyncErr
	}
	return &model.Payment{OrderID: orderID, Status: model.PaymentStatusDone}, nil
}

func (m *MockPaymentUC) GetByOrderID(ctx context.Context, userID, orderID string) (*model.Payment, error) {
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentUC) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Payment, int, error) {
	return nil, 0, nil
}

func (m *MockPaymentUC) Statistics(ctx context.Context, f repository.StatFilters) (*repository.PaymentStats, error) {
	return &repository.PaymentStats{CountByStatus: map[model.PaymentStatus]int64{}}, nil
}
