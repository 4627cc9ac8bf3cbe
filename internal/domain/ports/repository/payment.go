package repository

import (
	"context"
	"time"

	"toss-payment-service/internal/domain/model"
)

// StatFilters narrows Statistics queries. Zero values mean "no filter".
type StatFilters struct {
	From   time.Time
	To     time.Time
	Method model.PaymentMethod
}

// PaymentStats is the aggregate the back-office reads.
type PaymentStats struct {
	CountByStatus  map[model.PaymentStatus]int64
	CompletedTotal int64 // sum of total_amount over done/partial_canceled/canceled
	CanceledTotal  int64 // sum of cancel_amount
}

// PaymentRepository persists the Payment aggregate. Find* methods return
// domain.ErrNotFound on absence rather than an error row; callers decide how
// to handle a miss. Update is a direct field patch — invariant enforcement
// belongs to the use-case layer, not the store.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	FindByPaymentKey(ctx context.Context, tx Tx, paymentKey string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Payment, int, error)
	ListCompleted(ctx context.Context, tx Tx, f StatFilters, offset, limit int) ([]*model.Payment, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	ListFailedOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	Statistics(ctx context.Context, tx Tx, f StatFilters) (*PaymentStats, error)
	SoftDelete(ctx context.Context, tx Tx, id string) error
}

// TransactionRepository is the append-only ledger store.
type TransactionRepository interface {
	Append(ctx context.Context, tx Tx, t *model.Transaction) error
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.Transaction, error)
}
