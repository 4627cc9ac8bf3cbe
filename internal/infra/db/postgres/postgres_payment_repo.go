package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, payment_key, user_id, order_name, method, status,
total_amount, balance_amount, cancel_amount, supplied_amount, vat, tax_free_amount, discount_amount,
customer_name, customer_email, customer_phone, failure_code, failure_message,
receipt_url, checkout_url, card, virtual_account,
requested_at, approved_at, canceled_at, created_at, updated_at, deleted_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var paymentKey *string
	var card, va []byte
	err := row.Scan(
		&p.ID, &p.OrderID, &paymentKey, &p.UserID, &p.OrderName, &p.Method, &p.Status,
		&p.TotalAmount, &p.BalanceAmount, &p.CancelAmount, &p.SuppliedAmount, &p.Vat, &p.TaxFreeAmount, &p.DiscountAmount,
		&p.CustomerName, &p.CustomerEmail, &p.CustomerPhone, &p.FailureCode, &p.FailureMessage,
		&p.ReceiptURL, &p.CheckoutURL, &card, &va,
		&p.RequestedAt, &p.ApprovedAt, &p.CanceledAt, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if paymentKey != nil {
		p.PaymentKey = *paymentKey
	}
	if len(card) > 0 {
		p.Card = &model.CardInfo{}
		_ = json.Unmarshal(card, p.Card)
	}
	if len(va) > 0 {
		p.VirtualAccount = &model.VirtualAccountInfo{}
		_ = json.Unmarshal(va, p.VirtualAccount)
	}
	return p, nil
}

// Save upserts the full aggregate. The payment_key column stays NULL until
// confirmation so the partial unique index never sees empty strings.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29
) ON CONFLICT (id) DO UPDATE SET
  payment_key=$3, status=$7,
  balance_amount=$9, cancel_amount=$10, supplied_amount=$11, vat=$12, tax_free_amount=$13, discount_amount=$14,
  failure_code=$18, failure_message=$19, receipt_url=$20, checkout_url=$21, card=$22, virtual_account=$23,
  approved_at=$25, canceled_at=$26, updated_at=$28, deleted_at=$29;`

	var paymentKey *string
	if p.PaymentKey != "" {
		paymentKey = &p.PaymentKey
	}
	var card, va []byte
	if p.Card != nil {
		card, _ = json.Marshal(p.Card)
	}
	if p.VirtualAccount != nil {
		va, _ = json.Marshal(p.VirtualAccount)
	}

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OrderID, paymentKey, p.UserID, p.OrderName, p.Method, p.Status,
		p.TotalAmount, p.BalanceAmount, p.CancelAmount, p.SuppliedAmount, p.Vat, p.TaxFreeAmount, p.DiscountAmount,
		p.CustomerName, p.CustomerEmail, p.CustomerPhone, p.FailureCode, p.FailureMessage,
		p.ReceiptURL, p.CheckoutURL, card, va,
		p.RequestedAt, p.ApprovedAt, p.CanceledAt, p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg any) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + ` AND deleted_at IS NULL`
	if _, ok := tx.(pgx.Tx); ok {
		// Row lock scoped to the surrounding transaction; this is the unit of
		// mutual exclusion for confirm/cancel/webhook transitions.
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", arg)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "id=$1", id)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "order_id=$1", orderID)
}

func (r *paymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, paymentKey string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "payment_key=$1", paymentKey)
}

// UpdateStatus patches the status column only. This is the narrow trusted
// path used by webhook STATUS_CHANGED handling; it bypasses transition checks.
func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	const q = `UPDATE payments SET status=$2, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Payment, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := r.list(ctx, tx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id=$1 AND deleted_at IS NULL ORDER BY created_at DESC OFFSET $2 LIMIT $3;`,
		userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM payments WHERE user_id=$1 AND deleted_at IS NULL;`, userID)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}
	return items, total, nil
}

func (r *paymentRepo) ListCompleted(ctx context.Context, tx repository.Tx, f repository.StatFilters, offset, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE status IN ('done','partial_canceled','canceled') AND deleted_at IS NULL
  AND ($1::timestamptz IS NULL OR approved_at >= $1)
  AND ($2::timestamptz IS NULL OR approved_at < $2)
  AND ($3::text IS NULL OR method = $3)
ORDER BY approved_at DESC OFFSET $4 LIMIT $5;`
	return r.list(ctx, tx, q, nullTime(f.From), nullTime(f.To), nullMethod(f.Method), offset, limit)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE status IN ('ready','in_progress','waiting_for_deposit') AND deleted_at IS NULL AND created_at < $1
ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentRepo) ListFailedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE status IN ('aborted','expired') AND deleted_at IS NULL AND updated_at < $1
ORDER BY updated_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentRepo) Statistics(ctx context.Context, tx repository.Tx, f repository.StatFilters) (*repository.PaymentStats, error) {
	const q = `SELECT status, COUNT(*),
  COALESCE(SUM(total_amount) FILTER (WHERE status IN ('done','partial_canceled','canceled')),0),
  COALESCE(SUM(cancel_amount),0)
FROM payments
WHERE deleted_at IS NULL
  AND ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
  AND ($3::text IS NULL OR method = $3)
GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q, nullTime(f.From), nullTime(f.To), nullMethod(f.Method))
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	stats := &repository.PaymentStats{CountByStatus: make(map[model.PaymentStatus]int64)}
	for rows.Next() {
		var status model.PaymentStatus
		var count, completed, canceled int64
		if err := rows.Scan(&status, &count, &completed, &canceled); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		stats.CountByStatus[status] = count
		stats.CompletedTotal += completed
		stats.CanceledTotal += canceled
	}
	return stats, rows.Err()
}

// SoftDelete hides the payment from queries without dropping the audit trail.
func (r *paymentRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE payments SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullMethod(m model.PaymentMethod) *string {
	if m == "" {
		return nil
	}
	s := string(m)
	return &s
}
