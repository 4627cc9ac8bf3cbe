package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct{ pool *pgxpool.Pool }

func NewOutboxRepo(pool *pgxpool.Pool) *outboxRepo {
	return &outboxRepo{pool: pool}
}

func (r *outboxRepo) Append(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) error {
	const q = `
INSERT INTO payment_events (id, type, payment_id, order_id, amount, payload, occurred_at, dispatched_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULL);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Type, e.PaymentID, e.OrderID, e.Amount, e.Payload, e.OccurredAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// FetchUndispatched locks the returned rows so concurrent dispatcher ticks
// never deliver the same event twice from one database.
func (r *outboxRepo) FetchUndispatched(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, type, payment_id, order_id, amount, payload, occurred_at, dispatched_at
FROM payment_events WHERE dispatched_at IS NULL ORDER BY id ASC LIMIT $1 FOR UPDATE SKIP LOCKED;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentEvent
	for rows.Next() {
		e := new(model.PaymentEvent)
		if err := rows.Scan(&e.ID, &e.Type, &e.PaymentID, &e.OrderID, &e.Amount, &e.Payload, &e.OccurredAt, &e.DispatchedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *outboxRepo) MarkDispatched(ctx context.Context, tx repository.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE payment_events SET dispatched_at=NOW() WHERE id = ANY($1);`
	_, err := execSQL(ctx, r.pool, tx, q, ids)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
