package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

// Append inserts one ledger row. There is deliberately no update or delete;
// the ledger is the audit trail that reconstructs a payment's balance.
func (r *transactionRepo) Append(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO payment_transactions (id, payment_id, type, amount, reason, provider_payload, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.PaymentID, t.Type, t.Amount, t.Reason, t.ProviderPayload, t.ProcessedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// ListByPayment returns the payment's ledger ordered by id; ULIDs sort by
// creation time, so this is processing order.
func (r *transactionRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.Transaction, error) {
	const q = `SELECT id, payment_id, type, amount, reason, provider_payload, processed_at
FROM payment_transactions WHERE payment_id=$1 ORDER BY id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t := new(model.Transaction)
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.Type, &t.Amount, &t.Reason, &t.ProviderPayload, &t.ProcessedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
