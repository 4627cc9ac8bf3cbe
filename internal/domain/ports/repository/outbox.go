package repository

import (
	"context"

	"toss-payment-service/internal/domain/model"
)

// OutboxRepository stores domain events pending delivery. Append runs inside
// the same transaction as the payment mutation it describes.
type OutboxRepository interface {
	Append(ctx context.Context, tx Tx, e *model.PaymentEvent) error
	FetchUndispatched(ctx context.Context, tx Tx, limit int) ([]*model.PaymentEvent, error)
	MarkDispatched(ctx context.Context, tx Tx, ids []string) error
}
