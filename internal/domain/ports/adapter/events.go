package adapter

import (
	"context"

	"toss-payment-service/internal/domain/model"
)

// EventPublisher delivers dispatched outbox events to downstream consumers
// (order-status sync, mail, ...). Consumers are external collaborators; the
// service only guarantees at-least-once hand-off.
type EventPublisher interface {
	Publish(ctx context.Context, e *model.PaymentEvent) error
}
