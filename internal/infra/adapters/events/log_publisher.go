package events

import (
	"context"

	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*LogPublisher)(nil)

// LogPublisher emits payment events as structured log lines. Downstream
// systems tail these from the log pipeline; swapping in a broker-backed
// publisher only requires another adapter.EventPublisher.
type LogPublisher struct {
	log *zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e *model.PaymentEvent) error {
	p.log.Info().
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("payment_id", e.PaymentID).
		Str("order_id", e.OrderID).
		Int64("amount", e.Amount).
		RawJSON("payload", e.Payload).
		Time("occurred_at", e.OccurredAt).
		Msg("payment event")
	return nil
}
