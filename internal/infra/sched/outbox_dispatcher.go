package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/domain/ports/repository"
	"toss-payment-service/internal/infra/metrics"
)

// OutboxDispatcher drains the payment event outbox. Events are appended in the
// same transaction as the payment mutation they describe; this loop is the
// only path that marks them dispatched, so a crash between publish and mark
// re-delivers rather than drops. Consumers must tolerate duplicates.
type OutboxDispatcher struct {
	outbox    repository.OutboxRepository
	publisher adapter.EventPublisher
	tm        repository.TransactionManager
	interval  time.Duration
	batchSize int
	log       *zerolog.Logger
}

func NewOutboxDispatcher(outbox repository.OutboxRepository, publisher adapter.EventPublisher, tm repository.TransactionManager, interval time.Duration, batchSize int, logger *zerolog.Logger) *OutboxDispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxDispatcher{outbox: outbox, publisher: publisher, tm: tm, interval: interval, batchSize: batchSize, log: logger}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for d.tick(ctx) {
				// keep draining full batches before sleeping again
			}
		}
	}
}

// tick dispatches one batch and reports whether the batch was full, meaning
// more events are likely waiting.
func (d *OutboxDispatcher) tick(ctx context.Context) bool {
	full := false
	err := d.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		events, err := d.outbox.FetchUndispatched(ctx, tx, d.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			metrics.SetOutboxPending(0)
			return nil
		}

		dispatched := make([]string, 0, len(events))
		for _, e := range events {
			if err := d.publisher.Publish(ctx, e); err != nil {
				// Leave the rest for the next tick; FOR UPDATE SKIP LOCKED
				// keeps a second dispatcher from colliding on this batch.
				d.log.Error().Err(err).Str("event_id", e.ID).Str("event_type", string(e.Type)).Msg("outbox publish failed")
				break
			}
			dispatched = append(dispatched, e.ID)
			metrics.IncOutboxDispatched(string(e.Type))
		}
		if len(dispatched) == 0 {
			return nil
		}
		if err := d.outbox.MarkDispatched(ctx, tx, dispatched); err != nil {
			return err
		}
		metrics.SetOutboxPending(len(events) - len(dispatched))
		full = len(events) == d.batchSize
		return nil
	})
	if err != nil {
		d.log.Error().Err(err).Msg("outbox dispatch tick failed")
		return false
	}
	return full
}
