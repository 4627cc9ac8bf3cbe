package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain/ports/repository"
	"toss-payment-service/internal/usecase"
)

// PaymentReconciler periodically scans for stale in-flight payments and pulls
// the provider's authoritative state for them. This covers the cases where the
// confirm callback never arrived, a webhook delivery exhausted its retries, or
// the process crashed mid-confirm.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an in-flight payment must be to sync
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list stale payments")
		return
	}
	for _, p := range stale {
		if _, err := w.uc.SyncFromProvider(ctx, p.OrderID); err != nil {
			w.log.Warn().Err(err).Str("order_id", p.OrderID).Msg("payment-reconciler: sync failed")
			continue
		}
		w.log.Info().Str("order_id", p.OrderID).Msg("payment-reconciler: reconciled")
	}

	// Failed payments past the window only get surfaced; an operator decides
	// whether anything needs manual follow-up with the provider.
	failed, err := w.payments.ListFailedOlderThan(ctx, nil, cutoff, 50)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list failed payments")
		return
	}
	for _, p := range failed {
		w.log.Warn().
			Str("order_id", p.OrderID).
			Str("status", string(p.Status)).
			Str("failure_code", p.FailureCode).
			Msg("payment-reconciler: unresolved failed payment")
	}
}
