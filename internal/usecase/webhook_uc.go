package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/domain/ports/repository"
	"toss-payment-service/internal/infra/metrics"
)

// Webhook event types pushed by the provider.
const (
	EventConfirmationCompleted = "PAYMENT.CONFIRMATION_COMPLETED"
	EventDepositCompleted      = "VIRTUAL_ACCOUNT.DEPOSIT_COMPLETED"
	EventStatusChanged         = "PAYMENT.STATUS_CHANGED"
)

// webhookPayload is the provider's delivery envelope.
type webhookPayload struct {
	EventType string `json:"eventType"`
	Data      struct {
		PaymentKey string `json:"paymentKey"`
		OrderID    string `json:"orderId"`
		Status     string `json:"status"`
	} `json:"data"`
}

var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase converges asynchronous provider notifications onto the same
// final state the synchronous confirm path reaches. A returned error means
// the delivery should be retried by the worker; malformed or irrelevant
// deliveries are logged and dropped without error.
type WebhookUseCase interface {
	HandleDelivery(ctx context.Context, payload []byte) error
}

type webhookUC struct {
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{
		payments:     payments,
		transactions: transactions,
		outbox:       outbox,
		gateway:      gateway,
		tm:           tm,
		log:          logger,
	}
}

func (u *webhookUC) HandleDelivery(ctx context.Context, payload []byte) error {
	var ev webhookPayload
	if err := json.Unmarshal(payload, &ev); err != nil {
		u.log.Warn().Err(err).Msg("webhook: malformed payload dropped")
		metrics.IncWebhookEvent("malformed", "dropped")
		return nil
	}

	switch ev.EventType {
	case EventConfirmationCompleted, EventDepositCompleted:
		return u.handleCompleted(ctx, ev)
	case EventStatusChanged:
		return u.handleStatusChanged(ctx, ev)
	default:
		// The provider adds event types over time; unknown ones are not an
		// error condition.
		u.log.Info().Str("event_type", ev.EventType).Msg("webhook: unknown event type dropped")
		metrics.IncWebhookEvent(ev.EventType, "dropped")
		return nil
	}
}

// handleCompleted applies the done transition for an asynchronous
// confirmation. The provider record is re-fetched by payment key: the
// webhook body is a notification, not an authority.
func (u *webhookUC) handleCompleted(ctx context.Context, ev webhookPayload) error {
	if ev.Data.PaymentKey == "" {
		u.log.Warn().Str("event_type", ev.EventType).Msg("webhook: missing payment key, dropped")
		metrics.IncWebhookEvent(ev.EventType, "dropped")
		return nil
	}

	rec, err := u.gateway.GetPayment(ctx, ev.Data.PaymentKey)
	if err != nil {
		return fmt.Errorf("webhook: fetch payment %s: %w", ev.Data.PaymentKey, err)
	}
	status, ok := model.StatusFromProvider(rec.Status)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProviderStatus, rec.Status)
	}

	outcome := "applied"
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByPaymentKey(ctx, tx, ev.Data.PaymentKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Replication lag: the provider can notify before the local
				// record is visible. Tolerated, not retried.
				u.log.Info().Str("payment_key", ev.Data.PaymentKey).Msg("webhook: payment not found locally, dropped")
				outcome = "dropped"
				return nil
			}
			return err
		}

		// Same guard as synchronous confirm; whichever path loses the race
		// observes the completed state here and no-ops.
		if p.IsCompleted() {
			outcome = "noop"
			return nil
		}
		if status != model.PaymentStatusDone {
			// Authoritative record disagrees with the completion event;
			// leave the payment to the STATUS_CHANGED path or reconciler.
			u.log.Warn().Str("payment_key", p.PaymentKey).Str("provider_status", rec.Status).Msg("webhook: completion event without DONE record")
			outcome = "noop"
			return nil
		}

		now := time.Now()
		applyProviderRecord(p, rec, status, now)
		if p.PaymentKey == "" {
			p.PaymentKey = ev.Data.PaymentKey
		}
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}

		payload, _ := json.Marshal(rec)
		t := &model.Transaction{
			ID:              model.NewTransactionID(now),
			PaymentID:       p.ID,
			Type:            model.TransactionTypePayment,
			Amount:          rec.TotalAmount,
			ProviderPayload: payload,
			ProcessedAt:     now,
		}
		if err := u.transactions.Append(ctx, tx, t); err != nil {
			return err
		}
		if err := u.outbox.Append(ctx, tx, model.NewPaymentEvent(model.EventPaymentCompleted, p, p.TotalAmount, now)); err != nil {
			return err
		}

		metrics.IncPayment(string(model.PaymentStatusDone))
		metrics.AddPaymentRevenue(string(p.Method), p.TotalAmount)
		u.log.Info().Str("order_id", p.OrderID).Str("event_type", ev.EventType).Msg("webhook: payment completed")
		return nil
	})
	if err != nil {
		metrics.IncWebhookEvent(ev.EventType, "error")
		return err
	}
	metrics.IncWebhookEvent(ev.EventType, outcome)
	return nil
}

// handleStatusChanged overwrites the local status with the provider-reported
// one. The provider is authoritative for status, so this path deliberately
// skips the confirm/cancel transition checks; it never touches balances, and
// it refuses to regress a payment that already completed.
func (u *webhookUC) handleStatusChanged(ctx context.Context, ev webhookPayload) error {
	if ev.Data.PaymentKey == "" {
		u.log.Warn().Str("event_type", ev.EventType).Msg("webhook: missing payment key, dropped")
		metrics.IncWebhookEvent(ev.EventType, "dropped")
		return nil
	}
	status, ok := model.StatusFromProvider(ev.Data.Status)
	if !ok {
		metrics.IncWebhookEvent(ev.EventType, "error")
		return fmt.Errorf("%w: %q", domain.ErrUnknownProviderStatus, ev.Data.Status)
	}

	outcome := "applied"
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByPaymentKey(ctx, tx, ev.Data.PaymentKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				u.log.Info().Str("payment_key", ev.Data.PaymentKey).Msg("webhook: payment not found locally, dropped")
				outcome = "dropped"
				return nil
			}
			return err
		}
		if p.Status == status {
			outcome = "noop"
			return nil
		}
		if p.IsCompleted() && status != model.PaymentStatusCanceled && status != model.PaymentStatusPartialCanceled {
			u.log.Warn().Str("order_id", p.OrderID).Str("from", string(p.Status)).Str("to", string(status)).Msg("webhook: refusing status regression")
			outcome = "noop"
			return nil
		}
		if err := u.payments.UpdateStatus(ctx, tx, p.ID, status); err != nil {
			return err
		}
		metrics.IncPayment(string(status))
		u.log.Info().Str("order_id", p.OrderID).Str("from", string(p.Status)).Str("to", string(status)).Msg("webhook: status overwritten")
		return nil
	})
	if err != nil {
		metrics.IncWebhookEvent(ev.EventType, "error")
		return err
	}
	metrics.IncWebhookEvent(ev.EventType, outcome)
	return nil
}
