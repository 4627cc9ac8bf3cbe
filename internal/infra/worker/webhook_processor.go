package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"toss-payment-service/internal/infra/metrics"
	"toss-payment-service/internal/infra/redis"
	"toss-payment-service/internal/usecase"
)

// WebhookProcessor runs one webhook delivery through the webhook use case
// with a bounded retry policy. The ingress already answered 200 by the time
// this runs; these retries are the only retry mechanism, and an exhausted
// delivery is logged as a terminal failure for manual reconciliation.
type WebhookProcessor struct {
	uc          usecase.WebhookUseCase
	locker      redis.Locker
	deduper     redis.Deduper
	maxAttempts int
	backoff     time.Duration
	lockTTL     time.Duration
	log         *zerolog.Logger
}

func NewWebhookProcessor(
	uc usecase.WebhookUseCase,
	locker redis.Locker,
	deduper redis.Deduper,
	maxAttempts int,
	backoff time.Duration,
	logger *zerolog.Logger,
) *WebhookProcessor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 10 * time.Second
	}
	return &WebhookProcessor{
		uc:          uc,
		locker:      locker,
		deduper:     deduper,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		lockTTL:     time.Minute,
		log:         logger,
	}
}

// Process is the Task submitted to the pool for one raw delivery.
func (p *WebhookProcessor) Process(payload []byte) Task {
	return func(ctx context.Context) error {
		p.run(ctx, payload)
		return nil // terminal failures are handled here, not by the pool
	}
}

func (p *WebhookProcessor) run(ctx context.Context, payload []byte) {
	if p.deduper != nil {
		seen, err := p.deduper.Seen(ctx, payload)
		if err != nil {
			// Dedup is best-effort; processing is idempotent without it.
			p.log.Warn().Err(err).Msg("webhook dedup unavailable")
		} else if seen {
			p.log.Debug().Msg("webhook delivery already seen, skipped")
			return
		}
	}

	unlock := p.lock(ctx, payload)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = p.uc.HandleDelivery(ctx, payload)
		if lastErr == nil {
			return
		}
		p.log.Warn().Int("attempt", attempt).Err(lastErr).Msg("webhook processing failed")
		if attempt < p.maxAttempts {
			metrics.IncWebhookRetry()
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
		}
	}

	// No further retry and no user-visible effect; a human reconciles
	// against provider data from here.
	metrics.IncWebhookFailure()
	p.log.Error().Err(lastErr).Int("attempts", p.maxAttempts).Msg("webhook delivery failed terminally")
}

// lock serializes deliveries per payment key when one is present in the
// payload. Without a key (or without Redis) processing proceeds unlocked;
// the database row lock still guarantees a single effective transition.
func (p *WebhookProcessor) lock(ctx context.Context, payload []byte) func() {
	if p.locker == nil {
		return func() {}
	}
	var ev struct {
		Data struct {
			PaymentKey string `json:"paymentKey"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Data.PaymentKey == "" {
		return func() {}
	}
	key := "webhook:lock:" + ev.Data.PaymentKey
	token, err := p.locker.TryLock(ctx, key, p.lockTTL)
	if err != nil {
		p.log.Debug().Str("payment_key", ev.Data.PaymentKey).Msg("webhook lock busy, proceeding on row lock")
		return func() {}
	}
	return func() { _ = p.locker.Unlock(context.Background(), key, token) }
}
