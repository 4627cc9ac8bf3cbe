package model

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentCanceled  EventType = "payment.canceled"
)

// PaymentEvent is an outbox row. It is appended inside the same transaction
// that mutates the Payment and delivered later by the dispatcher, so delivery
// is at-least-once and never couples the mutation to consumer availability.
type PaymentEvent struct {
	ID           string // ULID
	Type         EventType
	PaymentID    string
	OrderID      string
	Amount       int64
	Payload      json.RawMessage
	OccurredAt   time.Time
	DispatchedAt *time.Time
}

func NewPaymentEvent(typ EventType, p *Payment, amount int64, now time.Time) *PaymentEvent {
	payload, _ := json.Marshal(map[string]any{
		"order_id":    p.OrderID,
		"payment_key": p.PaymentKey,
		"status":      p.Status,
		"amount":      amount,
	})
	return &PaymentEvent{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:       typ,
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		Amount:     amount,
		Payload:    payload,
		OccurredAt: now,
	}
}
