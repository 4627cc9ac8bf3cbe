package model

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

type TransactionType string

const (
	TransactionTypePayment       TransactionType = "payment"
	TransactionTypeCancel        TransactionType = "cancel"
	TransactionTypePartialCancel TransactionType = "partial_cancel"
)

// Transaction is one append-only ledger row per provider interaction that moved
// money. Rows are never mutated; the ordered sequence for a payment must
// reconstruct its current balance by summation.
type Transaction struct {
	ID              string // ULID; sortable by creation time
	PaymentID       string
	Type            TransactionType
	Amount          int64
	Reason          string          // required for cancels
	ProviderPayload json.RawMessage // raw provider response, kept for audit
	ProcessedAt     time.Time
}

// NewTransactionID returns a fresh ULID string.
func NewTransactionID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// SignedAmount is the ledger contribution: payments add, cancels subtract.
func (t *Transaction) SignedAmount() int64 {
	if t.Type == TransactionTypePayment {
		return t.Amount
	}
	return -t.Amount
}
