package model

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"             // created but not yet acknowledged by the provider
	PaymentStatusReady             PaymentStatus = "ready"               // prepared locally; awaiting provider confirmation
	PaymentStatusInProgress        PaymentStatus = "in_progress"         // provider-side authentication in flight
	PaymentStatusWaitingForDeposit PaymentStatus = "waiting_for_deposit" // virtual account issued; deposit pending
	PaymentStatusDone              PaymentStatus = "done"                // confirmed and charged
	PaymentStatusCanceled          PaymentStatus = "canceled"            // fully canceled (terminal)
	PaymentStatusPartialCanceled   PaymentStatus = "partial_canceled"    // some balance refunded, more possible
	PaymentStatusAborted           PaymentStatus = "aborted"             // confirmation failed at the provider (terminal)
	PaymentStatusExpired           PaymentStatus = "expired"             // provider expired the attempt (terminal)
)

type PaymentMethod string

const (
	MethodCard                   PaymentMethod = "card"
	MethodVirtualAccount         PaymentMethod = "virtual_account"
	MethodTransfer               PaymentMethod = "transfer"
	MethodMobilePhone            PaymentMethod = "mobile_phone"
	MethodCultureGiftCertificate PaymentMethod = "culture_gift_certificate"
	MethodBookGiftCertificate    PaymentMethod = "book_gift_certificate"
	MethodGameGiftCertificate    PaymentMethod = "game_gift_certificate"
	MethodEasyPay                PaymentMethod = "easy_pay"
)

// methodTokens maps local methods to the tokens the Toss checkout widget expects.
var methodTokens = map[PaymentMethod]string{
	MethodCard:                   "CARD",
	MethodVirtualAccount:         "VIRTUAL_ACCOUNT",
	MethodTransfer:               "TRANSFER",
	MethodMobilePhone:            "MOBILE_PHONE",
	MethodCultureGiftCertificate: "CULTURE_GIFT_CERTIFICATE",
	MethodBookGiftCertificate:    "BOOK_GIFT_CERTIFICATE",
	MethodGameGiftCertificate:    "GAME_GIFT_CERTIFICATE",
	MethodEasyPay:                "EASY_PAY",
}

func (m PaymentMethod) Valid() bool {
	_, ok := methodTokens[m]
	return ok
}

func (m PaymentMethod) ProviderToken() string { return methodTokens[m] }

// CardInfo is the card sub-record captured from a confirmed card payment.
type CardInfo struct {
	IssuerCode            string
	Number                string // masked by the provider
	InstallmentPlanMonths int
	ApproveNo             string
	CardType              string
}

// VirtualAccountInfo is captured when the provider issues a virtual account.
type VirtualAccountInfo struct {
	AccountNumber string
	BankCode      string
	CustomerName  string
	DueDate       *time.Time
	Expired       bool
}

// Payment is the aggregate root for one checkout attempt. All monetary fields
// are non-negative integers in the smallest currency unit (KRW has none).
//
// Invariant held after creation: BalanceAmount + CancelAmount == TotalAmount.
type Payment struct {
	ID         string // UUID
	OrderID    string // ORDER_<unix-millis>_<8 random>, globally unique
	PaymentKey string // provider key; set on confirmation, unique once present
	UserID     string

	OrderName string
	Method    PaymentMethod
	Status    PaymentStatus

	TotalAmount    int64 // immutable after prepare
	BalanceAmount  int64 // remaining refundable amount
	CancelAmount   int64 // cumulative canceled amount
	SuppliedAmount int64
	Vat            int64
	TaxFreeAmount  int64
	DiscountAmount int64

	// Customer snapshot taken at prepare time; decoupled from the live user record.
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	FailureCode    string
	FailureMessage string

	ReceiptURL  string
	CheckoutURL string

	Card           *CardInfo
	VirtualAccount *VirtualAccountInfo

	RequestedAt time.Time
	ApprovedAt  *time.Time
	CanceledAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time // soft delete only; audit trail is never dropped
}

// NewOrderID generates an externally visible order identifier.
// Format: ORDER_<unix-millis>_<8 uppercase hex chars>.
func NewOrderID(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("ORDER_%d_%08X", now.UnixMilli(), b)
}

// IsCompleted reports whether the payment already went through a successful
// confirmation. Confirm must treat these states as a no-op.
func (p *Payment) IsCompleted() bool {
	switch p.Status {
	case PaymentStatusDone, PaymentStatusCanceled, PaymentStatusPartialCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusCanceled, PaymentStatusAborted, PaymentStatusExpired:
		return true
	}
	return false
}

// IsCancelable reports whether a (further) cancel may be attempted.
func (p *Payment) IsCancelable() bool {
	switch p.Status {
	case PaymentStatusDone:
		return true
	case PaymentStatusPartialCanceled:
		return p.BalanceAmount > 0
	}
	return false
}

// ApplyCancel moves amount from balance to the cumulative cancel total and
// classifies the result as full or partial. Callers validate bounds first.
func (p *Payment) ApplyCancel(amount int64, at time.Time) {
	full := amount == p.BalanceAmount
	p.BalanceAmount -= amount
	p.CancelAmount += amount
	if full {
		p.Status = PaymentStatusCanceled
	} else {
		p.Status = PaymentStatusPartialCanceled
	}
	p.CanceledAt = &at
	p.UpdatedAt = at
}

// providerStatuses is the closed mapping from provider statuses to local ones.
// An unmapped value is an error, not a silent fallback; the provider adding a
// status must be an operator-visible event.
var providerStatuses = map[string]PaymentStatus{
	"READY":               PaymentStatusReady,
	"IN_PROGRESS":         PaymentStatusInProgress,
	"WAITING_FOR_DEPOSIT": PaymentStatusWaitingForDeposit,
	"DONE":                PaymentStatusDone,
	"CANCELED":            PaymentStatusCanceled,
	"PARTIAL_CANCELED":    PaymentStatusPartialCanceled,
	"ABORTED":             PaymentStatusAborted,
	"EXPIRED":             PaymentStatusExpired,
}

// StatusFromProvider maps a provider status string (case-insensitive) to the
// local status. ok is false for values outside the known enumeration.
func StatusFromProvider(s string) (PaymentStatus, bool) {
	st, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(s))]
	return st, ok
}
