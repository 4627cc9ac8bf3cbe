package adapter

import (
	"context"
	"fmt"
	"time"
)

// GatewayError is the typed failure every provider call may return. It carries
// the provider error code (string), the provider's human message, and the HTTP
// status of the response. A timeout surfaces as code "TIMEOUT".
type GatewayError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %s (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// ProviderCancel is one cancel entry in the provider's payment record.
type ProviderCancel struct {
	TransactionKey string    `json:"transactionKey"`
	CancelAmount   int64     `json:"cancelAmount"`
	CancelReason   string    `json:"cancelReason"`
	TaxFreeAmount  int64     `json:"taxFreeAmount"`
	CanceledAt     time.Time `json:"canceledAt"`
}

type ProviderCard struct {
	IssuerCode            string `json:"issuerCode"`
	Number                string `json:"number"`
	InstallmentPlanMonths int    `json:"installmentPlanMonths"`
	ApproveNo             string `json:"approveNo"`
	CardType              string `json:"cardType"`
}

type ProviderVirtualAccount struct {
	AccountNumber string     `json:"accountNumber"`
	BankCode      string     `json:"bankCode"`
	CustomerName  string     `json:"customerName"`
	DueDate       *time.Time `json:"dueDate"`
	Expired       bool       `json:"expired"`
}

type ProviderReceipt struct {
	URL string `json:"url"`
}

type ProviderCheckout struct {
	URL string `json:"url"`
}

// ProviderPaymentRecord is the provider's authoritative view of a payment as
// returned by confirm / retrieve / cancel calls.
type ProviderPaymentRecord struct {
	PaymentKey     string                  `json:"paymentKey"`
	OrderID        string                  `json:"orderId"`
	OrderName      string                  `json:"orderName"`
	Status         string                  `json:"status"`
	Method         string                  `json:"method"`
	TotalAmount    int64                   `json:"totalAmount"`
	BalanceAmount  int64                   `json:"balanceAmount"`
	SuppliedAmount int64                   `json:"suppliedAmount"`
	Vat            int64                   `json:"vat"`
	TaxFreeAmount  int64                   `json:"taxFreeAmount"`
	RequestedAt    time.Time               `json:"requestedAt"`
	ApprovedAt     *time.Time              `json:"approvedAt"`
	Receipt        *ProviderReceipt        `json:"receipt"`
	Checkout       *ProviderCheckout       `json:"checkout"`
	Card           *ProviderCard           `json:"card"`
	VirtualAccount *ProviderVirtualAccount `json:"virtualAccount"`
	Cancels        []ProviderCancel        `json:"cancels"`
}

type ConfirmRequest struct {
	OrderID string
	Amount  int64
}

type CancelRequest struct {
	CancelReason     string
	CancelAmount     int64
	RefundableAmount int64
	TaxFreeAmount    int64
}

type VirtualAccountRequest struct {
	OrderID      string
	OrderName    string
	Amount       int64
	CustomerName string
	BankCode     string
	ValidHours   int
}

type BillingKeyRequest struct {
	CustomerKey string
	AuthKey     string
}

type BillingChargeRequest struct {
	CustomerKey string
	OrderID     string
	OrderName   string
	Amount      int64
}

type BillingKeyRecord struct {
	BillingKey  string `json:"billingKey"`
	CustomerKey string `json:"customerKey"`
	CardCompany string `json:"cardCompany"`
	CardNumber  string `json:"cardNumber"`
}

// PaymentGateway is the hex port for the payment provider. Every call is
// synchronous, bounded by the configured client timeout, and returns a
// *GatewayError on any non-2xx provider response. The client never retries;
// retry policy belongs to the caller.
type PaymentGateway interface {
	Name() string

	ConfirmPayment(ctx context.Context, paymentKey string, req ConfirmRequest) (*ProviderPaymentRecord, error)
	GetPayment(ctx context.Context, paymentKey string) (*ProviderPaymentRecord, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*ProviderPaymentRecord, error)
	CancelPayment(ctx context.Context, paymentKey string, req CancelRequest) (*ProviderPaymentRecord, error)

	RequestVirtualAccount(ctx context.Context, req VirtualAccountRequest) (*ProviderPaymentRecord, error)
	IssueBillingKey(ctx context.Context, req BillingKeyRequest) (*BillingKeyRecord, error)
	ChargeBillingKey(ctx context.Context, billingKey string, req BillingChargeRequest) (*ProviderPaymentRecord, error)
}
