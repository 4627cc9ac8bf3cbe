package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"toss-payment-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway for dev mode and tests. Confirm
// succeeds with status DONE for any payment key; cancels echo the request.
type NoopGateway struct {
	mu  sync.Mutex
	seq int64
}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopGateway) ConfirmPayment(ctx context.Context, paymentKey string, req adapter.ConfirmRequest) (*adapter.ProviderPaymentRecord, error) {
	now := time.Now()
	return &adapter.ProviderPaymentRecord{
		PaymentKey:    paymentKey,
		OrderID:       req.OrderID,
		Status:        "DONE",
		Method:        "CARD",
		TotalAmount:   req.Amount,
		BalanceAmount: req.Amount,
		RequestedAt:   now,
		ApprovedAt:    &now,
		Receipt:       &adapter.ProviderReceipt{URL: "https://example.test/receipt/" + req.OrderID},
	}, nil
}

func (g *NoopGateway) GetPayment(ctx context.Context, paymentKey string) (*adapter.ProviderPaymentRecord, error) {
	now := time.Now()
	return &adapter.ProviderPaymentRecord{PaymentKey: paymentKey, Status: "DONE", ApprovedAt: &now}, nil
}

func (g *NoopGateway) GetPaymentByOrderID(ctx context.Context, orderID string) (*adapter.ProviderPaymentRecord, error) {
	return nil, &adapter.GatewayError{Code: "NOT_FOUND_PAYMENT", Message: "noop: no such order", HTTPStatus: 404}
}

func (g *NoopGateway) CancelPayment(ctx context.Context, paymentKey string, req adapter.CancelRequest) (*adapter.ProviderPaymentRecord, error) {
	now := time.Now()
	return &adapter.ProviderPaymentRecord{
		PaymentKey: paymentKey,
		Status:     "CANCELED",
		Cancels: []adapter.ProviderCancel{{
			TransactionKey: g.next(),
			CancelAmount:   req.CancelAmount,
			CancelReason:   req.CancelReason,
			CanceledAt:     now,
		}},
	}, nil
}

func (g *NoopGateway) RequestVirtualAccount(ctx context.Context, req adapter.VirtualAccountRequest) (*adapter.ProviderPaymentRecord, error) {
	return &adapter.ProviderPaymentRecord{
		PaymentKey:  g.next(),
		OrderID:     req.OrderID,
		Status:      "WAITING_FOR_DEPOSIT",
		TotalAmount: req.Amount,
		VirtualAccount: &adapter.ProviderVirtualAccount{
			AccountNumber: "9999999999",
			BankCode:      req.BankCode,
			CustomerName:  req.CustomerName,
		},
	}, nil
}

func (g *NoopGateway) IssueBillingKey(ctx context.Context, req adapter.BillingKeyRequest) (*adapter.BillingKeyRecord, error) {
	return &adapter.BillingKeyRecord{BillingKey: g.next(), CustomerKey: req.CustomerKey}, nil
}

func (g *NoopGateway) ChargeBillingKey(ctx context.Context, billingKey string, req adapter.BillingChargeRequest) (*adapter.ProviderPaymentRecord, error) {
	now := time.Now()
	return &adapter.ProviderPaymentRecord{
		PaymentKey:  g.next(),
		OrderID:     req.OrderID,
		Status:      "DONE",
		TotalAmount: req.Amount,
		ApprovedAt:  &now,
	}, nil
}
