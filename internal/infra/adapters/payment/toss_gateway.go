package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"toss-payment-service/internal/config"
	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*TossGateway)(nil)

// TossGateway implements adapter.PaymentGateway against the Toss Payments
// v1 REST API. It is stateless: one credential, one bounded-timeout client,
// no retries. Retry policy belongs to callers.
type TossGateway struct {
	baseURL   string
	secretKey string
	authz     string // precomputed Basic header value
	client    *http.Client
	log       *zerolog.Logger
}

func NewTossGateway(cfg config.TossConfig, logger *zerolog.Logger) (*TossGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("toss secret key empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TossGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		// Toss uses the secret key as Basic auth username with an empty password.
		authz:  "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":")),
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}, nil
}

func (g *TossGateway) Name() string { return "toss" }

// providerError is the body Toss returns on any non-2xx response.
type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call performs one API request and decodes the response into out.
// Non-2xx responses become *adapter.GatewayError; a client timeout maps to
// code "TIMEOUT" so callers can treat it like any other gateway failure.
func (g *TossGateway) call(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", g.authz)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		gerr := &adapter.GatewayError{Code: "TIMEOUT", Message: err.Error(), HTTPStatus: 0}
		if !errors.Is(err, context.DeadlineExceeded) {
			gerr.Code = "NETWORK_ERROR"
		}
		metrics.ObserveGatewayCall(op, latency, false)
		metrics.IncGatewayError(op, gerr.Code)
		g.log.Error().Str("op", op).Str("code", gerr.Code).Err(err).Msg("gateway request failed")
		return gerr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe providerError
		_ = json.NewDecoder(resp.Body).Decode(&pe)
		if pe.Code == "" {
			pe.Code = "UNKNOWN"
		}
		metrics.ObserveGatewayCall(op, latency, false)
		metrics.IncGatewayError(op, pe.Code)
		g.log.Warn().
			Str("op", op).
			Str("code", pe.Code).
			Int("http_status", resp.StatusCode).
			Msg("gateway returned error")
		return &adapter.GatewayError{Code: pe.Code, Message: pe.Message, HTTPStatus: resp.StatusCode}
	}

	metrics.ObserveGatewayCall(op, latency, true)
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *TossGateway) ConfirmPayment(ctx context.Context, paymentKey string, req adapter.ConfirmRequest) (*adapter.ProviderPaymentRecord, error) {
	g.log.Info().Str("order_id", req.OrderID).Msg("confirming payment")
	payload := map[string]any{
		"paymentKey": paymentKey,
		"orderId":    req.OrderID,
		"amount":     req.Amount,
	}
	var rec adapter.ProviderPaymentRecord
	if err := g.call(ctx, "confirm", http.MethodPost, "/v1/payments/confirm", payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *TossGateway) GetPayment(ctx context.Context, paymentKey string) (*adapter.ProviderPaymentRecord, error) {
	var rec adapter.ProviderPaymentRecord
	if err := g.call(ctx, "get", http.MethodGet, "/v1/payments/"+url.PathEscape(paymentKey), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *TossGateway) GetPaymentByOrderID(ctx context.Context, orderID string) (*adapter.ProviderPaymentRecord, error) {
	var rec adapter.ProviderPaymentRecord
	if err := g.call(ctx, "get_by_order", http.MethodGet, "/v1/payments/orders/"+url.PathEscape(orderID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *TossGateway) CancelPayment(ctx context.Context, paymentKey string, req adapter.CancelRequest) (*adapter.ProviderPaymentRecord, error) {
	g.log.Info().Str("payment_key", paymentKey).Int64("cancel_amount", req.CancelAmount).Msg("canceling payment")
	payload := map[string]any{
		"cancelReason": req.CancelReason,
	}
	if req.CancelAmount > 0 {
		payload["cancelAmount"] = req.CancelAmount
	}
	if req.RefundableAmount > 0 {
		payload["refundableAmount"] = req.RefundableAmount
	}
	if req.TaxFreeAmount > 0 {
		payload["taxFreeAmount"] = req.TaxFreeAmount
	}
	var rec adapter.ProviderPaymentRecord
	if err := g.call(ctx, "cancel", http.MethodPost, "/v1/payments/"+url.PathEscape(paymentKey)+"/cancel", payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *TossGateway) RequestVirtualAccount(ctx context.Context, req adapter.VirtualAccountRequest) (*adapter.ProviderPaymentRecord, error) {
	payload := map[string]any{
		"orderId":      req.OrderID,
		"orderName":    req.OrderName,
		"amount":       req.Amount,
		"customerName": req.CustomerName,
		"bank":         req.BankCode,
	}
	if req.ValidHours > 0 {
		payload["validHours"] = req.ValidHours
	}
	var rec adapter.ProviderPaymentRecord
	if err := g.call(ctx, "virtual_account", http.MethodPost, "/v1/virtual-accounts", payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *TossGateway) IssueBillingKey(ctx context.Context, req adapter.BillingKeyRequest) (*adapter.BillingKeyRecord, error) {
	payload := map[string]any{
		"customerKey": req.CustomerKey,
		"authKey":     req.AuthKey,
	}
	var rec adapter.BillingKeyRecord
	if err := g.call(ctx, "billing_issue", http.MethodPost, "/v1/billing/authorizations/issue", payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (g *TossGateway) ChargeBillingKey(ctx context.Context, billingKey string, req adapter.BillingChargeRequest) (*adapter.ProviderPaymentRecord, error) {
	payload := map[string]any{
		"customerKey": req.CustomerKey,
		"orderId":     req.OrderID,
		"orderName":   req.OrderName,
		"amount":      req.Amount,
	}
	var rec adapter.ProviderPaymentRecord
	if err := g.call(ctx, "billing_charge", http.MethodPost, "/v1/billing/"+url.PathEscape(billingKey), payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
