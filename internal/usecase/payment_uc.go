package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/domain/ports/repository"
	"toss-payment-service/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// MinimumAmount is the smallest order total the provider accepts.
const MinimumAmount = 100

type PrepareInput struct {
	OrderName      string
	Amount         int64
	Method         model.PaymentMethod
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	TaxFreeAmount  int64
	DiscountAmount int64
}

// PrepareResult is the provider-facing payload handed back to the client so
// it can open the provider-hosted checkout. No gateway call happens here.
type PrepareResult struct {
	OrderID      string `json:"order_id"`
	OrderName    string `json:"order_name"`
	Amount       int64  `json:"amount"`
	Method       string `json:"method"`
	CustomerName string `json:"customer_name"`
	SuccessURL   string `json:"success_url"`
	FailURL      string `json:"fail_url"`
}

type ConfirmInput struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

type CancelInput struct {
	Reason        string
	Amount        int64 // 0 means full remaining balance
	TaxFreeAmount int64
}

// PaymentUseCase orchestrates prepare -> confirm -> cancel transitions.
// Every method takes the acting user explicitly; there is no ambient
// current-user state.
type PaymentUseCase interface {
	Prepare(ctx context.Context, userID string, in PrepareInput) (*model.Payment, *PrepareResult, error)
	// Confirm finalizes a prepared payment against the provider. It is safe
	// to call more than once: a completed payment is returned unchanged with
	// no second gateway call.
	Confirm(ctx context.Context, in ConfirmInput) (*model.Payment, error)
	Cancel(ctx context.Context, userID, orderID string, in CancelInput) (*model.Payment, error)
	// SyncFromProvider pulls the provider's view of an order and converges
	// the local aggregate onto it. Used by the reconciler for payments that
	// never received a confirm callback or a webhook.
	SyncFromProvider(ctx context.Context, orderID string) (*model.Payment, error)
	GetByOrderID(ctx context.Context, userID, orderID string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Payment, int, error)
	Statistics(ctx context.Context, f repository.StatFilters) (*repository.PaymentStats, error)
}

type paymentUC struct {
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	successURL   string
	failURL      string
	log          *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	outbox repository.OutboxRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	successURL, failURL string,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments:     payments,
		transactions: transactions,
		outbox:       outbox,
		gateway:      gateway,
		tm:           tm,
		successURL:   successURL,
		failURL:      failURL,
		log:          logger,
	}
}

func (u *paymentUC) Prepare(ctx context.Context, userID string, in PrepareInput) (*model.Payment, *PrepareResult, error) {
	if userID == "" || strings.TrimSpace(in.OrderName) == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	if in.Amount < MinimumAmount {
		return nil, nil, domain.ErrInvalidArgument
	}
	if !in.Method.Valid() {
		return nil, nil, domain.ErrInvalidArgument
	}
	if in.TaxFreeAmount < 0 || in.DiscountAmount < 0 || in.TaxFreeAmount > in.Amount {
		return nil, nil, domain.ErrInvalidArgument
	}

	now := time.Now()
	p := &model.Payment{
		ID:             uuid.NewString(),
		OrderID:        model.NewOrderID(now),
		UserID:         userID,
		OrderName:      in.OrderName,
		Method:         in.Method,
		Status:         model.PaymentStatusReady,
		TotalAmount:    in.Amount,
		BalanceAmount:  in.Amount,
		CancelAmount:   0,
		TaxFreeAmount:  in.TaxFreeAmount,
		DiscountAmount: in.DiscountAmount,
		CustomerName:   in.CustomerName,
		CustomerEmail:  in.CustomerEmail,
		CustomerPhone:  in.CustomerPhone,
		RequestedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(p.Status))
	u.log.Info().Str("order_id", p.OrderID).Int64("amount", p.TotalAmount).Msg("payment prepared")

	return p, &PrepareResult{
		OrderID:      p.OrderID,
		OrderName:    p.OrderName,
		Amount:       p.TotalAmount,
		Method:       p.Method.ProviderToken(),
		CustomerName: p.CustomerName,
		SuccessURL:   u.successURL,
		FailURL:      u.failURL,
	}, nil
}

func (u *paymentUC) Confirm(ctx context.Context, in ConfirmInput) (*model.Payment, error) {
	if in.PaymentKey == "" || in.OrderID == "" {
		return nil, domain.ErrInvalidArgument
	}

	var out *model.Payment
	var gatewayErr error
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByOrderID(ctx, tx, in.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}

		// Client-supplied amount must match the prepared total bit-for-bit
		// before anything else happens; this blocks amount tampering.
		if p.TotalAmount != in.Amount {
			return domain.ErrAmountMismatch
		}

		// Idempotency guard: the row is locked, so at most one caller ever
		// sees a non-completed state. The loser of a confirm/webhook race
		// lands here and no-ops.
		if p.IsCompleted() {
			out = p
			return nil
		}

		rec, err := u.gateway.ConfirmPayment(ctx, in.PaymentKey, adapter.ConfirmRequest{OrderID: in.OrderID, Amount: in.Amount})
		now := time.Now()
		if err != nil {
			// Record the failure and commit it; the gateway error still
			// surfaces to the caller after the transaction ends. This is the
			// one error path with a persistent side effect.
			p.Status = model.PaymentStatusAborted
			var ge *adapter.GatewayError
			if errors.As(err, &ge) {
				p.FailureCode = ge.Code
				p.FailureMessage = ge.Message
			} else {
				p.FailureCode = "UNKNOWN"
				p.FailureMessage = err.Error()
			}
			p.UpdatedAt = now
			if saveErr := u.payments.Save(ctx, tx, p); saveErr != nil {
				return saveErr
			}
			if obErr := u.outbox.Append(ctx, tx, model.NewPaymentEvent(model.EventPaymentFailed, p, p.TotalAmount, now)); obErr != nil {
				return obErr
			}
			metrics.IncPayment(string(model.PaymentStatusAborted))
			u.log.Warn().Str("order_id", p.OrderID).Str("failure_code", p.FailureCode).Msg("payment confirmation aborted")
			out = p
			gatewayErr = err
			return nil
		}

		status, ok := model.StatusFromProvider(rec.Status)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownProviderStatus, rec.Status)
		}

		applyProviderRecord(p, rec, status, now)
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}

		// A ledger row records money that moved. A virtual-account confirm
		// comes back waiting_for_deposit with nothing charged yet; the deposit
		// webhook (or the reconciler) appends the row when the payment lands.
		if status == model.PaymentStatusDone {
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
			metrics.AddPaymentRevenue(string(p.Method), p.TotalAmount)
		}

		metrics.IncPayment(string(status))
		u.log.Info().Str("order_id", p.OrderID).Str("status", string(status)).Msg("payment confirmed")
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if gatewayErr != nil {
		return out, gatewayErr
	}
	return out, nil
}

func (u *paymentUC) Cancel(ctx context.Context, userID, orderID string, in CancelInput) (*model.Payment, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if in.Amount < 0 {
		return nil, domain.ErrInvalidArgument
	}

	var out *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}
		if userID != "" && p.UserID != userID {
			return domain.ErrNotOwner
		}
		if !p.IsCancelable() {
			return domain.ErrNotCancelable
		}

		amount := in.Amount
		if amount == 0 {
			amount = p.BalanceAmount
		}
		if amount > p.BalanceAmount {
			return domain.ErrCancelAmountExceeded
		}

		rec, err := u.gateway.CancelPayment(ctx, p.PaymentKey, adapter.CancelRequest{
			CancelReason:     in.Reason,
			CancelAmount:     amount,
			RefundableAmount: p.BalanceAmount - amount,
			TaxFreeAmount:    in.TaxFreeAmount,
		})
		if err != nil {
			// Whole transaction rolls back; no partial state survives a
			// provider failure.
			return err
		}

		now := time.Now()
		// Full vs partial is decided against the balance before decrementing.
		full := amount == p.BalanceAmount
		p.ApplyCancel(amount, now)
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}

		txType := model.TransactionTypePartialCancel
		kind := "partial"
		if full {
			txType = model.TransactionTypeCancel
			kind = "full"
		}
		canceledAmount := amount
		if n := len(rec.Cancels); n > 0 {
			canceledAmount = rec.Cancels[n-1].CancelAmount
		}
		payload, _ := json.Marshal(rec)
		t := &model.Transaction{
			ID:              model.NewTransactionID(now),
			PaymentID:       p.ID,
			Type:            txType,
			Amount:          canceledAmount,
			Reason:          in.Reason,
			ProviderPayload: payload,
			ProcessedAt:     now,
		}
		if err := u.transactions.Append(ctx, tx, t); err != nil {
			return err
		}
		if err := u.outbox.Append(ctx, tx, model.NewPaymentEvent(model.EventPaymentCanceled, p, canceledAmount, now)); err != nil {
			return err
		}

		metrics.IncPayment(string(p.Status))
		metrics.AddCanceledAmount(kind, canceledAmount)
		u.log.Info().Str("order_id", p.OrderID).Str("status", string(p.Status)).Int64("cancel_amount", canceledAmount).Msg("payment canceled")
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *paymentUC) SyncFromProvider(ctx context.Context, orderID string) (*model.Payment, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidArgument
	}

	rec, gerr := u.gateway.GetPaymentByOrderID(ctx, orderID)
	var providerStatus model.PaymentStatus
	switch {
	case gerr == nil:
		s, ok := model.StatusFromProvider(rec.Status)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProviderStatus, rec.Status)
		}
		providerStatus = s
	default:
		var ge *adapter.GatewayError
		if errors.As(gerr, &ge) && ge.HTTPStatus == 404 {
			// The provider never saw this order; the checkout was abandoned.
			providerStatus = model.PaymentStatusExpired
			rec = nil
		} else {
			return nil, gerr
		}
	}

	var out *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}
		if p.IsCompleted() || p.Status == providerStatus {
			out = p
			return nil
		}

		now := time.Now()
		if rec == nil || providerStatus == model.PaymentStatusExpired || providerStatus == model.PaymentStatusAborted {
			p.Status = providerStatus
			p.UpdatedAt = now
			if err := u.payments.Save(ctx, tx, p); err != nil {
				return err
			}
			metrics.IncPayment(string(p.Status))
			u.log.Info().Str("order_id", p.OrderID).Str("status", string(p.Status)).Msg("stale payment resolved")
			out = p
			return nil
		}

		applyProviderRecord(p, rec, providerStatus, now)
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		if providerStatus == model.PaymentStatusDone {
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
			metrics.AddPaymentRevenue(string(p.Method), p.TotalAmount)
		}
		metrics.IncPayment(string(providerStatus))
		u.log.Info().Str("order_id", p.OrderID).Str("status", string(providerStatus)).Msg("payment synced from provider")
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *paymentUC) GetByOrderID(ctx context.Context, userID, orderID string) (*model.Payment, error) {
	p, err := u.payments.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if userID != "" && p.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	return p, nil
}

func (u *paymentUC) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Payment, int, error) {
	if userID == "" {
		return nil, 0, domain.ErrInvalidArgument
	}
	return u.payments.ListByUser(ctx, nil, userID, offset, limit)
}

func (u *paymentUC) Statistics(ctx context.Context, f repository.StatFilters) (*repository.PaymentStats, error) {
	return u.payments.Statistics(ctx, nil, f)
}

// applyProviderRecord copies the authoritative provider fields onto the local
// aggregate for a successful confirmation.
func applyProviderRecord(p *model.Payment, rec *adapter.ProviderPaymentRecord, status model.PaymentStatus, now time.Time) {
	p.PaymentKey = rec.PaymentKey
	p.Status = status
	p.SuppliedAmount = rec.SuppliedAmount
	p.Vat = rec.Vat
	if rec.TaxFreeAmount > 0 {
		p.TaxFreeAmount = rec.TaxFreeAmount
	}
	if rec.ApprovedAt != nil {
		p.ApprovedAt = rec.ApprovedAt
	} else if status == model.PaymentStatusDone {
		p.ApprovedAt = &now
	}
	if rec.Receipt != nil {
		p.ReceiptURL = rec.Receipt.URL
	}
	if rec.Checkout != nil {
		p.CheckoutURL = rec.Checkout.URL
	}
	if rec.Card != nil {
		p.Card = &model.CardInfo{
			IssuerCode:            rec.Card.IssuerCode,
			Number:                rec.Card.Number,
			InstallmentPlanMonths: rec.Card.InstallmentPlanMonths,
			ApproveNo:             rec.Card.ApproveNo,
			CardType:              rec.Card.CardType,
		}
	}
	if rec.VirtualAccount != nil {
		p.VirtualAccount = &model.VirtualAccountInfo{
			AccountNumber: rec.VirtualAccount.AccountNumber,
			BankCode:      rec.VirtualAccount.BankCode,
			CustomerName:  rec.VirtualAccount.CustomerName,
			DueDate:       rec.VirtualAccount.DueDate,
			Expired:       rec.VirtualAccount.Expired,
		}
	}
	p.UpdatedAt = now
}
