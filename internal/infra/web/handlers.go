package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"toss-payment-service/internal/domain"
	"toss-payment-service/internal/domain/model"
	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/domain/ports/repository"
	"toss-payment-service/internal/infra/adapters/payment"
	"toss-payment-service/internal/usecase"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, struct {
		Error errorBody `json:"error"`
	}{Error: errorBody{Code: code, Message: msg}})
}

// writeDomainError maps domain and gateway errors onto the HTTP surface.
// Gateway errors carry the provider code plus a user-facing Korean message.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var ge *adapter.GatewayError
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found")
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not the owner of this payment")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request")
	case errors.Is(err, domain.ErrAmountMismatch):
		writeError(w, http.StatusUnprocessableEntity, "AMOUNT_MISMATCH", "amount does not match the prepared order")
	case errors.Is(err, domain.ErrNotCancelable):
		writeError(w, http.StatusUnprocessableEntity, "NOT_CANCELABLE", "payment is not in a cancelable state")
	case errors.Is(err, domain.ErrCancelAmountExceeded):
		writeError(w, http.StatusUnprocessableEntity, "CANCEL_AMOUNT_EXCEEDED", "cancel amount exceeds the remaining balance")
	case errors.Is(err, domain.ErrUnknownProviderStatus):
		s.log.Error().Err(err).Msg("unknown provider status")
		writeError(w, http.StatusBadGateway, "PROVIDER_STATUS_UNKNOWN", "provider returned an unrecognized payment status")
	case errors.As(err, &ge):
		writeError(w, http.StatusUnprocessableEntity, ge.Code, payment.UserMessage(ge.Code))
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

type cardResponse struct {
	IssuerCode            string `json:"issuer_code"`
	Number                string `json:"number"`
	InstallmentPlanMonths int    `json:"installment_plan_months"`
	ApproveNo             string `json:"approve_no"`
	CardType              string `json:"card_type"`
}

type virtualAccountResponse struct {
	AccountNumber string     `json:"account_number"`
	BankCode      string     `json:"bank_code"`
	CustomerName  string     `json:"customer_name"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Expired       bool       `json:"expired"`
}

type paymentResponse struct {
	ID             string                  `json:"id"`
	OrderID        string                  `json:"order_id"`
	PaymentKey     string                  `json:"payment_key,omitempty"`
	OrderName      string                  `json:"order_name"`
	Method         string                  `json:"method"`
	Status         string                  `json:"status"`
	TotalAmount    int64                   `json:"total_amount"`
	BalanceAmount  int64                   `json:"balance_amount"`
	CancelAmount   int64                   `json:"cancel_amount"`
	TaxFreeAmount  int64                   `json:"tax_free_amount"`
	DiscountAmount int64                   `json:"discount_amount"`
	CustomerName   string                  `json:"customer_name,omitempty"`
	FailureCode    string                  `json:"failure_code,omitempty"`
	FailureMessage string                  `json:"failure_message,omitempty"`
	ReceiptURL     string                  `json:"receipt_url,omitempty"`
	Card           *cardResponse           `json:"card,omitempty"`
	VirtualAccount *virtualAccountResponse `json:"virtual_account,omitempty"`
	RequestedAt    time.Time               `json:"requested_at"`
	ApprovedAt     *time.Time              `json:"approved_at,omitempty"`
	CanceledAt     *time.Time              `json:"canceled_at,omitempty"`
}

func toPaymentResponse(p *model.Payment) *paymentResponse {
	r := &paymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		PaymentKey:     p.PaymentKey,
		OrderName:      p.OrderName,
		Method:         string(p.Method),
		Status:         string(p.Status),
		TotalAmount:    p.TotalAmount,
		BalanceAmount:  p.BalanceAmount,
		CancelAmount:   p.CancelAmount,
		TaxFreeAmount:  p.TaxFreeAmount,
		DiscountAmount: p.DiscountAmount,
		CustomerName:   p.CustomerName,
		FailureCode:    p.FailureCode,
		FailureMessage: p.FailureMessage,
		ReceiptURL:     p.ReceiptURL,
		RequestedAt:    p.RequestedAt,
		ApprovedAt:     p.ApprovedAt,
		CanceledAt:     p.CanceledAt,
	}
	if p.Card != nil {
		r.Card = &cardResponse{
			IssuerCode:            p.Card.IssuerCode,
			Number:                p.Card.Number,
			InstallmentPlanMonths: p.Card.InstallmentPlanMonths,
			ApproveNo:             p.Card.ApproveNo,
			CardType:              p.Card.CardType,
		}
	}
	if p.VirtualAccount != nil {
		r.VirtualAccount = &virtualAccountResponse{
			AccountNumber: p.VirtualAccount.AccountNumber,
			BankCode:      p.VirtualAccount.BankCode,
			CustomerName:  p.VirtualAccount.CustomerName,
			DueDate:       p.VirtualAccount.DueDate,
			Expired:       p.VirtualAccount.Expired,
		}
	}
	return r
}

type prepareRequest struct {
	OrderName      string `json:"order_name"`
	Amount         int64  `json:"amount"`
	Method         string `json:"method"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerPhone  string `json:"customer_phone"`
	TaxFreeAmount  int64  `json:"tax_free_amount"`
	DiscountAmount int64  `json:"discount_amount"`
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	p, checkout, err := s.paymentUC.Prepare(r.Context(), UserID(r.Context()), usecase.PrepareInput{
		OrderName:      req.OrderName,
		Amount:         req.Amount,
		Method:         model.PaymentMethod(req.Method),
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		TaxFreeAmount:  req.TaxFreeAmount,
		DiscountAmount: req.DiscountAmount,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Payment  *paymentResponse       `json:"payment"`
		Checkout *usecase.PrepareResult `json:"checkout"`
	}{Payment: toPaymentResponse(p), Checkout: checkout})
}

type confirmRequest struct {
	PaymentKey string `json:"payment_key"`
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	p, err := s.paymentUC.Confirm(r.Context(), usecase.ConfirmInput{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type cancelRequest struct {
	Reason        string `json:"reason"`
	Amount        int64  `json:"amount"` // 0 cancels the full remaining balance
	TaxFreeAmount int64  `json:"tax_free_amount"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	p, err := s.paymentUC.Cancel(r.Context(), UserID(r.Context()), chi.URLParam(r, "orderID"), usecase.CancelInput{
		Reason:        req.Reason,
		Amount:        req.Amount,
		TaxFreeAmount: req.TaxFreeAmount,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.paymentUC.GetByOrderID(r.Context(), UserID(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.paymentUC.ListByUser(r.Context(), UserID(r.Context()), offset, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	data := make([]*paymentResponse, 0, len(items))
	for _, p := range items {
		data = append(data, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []*paymentResponse `json:"data"`
		Total  int                `json:"total"`
		Limit  int                `json:"limit"`
		Offset int                `json:"offset"`
	}{Data: data, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repository.StatFilters
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "from must be RFC3339")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "to must be RFC3339")
			return
		}
		f.To = t
	}
	if v := q.Get("method"); v != "" {
		m := model.PaymentMethod(v)
		if !m.Valid() {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown payment method")
			return
		}
		f.Method = m
	}

	stats, err := s.paymentUC.Statistics(r.Context(), f)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	counts := make(map[string]int64, len(stats.CountByStatus))
	for st, n := range stats.CountByStatus {
		counts[string(st)] = n
	}
	writeJSON(w, http.StatusOK, struct {
		CountByStatus  map[string]int64 `json:"count_by_status"`
		CompletedTotal int64            `json:"completed_total"`
		CanceledTotal  int64            `json:"canceled_total"`
	}{CountByStatus: counts, CompletedTotal: stats.CompletedTotal, CanceledTotal: stats.CanceledTotal})
}
