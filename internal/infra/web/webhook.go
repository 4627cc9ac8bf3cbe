package web

import (
	"io"
	"net/http"

	"toss-payment-service/internal/infra/adapters/payment"
	"toss-payment-service/internal/infra/metrics"
	"toss-payment-service/internal/infra/worker"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// handleWebhook is the provider-facing ingress. It verifies the signature,
// enqueues the raw body for the worker pool and answers immediately. The
// provider only needs a 200 to stop re-delivering; anything that goes wrong
// after the signature check is our problem, not the provider's, so the
// response stays 200 with success=false.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}

	if s.webhookVerify {
		sig := r.Header.Get("Toss-Signature")
		if !payment.VerifyWebhookSignature(s.webhookSecret, body, sig) {
			// The one non-200 answer: an unauthenticated caller gets no
			// acknowledgement at all.
			metrics.IncWebhookEvent("unknown", "unauthorized")
			writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature verification failed")
			return
		}
	}

	ok := true
	if err := s.pool.Submit(s.processor.Process(body)); err != nil {
		if err == worker.ErrQueueFull {
			s.log.Warn().Msg("webhook queue saturated, delivery dropped")
		} else {
			s.log.Error().Err(err).Msg("webhook enqueue failed")
		}
		metrics.IncWebhookEvent("unknown", "dropped")
		ok = false
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}
