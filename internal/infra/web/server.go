package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"toss-payment-service/internal/infra/logging"
	"toss-payment-service/internal/infra/worker"
	"toss-payment-service/internal/usecase"
)

// Server wires the payment API and the provider webhook ingress.
type Server struct {
	paymentUC     usecase.PaymentUseCase
	pool          *worker.Pool
	processor     *worker.WebhookProcessor
	jwtSecret     string
	webhookSecret string
	webhookVerify bool
	log           *zerolog.Logger
}

func NewServer(
	paymentUC usecase.PaymentUseCase,
	pool *worker.Pool,
	processor *worker.WebhookProcessor,
	jwtSecret string,
	webhookSecret string,
	webhookVerify bool,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		paymentUC:     paymentUC,
		pool:          pool,
		processor:     processor,
		jwtSecret:     jwtSecret,
		webhookSecret: webhookSecret,
		webhookVerify: webhookVerify,
		log:           logger,
	}
}

// RegisterRoutes attaches every route to the given router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook/toss", s.handleWebhook)

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/prepare", s.handlePrepare)
		r.Post("/confirm", s.handleConfirm)
		r.Get("/stats", s.handleStats)
		r.Get("/", s.handleList)
		r.Get("/{orderID}", s.handleGet)
		r.Post("/{orderID}/cancel", s.handleCancel)
	})
}

// traceMiddleware assigns a trace id to the request context and logs one line
// per request once it finishes.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Request-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.log.Info().
			Str("trace_id", traceID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
