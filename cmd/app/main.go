package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"toss-payment-service/internal/config"
	"toss-payment-service/internal/domain/ports/adapter"
	"toss-payment-service/internal/infra/adapters/events"
	payAdapters "toss-payment-service/internal/infra/adapters/payment"
	pg "toss-payment-service/internal/infra/db/postgres"
	"toss-payment-service/internal/infra/logging"
	"toss-payment-service/internal/infra/metrics"
	red "toss-payment-service/internal/infra/redis"
	"toss-payment-service/internal/infra/sched"
	"toss-payment-service/internal/infra/web"
	"toss-payment-service/internal/infra/worker"
	"toss-payment-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, no auth secrets required)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	deduper := red.NewDeduper(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	txRepo := pg.NewTransactionRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Toss.SecretKey == "" {
		gateway = payAdapters.NewNoopGateway()
		logger.Warn().Msg("no provider secret configured, using noop gateway")
	} else {
		gateway, err = payAdapters.NewTossGateway(cfg.Toss, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("toss gateway")
		}
	}

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(payRepo, txRepo, outboxRepo, gateway, tm, cfg.Toss.SuccessURL, cfg.Toss.FailURL, logger)
	webhookUC := usecase.NewWebhookUseCase(payRepo, txRepo, outboxRepo, gateway, tm, logger)

	// ---- Webhook worker ----
	wPool := worker.NewPool(cfg.Worker.WebhookWorkers, logger)
	wPool.Start(ctx)
	defer wPool.Stop()
	processor := worker.NewWebhookProcessor(webhookUC, locker, deduper, cfg.Worker.MaxAttempts, cfg.Worker.RetryBackoff, logger)

	// ---- Background loops ----
	reconciler := sched.NewPaymentReconciler(paymentUC, payRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	dispatcher := sched.NewOutboxDispatcher(outboxRepo, events.NewLogPublisher(logger), tm, cfg.Outbox.Interval, cfg.Outbox.BatchSize, logger)
	go dispatcher.Start(ctx)

	// ---- HTTP server ----
	srv := web.NewServer(paymentUC, wPool, processor, cfg.Server.JWTSecret, cfg.Toss.Webhook.Secret, cfg.Toss.Webhook.Verify, logger)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
