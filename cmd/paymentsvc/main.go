package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrowbot/payments/internal/application/services"
	"github.com/escrowbot/payments/internal/config"
	"github.com/escrowbot/payments/internal/infrastructure/notify"
	"github.com/escrowbot/payments/internal/infrastructure/nowpayments"
	"github.com/escrowbot/payments/internal/infrastructure/persistence/postgres"
	"github.com/escrowbot/payments/internal/interfaces/rest"
	"github.com/escrowbot/payments/internal/interfaces/rest/middleware"
	"github.com/escrowbot/payments/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger(cfg.Primary.Env)
	slog.SetDefault(logger)

	logger.Info("starting payment service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	paymentRepo := postgres.NewPaymentRepository(db)

	gatewayClient := nowpayments.NewGatewayClient(cfg.Gateway, logger)
	retryGatewayClient := nowpayments.NewRetryGatewayClient(gatewayClient, cfg.Retry)

	notifier := notify.NewLogNotifier(logger)

	webhookService := services.NewWebhookService(paymentRepo, notifier, cfg.Webhook, logger)
	depositService := services.NewDepositService(retryGatewayClient, paymentRepo, cfg.Deposit, cfg.Monitor, logger)
	queryService := services.NewQueryService(paymentRepo, retryGatewayClient, notifier, logger)

	h := rest.NewHandlers(webhookService, depositService, queryService, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	monitor := worker.NewPaymentMonitor(
		paymentRepo,
		retryGatewayClient,
		notifier,
		cfg.Monitor,
		worker.SystemClock(),
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go monitor.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
