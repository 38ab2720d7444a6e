package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/openfreight/linehaul/internal/app"
	"github.com/openfreight/linehaul/internal/invoices"
	"github.com/openfreight/linehaul/internal/loads"
	"github.com/openfreight/linehaul/internal/observability"
	"github.com/openfreight/linehaul/internal/payments"
	"github.com/openfreight/linehaul/internal/platform/cache"
	"github.com/openfreight/linehaul/internal/platform/db"
	"github.com/openfreight/linehaul/internal/recon"
	"github.com/openfreight/linehaul/internal/shared"
	"github.com/openfreight/linehaul/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, summary cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	loadService := loads.NewService(loads.NewRepository(pool), auditLogger)
	paymentService := payments.NewService(payments.NewRepository(pool), auditLogger)
	invoiceService := invoices.NewService(invoices.NewRepository(pool))
	reconService := recon.NewService(recon.ServiceDeps{
		Repo:       recon.NewRepository(pool),
		Audit:      auditLogger,
		Metrics:    metrics,
		Cache:      redisClient,
		Logger:     logger,
		SummaryTTL: cfg.SummaryCacheTTL,
	})

	jobsHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	router := app.NewRouter(app.RouterDeps{
		Logger:   logger,
		Config:   cfg,
		Metrics:  metrics,
		Loads:    loads.NewHandler(logger, loadService),
		Payments: payments.NewHandler(logger, paymentService),
		Invoices: invoices.NewHandler(logger, invoiceService),
		Recon:    recon.NewHandler(logger, reconService, shared.NewIdempotencyStore(pool)),
		Extra: map[string]func(chi.Router){
			"/jobs": jobsHandler.MountRoutes,
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
