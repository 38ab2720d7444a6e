package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/openfreight/linehaul/internal/app"
	jobmetrics "github.com/openfreight/linehaul/internal/jobs"
	"github.com/openfreight/linehaul/internal/platform/db"
	"github.com/openfreight/linehaul/internal/recon"
	"github.com/openfreight/linehaul/internal/shared"
	"github.com/openfreight/linehaul/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	reconService := recon.NewService(recon.ServiceDeps{
		Repo:   recon.NewRepository(pool),
		Audit:  shared.NewAuditLogger(pool),
		Logger: logger,
	})

	autoMatchJob := jobs.NewAutoMatchJob(reconService, logger, jobmetrics.NewMetrics(nil))

	autoMatchTask, err := jobs.NewAutoMatchTask(jobs.AutoMatchPayload{})
	if err != nil {
		logger.Error("build auto-match task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeAutoMatch, Handler: autoMatchJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AutoMatchCron, Task: autoMatchTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
