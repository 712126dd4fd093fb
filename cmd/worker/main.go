package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/packtrack/packtrack/internal/app"
	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/intake"
	jobmetrics "github.com/packtrack/packtrack/internal/jobs"
	"github.com/packtrack/packtrack/internal/platform/db"
	"github.com/packtrack/packtrack/jobs"
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

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, nil)
	intakeRepo := intake.NewRepository(pool)
	intakeService := intake.NewService(intakeRepo, catalogService, nil)

	scanJob := jobs.NewBalanceScanJob(intakeService, logger, jobmetrics.NewMetrics(nil))

	scanTask, err := jobs.NewBalanceScanTask(jobs.BalanceScanPayload{})
	if err != nil {
		logger.Error("build balance scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeBalanceScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BalanceScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
