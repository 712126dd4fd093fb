package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/packtrack/packtrack/internal/app"
	"github.com/packtrack/packtrack/internal/catalog"
	"github.com/packtrack/packtrack/internal/intake"
	"github.com/packtrack/packtrack/internal/observability"
	"github.com/packtrack/packtrack/internal/pallets"
	"github.com/packtrack/packtrack/internal/platform/cache"
	"github.com/packtrack/packtrack/internal/platform/db"
	"github.com/packtrack/packtrack/internal/report"
	"github.com/packtrack/packtrack/internal/shared"
	"github.com/packtrack/packtrack/jobs"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

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

	if err := runMigrations(cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// A dead Redis only disables the snapshot cache, it never blocks startup.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(pool)
	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalogRepo, catalogCache)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	intakeRepo := intake.NewRepository(pool)
	intakeService := intake.NewService(intakeRepo, catalogService, auditLogger)
	intakeHandler := intake.NewHandler(logger, intakeService)

	palletsRepo := pallets.NewRepository(pool)
	palletsService := pallets.NewService(palletsRepo, catalogService, auditLogger, metrics)
	palletsHandler := pallets.NewHandler(logger, palletsService)

	reportHandler := report.NewHandler(logger, intakeService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalogHandler,
		IntakeHandler:  intakeHandler,
		PalletsHandler: palletsHandler,
		ReportHandler:  reportHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
