package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
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

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build components", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("close components", slog.Any("error", err))
		}
	}()
	if components.Redis == nil {
		logger.Error("worker requires redis", slog.String("addr", cfg.RedisAddr))
		os.Exit(1)
	}

	cron, err := jobs.LedgerCron(cfg.GLIntegrityCron, cfg.KardexReconcileCron)
	if err != nil {
		logger.Error("build cron tasks", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOpts(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: jobs.LedgerHandlers(
			components.GLIntegrityJob(logger),
			components.KardexReconcileJob(logger, cfg.WorkerConcurrency),
		),
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
