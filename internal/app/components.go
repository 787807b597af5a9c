package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	"github.com/odyssey-erp/odyssey-ledger/internal/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/store/postgres"
	"github.com/odyssey-erp/odyssey-ledger/internal/store/sqlite"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

// Components is the wired ledger shared by the server, the worker and the CLI.
type Components struct {
	Store       store.Store
	Redis       *redis.Client
	Metrics     *observability.Metrics
	Accounts    *accounts.Service
	Journals    *journals.Service
	Ledger      journals.Repository
	Documents   documents.Repository
	Products    inventory.Repository
	Inventory   *inventory.Service
	Postings    *posting.Service
	Reports     *reports.Service
	Audit       *audit.Service
	Idempotency *shared.IdempotencyStore
	Exporter    *report.Exporter
	JobMetrics  *jobmetrics.Metrics
	Inspector   *asynq.Inspector

	closers []func() error
}

// Build opens the configured store and wires every service.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	c := &Components{Metrics: observability.NewMetrics()}

	st, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Store = st
	c.closers = append(c.closers, closeStore)

	rdb, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	switch {
	case err == nil:
		c.Redis = rdb
		c.closers = append(c.closers, rdb.Close)
		c.Idempotency = shared.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		c.Inspector = asynq.NewInspector(cfg.RedisOpts())
		c.closers = append(c.closers, c.Inspector.Close)
	case cfg.NeedsRedis():
		_ = c.Close()
		return nil, err
	default:
		logger.Warn("redis unavailable, idempotency keys disabled", slog.Any("error", err))
	}

	var locker inventory.Locker = inventory.NewLocalLocker()
	if cfg.LockDriver == LockRedis {
		locker = inventory.NewRedisLocker(c.Redis, cfg.LockTTL)
	}

	auditLog := shared.NewAuditLogger()
	c.Accounts = accounts.NewService(st, accounts.NewRepository())
	c.Ledger = journals.NewRepository()
	c.Documents = documents.NewRepository()
	c.Products = inventory.NewRepository()
	c.Journals = journals.NewService(st, c.Ledger, c.Accounts, auditLog, logger)
	c.Inventory = inventory.NewService(st, c.Products, c.Documents, locker, auditLog, logger,
		inventory.ServiceConfig{RejectNegativeStock: cfg.InventoryRejectNegative})
	c.Inventory.WithObserver(c.Metrics)
	c.Postings = posting.NewService(st, c.Accounts, c.Ledger, c.Documents, c.Inventory, auditLog, logger,
		posting.Config{MaxRetries: cfg.PostingMaxRetries})
	c.Postings.WithMetrics(c.Metrics)
	c.Reports = reports.NewService(st, c.Ledger, c.Accounts, c.Products, c.Documents, logger)
	c.Reports.WithObserver(c.Metrics)
	c.Audit = audit.NewService(st)

	var pdf report.PDFRenderer
	if cfg.GotenbergURL != "" {
		pdf = report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	}
	c.Exporter = report.NewExporter(pdf)
	c.JobMetrics = jobmetrics.NewMetrics(c.Metrics.Registerer())

	if cfg.SeedChart {
		seeded, err := c.Accounts.Seed(ctx, accounts.DefaultAccounts())
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("app: seed chart: %w", err)
		}
		if seeded {
			logger.Info("default chart of accounts seeded")
		}
	}
	return c, nil
}

// GLIntegrityJob returns the ledger integrity job bound to these components.
func (c *Components) GLIntegrityJob(logger *slog.Logger) *jobs.GLIntegrityJob {
	return jobs.NewGLIntegrityJob(c.Reports, logger, c.JobMetrics)
}

// KardexReconcileJob returns the Kardex sweep bound to these components.
func (c *Components) KardexReconcileJob(logger *slog.Logger, concurrency int) *jobs.KardexReconcileJob {
	return jobs.NewKardexReconcileJob(c.Inventory, logger, c.JobMetrics, concurrency)
}

// Close releases the store, the job inspector and the Redis client.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore builds the store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *Config) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		st := memory.New()
		return st, st.Close, nil
	case StoreSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "odyssey-ledger"})
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, func() error { pool.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
