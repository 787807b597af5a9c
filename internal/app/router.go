package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	audithttp "github.com/odyssey-erp/odyssey-ledger/internal/audit/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountsHandler   *accounts.Handler
	JournalsHandler   *journals.Handler
	DocumentsHandler  *documents.Handler
	InventoryHandler  *inventory.Handler
	AccountingHandler *accounting.Handler
	JobHandler        *jobs.Handler
	AuditHandler      *audithttp.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journal-entries", params.JournalsHandler.MountRoutes)
		}
		if params.DocumentsHandler != nil {
			r.Route("/documents", params.DocumentsHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.AccountingHandler != nil {
			params.AccountingHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// NewRouterFromComponents wires every handler from c.
func NewRouterFromComponents(cfg *Config, logger *slog.Logger, c *Components) http.Handler {
	var idempotency accounting.Idempotency
	if c.Idempotency != nil {
		idempotency = c.Idempotency
	}
	return NewRouter(RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountsHandler:   accounts.NewHandler(logger, c.Accounts),
		JournalsHandler:   journals.NewHandler(logger, c.Journals),
		DocumentsHandler:  documents.NewHandler(logger, c.Store, c.Documents),
		InventoryHandler:  inventory.NewHandler(logger, c.Inventory, c.Exporter),
		AccountingHandler: accounting.NewHandler(logger, c.Postings, c.Reports, c.Exporter, idempotency),
		JobHandler:        jobs.NewHandler(c.Inspector, logger),
		AuditHandler:      audithttp.NewHandler(logger, c.Audit, c.Exporter),
		Metrics:           c.Metrics,
	})
}
