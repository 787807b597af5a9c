// Package accounting exposes the posting and reporting HTTP surface of the ledger.
package accounting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

const dateLayout = "2006-01-02"

// Idempotency guards mutating requests carrying an Idempotency-Key header.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler wires posting and report endpoints.
type Handler struct {
	logger      *slog.Logger
	postings    *posting.Service
	reports     *reports.Service
	exporter    *report.Exporter
	idempotency Idempotency
	builds      *reportBuilds
}

// NewHandler builds a Handler instance. idempotency may be nil.
func NewHandler(logger *slog.Logger, postings *posting.Service, reportSvc *reports.Service, exporter *report.Exporter, idempotency Idempotency) *Handler {
	return &Handler{logger: logger, postings: postings, reports: reportSvc, exporter: exporter, idempotency: idempotency, builds: newReportBuilds(0)}
}

// MountRoutes registers HTTP routes for postings and reports.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/postings", func(r chi.Router) {
		r.Post("/sales/{id}", h.post("sale", h.postings.PostSaleEntry))
		r.Post("/purchases/{id}", h.post("purchase", h.postings.PostPurchaseEntry))
		r.Post("/collections/{id}", h.post("collection", h.postings.PostCollection))
		r.Post("/settlements/{id}", h.post("settlement", h.postings.PostSettlement))
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/general-ledger/{code}", h.generalLedger)
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/balance-sheet", h.balanceSheet)
		r.Get("/income-statement", h.incomeStatement)
	})
}

func (h *Handler) post(module string, fn func(context.Context, string) (posting.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := r.Header.Get("Idempotency-Key")
		if key != "" && h.idempotency != nil {
			if err := h.idempotency.CheckAndInsert(ctx, key, "posting."+module); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
					return
				}
				h.logger.Error("idempotency check", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "")
				return
			}
		}
		res, err := fn(ctx, chi.URLParam(r, "id"))
		if err != nil {
			if key != "" && h.idempotency != nil {
				if delErr := h.idempotency.Delete(context.WithoutCancel(ctx), key, "posting."+module); delErr != nil {
					h.logger.Warn("idempotency rollback", slog.Any("error", delErr))
				}
			}
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, res)
	}
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	val, err, _ := h.builds.do(r.Context(), "gl:"+code+":"+r.URL.RawQuery, func(ctx context.Context) (any, error) {
		return h.reports.GeneralLedger(ctx, code, from, to)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	ledger := val.(reports.LedgerReport)
	if format := r.URL.Query().Get("format"); format != "" {
		h.export(w, r, format, "general-ledger-"+code, reports.LedgerTable(ledger))
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("grouped") == "1" || query.Get("grouped") == "true" {
		val, err, _ := h.builds.do(r.Context(), "tb:grouped", func(ctx context.Context) (any, error) {
			return h.reports.GroupedTrialBalance(ctx)
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, val)
		return
	}
	val, err, _ := h.builds.do(r.Context(), "tb", func(ctx context.Context) (any, error) {
		return h.reports.TrialBalance(ctx)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	tb := val.(reports.TrialBalanceReport)
	if format := query.Get("format"); format != "" {
		h.export(w, r, format, "trial-balance", reports.TrialBalanceTable(tb))
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	basis := r.URL.Query().Get("basis")
	val, err, _ := h.builds.do(r.Context(), "bs:"+basis, func(ctx context.Context) (any, error) {
		if basis == "ledger" {
			return h.reports.LedgerBalanceSheet(ctx)
		}
		return h.reports.BalanceSheet(ctx)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, val)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	basis := r.URL.Query().Get("basis")
	val, err, _ := h.builds.do(r.Context(), "is:"+r.URL.RawQuery, func(ctx context.Context) (any, error) {
		if basis == "ledger" {
			return h.reports.LedgerIncomeStatement(ctx, from, to)
		}
		return h.reports.IncomeStatement(ctx, from, to)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, val)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, name string, t report.Table) {
	if err := h.exporter.Write(r.Context(), w, format, name, t); err != nil {
		if errors.Is(err, report.ErrUnknownFormat) {
			httpx.Problem(w, http.StatusBadRequest, "Unsupported Format", err.Error())
			return
		}
		if errors.Is(err, report.ErrRender) {
			h.logger.Warn("pdf render", slog.String("name", name), slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Render Failed", "")
			return
		}
		h.logger.Error("export report", slog.String("name", name), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
			return from, to, false
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
			return from, to, false
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "to is before from")
		return from, to, false
	}
	return from, to, true
}

var accountingErrors = []httpx.Rule{
	{Err: documents.ErrMalformed, Status: http.StatusBadRequest, Title: "Malformed Source Document"},
	{Err: documents.ErrDocumentNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: accounts.ErrUnknownAccount, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: journals.ErrSourceAlreadyLinked, Status: http.StatusConflict, Title: "Already Posted"},
	{Err: store.ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
	{Err: inventory.ErrNegativeStock, Status: http.StatusConflict, Title: "Insufficient Stock"},
	{Err: posting.ErrNothingToSettle, Status: http.StatusUnprocessableEntity, Title: "Nothing To Settle"},
	{Err: inventory.ErrProductNotFound, Status: http.StatusUnprocessableEntity, Title: "Unknown Product"},
	{Err: inventory.ErrInvalidQuantity, Status: http.StatusUnprocessableEntity, Title: "Invalid Line"},
	{Err: inventory.ErrInvalidUnitCost, Status: http.StatusUnprocessableEntity, Title: "Invalid Line"},
	{Err: inventory.ErrLockNotObtained, Status: http.StatusServiceUnavailable, Title: "Busy"},
	{Err: context.DeadlineExceeded, Status: http.StatusServiceUnavailable, Title: "Busy"},
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, "accounting request", err, accountingErrors...)
}
