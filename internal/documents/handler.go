package documents

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// Handler registers sales and purchases so they can be posted. It stands in
// for the order-entry screens of the surrounding application.
type Handler struct {
	store  store.Store
	repo   Repository
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, st store.Store, repo Repository) *Handler {
	return &Handler{logger: logger, store: st, repo: repo}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.listSales)
	r.Post("/sales", h.createSale)
	r.Get("/sales/{id}", h.showSale)
	r.Get("/purchases", h.listPurchases)
	r.Post("/purchases", h.createPurchase)
	r.Get("/purchases/{id}", h.showPurchase)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var sale SaleDocument
	if err := httpx.DecodeJSON(r, &sale); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	err := h.store.WithTx(r.Context(), func(ctx context.Context, tx store.Writer) error {
		var err error
		sale, err = h.repo.InsertSale(ctx, tx, sale)
		return err
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var purchase PurchaseDocument
	if err := httpx.DecodeJSON(r, &purchase); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	err := h.store.WithTx(r.Context(), func(ctx context.Context, tx store.Writer) error {
		var err error
		purchase, err = h.repo.InsertPurchase(ctx, tx, purchase)
		return err
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	var sales []SaleDocument
	err := h.store.Snapshot(r.Context(), func(ctx context.Context, rd store.Reader) error {
		var err error
		sales, err = h.repo.ListSales(ctx, rd)
		return err
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": nonNil(sales)})
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	var purchases []PurchaseDocument
	err := h.store.Snapshot(r.Context(), func(ctx context.Context, rd store.Reader) error {
		var err error
		purchases, err = h.repo.ListPurchases(ctx, rd)
		return err
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": nonNil(purchases)})
}

func (h *Handler) showSale(w http.ResponseWriter, r *http.Request) {
	var sale SaleDocument
	err := h.store.Snapshot(r.Context(), func(ctx context.Context, rd store.Reader) error {
		var err error
		sale, err = h.repo.GetSale(ctx, rd, chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) showPurchase(w http.ResponseWriter, r *http.Request) {
	var purchase PurchaseDocument
	err := h.store.Snapshot(r.Context(), func(ctx context.Context, rd store.Reader) error {
		var err error
		purchase, err = h.repo.GetPurchase(ctx, rd, chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

var documentErrors = []httpx.Rule{
	{Err: ErrMalformed, Status: http.StatusBadRequest, Title: "Malformed Document"},
	{Err: ErrDocumentNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: store.ErrConflict, Status: http.StatusConflict, Title: "Duplicate"},
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, "document request", err, documentErrors...)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
