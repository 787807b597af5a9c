package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	exporter *report.Exporter
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, exporter *report.Exporter) *Handler {
	return &Handler{logger: logger, service: service, exporter: exporter}
}

// MountRoutes registers inventory routes. Stock only moves through postings,
// so there are no direct receipt or issue endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.showProduct)
	r.Get("/products/{id}/kardex", h.showKardex)
}

type productForm struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var form productForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), Product{Code: form.Code, Name: form.Name})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) showKardex(w http.ResponseWriter, r *http.Request) {
	k, err := h.service.Kardex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if format := r.URL.Query().Get("format"); format != "" {
		if err := h.exporter.Write(r.Context(), w, format, "kardex-"+k.Product.Code, KardexTable(k)); err != nil {
			h.respondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"kardex": k, "drifted": k.Drifted()})
}

// KardexTable flattens a Kardex for export.
func KardexTable(k Kardex) report.Table {
	t := report.Table{
		Title:   "Kardex " + k.Product.Code + " " + k.Product.Name,
		Headers: []string{"Date", "Type", "Document", "Detail", "In", "Out", "Unit cost", "Balance", "Average cost"},
	}
	for _, mv := range k.Movements {
		in, out := "", ""
		if mv.Type == MovementIn {
			in = decimal.NewFromInt(int64(mv.Quantity)).String()
		} else {
			out = decimal.NewFromInt(int64(mv.Quantity)).String()
		}
		t.Rows = append(t.Rows, []string{
			mv.Date.Format("2006-01-02"),
			string(mv.Type),
			mv.DocumentRef,
			mv.Detail,
			in,
			out,
			mv.UnitCost.StringFixed(CostPrecision),
			decimal.NewFromInt(int64(mv.Balance)).String(),
			mv.BalanceCost.StringFixed(CostPrecision),
		})
	}
	return t
}

var inventoryErrors = []httpx.Rule{
	{Err: ErrProductNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: report.ErrUnknownFormat, Status: http.StatusBadRequest, Title: "Unknown Format"},
	{Err: report.ErrRender, Status: http.StatusBadGateway, Title: "Render Failed"},
	{Err: store.ErrConflict, Status: http.StatusConflict, Title: "Duplicate"},
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, "inventory request", err, inventoryErrors...)
}
