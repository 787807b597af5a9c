package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type accountView struct {
	Account
	NormalBalance Side `json:"normal_balance"`
	Leaf          bool `json:"leaf"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	chart, err := h.service.Chart(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]accountView, 0)
	for _, acc := range chart.Accounts() {
		out = append(out, accountView{Account: acc, NormalBalance: acc.NormalBalance(), Leaf: chart.IsLeaf(acc.Code)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}
