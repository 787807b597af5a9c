package journals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journal_entries": entries})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input PostingInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

var journalErrors = []httpx.Rule{
	{Err: shared.ErrUnbalanced, Status: http.StatusBadRequest, Title: "Invalid Entry"},
	{Err: shared.ErrTooFewLines, Status: http.StatusBadRequest, Title: "Invalid Entry"},
	{Err: shared.ErrInvalidLine, Status: http.StatusBadRequest, Title: "Invalid Entry"},
	{Err: accounts.ErrNotLeafAccount, Status: http.StatusBadRequest, Title: "Invalid Entry"},
	{Err: accounts.ErrUnknownAccount, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrJournalNotFound, Status: http.StatusNotFound, Title: "Not Found"},
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, "journal request", err, journalErrors...)
}
