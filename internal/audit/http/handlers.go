package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	exporter *report.Exporter
	now      func() time.Time
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, exporter *report.Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		exporter: exporter,
		now:      time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if err := h.exporter.Write(r.Context(), w, format, "audit-timeline", TimelineTable(filters, rows)); err != nil {
		if errors.Is(err, report.ErrUnknownFormat) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.handleServerError(w, "write audit export", err)
	}
}

// TimelineTable flattens audit rows for export.
func TimelineTable(filters audit.TimelineFilters, rows []audit.TimelineRow) report.Table {
	t := report.Table{
		Title:   "Audit timeline " + filters.From.Format("2006-01-02") + " to " + filters.To.Format("2006-01-02"),
		Headers: []string{"At", "Actor", "Action", "Entity", "Entity ID", "Reference"},
	}
	for _, row := range rows {
		ref := ""
		for _, key := range []string{"number", "ref"} {
			if v, ok := row.Meta[key].(string); ok && v != "" {
				ref = v
				break
			}
		}
		t.Rows = append(t.Rows, []string{
			row.At.UTC().Format(time.RFC3339), row.Actor, row.Action, row.Entity, row.EntityID, ref,
		})
	}
	return t
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	now := h.now().UTC()
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "to"}
	}
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "from"}
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}

	page := 1
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page"}
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(r.URL.Query().Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page_size"}
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}

	return audit.TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Actor:    strings.TrimSpace(r.URL.Query().Get("actor")),
		Entity:   strings.TrimSpace(r.URL.Query().Get("entity")),
		EntityID: strings.TrimSpace(r.URL.Query().Get("entity_id")),
		Action:   strings.TrimSpace(r.URL.Query().Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+v.field)
		return
	}
	h.handleServerError(w, "validate filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
