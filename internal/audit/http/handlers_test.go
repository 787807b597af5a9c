package audithttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/report"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type stubTimelineService struct {
	lastFilters audit.TimelineFilters
	rows        []audit.TimelineRow
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return audit.Result{Rows: s.rows}, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.rows, nil
}

func newTestRouter(svc *stubTimelineService) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, report.NewExporter(nil))
	h.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubTimelineService{rows: []audit.TimelineRow{{Action: "posting.sale", Entity: "sale", EntityID: "s1"}}}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/?entity=sale&page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2024-03-08", svc.lastFilters.From.Format("2006-01-02"))
	require.Equal(t, "2024-03-15", svc.lastFilters.To.Format("2006-01-02"))
	require.Equal(t, "sale", svc.lastFilters.Entity)
	require.Equal(t, 2, svc.lastFilters.Page)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newTestRouter(&stubTimelineService{})
	for _, query := range []string{
		"from=2024-03-10&to=2024-03-01",
		"from=2023-01-01&to=2024-03-01",
		"to=03/01/2024",
		"page=0",
		"page_size=abc",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/?"+query, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, query)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"), query)
	}
}

func TestExportCSV(t *testing.T) {
	svc := &stubTimelineService{rows: []audit.TimelineRow{{
		At: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Actor: "ana", Action: "posting.sale",
		Entity: "sale", EntityID: "s1", Meta: map[string]any{"number": "JE-0001"},
	}}}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	require.Contains(t, rec.Body.String(), "JE-0001")

	rec = httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export?format=pdf", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
