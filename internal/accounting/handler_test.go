package accounting

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

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	"github.com/odyssey-erp/odyssey-ledger/internal/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/report"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type staticChart struct{}

func (staticChart) Chart(context.Context) (*accounts.Chart, error) {
	return accounts.DefaultChart(), nil
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st := memory.New()
	ledger := journals.NewRepository()
	docs := documents.NewRepository()
	products := inventory.NewRepository()
	audit := shared.NewAuditLogger()
	inv := inventory.NewService(st, products, docs, inventory.NewLocalLocker(), audit, nil, inventory.ServiceConfig{})
	postings := posting.NewService(st, staticChart{}, ledger, docs, inv, audit, nil, posting.Config{MaxRetries: 1})
	reportSvc := reports.NewService(st, ledger, staticChart{}, products, docs, nil)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewHandler(slogDiscard(), postings, reportSvc, report.NewExporter(nil), shared.NewIdempotencyStore(rdb, time.Hour))
	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)

	ctx := context.Background()
	_, err := inv.CreateProduct(ctx, inventory.Product{ID: "widget", Code: "W-01", Name: "Widget"})
	require.NoError(t, err)
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, w store.Writer) error {
		_, err := docs.InsertPurchase(ctx, w, documents.PurchaseDocument{
			ID: "c-1", Number: "C-0001", Date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), SupplierName: "Acme",
			PaymentMethod: "Crédito", Subtotal: ptr("50"), VAT: ptr("6"), Total: ptr("56"),
			Lines: []documents.PurchaseLine{{ProductID: "widget", Quantity: 10, UnitCost: ptr("5")}},
		})
		return err
	}))
	return r, st
}

func do(t *testing.T, h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostingEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/postings/purchases/c-1", map[string]string{"Idempotency-Key": "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res posting.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, journals.SourcePurchase, res.Entry.SourceType)

	rec = do(t, h, http.MethodPost, "/api/postings/purchases/c-1", map[string]string{"Idempotency-Key": "k-1"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/postings/purchases/c-1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/postings/sales/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/postings/settlements/c-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/postings/settlements/c-1", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReportEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/postings/purchases/c-1", nil).Code)

	rec := do(t, h, http.MethodGet, "/api/reports/trial-balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tb reports.TrialBalanceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	require.Nil(t, tb.Warning)
	require.Equal(t, "56.00", tb.TotalDebit.StringFixed(2))

	rec = do(t, h, http.MethodGet, "/api/reports/trial-balance?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	require.Contains(t, rec.Body.String(), accounts.CodeInventory)

	rec = do(t, h, http.MethodGet, "/api/reports/trial-balance?format=pdf", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/general-ledger/"+accounts.CodeInventory+"?from=2024-04-01&to=2024-04-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger reports.LedgerReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	require.Len(t, ledger.Rows, 1)

	rec = do(t, h, http.MethodGet, "/api/reports/general-ledger/9.9.99", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/general-ledger/"+accounts.CodeCash+"?from=04-01-2024", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/balance-sheet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bs reports.OperationalBalanceSheet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bs))
	require.Equal(t, "50.00", bs.InventoryValuation.StringFixed(2))
	require.Equal(t, "56.00", bs.OpenPayables.StringFixed(2))

	rec = do(t, h, http.MethodGet, "/api/reports/balance-sheet?basis=ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/income-statement?from=2024-04-01&to=2024-04-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var is reports.IncomeStatement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &is))
	require.Equal(t, "50.00", is.CostOfSales.StringFixed(2))
}
