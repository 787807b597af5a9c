package app

import (
	"bytes"
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
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func TestLoadConfigDefaultsAndValidation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOCK_DRIVER", "local")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.PostingMaxRetries)
	require.True(t, cfg.SeedChart)
	require.False(t, cfg.NeedsRedis())

	t.Setenv("STORE_DRIVER", "mongo")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LOCK_DRIVER", "redis")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.NeedsRedis())
}

func testConfig(t *testing.T, lockDriver string) *Config {
	t.Helper()
	mr := miniredis.RunT(t)
	return &Config{
		AppEnv:             "test",
		StoreDriver:        StoreMemory,
		RedisAddr:          mr.Addr(),
		LockDriver:         lockDriver,
		LockTTL:            5 * time.Second,
		PostingMaxRetries:  2,
		SeedChart:          true,
		RateLimitPerMinute: 1000,
	}
}

func send(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Actor", "tester")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, LockRedis)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := Build(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	h := NewRouterFromComponents(cfg, logger, c)

	require.Equal(t, http.StatusOK, send(t, h, http.MethodGet, "/healthz", nil).Code)

	rec := send(t, h, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "1.1.01")

	rec = send(t, h, http.MethodPost, "/api/inventory/products", map[string]string{"code": "W-01", "name": "Widget"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product inventory.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))

	rec = send(t, h, http.MethodPost, "/api/documents/purchases", map[string]any{
		"id": "c-1", "number": "C-0001", "date": "2024-04-02T00:00:00Z", "supplier_name": "Acme",
		"payment_method": "Crédito", "subtotal": "50", "vat": "6", "total": "56",
		"lines": []map[string]any{{"product_id": product.ID, "quantity": 10, "unit_cost": "5"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, "/api/documents/sales", map[string]any{
		"id": "s-1", "number": "F-0001", "date": "2024-04-03T00:00:00Z", "customer_name": "Ana",
		"payment_method": "Efectivo", "subtotal": "40", "vat": "4.8", "total": "44.8",
		"lines": []map[string]any{{"product_id": product.ID, "quantity": 4, "unit_price": "10"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, "/api/postings/purchases/c-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = send(t, h, http.MethodPost, "/api/postings/sales/s-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res posting.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Empty(t, res.Warnings)

	rec = send(t, h, http.MethodGet, "/api/reports/trial-balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tb reports.TrialBalanceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	require.Nil(t, tb.Warning)

	rec = send(t, h, http.MethodGet, "/api/inventory/products/"+product.ID+"/kardex", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var kardex struct {
		Kardex  inventory.Kardex `json:"kardex"`
		Drifted bool             `json:"drifted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kardex))
	require.Equal(t, 6, kardex.Kardex.EndingQuantity)
	require.False(t, kardex.Drifted)

	rec = send(t, h, http.MethodGet, "/api/audit/?from=2020-01-01&to=2020-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = send(t, h, http.MethodGet, "/api/audit/?entity=sale", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trail audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	require.Len(t, trail.Rows, 1)
	require.Equal(t, "posting.sale", trail.Rows[0].Action)
	require.Equal(t, "tester", trail.Rows[0].Actor)

	rec = send(t, h, http.MethodGet, "/api/jobs/health", nil)
	require.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, rec.Code)

	rec = send(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `odyssey_ledger_postings_total{source="SALE"} 1`), body)
	require.Contains(t, body, `odyssey_ledger_postings_total{source="PURCHASE"} 1`)
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &Config{StoreDriver: "mongo"})
	require.Error(t, err)
}
