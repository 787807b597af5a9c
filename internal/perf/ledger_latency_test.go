package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

const (
	postingBudget      = 50 * time.Millisecond
	trialBalanceBudget = 250 * time.Millisecond
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func buildLedger(tb testing.TB) *app.Components {
	tb.Helper()
	mr := miniredis.RunT(tb)
	cfg := &app.Config{
		AppEnv:             "test",
		StoreDriver:        app.StoreMemory,
		RedisAddr:          mr.Addr(),
		LockDriver:         app.LockLocal,
		LockTTL:            5 * time.Second,
		PostingMaxRetries:  2,
		SeedChart:          true,
		RateLimitPerMinute: 1000,
	}
	c, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = c.Close() })

	_, err = c.Inventory.CreateProduct(context.Background(), inventory.Product{ID: "widget", Code: "W-01", Name: "Widget"})
	require.NoError(tb, err)
	return c
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// seedPair inserts a cash purchase of 10 units and a cash sale of 4 units.
func seedPair(tb testing.TB, c *app.Components, n int) (string, string) {
	tb.Helper()
	purchaseID, saleID := fmt.Sprintf("c-%d", n), fmt.Sprintf("s-%d", n)
	require.NoError(tb, c.Store.WithTx(context.Background(), func(ctx context.Context, w store.Writer) error {
		cost := decimal.NewFromInt(int64(5 + n%3))
		if _, err := c.Documents.InsertPurchase(ctx, w, documents.PurchaseDocument{
			ID: purchaseID, Number: "C-" + purchaseID, Date: day, SupplierName: "Acme", PaymentMethod: "Efectivo",
			Subtotal: amount(10 * cost.IntPart()), VAT: amount(0), Total: amount(10 * cost.IntPart()),
			Lines: []documents.PurchaseLine{{ProductID: "widget", Quantity: 10, UnitCost: &cost}},
		}); err != nil {
			return err
		}
		_, err := c.Documents.InsertSale(ctx, w, documents.SaleDocument{
			ID: saleID, Number: "F-" + saleID, Date: day.AddDate(0, 0, 1), CustomerName: "Ana", PaymentMethod: "Efectivo",
			Subtotal: amount(40), VAT: amount(0), Total: amount(40),
			Lines: []documents.SaleLine{{ProductID: "widget", Quantity: 4, UnitPrice: decimal.NewFromInt(10)}},
		})
		return err
	}))
	return purchaseID, saleID
}

func TestPostingAndReportLatencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("latency targets skipped in short mode")
	}
	c := buildLedger(t)
	ctx := context.Background()

	var postings []time.Duration
	for i := 0; i < 100; i++ {
		purchaseID, saleID := seedPair(t, c, i)
		start := time.Now()
		_, err := c.Postings.PostPurchaseEntry(ctx, purchaseID)
		require.NoError(t, err)
		postings = append(postings, time.Since(start))

		start = time.Now()
		_, err = c.Postings.PostSaleEntry(ctx, saleID)
		require.NoError(t, err)
		postings = append(postings, time.Since(start))
	}

	var reports []time.Duration
	for i := 0; i < 20; i++ {
		start := time.Now()
		tb, err := c.Reports.TrialBalance(ctx)
		require.NoError(t, err)
		require.True(t, tb.Balanced())
		reports = append(reports, time.Since(start))
	}

	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{name: "posting", samples: postings, threshold: postingBudget},
		{name: "trial balance", samples: reports, threshold: trialBalanceBudget},
	}
	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}

	k, err := c.Inventory.Kardex(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, 600, k.EndingQuantity)
	require.False(t, k.Drifted())
}

func BenchmarkPostSaleEntry(b *testing.B) {
	c := buildLedger(b)
	ctx := context.Background()
	ids := make([]string, b.N)
	for i := 0; i < b.N; i++ {
		purchaseID, saleID := seedPair(b, c, i)
		_, err := c.Postings.PostPurchaseEntry(ctx, purchaseID)
		require.NoError(b, err)
		ids[i] = saleID
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Postings.PostSaleEntry(ctx, ids[i]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTrialBalance(b *testing.B) {
	c := buildLedger(b)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		purchaseID, saleID := seedPair(b, c, i)
		_, err := c.Postings.PostPurchaseEntry(ctx, purchaseID)
		require.NoError(b, err)
		_, err = c.Postings.PostSaleEntry(ctx, saleID)
		require.NoError(b, err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Reports.TrialBalance(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
