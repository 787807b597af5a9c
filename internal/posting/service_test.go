package posting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	"github.com/odyssey-erp/odyssey-ledger/internal/store/memory"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type staticChart struct{}

func (staticChart) Chart(context.Context) (*accounts.Chart, error) {
	return accounts.DefaultChart(), nil
}

type countingMetrics map[string]int

func (m countingMetrics) Posted(source string) { m[source]++ }

// flakyStore fails the first n transactions with a conflict.
type flakyStore struct {
	store.Store
	failures int
	attempts int
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(context.Context, store.Writer) error) error {
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("%w: serialization failure", store.ErrConflict)
	}
	return f.Store.WithTx(ctx, fn)
}

func ptr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

var invoiceDay = time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store     store.Store
	ledger    journals.Repository
	docs      documents.Repository
	products  inventory.Repository
	inventory *inventory.Service
	svc       *Service
	metrics   countingMetrics
}

func newFixture(t *testing.T, st store.Store, cfg Config, invCfg inventory.ServiceConfig) fixture {
	t.Helper()
	f := fixture{
		store:    st,
		ledger:   journals.NewRepository(),
		docs:     documents.NewRepository(),
		products: inventory.NewRepository(),
		metrics:  countingMetrics{},
	}
	audit := shared.NewAuditLogger()
	f.inventory = inventory.NewService(st, f.products, f.docs, inventory.NewLocalLocker(), audit, nil, invCfg)
	f.svc = NewService(st, staticChart{}, f.ledger, f.docs, f.inventory, audit, nil, cfg)
	f.svc.WithMetrics(f.metrics)
	f.svc.WithNow(func() time.Time { return invoiceDay.AddDate(0, 0, 10) })

	_, err := f.inventory.CreateProduct(context.Background(), inventory.Product{ID: "widget", Code: "W-01", Name: "Widget"})
	require.NoError(t, err)
	return f
}

func (f fixture) insert(t *testing.T, fn func(ctx context.Context, w store.Writer) error) {
	t.Helper()
	require.NoError(t, f.store.WithTx(context.Background(), fn))
}

func (f fixture) creditPurchase(t *testing.T) {
	f.insert(t, func(ctx context.Context, w store.Writer) error {
		_, err := f.docs.InsertPurchase(ctx, w, documents.PurchaseDocument{
			ID: "c-1", Number: "C-0001", Date: invoiceDay, SupplierName: "Acme", PaymentMethod: "Crédito",
			Subtotal: ptr("50"), VAT: ptr("6"), Total: ptr("56"),
			Lines: []documents.PurchaseLine{{ProductID: "widget", Quantity: 10, UnitCost: ptr("5")}},
		})
		return err
	})
}

func (f fixture) sale(t *testing.T, id, method string, qty int) {
	f.insert(t, func(ctx context.Context, w store.Writer) error {
		subtotal := decimal.NewFromInt(int64(qty * 10))
		vat := subtotal.Mul(decimal.RequireFromString("0.12"))
		total := subtotal.Add(vat)
		_, err := f.docs.InsertSale(ctx, w, documents.SaleDocument{
			ID: id, Number: "F-" + id, Date: invoiceDay.AddDate(0, 0, 1), CustomerName: "Ana", PaymentMethod: method,
			Subtotal: &subtotal, VAT: &vat, Total: &total,
			Lines: []documents.SaleLine{{ProductID: "widget", Quantity: qty, UnitPrice: decimal.NewFromInt(10)}},
		})
		return err
	})
}

func (f fixture) entries(t *testing.T) []journals.JournalEntry {
	t.Helper()
	var out []journals.JournalEntry
	require.NoError(t, f.store.Snapshot(context.Background(), func(ctx context.Context, r store.Reader) error {
		var err error
		out, err = f.ledger.List(ctx, r)
		return err
	}))
	return out
}

func TestPostPurchaseAndSale(t *testing.T) {
	f := newFixture(t, memory.New(), Config{MaxRetries: 2}, inventory.ServiceConfig{})
	ctx := context.Background()
	f.creditPurchase(t)
	f.sale(t, "s-1", "Efectivo", 4)

	res, err := f.svc.PostPurchaseEntry(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, journals.SourcePurchase, res.Entry.SourceType)
	require.Equal(t, "56.00", res.Entry.TotalCredit.StringFixed(2))

	product, err := f.inventory.GetProduct(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, 10, product.QuantityOnHand)
	require.Equal(t, "5.0000", product.AverageUnitCost.StringFixed(4))

	res, err = f.svc.PostSaleEntry(ctx, "s-1")
	require.NoError(t, err)
	require.Empty(t, res.Warnings)

	product, err = f.inventory.GetProduct(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, 6, product.QuantityOnHand)

	require.NoError(t, f.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		sale, err := f.docs.GetSale(ctx, r, "s-1")
		require.NoError(t, err)
		require.Equal(t, res.Entry.ID, sale.EntryID)
		require.Equal(t, res.Entry.Number, sale.EntryNumber)
		require.NotNil(t, sale.Lines[0].UnitCost)
		require.Equal(t, "5.0000", sale.Lines[0].UnitCost.StringFixed(4))

		logs, err := shared.NewAuditLogger().List(ctx, r, "sale", "s-1")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		return nil
	}))

	require.Equal(t, 1, f.metrics["SALE"])
	require.Equal(t, 1, f.metrics["PURCHASE"])

	tb := reports.ComputeTrialBalance(accounts.DefaultChart(), f.entries(t))
	require.True(t, tb.Balanced())

	k, err := f.inventory.Kardex(ctx, "widget")
	require.NoError(t, err)
	require.False(t, k.Drifted())
	require.Len(t, k.Movements, 2)
}

func TestPostingIsIdempotentPerSource(t *testing.T) {
	f := newFixture(t, memory.New(), Config{}, inventory.ServiceConfig{})
	ctx := context.Background()
	f.creditPurchase(t)

	_, err := f.svc.PostPurchaseEntry(ctx, "c-1")
	require.NoError(t, err)
	_, err = f.svc.PostPurchaseEntry(ctx, "c-1")
	require.ErrorIs(t, err, journals.ErrSourceAlreadyLinked)

	product, err := f.inventory.GetProduct(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, 10, product.QuantityOnHand)
	require.Len(t, f.entries(t), 1)
}

func TestSaleWithoutStockWarns(t *testing.T) {
	f := newFixture(t, memory.New(), Config{}, inventory.ServiceConfig{})
	f.sale(t, "s-1", "Efectivo", 3)

	res, err := f.svc.PostSaleEntry(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, -3, res.Warnings[0].Resulting)
}

func TestRejectedIssueLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, memory.New(), Config{}, inventory.ServiceConfig{RejectNegativeStock: true})
	f.sale(t, "s-1", "Efectivo", 3)

	_, err := f.svc.PostSaleEntry(context.Background(), "s-1")
	require.ErrorIs(t, err, inventory.ErrNegativeStock)
	require.Empty(t, f.entries(t))

	require.NoError(t, f.store.Snapshot(context.Background(), func(ctx context.Context, r store.Reader) error {
		_, err := f.ledger.FindSourceLink(ctx, r, journals.LinkSale, "s-1")
		require.ErrorIs(t, err, store.ErrNotFound)
		sale, err := f.docs.GetSale(ctx, r, "s-1")
		require.NoError(t, err)
		require.False(t, sale.Posted())
		return nil
	}))
}

func TestMalformedDocumentIsNotPosted(t *testing.T) {
	f := newFixture(t, memory.New(), Config{}, inventory.ServiceConfig{})
	f.insert(t, func(ctx context.Context, w store.Writer) error {
		return store.PutJSON(ctx, w, store.CollectionSales, "broken", map[string]any{
			"number": "F-9", "date": invoiceDay, "payment_method": "Efectivo", "subtotal": "10", "vat": "1.2",
		})
	})

	_, err := f.svc.PostSaleEntry(context.Background(), "broken")
	require.ErrorIs(t, err, journals.ErrMalformedSourceDocument)
	require.Empty(t, f.entries(t))
}

func TestCollectionAndSettlement(t *testing.T) {
	f := newFixture(t, memory.New(), Config{}, inventory.ServiceConfig{})
	ctx := context.Background()
	f.creditPurchase(t)
	f.sale(t, "cash", "Efectivo", 1)
	f.sale(t, "credit", "credito", 2)

	_, err := f.svc.PostCollection(ctx, "cash")
	require.ErrorIs(t, err, ErrNothingToSettle)

	res, err := f.svc.PostCollection(ctx, "credit")
	require.NoError(t, err)
	require.Equal(t, journals.SourcePayment, res.Entry.SourceType)
	require.Equal(t, invoiceDay.AddDate(0, 0, 10), res.Entry.Date)

	_, err = f.svc.PostCollection(ctx, "credit")
	require.ErrorIs(t, err, ErrNothingToSettle)

	_, err = f.svc.PostSettlement(ctx, "c-1")
	require.NoError(t, err)
	_, err = f.svc.PostSettlement(ctx, "c-1")
	require.ErrorIs(t, err, ErrNothingToSettle)

	require.NoError(t, f.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		sale, err := f.docs.GetSale(ctx, r, "credit")
		require.NoError(t, err)
		require.True(t, sale.Paid)
		purchase, err := f.docs.GetPurchase(ctx, r, "c-1")
		require.NoError(t, err)
		require.True(t, purchase.Paid)
		return nil
	}))
	require.Equal(t, 2, f.metrics["PAYMENT"])

	_, err = f.svc.PostSettlement(ctx, "missing")
	require.ErrorIs(t, err, documents.ErrDocumentNotFound)
}

func TestConflictsAreRetried(t *testing.T) {
	flaky := &flakyStore{Store: memory.New()}
	f := newFixture(t, flaky, Config{MaxRetries: 2}, inventory.ServiceConfig{})
	f.creditPurchase(t)

	flaky.attempts = 0
	flaky.failures = 2
	_, err := f.svc.PostPurchaseEntry(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, 3, flaky.attempts)
}

func TestConflictRetriesAreBounded(t *testing.T) {
	flaky := &flakyStore{Store: memory.New()}
	f := newFixture(t, flaky, Config{MaxRetries: 1}, inventory.ServiceConfig{})
	f.creditPurchase(t)

	flaky.attempts = 0
	flaky.failures = 5
	_, err := f.svc.PostPurchaseEntry(context.Background(), "c-1")
	require.ErrorIs(t, err, store.ErrConflict)
	require.Equal(t, 2, flaky.attempts)
	require.Empty(t, f.metrics)
}

func TestBackDatedPurchaseDoesNotReadAsKardexDrift(t *testing.T) {
	f := newFixture(t, memory.New(), Config{MaxRetries: 2}, inventory.ServiceConfig{})
	ctx := context.Background()
	purchase := func(id string, date time.Time, cost string) {
		f.insert(t, func(ctx context.Context, w store.Writer) error {
			unit := decimal.RequireFromString(cost)
			total := unit.Mul(decimal.NewFromInt(10))
			_, err := f.docs.InsertPurchase(ctx, w, documents.PurchaseDocument{
				ID: id, Number: "C-" + id, Date: date, SupplierName: "Acme", PaymentMethod: "Efectivo",
				Subtotal: &total, VAT: ptr("0"), Total: &total,
				Lines: []documents.PurchaseLine{{ProductID: "widget", Quantity: 10, UnitCost: &unit}},
			})
			return err
		})
		_, err := f.svc.PostPurchaseEntry(ctx, id)
		require.NoError(t, err)
	}

	purchase("c-1", invoiceDay, "5")
	f.sale(t, "s-1", "Efectivo", 10)
	_, err := f.svc.PostSaleEntry(ctx, "s-1")
	require.NoError(t, err)
	purchase("c-2", invoiceDay.AddDate(0, 0, -5), "7")

	live, err := f.inventory.GetProduct(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, "7.0000", live.AverageUnitCost.StringFixed(4))

	k, err := f.inventory.Kardex(ctx, "widget")
	require.NoError(t, err)
	require.Equal(t, "C-c-2", k.Movements[0].DocumentRef)
	require.Equal(t, 10, k.EndingQuantity)
	require.Equal(t, "7.0000", k.EndingAverageCost.StringFixed(4))
	require.False(t, k.Drifted())
}
