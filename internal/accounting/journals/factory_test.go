package journals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

var invoiceDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func cashSale() documents.SaleDocument {
	return documents.SaleDocument{
		ID:            "s-1",
		Number:        "F-0001",
		Date:          invoiceDate,
		CustomerName:  "Ana",
		PaymentMethod: "Efectivo",
		Subtotal:      dec("100"),
		VAT:           dec("12"),
		Total:         dec("112"),
	}
}

func creditPurchase() documents.PurchaseDocument {
	return documents.PurchaseDocument{
		ID:            "p-1",
		Number:        "C-0001",
		Date:          invoiceDate,
		SupplierName:  "Acme",
		PaymentMethod: "Crédito",
		Subtotal:      dec("50"),
		VAT:           dec("6"),
		Total:         dec("56"),
	}
}

type expectedLine struct {
	code   string
	debit  string
	credit string
}

func requireLines(t *testing.T, entry JournalEntry, want []expectedLine) {
	t.Helper()
	require.Len(t, entry.Lines, len(want))
	for i, line := range entry.Lines {
		require.Equal(t, want[i].code, line.AccountCode, "line %d", i)
		require.True(t, decimal.RequireFromString(want[i].debit).Equal(line.Debit), "line %d debit %s", i, line.Debit)
		require.True(t, decimal.RequireFromString(want[i].credit).Equal(line.Credit), "line %d credit %s", i, line.Credit)
		require.NotEmpty(t, line.AccountName)
	}
	require.True(t, entry.Balanced())
}

func TestCashSaleEntry(t *testing.T) {
	entry, err := NewFactory(accounts.DefaultChart()).BuildSaleEntry(cashSale())
	require.NoError(t, err)
	requireLines(t, entry, []expectedLine{
		{accounts.CodeCash, "112", "0"},
		{accounts.CodeSalesRevenue, "0", "100"},
		{accounts.CodeVATCollected, "0", "12"},
	})
	require.Equal(t, "112.00", entry.TotalDebit.StringFixed(2))
	require.Equal(t, "112.00", entry.TotalCredit.StringFixed(2))
	require.Equal(t, "Sale per invoice F-0001 to Ana", entry.Concept)
	require.Equal(t, SourceSale, entry.SourceType)
	require.Equal(t, invoiceDate, entry.Date)
}

func TestCreditSaleDebitsReceivables(t *testing.T) {
	sale := cashSale()
	sale.PaymentMethod = "credito"
	entry, err := NewFactory(accounts.DefaultChart()).BuildSaleEntry(sale)
	require.NoError(t, err)
	require.Equal(t, accounts.CodeReceivable, entry.Lines[0].AccountCode)
}

func TestCreditPurchaseEntry(t *testing.T) {
	entry, err := NewFactory(accounts.DefaultChart()).BuildPurchaseEntry(creditPurchase())
	require.NoError(t, err)
	requireLines(t, entry, []expectedLine{
		{accounts.CodeInventory, "50", "0"},
		{accounts.CodeVATPaid, "6", "0"},
		{accounts.CodePayable, "0", "56"},
	})
	require.Equal(t, "Purchase per invoice C-0001 from Acme", entry.Concept)
}

func TestCashPurchaseCreditsBank(t *testing.T) {
	purchase := creditPurchase()
	purchase.PaymentMethod = "Transferencia"
	entry, err := NewFactory(accounts.DefaultChart()).BuildPurchaseEntry(purchase)
	require.NoError(t, err)
	require.Equal(t, accounts.CodeBank, entry.Lines[len(entry.Lines)-1].AccountCode)
}

func TestZeroVATOmitsLine(t *testing.T) {
	sale := cashSale()
	sale.VAT = dec("0")
	sale.Total = dec("100")
	entry, err := NewFactory(accounts.DefaultChart()).BuildSaleEntry(sale)
	require.NoError(t, err)
	requireLines(t, entry, []expectedLine{
		{accounts.CodeCash, "100", "0"},
		{accounts.CodeSalesRevenue, "0", "100"},
	})

	purchase := creditPurchase()
	purchase.VAT = dec("0")
	purchase.Total = dec("50")
	entry, err = NewFactory(accounts.DefaultChart()).BuildPurchaseEntry(purchase)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
}

func TestMalformedDocumentsFail(t *testing.T) {
	f := NewFactory(accounts.DefaultChart())

	sale := cashSale()
	sale.Total = nil
	_, err := f.BuildSaleEntry(sale)
	require.ErrorIs(t, err, ErrMalformedSourceDocument)

	purchase := creditPurchase()
	purchase.Subtotal = nil
	_, err = f.BuildPurchaseEntry(purchase)
	require.ErrorIs(t, err, ErrMalformedSourceDocument)

	sale = cashSale()
	sale.Date = time.Time{}
	_, err = f.BuildCollectionEntry(sale)
	require.ErrorIs(t, err, ErrMalformedSourceDocument)
}

func TestCollectionAndSettlementAreDatedNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	f := NewFactory(accounts.DefaultChart())
	f.WithNow(func() time.Time { return now })

	entry, err := f.BuildCollectionEntry(cashSale())
	require.NoError(t, err)
	require.Equal(t, now, entry.Date)
	require.Equal(t, SourcePayment, entry.SourceType)
	requireLines(t, entry, []expectedLine{
		{accounts.CodeCash, "112", "0"},
		{accounts.CodeReceivable, "0", "112"},
	})
	require.Equal(t, "Collection of invoice F-0001 from Ana", entry.Concept)

	entry, err = f.BuildSettlementEntry(creditPurchase())
	require.NoError(t, err)
	require.Equal(t, now, entry.Date)
	requireLines(t, entry, []expectedLine{
		{accounts.CodePayable, "56", "0"},
		{accounts.CodeBank, "0", "56"},
	})
	require.Equal(t, "Payment of purchase C-0001 to Acme", entry.Concept)
}

func TestEveryBuiltEntryBalances(t *testing.T) {
	f := NewFactory(accounts.DefaultChart())
	for _, tc := range []struct{ subtotal, vat string }{
		{"0.01", "0"}, {"19.99", "2.40"}, {"1000000", "120000"}, {"33.33", "4.00"}, {"7", "0.84"},
	} {
		sub, vat := decimal.RequireFromString(tc.subtotal), decimal.RequireFromString(tc.vat)
		total := sub.Add(vat)
		sale := cashSale()
		sale.Subtotal, sale.VAT, sale.Total = &sub, &vat, &total
		entry, err := f.BuildSaleEntry(sale)
		require.NoError(t, err)
		require.True(t, entry.TotalDebit.Sub(entry.TotalCredit).Abs().LessThan(decimal.New(1, -2)))

		purchase := creditPurchase()
		purchase.Subtotal, purchase.VAT, purchase.Total = &sub, &vat, &total
		entry, err = f.BuildPurchaseEntry(purchase)
		require.NoError(t, err)
		require.True(t, entry.Balanced())
	}
}

func TestManualEntryFailsClosedOnAccounts(t *testing.T) {
	f := NewFactory(accounts.DefaultChart())
	in := PostingInput{
		Date:    invoiceDate,
		Concept: "Owner contribution",
		Lines: []PostingLineInput{
			{AccountCode: accounts.CodeBank, Debit: decimal.NewFromInt(500)},
			{AccountCode: accounts.CodeCapital, Credit: decimal.NewFromInt(500)},
		},
	}
	entry, err := f.BuildManualEntry(in)
	require.NoError(t, err)
	require.Equal(t, SourceManual, entry.SourceType)

	in.Lines[1].AccountCode = "3.9.99"
	_, err = f.BuildManualEntry(in)
	require.ErrorIs(t, err, accounts.ErrUnknownAccount)

	in.Lines[1].AccountCode = "3.1"
	_, err = f.BuildManualEntry(in)
	require.ErrorIs(t, err, accounts.ErrNotLeafAccount)

	in.Lines[1].AccountCode = accounts.CodeCapital
	in.Lines[1].Credit = decimal.NewFromInt(400)
	_, err = f.BuildManualEntry(in)
	require.ErrorIs(t, err, ErrUnbalanced)
}
