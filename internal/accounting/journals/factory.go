package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
)

// Factory turns source documents into balanced, unsaved journal entries.
// Every line goes through the chart, so an unknown or group account fails
// the build instead of producing a line against a guessed code.
type Factory struct {
	chart *accounts.Chart
	now   func() time.Time
}

// NewFactory constructs a Factory over chart.
func NewFactory(chart *accounts.Chart) *Factory {
	return &Factory{chart: chart, now: time.Now}
}

// WithNow overrides the clock used for collection and settlement dates.
func (f *Factory) WithNow(now func() time.Time) {
	if now != nil {
		f.now = now
	}
}

type lineSpec struct {
	code   string
	debit  decimal.Decimal
	credit decimal.Decimal
}

func debit(code string, amount decimal.Decimal) lineSpec {
	return lineSpec{code: code, debit: amount}
}

func credit(code string, amount decimal.Decimal) lineSpec {
	return lineSpec{code: code, credit: amount}
}

// BuildSaleEntry debits cash or receivables for the total and credits revenue
// and collected VAT.
func (f *Factory) BuildSaleEntry(sale documents.SaleDocument) (JournalEntry, error) {
	if err := sale.Validate(); err != nil {
		return JournalEntry{}, err
	}
	counter := accounts.CodeCash
	if sale.IsCredit() {
		counter = accounts.CodeReceivable
	}
	specs := []lineSpec{
		debit(counter, *sale.Total),
		credit(accounts.CodeSalesRevenue, *sale.Subtotal),
	}
	if sale.VAT.IsPositive() {
		specs = append(specs, credit(accounts.CodeVATCollected, *sale.VAT))
	}
	concept := fmt.Sprintf("Sale per invoice %s to %s", sale.Number, sale.CustomerName)
	return f.build(sale.Date, concept, SourceSale, sale.ID, specs)
}

// BuildPurchaseEntry debits inventory and paid VAT and credits payables or
// the bank for the total.
func (f *Factory) BuildPurchaseEntry(purchase documents.PurchaseDocument) (JournalEntry, error) {
	if err := purchase.Validate(); err != nil {
		return JournalEntry{}, err
	}
	counter := accounts.CodeBank
	if purchase.IsCredit() {
		counter = accounts.CodePayable
	}
	specs := []lineSpec{debit(accounts.CodeInventory, *purchase.Subtotal)}
	if purchase.VAT.IsPositive() {
		specs = append(specs, debit(accounts.CodeVATPaid, *purchase.VAT))
	}
	specs = append(specs, credit(counter, *purchase.Total))
	concept := fmt.Sprintf("Purchase per invoice %s from %s", purchase.Number, purchase.SupplierName)
	return f.build(purchase.Date, concept, SourcePurchase, purchase.ID, specs)
}

// BuildCollectionEntry records cash received against a credit sale. It is
// dated at collection time, not at the invoice date.
func (f *Factory) BuildCollectionEntry(sale documents.SaleDocument) (JournalEntry, error) {
	if err := sale.Validate(); err != nil {
		return JournalEntry{}, err
	}
	specs := []lineSpec{
		debit(accounts.CodeCash, *sale.Total),
		credit(accounts.CodeReceivable, *sale.Total),
	}
	concept := fmt.Sprintf("Collection of invoice %s from %s", sale.Number, sale.CustomerName)
	return f.build(f.now(), concept, SourcePayment, sale.ID, specs)
}

// BuildSettlementEntry records a bank payment of a credit purchase.
func (f *Factory) BuildSettlementEntry(purchase documents.PurchaseDocument) (JournalEntry, error) {
	if err := purchase.Validate(); err != nil {
		return JournalEntry{}, err
	}
	specs := []lineSpec{
		debit(accounts.CodePayable, *purchase.Total),
		credit(accounts.CodeBank, *purchase.Total),
	}
	concept := fmt.Sprintf("Payment of purchase %s to %s", purchase.Number, purchase.SupplierName)
	return f.build(f.now(), concept, SourcePayment, purchase.ID, specs)
}

// BuildManualEntry validates a hand-keyed entry against the chart.
func (f *Factory) BuildManualEntry(in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	specs := make([]lineSpec, 0, len(in.Lines))
	for _, line := range in.Lines {
		specs = append(specs, lineSpec{code: line.AccountCode, debit: line.Debit, credit: line.Credit})
	}
	return f.build(in.Date, in.Concept, SourceManual, "", specs)
}

func (f *Factory) build(date time.Time, concept string, source SourceType, sourceID string, specs []lineSpec) (JournalEntry, error) {
	entry := JournalEntry{
		Date:        date,
		Concept:     concept,
		SourceType:  source,
		SourceID:    sourceID,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, spec := range specs {
		acc, err := f.chart.Postable(spec.code)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, EntryLine{
			AccountCode: acc.Code,
			AccountName: acc.Name,
			Debit:       spec.debit,
			Credit:      spec.credit,
		})
		entry.TotalDebit = entry.TotalDebit.Add(spec.debit)
		entry.TotalCredit = entry.TotalCredit.Add(spec.credit)
	}
	if !entry.Balanced() {
		return JournalEntry{}, fmt.Errorf("%w: %s debit %s credit %s", ErrUnbalanced, concept,
			entry.TotalDebit.StringFixed(2), entry.TotalCredit.StringFixed(2))
	}
	return entry, nil
}
