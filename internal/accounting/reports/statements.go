package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

// OperationalBalanceSheet is derived from live operational collections
// rather than from the ledger. Equity is the plug figure.
type OperationalBalanceSheet struct {
	InventoryValuation decimal.Decimal `json:"inventory_valuation"`
	OpenReceivables    decimal.Decimal `json:"open_receivables"`
	VATPaid            decimal.Decimal `json:"vat_paid"`
	TotalAssets        decimal.Decimal `json:"total_assets"`

	OpenPayables     decimal.Decimal `json:"open_payables"`
	VATCollected     decimal.Decimal `json:"vat_collected"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`

	Equity decimal.Decimal `json:"equity"`
}

// Balanced checks Assets == Liabilities + Equity.
func (b OperationalBalanceSheet) Balanced() bool {
	return shared.Balanced(b.TotalAssets, b.TotalLiabilities.Add(b.Equity))
}

// Check returns ErrUnbalanced when the accounting identity does not hold.
func (b OperationalBalanceSheet) Check() error {
	if b.Balanced() {
		return nil
	}
	return fmt.Errorf("%w: assets %s != liabilities %s + equity %s", ErrUnbalanced,
		b.TotalAssets.StringFixed(2), b.TotalLiabilities.StringFixed(2), b.Equity.StringFixed(2))
}

// BuildOperationalBalanceSheet values inventory at average cost, counts
// unpaid credit documents as receivables and payables, and accumulates VAT
// over every document.
func BuildOperationalBalanceSheet(products []inventory.Product, sales []documents.SaleDocument, purchases []documents.PurchaseDocument) OperationalBalanceSheet {
	bs := OperationalBalanceSheet{
		InventoryValuation: decimal.Zero,
		OpenReceivables:    decimal.Zero,
		VATPaid:            decimal.Zero,
		OpenPayables:       decimal.Zero,
		VATCollected:       decimal.Zero,
	}
	for _, p := range products {
		bs.InventoryValuation = bs.InventoryValuation.Add(p.Valuation())
	}
	for _, s := range sales {
		bs.VATCollected = bs.VATCollected.Add(value(s.VAT))
		if s.IsCredit() && !s.Paid {
			bs.OpenReceivables = bs.OpenReceivables.Add(value(s.Total))
		}
	}
	for _, p := range purchases {
		bs.VATPaid = bs.VATPaid.Add(value(p.VAT))
		if p.IsCredit() && !p.Paid {
			bs.OpenPayables = bs.OpenPayables.Add(value(p.Total))
		}
	}
	bs.TotalAssets = bs.InventoryValuation.Add(bs.OpenReceivables).Add(bs.VATPaid)
	bs.TotalLiabilities = bs.OpenPayables.Add(bs.VATCollected)
	bs.Equity = bs.TotalAssets.Sub(bs.TotalLiabilities)
	return bs
}

// IncomeStatement is the operational basis income statement for a period.
// Operating and financial expenses are not tracked by the ledger and are
// always zero, so NetIncome equals GrossProfit.
type IncomeStatement struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	Revenue           decimal.Decimal `json:"revenue"`
	CostOfSales       decimal.Decimal `json:"cost_of_sales"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	FinancialExpenses decimal.Decimal `json:"financial_expenses"`
	NetIncome         decimal.Decimal `json:"net_income"`
	ExpensesTracked   bool            `json:"expenses_tracked"`
}

// BuildIncomeStatement sums sale and purchase subtotals dated within
// [from, to]. Cost of sales is the purchase subtotal, not the issue cost.
func BuildIncomeStatement(sales []documents.SaleDocument, purchases []documents.PurchaseDocument, from, to time.Time) IncomeStatement {
	is := IncomeStatement{
		From:              from,
		To:                to,
		Revenue:           decimal.Zero,
		CostOfSales:       decimal.Zero,
		OperatingExpenses: decimal.Zero,
		FinancialExpenses: decimal.Zero,
	}
	for _, s := range sales {
		if inRange(s.Date, from, to) {
			is.Revenue = is.Revenue.Add(value(s.Subtotal))
		}
	}
	for _, p := range purchases {
		if inRange(p.Date, from, to) {
			is.CostOfSales = is.CostOfSales.Add(value(p.Subtotal))
		}
	}
	is.GrossProfit = is.Revenue.Sub(is.CostOfSales)
	is.NetIncome = is.GrossProfit.Sub(is.OperatingExpenses).Sub(is.FinancialExpenses)
	return is
}

func value(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
