package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the ledger basis balance sheet. Revenue less expenses not
// yet closed to equity is shown as CurrentEarnings inside Equity.
type BalanceSheet struct {
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentEarnings           decimal.Decimal     `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
	Balanced                  bool                `json:"balanced"`
}

// BuildBalanceSheet aggregates balances into assets, liabilities, and equity sections.
func BuildBalanceSheet(rows []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Total: decimal.Zero}
	liabilities := BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero}
	equity := BalanceSheetSection{Label: "Equity", Total: decimal.Zero}
	earnings := decimal.Zero

	for _, acc := range rows {
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: acc.NaturalBalance()}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(row.Balance)
		case accounts.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(row.Balance)
		case accounts.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(row.Balance)
		case accounts.AccountTypeRevenue:
			earnings = earnings.Add(acc.Credit.Sub(acc.Debit))
		case accounts.AccountTypeExpense:
			earnings = earnings.Sub(acc.Debit.Sub(acc.Credit))
		}
	}
	equity.Total = equity.Total.Add(earnings)

	sort.Slice(assets.Accounts, func(i, j int) bool { return assets.Accounts[i].Code < assets.Accounts[j].Code })
	sort.Slice(liabilities.Accounts, func(i, j int) bool { return liabilities.Accounts[i].Code < liabilities.Accounts[j].Code })
	sort.Slice(equity.Accounts, func(i, j int) bool { return equity.Accounts[i].Code < equity.Accounts[j].Code })

	total := liabilities.Total.Add(equity.Total)
	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentEarnings:           earnings,
		TotalLiabilitiesAndEquity: total,
		Balanced:                  shared.Balanced(assets.Total, total),
	}
}
