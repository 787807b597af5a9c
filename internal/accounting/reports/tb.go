package reports

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ErrUnbalanced is matched by UnbalancedWarning.
var ErrUnbalanced = shared.ErrUnbalanced

// AccountBalance models a detail account with aggregated activity.
type AccountBalance struct {
	Code   string               `json:"code"`
	Name   string               `json:"name"`
	Type   accounts.AccountType `json:"type"`
	Debit  decimal.Decimal      `json:"debit"`
	Credit decimal.Decimal      `json:"credit"`
}

// Balance is debit minus credit.
func (a AccountBalance) Balance() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// NaturalBalance is the balance signed by the account's normal side.
func (a AccountBalance) NaturalBalance() decimal.Decimal {
	if (accounts.Account{Type: a.Type}).NormalBalance() == accounts.SideCredit {
		return a.Credit.Sub(a.Debit)
	}
	return a.Balance()
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	return a.Code
}

// UnbalancedWarning reports that the trial balance totals disagree. The
// totals are left as computed.
type UnbalancedWarning struct {
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Difference  decimal.Decimal `json:"difference"`
}

func (w *UnbalancedWarning) Error() string {
	return fmt.Sprintf("accounting: trial balance unbalanced by %s (debit %s, credit %s)",
		w.Difference.StringFixed(2), w.TotalDebit.StringFixed(2), w.TotalCredit.StringFixed(2))
}

// Unwrap lets errors.Is match ErrUnbalanced.
func (w *UnbalancedWarning) Unwrap() error { return ErrUnbalanced }

// TrialBalanceReport is the flat trial balance over detail accounts.
type TrialBalanceReport struct {
	Rows        []AccountBalance   `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Warning     *UnbalancedWarning `json:"warning,omitempty"`
	// Skipped lists codes that carried postings but are not detail
	// accounts of the chart.
	Skipped []string `json:"skipped,omitempty"`
}

// Balanced reports whether debit and credit totals agree.
func (r TrialBalanceReport) Balanced() bool { return r.Warning == nil }

// Err returns the warning as an error, or nil.
func (r TrialBalanceReport) Err() error {
	if r.Warning == nil {
		return nil
	}
	return r.Warning
}

// ComputeTrialBalance sums every entry line per detail account over the
// whole ledger. Only accounts with activity are returned.
func ComputeTrialBalance(chart *accounts.Chart, entries []journals.JournalEntry) TrialBalanceReport {
	sums := make(map[string]*AccountBalance)
	skipped := make(map[string]struct{})
	for _, entry := range entries {
		for _, line := range entry.Lines {
			acc, err := chart.Postable(line.AccountCode)
			if err != nil {
				skipped[line.AccountCode] = struct{}{}
				continue
			}
			row, ok := sums[acc.Code]
			if !ok {
				row = &AccountBalance{Code: acc.Code, Name: acc.Name, Type: acc.Type, Debit: decimal.Zero, Credit: decimal.Zero}
				sums[acc.Code] = row
			}
			row.Debit = row.Debit.Add(line.Debit)
			row.Credit = row.Credit.Add(line.Credit)
		}
	}

	report := TrialBalanceReport{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, row := range sums {
		if !row.Debit.IsPositive() && !row.Credit.IsPositive() {
			continue
		}
		report.Rows = append(report.Rows, *row)
		report.TotalDebit = report.TotalDebit.Add(row.Debit)
		report.TotalCredit = report.TotalCredit.Add(row.Credit)
	}
	sort.Slice(report.Rows, func(i, j int) bool { return report.Rows[i].Code < report.Rows[j].Code })
	for code := range skipped {
		report.Skipped = append(report.Skipped, code)
	}
	sort.Strings(report.Skipped)

	if !shared.Balanced(report.TotalDebit, report.TotalCredit) {
		report.Warning = &UnbalancedWarning{
			TotalDebit:  report.TotalDebit,
			TotalCredit: report.TotalCredit,
			Difference:  report.TotalDebit.Sub(report.TotalCredit),
		}
	}
	return report
}

// IsUnbalanced reports whether err carries an UnbalancedWarning.
func IsUnbalanced(err error) bool {
	var w *UnbalancedWarning
	return errors.As(err, &w)
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key      string           `json:"key"`
	Name     string           `json:"name"`
	Accounts []AccountBalance `json:"accounts"`
	Debit    decimal.Decimal  `json:"debit"`
	Credit   decimal.Decimal  `json:"credit"`
	Balance  decimal.Decimal  `json:"balance"`
}

// TrialBalance is the grouped presentation of a TrialBalanceReport.
type TrialBalance struct {
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Warning     *UnbalancedWarning  `json:"warning,omitempty"`
}

// BuildTrialBalance groups rows by top-level account class.
func BuildTrialBalance(chart *accounts.Chart, report TrialBalanceReport) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range report.Rows {
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Name: key, Debit: decimal.Zero, Credit: decimal.Zero, Balance: decimal.Zero}
			if root, err := chart.Lookup(key); err == nil {
				grp.Name = root.Name
			}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Accounts = append(grp.Accounts, acc)
		grp.Debit = grp.Debit.Add(acc.Debit)
		grp.Credit = grp.Credit.Add(acc.Credit)
		grp.Balance = grp.Balance.Add(acc.Balance())
	}

	sort.Strings(keys)
	result := TrialBalance{TotalDebit: report.TotalDebit, TotalCredit: report.TotalCredit, Warning: report.Warning}
	for _, key := range keys {
		result.Groups = append(result.Groups, *groups[key])
	}
	return result
}
