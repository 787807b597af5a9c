package reports

import (
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/report"
)

// TrialBalanceTable flattens a trial balance for export.
func TrialBalanceTable(tb TrialBalanceReport) report.Table {
	t := report.Table{
		Title:   "Trial balance",
		Headers: []string{"Code", "Account", "Type", "Debit", "Credit", "Balance"},
		Footer:  []string{"", "Total", "", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2), tb.TotalDebit.Sub(tb.TotalCredit).StringFixed(2)},
	}
	for _, row := range tb.Rows {
		t.Rows = append(t.Rows, []string{row.Code, row.Name, string(row.Type), row.Debit.StringFixed(2), row.Credit.StringFixed(2), row.Balance().StringFixed(2)})
	}
	if tb.Warning != nil {
		t.Title += " (UNBALANCED by " + tb.Warning.Difference.StringFixed(2) + ")"
	}
	return t
}

// LedgerTable flattens a general ledger for export.
func LedgerTable(l LedgerReport) report.Table {
	t := report.Table{
		Title:   "General ledger " + l.AccountCode + " " + l.AccountName,
		Headers: []string{"Date", "Entry", "Concept", "Debit", "Credit", "Balance"},
		Footer:  []string{"", "", "Total", l.TotalDebit.StringFixed(2), l.TotalCredit.StringFixed(2), l.EndingBalance.StringFixed(2)},
	}
	for _, row := range l.Rows {
		t.Rows = append(t.Rows, []string{
			row.Date.Format("2006-01-02"),
			strconv.FormatInt(row.Number, 10),
			row.Concept,
			row.Debit.StringFixed(2),
			row.Credit.StringFixed(2),
			row.Balance.StringFixed(2),
		})
	}
	return t
}
