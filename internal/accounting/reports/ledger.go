package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// LedgerRow is one posting in the general ledger of an account.
type LedgerRow struct {
	EntryID string          `json:"entry_id"`
	Number  int64           `json:"number"`
	Date    time.Time       `json:"date"`
	Concept string          `json:"concept"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// LedgerReport is the general ledger (libro mayor) of one account.
type LedgerReport struct {
	AccountCode   string          `json:"account_code"`
	AccountName   string          `json:"account_name"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Rows          []LedgerRow     `json:"rows"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	EndingBalance decimal.Decimal `json:"ending_balance"`
}

// GeneralLedger replays the lines posted to code between from and to, both
// inclusive calendar days, accumulating debit minus credit. A zero bound is
// open. Ties on date keep insertion order.
func GeneralLedger(chart *accounts.Chart, entries []journals.JournalEntry, code string, from, to time.Time) (LedgerReport, error) {
	acc, err := chart.Lookup(code)
	if err != nil {
		return LedgerReport{}, err
	}
	report := LedgerReport{
		AccountCode:   acc.Code,
		AccountName:   acc.Name,
		From:          from,
		To:            to,
		Rows:          []LedgerRow{},
		TotalDebit:    decimal.Zero,
		TotalCredit:   decimal.Zero,
		EndingBalance: decimal.Zero,
	}

	selected := make([]journals.JournalEntry, 0)
	for _, entry := range entries {
		if inRange(entry.Date, from, to) {
			selected = append(selected, entry)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].Date.Equal(selected[j].Date) {
			return selected[i].Date.Before(selected[j].Date)
		}
		return selected[i].Seq < selected[j].Seq
	})

	running := decimal.Zero
	for _, entry := range selected {
		for _, line := range entry.Lines {
			if line.AccountCode != acc.Code {
				continue
			}
			running = running.Add(line.Debit).Sub(line.Credit)
			report.Rows = append(report.Rows, LedgerRow{
				EntryID: entry.ID,
				Number:  entry.Number,
				Date:    entry.Date,
				Concept: entry.Concept,
				Debit:   line.Debit,
				Credit:  line.Credit,
				Balance: running,
			})
			report.TotalDebit = report.TotalDebit.Add(line.Debit)
			report.TotalCredit = report.TotalCredit.Add(line.Credit)
		}
	}
	report.EndingBalance = running
	return report, nil
}

func inRange(t, from, to time.Time) bool {
	day := dayOf(t)
	if !from.IsZero() && day.Before(dayOf(from)) {
		return false
	}
	if !to.IsZero() && day.After(dayOf(to)) {
		return false
	}
	return true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
