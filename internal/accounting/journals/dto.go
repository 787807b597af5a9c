package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// PostingInput groups fields required to create a manual journal entry.
type PostingInput struct {
	Date    time.Time          `json:"date"`
	Concept string             `json:"concept"`
	Lines   []PostingLineInput `json:"lines"`
}

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrInvalidLine)
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountCode == "" {
			return fmt.Errorf("%w: line %d missing account", shared.ErrInvalidLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidLine, idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d must carry exactly one side", shared.ErrInvalidLine, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !shared.Balanced(debit, credit) {
		return fmt.Errorf("%w: debit %s credit %s", shared.ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}
