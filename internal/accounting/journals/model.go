package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
)

// SourceType enumerates the business events that produce entries.
type SourceType string

const (
	SourceSale     SourceType = "SALE"
	SourcePurchase SourceType = "PURCHASE"
	SourcePayment  SourceType = "PAYMENT"
	SourceManual   SourceType = "MANUAL"
)

// Source link kinds. A document posts at most once per kind.
const (
	LinkSale       = "sale"
	LinkPurchase   = "purchase"
	LinkCollection = "collection"
	LinkSettlement = "settlement"
)

// JournalEntry is a posted, immutable set of balanced lines.
type JournalEntry struct {
	ID          string          `json:"id"`
	Number      int64           `json:"number"`
	Date        time.Time       `json:"date"`
	Concept     string          `json:"concept"`
	SourceType  SourceType      `json:"source_type"`
	SourceID    string          `json:"source_id,omitempty"`
	Lines       []EntryLine     `json:"lines"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	PostedAt    time.Time       `json:"posted_at"`

	// Seq is the store insertion order, filled on read.
	Seq int64 `json:"-"`
}

// EntryLine stores a debit or credit amount for one detail account.
type EntryLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Balanced reports whether the stored totals agree.
func (e JournalEntry) Balanced() bool {
	return shared.Balanced(e.TotalDebit, e.TotalCredit)
}

// SourceLink ties a source document to the entry posted for it.
type SourceLink struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	SourceID string    `json:"source_id"`
	EntryID  string    `json:"entry_id"`
	LinkedAt time.Time `json:"linked_at"`
}

var (
	// ErrMalformedSourceDocument aborts a posting built from an invalid document.
	ErrMalformedSourceDocument = documents.ErrMalformed
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = shared.ErrUnbalanced
	// ErrSourceAlreadyLinked indicates the document already produced an entry.
	ErrSourceAlreadyLinked = shared.ErrSourceAlreadyLinked
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = shared.ErrJournalNotFound
)
