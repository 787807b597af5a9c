package journals

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// ChartSource supplies the current chart of accounts.
type ChartSource interface {
	Chart(ctx context.Context) (*accounts.Chart, error)
}

// AuditPort records audit entries inside the posting transaction.
type AuditPort interface {
	Record(ctx context.Context, w store.Writer, log internalShared.AuditLog) error
}

// Service posts manual entries and lists the ledger.
type Service struct {
	store  store.Store
	repo   Repository
	charts ChartSource
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the journal service. audit may be nil.
func NewService(st store.Store, repo Repository, charts ChartSource, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, repo: repo, charts: charts, audit: audit, logger: logger}
}

// List returns every posted entry in insertion order.
func (s *Service) List(ctx context.Context) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		entries, err = s.repo.List(ctx, r)
		return err
	})
	return entries, err
}

// Get loads one entry.
func (s *Service) Get(ctx context.Context, id string) (JournalEntry, error) {
	var entry JournalEntry
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		entry, err = s.repo.Get(ctx, r, id)
		return err
	})
	return entry, err
}

// Post validates and persists a manual balanced entry.
func (s *Service) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	chart, err := s.charts.Chart(ctx)
	if err != nil {
		return JournalEntry{}, err
	}
	entry, err := NewFactory(chart).BuildManualEntry(input)
	if err != nil {
		return JournalEntry{}, err
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, w store.Writer) error {
		entry, err = s.repo.Append(ctx, w, entry)
		if err != nil {
			return err
		}
		if s.audit == nil {
			return nil
		}
		return s.audit.Record(ctx, w, internalShared.AuditLog{
			Action:   "journal.post",
			Entity:   "journal_entry",
			EntityID: entry.ID,
			Meta: map[string]any{
				"number":      entry.Number,
				"source_type": string(entry.SourceType),
				"total":       entry.TotalDebit.StringFixed(2),
			},
		})
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.logger.Info("journal posted", slog.String("id", entry.ID), slog.Int64("number", entry.Number), slog.String("source", string(entry.SourceType)))
	return entry, nil
}
