// Package posting turns source documents into ledger entries. Each posting
// is one logical unit: the journal entry, its source link, the inventory
// mutation and the document status change commit together or not at all.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// ErrNothingToSettle is returned when a collection or settlement targets a
// document that is not an open credit document.
var ErrNothingToSettle = errors.New("posting: document has nothing to settle")

// Metrics counts successful postings per source.
type Metrics interface {
	Posted(source string)
}

// AuditPort records audit entries inside the posting transaction.
type AuditPort interface {
	Record(ctx context.Context, w store.Writer, log shared.AuditLog) error
}

// Config tunes posting behaviour.
type Config struct {
	// MaxRetries is how many times a posting is retried after a store conflict.
	MaxRetries int
}

// Result is the outcome of a posting.
type Result struct {
	Entry    journals.JournalEntry            `json:"entry"`
	Warnings []inventory.NegativeStockWarning `json:"warnings,omitempty"`
}

// Service orchestrates postings.
type Service struct {
	store     store.Store
	charts    journals.ChartSource
	ledger    journals.Repository
	docs      documents.Repository
	inventory *inventory.Service
	audit     AuditPort
	metrics   Metrics
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// NewService wires the posting orchestrator. audit may be nil.
func NewService(st store.Store, charts journals.ChartSource, ledger journals.Repository, docs documents.Repository, inv *inventory.Service, audit AuditPort, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Service{store: st, charts: charts, ledger: ledger, docs: docs, inventory: inv, audit: audit, logger: logger, cfg: cfg, now: time.Now}
}

// WithMetrics registers a posting counter.
func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

// WithNow overrides the clock used for collection and settlement dates.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) factory(ctx context.Context) (*journals.Factory, error) {
	chart, err := s.charts.Chart(ctx)
	if err != nil {
		return nil, err
	}
	f := journals.NewFactory(chart)
	f.WithNow(s.now)
	return f, nil
}

// PostSaleEntry posts a sale: revenue entry, stock issue per line and the
// cost snapshot stored back on the sale.
func (s *Service) PostSaleEntry(ctx context.Context, saleID string) (Result, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return Result{}, err
	}
	var sale documents.SaleDocument
	if err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		sale, err = s.docs.GetSale(ctx, r, saleID)
		return err
	}); err != nil {
		return Result{}, err
	}
	ids := make([]string, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		ids = append(ids, line.ProductID)
	}
	release, err := inventory.LockProducts(ctx, s.inventory.Locker(), ids)
	if err != nil {
		return Result{}, err
	}
	defer release()

	var res Result
	err = s.withRetry(ctx, func(ctx context.Context, w store.Writer) error {
		res = Result{}
		sale, err := s.docs.GetSale(ctx, w, saleID)
		if err != nil {
			return err
		}
		entry, err := factory.BuildSaleEntry(sale)
		if err != nil {
			return err
		}
		if res.Entry, err = s.append(ctx, w, entry, journals.LinkSale, sale.ID); err != nil {
			return err
		}
		lines := make([]documents.SaleLine, len(sale.Lines))
		copy(lines, sale.Lines)
		for i, line := range lines {
			issued, err := s.inventory.IssueInTx(ctx, w, line.ProductID, line.Quantity, sale.Number)
			if err != nil {
				return fmt.Errorf("posting: sale %s line %d: %w", sale.Number, i+1, err)
			}
			if issued.Warning != nil {
				res.Warnings = append(res.Warnings, *issued.Warning)
			}
			if line.UnitCost == nil {
				cost := issued.UnitCost
				lines[i].UnitCost = &cost
			}
		}
		if err := s.docs.MarkSalePosted(ctx, w, sale.ID, res.Entry.ID, res.Entry.Number, lines); err != nil {
			return err
		}
		return s.record(ctx, w, "posting.sale", "sale", sale.ID, res.Entry)
	})
	if err != nil {
		return Result{}, err
	}
	s.posted(res.Entry)
	return res, nil
}

// PostPurchaseEntry posts a purchase: inventory entry and a stock receipt per line.
func (s *Service) PostPurchaseEntry(ctx context.Context, purchaseID string) (Result, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return Result{}, err
	}
	var purchase documents.PurchaseDocument
	if err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		purchase, err = s.docs.GetPurchase(ctx, r, purchaseID)
		return err
	}); err != nil {
		return Result{}, err
	}
	ids := make([]string, 0, len(purchase.Lines))
	for _, line := range purchase.Lines {
		ids = append(ids, line.ProductID)
	}
	release, err := inventory.LockProducts(ctx, s.inventory.Locker(), ids)
	if err != nil {
		return Result{}, err
	}
	defer release()

	var res Result
	err = s.withRetry(ctx, func(ctx context.Context, w store.Writer) error {
		res = Result{}
		purchase, err := s.docs.GetPurchase(ctx, w, purchaseID)
		if err != nil {
			return err
		}
		entry, err := factory.BuildPurchaseEntry(purchase)
		if err != nil {
			return err
		}
		if res.Entry, err = s.append(ctx, w, entry, journals.LinkPurchase, purchase.ID); err != nil {
			return err
		}
		for i, line := range purchase.Lines {
			if _, err := s.inventory.ReceiveInTx(ctx, w, line.ProductID, line.Quantity, *line.UnitCost, purchase.Number); err != nil {
				return fmt.Errorf("posting: purchase %s line %d: %w", purchase.Number, i+1, err)
			}
		}
		if err := s.docs.MarkPurchasePosted(ctx, w, purchase.ID, res.Entry.ID, res.Entry.Number); err != nil {
			return err
		}
		return s.record(ctx, w, "posting.purchase", "purchase", purchase.ID, res.Entry)
	})
	if err != nil {
		return Result{}, err
	}
	s.posted(res.Entry)
	return res, nil
}

// PostCollection records the customer payment of an open credit sale.
func (s *Service) PostCollection(ctx context.Context, saleID string) (Result, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = s.withRetry(ctx, func(ctx context.Context, w store.Writer) error {
		res = Result{}
		sale, err := s.docs.GetSale(ctx, w, saleID)
		if err != nil {
			return err
		}
		if !sale.IsCredit() || sale.Paid {
			return fmt.Errorf("%w: sale %s", ErrNothingToSettle, sale.Number)
		}
		entry, err := factory.BuildCollectionEntry(sale)
		if err != nil {
			return err
		}
		if res.Entry, err = s.append(ctx, w, entry, journals.LinkCollection, sale.ID); err != nil {
			return err
		}
		if err := s.docs.MarkSalePaid(ctx, w, sale.ID); err != nil {
			return err
		}
		return s.record(ctx, w, "posting.collection", "sale", sale.ID, res.Entry)
	})
	if err != nil {
		return Result{}, err
	}
	s.posted(res.Entry)
	return res, nil
}

// PostSettlement records the payment of an open credit purchase.
func (s *Service) PostSettlement(ctx context.Context, purchaseID string) (Result, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = s.withRetry(ctx, func(ctx context.Context, w store.Writer) error {
		res = Result{}
		purchase, err := s.docs.GetPurchase(ctx, w, purchaseID)
		if err != nil {
			return err
		}
		if !purchase.IsCredit() || purchase.Paid {
			return fmt.Errorf("%w: purchase %s", ErrNothingToSettle, purchase.Number)
		}
		entry, err := factory.BuildSettlementEntry(purchase)
		if err != nil {
			return err
		}
		if res.Entry, err = s.append(ctx, w, entry, journals.LinkSettlement, purchase.ID); err != nil {
			return err
		}
		if err := s.docs.MarkPurchasePaid(ctx, w, purchase.ID); err != nil {
			return err
		}
		return s.record(ctx, w, "posting.settlement", "purchase", purchase.ID, res.Entry)
	})
	if err != nil {
		return Result{}, err
	}
	s.posted(res.Entry)
	return res, nil
}

func (s *Service) append(ctx context.Context, w store.Writer, entry journals.JournalEntry, kind, sourceID string) (journals.JournalEntry, error) {
	if _, err := s.ledger.FindSourceLink(ctx, w, kind, sourceID); err == nil {
		return journals.JournalEntry{}, fmt.Errorf("%w: %s %s", journals.ErrSourceAlreadyLinked, kind, sourceID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return journals.JournalEntry{}, err
	}
	saved, err := s.ledger.Append(ctx, w, entry)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	if err := s.ledger.LinkSource(ctx, w, kind, sourceID, saved.ID); err != nil {
		return journals.JournalEntry{}, err
	}
	return saved, nil
}

// withRetry runs fn in a transaction, retrying on store conflicts.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context, store.Writer) error) error {
	for attempt := 0; ; attempt++ {
		err := s.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, store.ErrConflict) || attempt >= s.cfg.MaxRetries {
			return err
		}
		s.logger.Warn("posting conflict, retrying", slog.Int("attempt", attempt+1), slog.Any("error", err))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Service) record(ctx context.Context, w store.Writer, action, entity, entityID string, entry journals.JournalEntry) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, w, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta: map[string]any{
			"entry_id": entry.ID,
			"number":   entry.Number,
			"total":    entry.TotalDebit.StringFixed(2),
		},
	})
}

func (s *Service) posted(entry journals.JournalEntry) {
	s.logger.Info("journal posted",
		slog.String("id", entry.ID),
		slog.Int64("number", entry.Number),
		slog.String("source", string(entry.SourceType)),
		slog.String("source_id", entry.SourceID))
	if s.metrics != nil {
		s.metrics.Posted(string(entry.SourceType))
	}
}
