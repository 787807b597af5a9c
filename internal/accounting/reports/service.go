package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// Observer is notified when a trial balance comes out unbalanced.
type Observer interface {
	Unbalanced(w UnbalancedWarning)
}

// Service builds every report inside a single store snapshot, so a report
// never mixes ledger states.
type Service struct {
	store    store.Store
	ledger   journals.Repository
	charts   journals.ChartSource
	products inventory.Repository
	docs     documents.Repository
	observer Observer
	logger   *slog.Logger
}

// NewService constructs the report service.
func NewService(st store.Store, ledger journals.Repository, charts journals.ChartSource, products inventory.Repository, docs documents.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, ledger: ledger, charts: charts, products: products, docs: docs, logger: logger}
}

// WithObserver registers an observer for imbalance detection.
func (s *Service) WithObserver(o Observer) {
	s.observer = o
}

func (s *Service) ledgerView(ctx context.Context, fn func(*accounts.Chart, []journals.JournalEntry) error) error {
	chart, err := s.charts.Chart(ctx)
	if err != nil {
		return err
	}
	return s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		entries, err := s.ledger.List(ctx, r)
		if err != nil {
			return err
		}
		return fn(chart, entries)
	})
}

// GeneralLedger returns the running balance of one account over [from, to].
func (s *Service) GeneralLedger(ctx context.Context, code string, from, to time.Time) (LedgerReport, error) {
	var report LedgerReport
	err := s.ledgerView(ctx, func(chart *accounts.Chart, entries []journals.JournalEntry) error {
		var err error
		report, err = GeneralLedger(chart, entries, code, from, to)
		return err
	})
	return report, err
}

// TrialBalance aggregates the whole ledger. An imbalance is reported in the
// result's Warning, not as an error.
func (s *Service) TrialBalance(ctx context.Context) (TrialBalanceReport, error) {
	var report TrialBalanceReport
	err := s.ledgerView(ctx, func(chart *accounts.Chart, entries []journals.JournalEntry) error {
		report = ComputeTrialBalance(chart, entries)
		return nil
	})
	if err != nil {
		return TrialBalanceReport{}, err
	}
	s.inspect(report)
	return report, nil
}

// GroupedTrialBalance is TrialBalance grouped by account class.
func (s *Service) GroupedTrialBalance(ctx context.Context) (TrialBalance, error) {
	var grouped TrialBalance
	var report TrialBalanceReport
	err := s.ledgerView(ctx, func(chart *accounts.Chart, entries []journals.JournalEntry) error {
		report = ComputeTrialBalance(chart, entries)
		grouped = BuildTrialBalance(chart, report)
		return nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	s.inspect(report)
	return grouped, nil
}

func (s *Service) inspect(report TrialBalanceReport) {
	if len(report.Skipped) > 0 {
		s.logger.Warn("trial balance skipped non detail accounts", slog.Any("codes", report.Skipped))
	}
	if report.Warning == nil {
		return
	}
	s.logger.Error("trial balance unbalanced",
		slog.String("debit", report.Warning.TotalDebit.StringFixed(2)),
		slog.String("credit", report.Warning.TotalCredit.StringFixed(2)),
		slog.String("difference", report.Warning.Difference.StringFixed(2)))
	if s.observer != nil {
		s.observer.Unbalanced(*report.Warning)
	}
}

// BalanceSheet builds the operational basis balance sheet.
func (s *Service) BalanceSheet(ctx context.Context) (OperationalBalanceSheet, error) {
	var bs OperationalBalanceSheet
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		products, err := s.products.List(ctx, r)
		if err != nil {
			return err
		}
		sales, err := s.docs.ListSales(ctx, r)
		if err != nil {
			return err
		}
		purchases, err := s.docs.ListPurchases(ctx, r)
		if err != nil {
			return err
		}
		bs = BuildOperationalBalanceSheet(products, sales, purchases)
		return nil
	})
	return bs, err
}

// IncomeStatement builds the operational basis income statement.
func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	var is IncomeStatement
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		sales, err := s.docs.ListSales(ctx, r)
		if err != nil {
			return err
		}
		purchases, err := s.docs.ListPurchases(ctx, r)
		if err != nil {
			return err
		}
		is = BuildIncomeStatement(sales, purchases, from, to)
		return nil
	})
	return is, err
}

// LedgerBalanceSheet builds the balance sheet from trial balance rows.
func (s *Service) LedgerBalanceSheet(ctx context.Context) (BalanceSheet, error) {
	var bs BalanceSheet
	err := s.ledgerView(ctx, func(chart *accounts.Chart, entries []journals.JournalEntry) error {
		bs = BuildBalanceSheet(ComputeTrialBalance(chart, entries).Rows)
		return nil
	})
	return bs, err
}

// LedgerIncomeStatement builds profit and loss from entries dated in [from, to].
func (s *Service) LedgerIncomeStatement(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	var pl ProfitAndLoss
	err := s.ledgerView(ctx, func(chart *accounts.Chart, entries []journals.JournalEntry) error {
		inPeriod := make([]journals.JournalEntry, 0, len(entries))
		for _, entry := range entries {
			if inRange(entry.Date, from, to) {
				inPeriod = append(inPeriod, entry)
			}
		}
		pl = BuildProfitAndLoss(ComputeTrialBalance(chart, inPeriod).Rows)
		return nil
	})
	return pl, err
}
