package accounts

import (
	"context"
	"sync"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// Service loads and seeds the chart of accounts.
type Service struct {
	store store.Store
	repo  Repository

	mu    sync.RWMutex
	chart *Chart
}

// NewService constructs the chart service.
func NewService(st store.Store, repo Repository) *Service {
	return &Service{store: st, repo: repo}
}

// List returns the persisted accounts ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		accounts, err = s.repo.List(ctx, r)
		return err
	})
	return accounts, err
}

// Chart returns the validated tree, loading it on first use.
func (s *Service) Chart(ctx context.Context) (*Chart, error) {
	s.mu.RLock()
	chart := s.chart
	s.mu.RUnlock()
	if chart != nil {
		return chart, nil
	}
	accounts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	chart, err = NewChart(accounts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.chart = chart
	s.mu.Unlock()
	return chart, nil
}

// Seed installs accounts when the collection is empty. It reports whether
// anything was written.
func (s *Service) Seed(ctx context.Context, accounts []Account) (bool, error) {
	if _, err := NewChart(accounts); err != nil {
		return false, err
	}
	seeded := false
	err := s.store.WithTx(ctx, func(ctx context.Context, w store.Writer) error {
		existing, err := s.repo.List(ctx, w)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, acc := range accounts {
			if acc.Level == 0 {
				acc.Level = CodeLevel(acc.Code)
			}
			if acc.Parent == "" {
				acc.Parent = ParentCode(acc.Code)
			}
			if err := s.repo.Insert(ctx, w, acc); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.mu.Lock()
		s.chart = nil
		s.mu.Unlock()
	}
	return seeded, nil
}
