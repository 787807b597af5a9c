package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Service reads the audit trail written by postings and inventory mutations.
type Service struct {
	store store.Store
}

// NewService creates an audit timeline service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Timeline returns one page of matching records, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	rows, err := s.Export(ctx, filters)
	if err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	paging := shared.NewPagination(filters.Page, pageSize, len(rows))
	start, end := paging.Bounds()
	return Result{Rows: rows[start:end], Paging: paging}, nil
}

// Export returns every matching record without paging, newest first.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.store == nil {
		return nil, fmt.Errorf("audit: store not configured")
	}
	var logs []shared.AuditLog
	err := s.store.Snapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		logs, _, err = store.ListAs[shared.AuditLog](ctx, r, store.CollectionAuditLogs)
		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make([]TimelineRow, 0, len(logs))
	for _, log := range logs {
		if !filters.match(log) {
			continue
		}
		rows = append(rows, TimelineRow{
			At:       log.At,
			Actor:    log.Actor,
			Action:   log.Action,
			Entity:   log.Entity,
			EntityID: log.EntityID,
			Meta:     log.Meta,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	return rows, nil
}

func (f TimelineFilters) match(log shared.AuditLog) bool {
	if !f.From.IsZero() && log.At.Before(startOfDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && !log.At.Before(startOfDay(f.To).AddDate(0, 0, 1)) {
		return false
	}
	if f.Actor != "" && !strings.EqualFold(log.Actor, f.Actor) {
		return false
	}
	if f.Entity != "" && log.Entity != f.Entity {
		return false
	}
	if f.EntityID != "" && log.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && !strings.HasPrefix(log.Action, f.Action) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
