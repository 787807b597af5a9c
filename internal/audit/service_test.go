package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/store"
	"github.com/odyssey-erp/odyssey-ledger/internal/store/memory"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func seedLogs(t *testing.T, st store.Store, logs ...shared.AuditLog) {
	t.Helper()
	recorder := shared.NewAuditLogger()
	require.NoError(t, st.WithTx(context.Background(), func(ctx context.Context, w store.Writer) error {
		for _, log := range logs {
			if err := recorder.Record(ctx, w, log); err != nil {
				return err
			}
		}
		return nil
	}))
}

func at(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC) }

func fixtureService(t *testing.T) *Service {
	t.Helper()
	st := memory.New()
	seedLogs(t, st,
		shared.AuditLog{Actor: "ana", Action: "posting.purchase", Entity: "purchase", EntityID: "p1", At: at(8, 8)},
		shared.AuditLog{Actor: "ana", Action: "inventory.receive", Entity: "product", EntityID: "widget", At: at(8, 8)},
		shared.AuditLog{Actor: "ben", Action: "posting.sale", Entity: "sale", EntityID: "s1", At: at(9, 9)},
		shared.AuditLog{Actor: "ben", Action: "inventory.issue", Entity: "product", EntityID: "widget", At: at(9, 9)},
		shared.AuditLog{Actor: "ben", Action: "posting.collection", Entity: "sale", EntityID: "s1", At: at(10, 10)},
	)
	return NewService(st)
}

func TestTimelinePagingNewestFirst(t *testing.T) {
	svc := fixtureService(t)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.Equal(t, "posting.collection", result.Rows[0].Action)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, result.Paging.TotalPages)

	last, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Rows, 1)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)

	beyond, err := svc.Timeline(context.Background(), TimelineFilters{Page: 9, PageSize: 2})
	require.NoError(t, err)
	require.Empty(t, beyond.Rows)
}

func TestTimelineFilters(t *testing.T) {
	svc := fixtureService(t)
	ctx := context.Background()

	rows, err := svc.Export(ctx, TimelineFilters{Entity: "product", EntityID: "widget"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.Export(ctx, TimelineFilters{Action: "posting."})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	rows, err = svc.Export(ctx, TimelineFilters{Actor: "ANA"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.Export(ctx, TimelineFilters{From: at(9, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, rows, 2, "both bounds are whole days")
}

func TestPageSizeIsCapped(t *testing.T) {
	svc := fixtureService(t)
	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, result.Paging.PerPage)
	require.Len(t, result.Rows, 5)
}
