package audit

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TimelineFilters narrows the audit timeline. Zero values match everything.
// From and To are calendar days, both inclusive.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit record as shown on the timeline.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow     `json:"rows"`
	Paging shared.Pagination `json:"paging"`
}
