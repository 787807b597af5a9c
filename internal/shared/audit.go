package shared

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/store"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor    string         `json:"actor,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditLogger writes records into the audit_logs collection. Records are
// written through the caller's transaction so they commit or roll back with
// the change they describe.
type AuditLogger struct {
	now func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{now: time.Now}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, w store.Writer, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.Actor == "" {
		log.Actor = ActorFromContext(ctx)
	}
	if log.At.IsZero() {
		log.At = l.now()
	}
	_, err := store.AppendJSON(ctx, w, store.CollectionAuditLogs, log)
	return err
}

// List returns audit records for one entity, oldest first.
func (l *AuditLogger) List(ctx context.Context, r store.Reader, entity, entityID string) ([]AuditLog, error) {
	logs, _, err := store.ListAs[AuditLog](ctx, r, store.CollectionAuditLogs)
	if err != nil {
		return nil, err
	}
	out := logs[:0]
	for _, log := range logs {
		if log.Entity == entity && (entityID == "" || log.EntityID == entityID) {
			out = append(out, log)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}
