package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity recomputes the trial balance and flags an unbalanced ledger.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskKardexReconcile replays every product Kardex and reports drift.
	TaskKardexReconcile = "inventory:kardex_reconcile"
)

// ScheduledPayload carries scheduling metadata shared by the ledger tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	RequestedBy  string    `json:"requested_by,omitempty"`
}

// NewGLIntegrityTask constructs an Asynq task for the ledger integrity check.
func NewGLIntegrityTask(payload ScheduledPayload) (*asynq.Task, error) {
	return newScheduledTask(TaskGLIntegrity, payload)
}

// NewKardexReconcileTask constructs an Asynq task for the Kardex sweep.
func NewKardexReconcileTask(payload ScheduledPayload) (*asynq.Task, error) {
	return newScheduledTask(TaskKardexReconcile, payload)
}

func newScheduledTask(kind string, payload ScheduledPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(kind, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func decodeScheduled(t *asynq.Task) (ScheduledPayload, error) {
	var payload ScheduledPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
