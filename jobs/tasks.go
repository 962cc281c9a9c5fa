// Package jobs defines the background task catalog and the Asynq worker.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one mutation audit entry.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune removes audit entries past retention.
	TaskAuditPrune = "audit:prune"
)

// AuditRecordPayload describes a committed mutation for the audit trail.
type AuditRecordPayload struct {
	MutationID string    `json:"mutation_id"`
	ActorID    int64     `json:"actor_id"`
	Verb       string    `json:"verb"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAuditRecordTask constructs an audit record task.
func NewAuditRecordTask(payload AuditRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.Queue(QueueDefault)), nil
}

// AuditPrunePayload bounds the retention sweep.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditPruneTask constructs a retention sweep task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data, asynq.Queue(QueueDefault)), nil
}
