package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditJob writes mutation audit entries into audit_logs.
type AuditJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditJob constructs the audit job handler.
func NewAuditJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditJob {
	return &AuditJob{pool: pool, logger: logger}
}

// HandleRecord processes TaskAuditRecord tasks.
func (j *AuditJob) HandleRecord(ctx context.Context, t *asynq.Task) error {
	var payload AuditRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	occurredAt := payload.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err := j.pool.Exec(ctx, `
		INSERT INTO audit_logs (mutation_id, actor_id, verb, entity, entity_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		payload.MutationID, payload.ActorID, payload.Verb, payload.Entity, payload.EntityID, occurredAt)
	if err != nil && j.logger != nil {
		j.logger.Error("record audit entry", slog.Any("error", err))
	}
	return err
}

// HandlePrune processes TaskAuditPrune tasks.
func (j *AuditJob) HandlePrune(ctx context.Context, t *asynq.Task) error {
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM audit_logs WHERE occurred_at < NOW() - $1::interval`, retention.String())
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("audit prune", slog.Int64("removed", tag.RowsAffected()))
	}
	return nil
}
