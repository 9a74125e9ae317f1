package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReminderLogRepository appends fired reminder slots to Postgres for auditing.
// The log is best-effort: insert failures are logged and swallowed so they
// never block slot consumption.
type ReminderLogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReminderLogRepository(db *pgxpool.Pool, logger *zap.Logger) *ReminderLogRepository {
	return &ReminderLogRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the reminder_log table if it does not exist.
func (r *ReminderLogRepository) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS reminder_log (
            id         BIGSERIAL PRIMARY KEY,
            task_id    TEXT NOT NULL,
            slot       TEXT NOT NULL,
            channel    TEXT NOT NULL,
            delivered  BOOLEAN NOT NULL,
            fired_at   TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `
	_, err := r.db.Exec(ctx, query)
	return err
}

// Insert records one fired slot.
func (r *ReminderLogRepository) Insert(ctx context.Context, taskID, slot, channel string, delivered bool, firedAt time.Time) {
	query := `
        INSERT INTO reminder_log (task_id, slot, channel, delivered, fired_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := r.db.Exec(ctx, query, taskID, slot, channel, delivered, firedAt); err != nil {
		r.logger.Error("Failed to insert reminder log entry",
			zap.String("task_id", taskID),
			zap.String("slot", slot),
			zap.Error(err),
		)
	}
}
