package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteExpirySweep marks overdue quotes as expired.
	TaskQuoteExpirySweep = "quotes:expiry_sweep"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "housekeeping:idempotency_cleanup"
)

// SweepPayload carries scheduling metadata for the quote expiry sweep.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewQuoteExpirySweepTask constructs an Asynq task for the expiry sweep.
func NewQuoteExpirySweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpirySweep, body, asynq.Queue(QueueDefault)), nil
}

// QuoteSweeper expires every quote whose validity window has passed.
type QuoteSweeper interface {
	MarkExpired(ctx context.Context) (int64, error)
}

// NewQuoteExpirySweepHandler returns the handler processing sweep tasks.
// The sweep is idempotent, so retries after partial failures are safe.
func NewQuoteExpirySweepHandler(sweeper QuoteSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		count, err := sweeper.MarkExpired(ctx)
		if err != nil {
			logger.Error("quote expiry sweep", slog.Any("error", err))
			return err
		}
		logger.Info("quote expiry sweep complete",
			slog.Int64("expired", count),
			slog.Time("scheduled_for", payload.ScheduledFor))
		return nil
	}
}

// CleanupPayload configures how far back the idempotency prune reaches.
type CleanupPayload struct {
	RetainHours int `json:"retain_hours"`
}

// NewIdempotencyCleanupTask constructs the housekeeping task.
func NewIdempotencyCleanupTask(retain time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetainHours: int(retain.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// KeyPruner removes idempotency keys older than the retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler returns the handler for cleanup tasks.
func NewIdempotencyCleanupHandler(pruner KeyPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retain := time.Duration(payload.RetainHours) * time.Hour
		if retain <= 0 {
			retain = 24 * time.Hour
		}
		if err := pruner.Cleanup(ctx, retain); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup complete", slog.Duration("retained", retain))
		return nil
	}
}
