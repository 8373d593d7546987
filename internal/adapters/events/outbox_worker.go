package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// WorkerConfig tunes the outbox loop. Zero fields fall back to defaults.
type WorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

// OutboxWorker leases pending notifications and hands them to the publisher.
// Records that keep failing are dead-lettered after MaxRetries attempts.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	metrics   *metrics.Metrics
	cfg       WorkerConfig
	nowFn     func() time.Time
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	m *metrics.Metrics,
	cfg WorkerConfig,
) *OutboxWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxWorker{
		logger:    logger,
		outbox:    outbox,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled and then returns ctx.Err().
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.cfg.BatchSize, claimToken, w.nowFn().Add(w.cfg.ClaimTTL))
	if err != nil {
		return err
	}

	var published, failed, deadLettered int
	for _, rec := range records {
		if rec.RetryCount >= w.cfg.MaxRetries {
			deadLettered++
			w.settle(ctx, rec, "dead_lettered", w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", w.nowFn()))
			continue
		}

		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			failed++
			attempts := rec.RetryCount + 1
			if attempts >= w.cfg.MaxRetries {
				deadLettered++
				w.logger.ErrorContext(ctx, "outbox message moved to dlq",
					"module", "events.outbox_worker",
					"layer", "adapter",
					"operation", "publish_event",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"event_type", rec.EventType,
					"retry_count", attempts,
					"error", err,
				)
				w.settle(ctx, rec, "dead_lettered", w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), w.nowFn()))
				continue
			}

			w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", attempts,
				"error", err,
			)
			w.settle(ctx, rec, "failed", w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), w.nowFn()))
			continue
		}
		published++
		w.settle(ctx, rec, "published", w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, w.nowFn()))
	}

	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}

// settle records the delivery outcome. A failed mark leaves the lease to expire and
// the record is picked up again by a later batch.
func (w *OutboxWorker) settle(ctx context.Context, rec ports.OutboxRecord, outcome string, markErr error) {
	w.metrics.OutboxDelivery(rec.EventType, outcome)
	if markErr == nil {
		return
	}
	w.logger.WarnContext(ctx, "outbox state not persisted",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "mark_"+outcome,
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"error", markErr,
	)
}
