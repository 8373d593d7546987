package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// OutboxNotifier is the notification gateway: it serializes a notification into the
// outbox table and leaves delivery to the OutboxWorker.
type OutboxNotifier struct {
	outbox  ports.OutboxRepository
	metrics *metrics.Metrics
	nowFn   func() time.Time
}

func NewOutboxNotifier(outbox ports.OutboxRepository, m *metrics.Metrics) *OutboxNotifier {
	return &OutboxNotifier{
		outbox:  outbox,
		metrics: m,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (n *OutboxNotifier) Notify(ctx context.Context, note domain.Notification) error {
	if note.OccurredAt.IsZero() {
		note.OccurredAt = n.nowFn()
	}
	payload, err := json.Marshal(note)
	if err != nil {
		n.metrics.NotificationQueued(string(note.Kind), "failure")
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    string(note.Kind),
		PartitionKey: note.Recipient,
		Payload:      payload,
		OccurredAt:   note.OccurredAt,
	}); err != nil {
		n.metrics.NotificationQueued(string(note.Kind), "failure")
		return fmt.Errorf("enqueue notification: %w", err)
	}
	n.metrics.NotificationQueued(string(note.Kind), "success")
	return nil
}
