package ports

import (
	"context"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

// NotificationGateway accepts templated notifications. It decides nothing about delivery.
type NotificationGateway interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventPublisher is the outbound broker port used by the outbox worker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
