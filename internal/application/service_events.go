package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/domain"
)

const notifyTimeout = 5 * time.Second

// notify hands a notification to the gateway after the primary write has committed.
// Failures are logged and swallowed; they never undo or fail the caller's operation.
func (s *Service) notify(ctx context.Context, kind domain.NotificationKind, recipient string, userID *uuid.UUID, data map[string]string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	err := s.notifier.Notify(ctx, domain.Notification{
		Kind:       kind,
		Recipient:  recipient,
		UserID:     userID,
		Data:       data,
		OccurredAt: s.nowFn(),
	})
	if err != nil {
		appLogger().WarnContext(ctx, "notification enqueue failed",
			"operation", "notify",
			"outcome", "failure",
			"notification_kind", string(kind),
			"error", err,
		)
	}
}
