package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher stands in for a broker in local runs. Payloads carry codes and link
// hashes, so they are only emitted at debug level.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "notification published",
		"module", "events.logging_publisher",
		"layer", "adapter",
		"event_type", eventType,
		"payload_bytes", len(payload),
	)
	p.logger.DebugContext(ctx, "notification payload",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload", string(payload),
	)
	return nil
}

func (p *LoggingPublisher) Close() error { return nil }
