package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/metrics"
)

// ObservabilityInterceptor logs every internal call and counts it by status code.
func ObservabilityInterceptor(logger *slog.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		m.ObserveGRPC(info.FullMethod, code.String())

		fields := []any{
			"module", "grpc",
			"layer", "adapter",
			"operation", "grpc_request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.WarnContext(ctx, "grpc request completed", append(fields, "outcome", "failure", "error", err)...)
			return resp, err
		}
		logger.InfoContext(ctx, "grpc request completed", append(fields, "outcome", "success")...)
		return resp, nil
	}
}
