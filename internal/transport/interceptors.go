package transport

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"dotclock/internal/metrics"
)

// MetricsInterceptor records request counts by status code and handling
// latency for every unary call.
func MetricsInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := methodName(info.FullMethod)
		m.RPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.RPCRequestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// LoggingInterceptor logs failed calls at warn level.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("RPC failed",
				zap.String("method", info.FullMethod),
				zap.Stringer("code", status.Code(err)),
				zap.Error(err))
		}
		return resp, err
	}
}

func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}
