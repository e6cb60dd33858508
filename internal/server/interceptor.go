package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/financials-mapper/internal/common"
)

// RequestIDHeader is read from incoming metadata and echoed back.
const RequestIDHeader = "x-request-id"

// UnaryLogging tags each call with a request id and logs its outcome.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := requestID(ctx)
		ctx = common.WithRequestID(ctx, rid)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, rid))

		resp, err := handler(ctx, req)
		err = common.ToStatus(err)
		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"req_id", rid,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch code {
		case codes.OK:
			logger.Info("grpc.ok", attrs...)
		case codes.Internal, codes.Unknown, codes.DataLoss:
			logger.Error("grpc.failed", append(attrs, "error", err)...)
		default:
			logger.Warn("grpc.rejected", append(attrs, "error", err)...)
		}
		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}
