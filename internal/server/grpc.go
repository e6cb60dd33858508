package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// envelope leaves room for field names and base64 growth around a document.
const envelope = 1 << 20

// NewGRPCServer builds a server with the FieldMapper and health services
// registered and both marked SERVING. maxDocBytes sizes the receive limit.
func NewGRPCServer(svc FieldMapperServer, maxDocBytes int64, logger *slog.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryLogging(logger))}
	if maxDocBytes > 0 {
		// base64 inflates by 4/3
		opts = append(opts,
			grpc.MaxRecvMsgSize(int(maxDocBytes*4/3)+envelope),
			grpc.MaxSendMsgSize(int(maxDocBytes*4/3)+envelope),
		)
	}
	gs := grpc.NewServer(opts...)
	RegisterFieldMapperServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}
