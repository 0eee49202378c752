// gRPC surface of a graph store: the standard health service, reflection
// and request metrics
package server

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/graphstore/internal/logger"
	"github.com/nainya/graphstore/internal/metrics"
	"github.com/nainya/graphstore/pkg/store"
)

// ServiceName is the health service name reported for the store
const ServiceName = "graphstore.GraphStore"

// Server serves gRPC health for one store
type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	store   *store.Store
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewServer wires the health service and the metrics interceptor
func NewServer(s *store.Store, m *metrics.Metrics, log *logger.Logger) *Server {
	srv := &Server{
		grpc: grpc.NewServer(
			grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)),
		),
		health:  health.NewServer(),
		store:   s,
		metrics: m,
		log:     log,
	}

	healthpb.RegisterHealthServer(srv.grpc, srv.health)
	reflection.Register(srv.grpc)
	srv.setServing(false)
	return srv
}

// GRPC returns the underlying gRPC server so callers can register more services
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Ready checks that the store can open a read view
func (s *Server) Ready(ctx context.Context) error {
	return s.store.Read(ctx, func(*store.Snapshot) error { return nil })
}

// Serve marks the store serving and blocks until the listener closes
func (s *Server) Serve(lis net.Listener) error {
	s.setServing(true)
	return s.grpc.Serve(lis)
}

// Watch refreshes the store gauges every interval and flips the health
// status when the store stops answering. It returns when ctx is done.
func (s *Server) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := s.store.Stats(ctx)
		if err != nil {
			s.log.Warn("store stats failed").Err(err).Send()
			s.setServing(false)
			continue
		}
		s.setServing(true)
		if s.metrics != nil {
			s.metrics.UpdateDbStats(st.SizeBytes, st.Nodes, st.Edges, st.Entities)
		}
		s.log.Debug("store stats").
			Int("nodes", st.Nodes).
			Int("edges", st.Edges).
			Int("entities", st.Entities).
			Send()
	}
}

// Stop drains in-flight calls until ctx expires, then closes connections
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func (s *Server) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
