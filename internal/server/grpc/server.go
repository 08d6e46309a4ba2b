// Package grpc serves the standard gRPC health protocol. Each configured
// model is a health service named "scanbill.model.<id>" that reports
// SERVING once its artifact is exported.
package grpc

import (
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ekisa-team/scanbill/internal/model"
)

// ServicePrefix prefixes the per-model health service names.
const ServicePrefix = "scanbill.model."

// Server wraps a gRPC server with a health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server

	mu    sync.Mutex
	known map[string]bool
}

// NewServer creates the server and registers the health and reflection
// services.
func NewServer(opts ...grpc.ServerOption) *Server {
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
		known:  map[string]bool{},
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	return s
}

// ServiceName is the health service name of a model.
func ServiceName(modelID string) string {
	return ServicePrefix + modelID
}

// UpdateModels publishes model statuses. The overall status ("") is SERVING
// when every model is exported. Models that disappeared become
// SERVICE_UNKNOWN.
func (s *Server) UpdateModels(snaps []model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]bool, len(snaps))
	overall := healthpb.HealthCheckResponse_SERVING
	for _, snap := range snaps {
		name := ServiceName(snap.ID)
		current[name] = true

		status := healthpb.HealthCheckResponse_NOT_SERVING
		if snap.Status == model.ModelStatusExported {
			status = healthpb.HealthCheckResponse_SERVING
		} else {
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(name, status)
	}

	for name := range s.known {
		if !current[name] {
			s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
		}
	}
	s.known = current

	s.health.SetServingStatus("", overall)
	slog.Debug("gRPC health updated", "models", len(snaps), "overall", overall)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
