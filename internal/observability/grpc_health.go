package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// HealthServer serves the standard gRPC health protocol and mirrors the
// readiness checks into it.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	checks map[string]HealthCheckFunc
	logger zerolog.Logger
}

// NewHealthServer creates a gRPC server exposing only the health service
func NewHealthServer(checks map[string]HealthCheckFunc, logger zerolog.Logger) *HealthServer {
	server := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    10 * time.Second,
		Timeout: 3 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{
		server: server,
		health: hs,
		checks: checks,
		logger: logger.With().Str("component", "grpc_health").Logger(),
	}
}

// Serve listens on addr until Stop is called
func (h *HealthServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return h.ServeListener(lis)
}

// ServeListener serves on an existing listener
func (h *HealthServer) ServeListener(lis net.Listener) error {
	h.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return h.server.Serve(lis)
}

// Refresh runs the readiness checks once and publishes the overall status
func (h *HealthServer) Refresh(ctx context.Context) bool {
	_, healthy := CheckDependencies(ctx, h.checks)
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(serviceName, status)
	return healthy
}

// Watch refreshes the status every interval until ctx is done
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.Refresh(ctx) {
				h.logger.Warn().Msg("Service not ready")
			}
		}
	}
}

// Stop marks the service as shutting down and stops the server
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

// CheckHealth asks the gRPC health service at target for the service status
func CheckHealth(ctx context.Context, target string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus(), nil
}
