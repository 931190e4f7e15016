package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "cropchain"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter publishes the gRPC health status of the service. The
// service is SERVING while every dependency answers its ping.
type HealthReporter struct {
	server       *health.Server
	dependencies map[string]Pinger
	interval     time.Duration
	timeout      time.Duration
	logger       zerolog.Logger
}

func NewHealthReporter(dependencies map[string]Pinger, interval time.Duration, logger zerolog.Logger) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		server:       health.NewServer(),
		dependencies: dependencies,
		interval:     interval,
		timeout:      2 * time.Second,
		logger:       logger.With().Str("component", "health").Logger(),
	}
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Check pings every dependency once and updates the reported status.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range h.dependencies {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			h.logger.Warn().Err(err).Str("dependency", name).Msg("dependency ping failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run re-checks dependencies until ctx is done, then marks the service as
// shutting down.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
