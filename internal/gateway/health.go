// ABOUTME: Liveness and readiness reporting over HTTP and the gRPC health service
// ABOUTME: Ready means the registry is sealed and the document store answers a ping

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// pingTimeout bounds a single readiness probe against the data source.
const pingTimeout = 2 * time.Second

// checkReady returns nil when the gateway can serve tool calls.
func (g *Gateway) checkReady(ctx context.Context) error {
	if !g.registry.Sealed() {
		return errors.New("tool registry not sealed")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := g.source.Ping(ctx); err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	return nil
}

// updateHealth mirrors readiness into the gRPC health service.
func (g *Gateway) updateHealth(ctx context.Context) error {
	err := g.checkReady(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.healthServer.SetServingStatus("", status)
	return err
}

// watchReadiness refreshes the gRPC health status until ctx is canceled.
func (g *Gateway) watchReadiness(ctx context.Context) {
	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		err := g.updateHealth(ctx)
		if (err == nil) != (lastErr == nil) {
			if err != nil {
				g.logger.Warn("gateway not ready", "error", err)
			} else {
				g.logger.Info("gateway ready")
			}
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the gateway can serve tool calls.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.updateHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d tools, %d sessions)", g.registry.Len(), g.sessions.Len())
}
