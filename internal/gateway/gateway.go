// ABOUTME: Gateway orchestrator that builds the tool registry and serves it over HTTP and gRPC
// ABOUTME: Manages the data source, session store, audit log, telemetry and listener lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/tsnet"

	"github.com/2389/tool-gateway/internal/config"
	"github.com/2389/tool-gateway/internal/mcp"
	"github.com/2389/tool-gateway/internal/session"
	"github.com/2389/tool-gateway/internal/store"
	"github.com/2389/tool-gateway/internal/telemetry"
	"github.com/2389/tool-gateway/internal/toolbox"
	"github.com/2389/tool-gateway/internal/traffic"
)

// readinessInterval is how often the gRPC health status is refreshed.
const readinessInterval = 15 * time.Second

// Gateway orchestrates the tool-gateway server components.
type Gateway struct {
	config       *config.Config
	source       traffic.Source
	closeSource  func(context.Context) error
	registry     *toolbox.Registry
	dispatcher   *toolbox.Dispatcher
	sessions     *session.Store
	audit        *store.SQLiteStore
	telemetry    *telemetry.Provider
	mcpServer    *mcp.Server
	grpcServer   *grpc.Server
	healthServer *health.Server
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger
}

// New connects to MongoDB and builds a Gateway from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	src, err := traffic.NewMongoSource(ctx, traffic.MongoConfig{
		URI:            cfg.Mongo.URI,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		QueryTimeout:   cfg.Mongo.QueryTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	gw, err := NewWithSource(ctx, cfg, src, logger)
	if err != nil {
		_ = src.Close(context.Background())
		return nil, err
	}
	gw.closeSource = src.Close
	return gw, nil
}

// NewWithSource builds a Gateway over an existing data source. The registry is
// populated and sealed before this returns.
func NewWithSource(ctx context.Context, cfg *config.Config, src traffic.Source, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config: cfg,
		source: src,
		logger: logger.With("component", "gateway"),
	}

	gw.registry = toolbox.NewRegistry(logger.With("component", "registry"))
	if _, err := traffic.Register(gw.registry, src, traffic.Config{
		TrafficDatabase:      cfg.Mongo.TrafficDatabase,
		MeasurementsDatabase: cfg.Mongo.MeasurementsDatabase,
		Collection:           cfg.Mongo.Collection,
		Logger:               logger,
	}); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	gw.registry.Seal()
	gw.logger.Info("tool registry sealed", "tools", gw.registry.Len())

	observers, err := gw.initObservers(ctx)
	if err != nil {
		gw.closeOptionalComponents(context.Background())
		return nil, err
	}

	gw.dispatcher = toolbox.NewDispatcher(toolbox.DispatcherConfig{
		Registry:  gw.registry,
		Logger:    logger.With("component", "dispatcher"),
		Observers: observers,
	})
	gw.sessions = session.New(cfg.Sessions.TTL, cfg.Sessions.MaxEntries)

	mcpCfg := mcp.Config{
		Dispatcher: gw.dispatcher,
		Sessions:   gw.sessions,
		Logger:     logger,
		Info: mcp.ServerInfo{
			Name:        cfg.MCP.ServerName,
			Version:     cfg.MCP.ServerVersion,
			Description: cfg.MCP.Description,
		},
		ProtocolVersion: cfg.MCP.ProtocolVersion,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		CORSOrigin:      cfg.Server.CORSOrigin,
	}
	if gw.audit != nil {
		mcpCfg.Invocations = gw.audit
	}
	gw.mcpServer, err = mcp.NewServer(mcpCfg)
	if err != nil {
		gw.closeOptionalComponents(context.Background())
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	gw.mcpServer.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.mcpServer.CORS(mux),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	gw.healthServer = health.NewServer()
	gw.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if cfg.Server.GRPCAddr != "" {
		gw.grpcServer = newGRPCServer()
		healthpb.RegisterHealthServer(gw.grpcServer, gw.healthServer)
	}

	return gw, nil
}

// initObservers opens the optional audit log and telemetry providers.
func (g *Gateway) initObservers(ctx context.Context) ([]toolbox.Observer, error) {
	var observers []toolbox.Observer

	if path := g.config.Audit.Path; path != "" {
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		g.audit = s
		observers = append(observers, store.NewInvocationRecorder(s))
		g.logger.Info("invocation audit enabled", "path", path)
	}

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        g.config.Telemetry.Enabled,
		OTLPEndpoint:   g.config.Telemetry.OTLPEndpoint,
		ServiceName:    g.config.Telemetry.ServiceName,
		ServiceVersion: g.config.MCP.ServerVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	g.telemetry = tp
	if tp.Enabled() {
		obs, err := telemetry.NewObserver(tp.Meter(), tp.Tracer())
		if err != nil {
			return nil, fmt.Errorf("creating telemetry observer: %w", err)
		}
		observers = append(observers, obs)
		g.logger.Info("telemetry enabled", "otlp_endpoint", g.config.Telemetry.OTLPEndpoint)
	}

	return observers, nil
}

// newGRPCServer creates the gRPC server that carries the health service.
func newGRPCServer() *grpc.Server {
	return grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
}

// Handler returns the HTTP handler serving every gateway endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Dispatcher returns the dispatcher shared by all adapters.
func (g *Gateway) Dispatcher() *toolbox.Dispatcher {
	return g.dispatcher
}

// setupTCPListeners creates standard TCP listeners. grpcLn is nil when the
// gRPC health service is disabled.
func (g *Gateway) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"grpc_addr", g.config.Server.GRPCAddr,
		"http_addr", g.config.Server.HTTPAddr,
	)

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		if grpcLn != nil {
			_ = grpcLn.Close()
		}
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	return grpcLn, httpLn, nil
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// startServers starts gRPC and HTTP servers in goroutines, returning error channel.
func (g *Gateway) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the gateway servers and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	grpcListener, httpListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	go g.watchReadiness(watchCtx)

	errCh := g.startServers(grpcListener, httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)
	stopWatch()

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout, since
// the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	if g.grpcServer == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeOptionalComponents closes components that may be nil.
func (g *Gateway) closeOptionalComponents(ctx context.Context) []error {
	var errs []error
	if g.sessions != nil {
		g.sessions.Close()
	}
	if g.audit != nil {
		errs = appendCloseError(errs, "audit close", g.audit.Close())
	}
	if g.telemetry != nil {
		errs = appendCloseError(errs, "telemetry shutdown", g.telemetry.Shutdown(ctx))
	}
	if g.closeSource != nil {
		errs = appendCloseError(errs, "mongo disconnect", g.closeSource(ctx))
	}
	return errs
}

// Shutdown gracefully stops all gateway servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	g.healthServer.Shutdown()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	errs = append(errs, g.closeOptionalComponents(ctx)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
