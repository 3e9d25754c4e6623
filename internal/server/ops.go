package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teemow/mailwarm/internal/instrumentation"
)

const (
	// DefaultOpsAddr is the default address for the ops server.
	DefaultOpsAddr = "127.0.0.1:9090"

	// DefaultOpsReadTimeout is the default read timeout for the ops server.
	DefaultOpsReadTimeout = 10 * time.Second

	// DefaultOpsWriteTimeout is the default write timeout for the ops server.
	DefaultOpsWriteTimeout = 10 * time.Second

	// DefaultOpsIdleTimeout is the default idle timeout for the ops server.
	DefaultOpsIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// OpsServerConfig holds configuration for the ops server.
type OpsServerConfig struct {
	// Addr is the address to bind to (e.g., "127.0.0.1:9090"). Port 0 picks
	// a free port.
	Addr string

	// Provider serves /metrics when it is enabled with the Prometheus
	// exporter.
	Provider *instrumentation.Provider

	// Health serves /healthz, /readyz and /healthz/detailed.
	Health *HealthChecker

	Logger *slog.Logger
}

// OpsServer serves metrics and health probes on a dedicated port, apart from
// the MCP transport.
type OpsServer struct {
	handler http.Handler
	logger  *slog.Logger

	mu         sync.Mutex
	addr       string
	httpServer *http.Server
}

// NewOpsServer creates an ops server. At least one of Provider (enabled) or
// Health is required.
func NewOpsServer(config OpsServerConfig) (*OpsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultOpsAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	served := false
	if config.Provider != nil && config.Provider.Enabled() {
		if h := config.Provider.MetricsHandler(); h != nil {
			mux.Handle("/metrics", h)
			served = true
		}
	}
	if config.Health != nil {
		config.Health.RegisterHealthEndpoints(mux)
		served = true
	}
	if !served {
		return nil, fmt.Errorf("ops server needs an enabled instrumentation provider or a health checker")
	}

	return &OpsServer{
		handler: mux,
		logger:  config.Logger,
		addr:    config.Addr,
	}, nil
}

// Handler returns the ops routes.
func (s *OpsServer) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves until Shutdown. It blocks; call it in
// a goroutine for non-blocking operation.
func (s *OpsServer) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultOpsReadTimeout,
		WriteTimeout:      DefaultOpsWriteTimeout,
		IdleTimeout:       DefaultOpsIdleTimeout,
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("starting ops server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the ops server.
func (s *OpsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		s.logger.Info("shutting down ops server")
		return srv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the listen address; after Start it is the bound address.
func (s *OpsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
