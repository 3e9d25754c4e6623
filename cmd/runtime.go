package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/teemow/mailwarm/internal/config"
	"github.com/teemow/mailwarm/internal/dispatch"
	"github.com/teemow/mailwarm/internal/gmail"
	"github.com/teemow/mailwarm/internal/google"
	"github.com/teemow/mailwarm/internal/instrumentation"
	"github.com/teemow/mailwarm/internal/logging"
	"github.com/teemow/mailwarm/internal/server"
)

// runtime wires configuration, logging, instrumentation, the credential
// store, the session and the dispatcher for one process.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	provider   *instrumentation.Provider
	store      *google.CredentialStore
	session    *server.Session
	dispatcher *dispatch.Dispatcher
}

// resolveConfigPath returns the --config value, or the default location.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// newRuntime builds every component without touching the network. Call
// session.Init to acquire credentials.
func newRuntime(ctx context.Context, logOut io.Writer) (*runtime, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := provider.Metrics()

	store, err := google.NewFromConfig(cfg.Auth, logging.NewSlogAdapter(logging.WithComponent(logger, "credentials")), metrics)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	session := server.NewSession(server.SessionConfig{
		Credentials: store,
		Gmail:       gmail.Options{Endpoint: cfg.Gmail.Endpoint, User: cfg.Gmail.User},
		Logger:      logger,
		Metrics:     metrics,
	})

	audit := instrumentation.NewAuditLogger(logging.WithComponent(logger, "audit"), instrConfig.AuditLogging)
	d := dispatch.New(session, dispatch.Options{
		Metrics: metrics,
		Audit:   audit,
		Logger:  logger,
	})

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		provider:   provider,
		store:      store,
		session:    session,
		dispatcher: d,
	}, nil
}

// close shuts down the session and flushes instrumentation.
func (r *runtime) close(ctx context.Context) {
	if err := r.session.Shutdown(); err != nil {
		r.logger.Warn("session shutdown failed", logging.Err(err))
	}
	if err := r.provider.Shutdown(ctx); err != nil {
		r.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}
