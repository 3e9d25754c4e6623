package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/mailwarm/internal/dispatch"
	"github.com/teemow/mailwarm/internal/logging"
	"github.com/teemow/mailwarm/internal/resources"
	"github.com/teemow/mailwarm/internal/server"
)

// OpsConfig holds configuration for the ops server
type OpsConfig struct {
	Enabled bool
	Addr    string
}

func newServeCmd() *cobra.Command {
	var opsConfig OpsConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start an MCP server that exposes every Gmail method as a tool over stdio.

The Gmail session is initialized once at startup and shared by every call.
If initialization fails the server still starts; each call then answers with
the initialization error code (for example AuthFlowRequired with the consent
URL) until the process is restarted.

The ops server serves Prometheus metrics and health probes on a separate
address:
  /metrics           Prometheus metrics (METRICS_EXPORTER=prometheus)
  /healthz           liveness
  /readyz            readiness, follows the Gmail session
  /healthz/detailed  component report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ops") && os.Getenv("MAILWARM_OPS_ENABLED") == "true" {
				opsConfig.Enabled = true
			}
			if !cmd.Flags().Changed("ops-addr") {
				if addr := os.Getenv("MAILWARM_OPS_ADDR"); addr != "" {
					opsConfig.Addr = addr
				}
			}
			return runServe(opsConfig)
		},
	}

	cmd.Flags().BoolVar(&opsConfig.Enabled, "ops", false, "Serve metrics and health probes on --ops-addr")
	cmd.Flags().StringVar(&opsConfig.Addr, "ops-addr", server.DefaultOpsAddr, "Address of the ops server")

	return cmd
}

func runServe(opsConfig OpsConfig) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		rt.close(shutdownCtx)
	}()

	if err := rt.session.Init(ctx); err != nil {
		rt.logger.Warn("serving without a Gmail session; calls will report the error",
			"code", dispatch.ErrorCode(err), logging.Err(err))
	}

	var opsServer *server.OpsServer
	if opsConfig.Enabled {
		opsServer, err = startOpsServer(rt, opsConfig.Addr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				rt.logger.Warn("ops server shutdown failed", logging.Err(err))
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer(dispatch.ModuleName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
	rt.dispatcher.RegisterTools(mcpSrv)
	resources.RegisterModuleResources(mcpSrv, rt.dispatcher)

	rt.logger.Info("serving MCP over stdio", "methods", len(rt.dispatcher.Methods()))
	return runStdioServer(ctx, mcpSrv)
}

// startOpsServer starts the ops server and waits until it listens.
func startOpsServer(rt *runtime, addr string) (*server.OpsServer, error) {
	health := server.NewHealthChecker(rt.session)
	opsServer, err := server.NewOpsServer(server.OpsServerConfig{
		Addr:     addr,
		Provider: rt.provider,
		Health:   health,
		Logger:   logging.WithComponent(rt.logger, "ops"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ops server: %w", err)
	}

	opsErr := make(chan error, 1)
	go func() {
		if err := opsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opsErr <- err
		}
		close(opsErr)
	}()

	// Start reports bind failures immediately; a quiet second means it is up.
	select {
	case err := <-opsErr:
		if err != nil {
			return nil, fmt.Errorf("ops server failed to start: %w", err)
		}
	case <-time.After(time.Second):
	}
	rt.logger.Info("ops server started", "addr", opsServer.Addr())
	return opsServer, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
