// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/config"
	"github.com/jeranaias/rigrun-assist/internal/offline"
	"github.com/jeranaias/rigrun-assist/internal/server"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the assistant over HTTP.

Endpoints:
  POST /assistant/command    {"prompt": "..."} -> actions and clarifications
  GET  /health               readiness and routing status
  GET  /status/local_model   local model availability and last call`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			if host != "" {
				app.Config.Server.Host = host
			}
			if port != 0 {
				app.Config.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, app)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen address (default from config: 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config: 8787)")
	return cmd
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, app *App) error {
	sc := app.Config.Server
	if sc.Port < 1 || sc.Port > 65535 {
		return &CommandError{Action: "serve", Err: fmt.Errorf("invalid port %d", sc.Port), Code: ExitUsage}
	}

	auth := server.TokenAuthConfig(sc.AuthToken)
	auth.AllowedIPs = sc.AllowedIPs
	if !auth.Enabled && !offline.IsLocalhost(sc.Host) {
		app.Logger.Warn("SERVER_UNAUTHENTICATED", "host", sc.Host, "hint", "set server.auth_token or RIGRUN_ASSIST_TOKEN")
	}

	srv := server.New(app.Service, app.Router, server.Config{
		Host:           sc.Host,
		Port:           sc.Port,
		RequestTimeout: config.Seconds(sc.RequestTimeoutSecs),
		Auth:           auth,
		RateLimiter:    server.NewRateLimiter(sc.RateLimit, 0),
		Logger:         app.Logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &CommandError{Action: "serve", Err: err, Code: ExitError}
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return &CommandError{Action: "shutdown", Err: err, Code: ExitError}
	}
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &CommandError{Action: "serve", Err: err, Code: ExitError}
		}
	case <-shutdownCtx.Done():
	}
	return nil
}
