package main

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

	"github.com/jroosing/dnsdash/internal/api"
	"github.com/jroosing/dnsdash/internal/api/handlers"
	"github.com/jroosing/dnsdash/internal/api/web"
	"github.com/jroosing/dnsdash/internal/backend"
	"github.com/jroosing/dnsdash/internal/database"
	"github.com/jroosing/dnsdash/internal/metrics"
	"github.com/jroosing/dnsdash/internal/session"
)

const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	host   string
	port   int
	dbPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard",
	Long: `Serve the dashboard page, the session REST API with WebSocket push,
Swagger docs under /swagger/ and Prometheus metrics.

Every page load opens a session that polls the telemetry backend on its own
schedule. Idle sessions without a connected page are closed automatically.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Override bind host")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "Override bind port")
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", "", "Override preference database path")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveFlags.host != "" {
		cfg.Server.Host = serveFlags.host
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}
	if serveFlags.dbPath != "" {
		cfg.Database.Path = serveFlags.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	client := backend.New(cfg.Backend, logger, m)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	sessions := session.NewManager(client, cfg.Sessions, cfg.Dashboard,
		session.WithLogger(logger),
		session.WithMetrics(m),
		session.WithRenderer(renderer.Fragment),
	)
	sessions.Start()
	defer sessions.Shutdown()

	srv := api.New(cfg, handlers.Deps{
		Sessions: sessions,
		Themes:   db,
		Renderer: renderer,
		Health:   db.Health,
	}, m, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("dnsdash starting",
		"addr", srv.Addr(),
		"backend", client.BaseURL(),
		"database", cfg.Database.Path,
		"max_sessions", cfg.Sessions.MaxSessions,
		"api_key", cfg.API.APIKey != "",
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		// shutdown requested via signal
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Close sessions first so open pages get their closed message.
	sessions.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	return nil
}
