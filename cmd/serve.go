package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/groundchat/groundchat/internal/api"
	"github.com/groundchat/groundchat/internal/blob"
	"github.com/groundchat/groundchat/internal/chat"
	"github.com/groundchat/groundchat/internal/config"
	"github.com/groundchat/groundchat/internal/geo"
	"github.com/groundchat/groundchat/internal/llm"
	"github.com/groundchat/groundchat/internal/log"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes every component and runs the HTTP server until
// interrupted.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})
	logger.Info("starting groundchat", "version", Version)

	store, err := blob.Open(cfg.DataDir)
	if err != nil {
		if errors.Is(err, blob.ErrLocked) {
			return fmt.Errorf("another groundchat instance is using %s", cfg.DataDir)
		}
		return fmt.Errorf("opening data directory: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing data store", "error", closeErr)
		}
	}()

	sessions := chat.NewStore(store, logger)
	sessions.Load()

	model, err := llm.New(ctx, cfg.APIKey, cfg.ModelName)
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	var loc chat.LocationProvider
	if cfg.GeoEnabled {
		locator := geo.NewLocator(cfg.GeoEndpoint, logger)
		locator.Resolve(ctx)
		loc = locator
	}

	service := chat.NewService(sessions, model, loc, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Store:       sessions,
		Service:     service,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"model", cfg.ModelName,
		"data_dir", cfg.DataDir,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
