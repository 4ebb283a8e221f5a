package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/docury/internal/api"
	"github.com/MikeSquared-Agency/docury/internal/backend"
	"github.com/MikeSquared-Agency/docury/internal/config"
	"github.com/MikeSquared-Agency/docury/internal/events"
	"github.com/MikeSquared-Agency/docury/internal/store"
)

func serveCMD() *cobra.Command {
	var port int
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy gateway in front of the RAG backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}
	serve.Flags().IntVar(&port, "port", 3000, "listen port (overrides DOCURY_PORT)")
	return serve
}

func runServe(cfg config.Config) error {
	logger := setupLogging(cfg.LogLevel, os.Stdout)
	logger.Info("docury gateway starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.BackendURL == "" {
		logger.Warn("API is not set; every forwarded request will fail")
	}
	var opts []api.Option

	// Activity events (optional)
	if cfg.NatsURL != "" {
		ev, err := events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer ev.Close()
		opts = append(opts, api.WithEvents(ev))
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS_URL not set, activity events disabled")
	}

	// Exchange log (optional)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		if cfg.APIToken == "" {
			logger.Warn("DOCURY_API_TOKEN not set, exchanges endpoint will refuse every request")
		}
		opts = append(opts, api.WithExchangeLog(db, cfg.APIToken))
		logger.Info("database connected")
	}

	srv := api.NewServer(cfg.Port, backend.NewClient(cfg.BackendURL), logger, opts...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("docury gateway ready", "port", cfg.Port, "backend", cfg.BackendURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("docury gateway stopped")
	return nil
}
