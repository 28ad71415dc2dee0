package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ndewijer/custody-ingest/internal/app"
	"github.com/ndewijer/custody-ingest/internal/config"
	"github.com/ndewijer/custody-ingest/internal/logging"
	"github.com/ndewijer/custody-ingest/internal/scheduler"
	"github.com/ndewijer/custody-ingest/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start")
	}
	defer a.Close()

	logger.Info().
		Str("version", version.Version).
		Str("database", cfg.Database.Path).
		Str("dedup_mode", cfg.Dedup.Mode).
		Bool("enrichment", cfg.Enrichment.Enabled).
		Str("archive", cfg.Archive.Backend).
		Msg("Connected to database")

	jobs := scheduler.New(logger)
	if err := a.Schedule(jobs); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register jobs")
	}
	jobs.Start()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Server failed")
	}

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	jobs.Stop()

	logger.Info().Msg("Server exited")
}
