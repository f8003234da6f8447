// Package main is the entry point for the cession HTTP service.
//
// The service applies reinsurance programs and treaty books to single
// policies and whole bordereaux, stores bordereau runs in SQLite and prunes
// them on a schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/cession/internal/config"
	"github.com/aristath/cession/internal/di"
	"github.com/aristath/cession/internal/server"
	"github.com/aristath/cession/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env file)
// 2. Initializes logging
// 3. Wires dependencies (runs database, repositories, services, jobs)
// 4. Starts the scheduler and the HTTP server
// 5. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		Service: "cession-server",
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("workers", cfg.BordereauWorkers).
		Msg("Starting cession service")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Prune once at startup so a long-stopped service does not serve stale runs
	if jobs.RunCleanup != nil {
		if err := container.Scheduler.RunNow(jobs.RunCleanup); err != nil {
			log.Error().Err(err).Msg("Initial run cleanup failed")
		}
	}
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight requests get up to 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close runs database")
	}

	log.Info().Msg("Server stopped")
}
