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

	"github.com/dvloznov/finance-ingest/internal/api/handlers"
	"github.com/dvloznov/finance-ingest/internal/api/middleware"
	"github.com/dvloznov/finance-ingest/internal/app"
	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/telemetry"
)

// jobHistory bounds how many jobs the status API remembers.
const jobHistory = 1000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		if a != nil {
			_ = a.Close()
		}
		log.Fatal().Err(err).Msg("Failed to wire the ingest pipeline")
	}

	// Jobs are kept in memory; a restart drops queued work.
	jobStore := inmemory.NewStoreWithLimit(jobHistory)
	jobQueue := inmemory.NewQueue(cfg.Worker.QueueSize, cfg.Worker.Concurrency, jobStore)

	log.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Int("queue_size", cfg.Worker.QueueSize).
		Msg("Starting worker service")

	// Start consuming jobs
	if err := jobQueue.Start(ctx, newJobHandler(a.Ingest)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	if cfg.Telemetry.Enabled {
		go func() {
			if err := telemetry.ServeMetrics(ctx, cfg.Telemetry.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	mux := http.NewServeMux()
	handlers.NewJobsHandler(jobQueue, jobStore, log).Register(mux)
	handlers.NewSubscriptionsHandler(a.Repo, log).Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"jobs":   jobStore.Counts(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Worker.ListenAddr,
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Logger(log), middleware.Recovery),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Job API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Job API failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job API shutdown failed")
	}

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close connections")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush telemetry")
	}

	log.Info().Msg("Worker service exited")
}
