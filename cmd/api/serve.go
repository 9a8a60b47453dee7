package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	"product-catalog/internal/logger"
	"product-catalog/internal/server"
	"product-catalog/internal/storage"
	"product-catalog/internal/telemetry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.LoadFrom(opts.envFile))
		},
	}
}

func gracefulShutdown(apiServer *server.Server, tp *telemetry.Provider, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// in-flight requests get 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting product catalog API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
	)

	tp, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if !tp.Exporting {
		log.Info("Trace export disabled, OTEL_EXPORTER_OTLP_ENDPOINT is empty")
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	log.Info("Database health check", zap.Any("health", database.Health(ctx, db)))

	if err := database.RunMigrations(db, log); err != nil {
		db.Close()
		return err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize image storage: %w", err)
	}

	srv := server.NewServer(cfg, log, db, store)
	if err := srv.Ping(ctx); err != nil {
		log.Warn("Redis unavailable, rate limiting fails open", zap.Error(err))
	}

	done := make(chan bool, 1)
	go gracefulShutdown(srv, tp, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	log.Info("Graceful shutdown complete")
	return nil
}
