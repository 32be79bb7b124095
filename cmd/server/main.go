package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"imagine/internal/config"
	"imagine/internal/observability"
	"imagine/internal/platform/cache"
	"imagine/internal/platform/database"
	"imagine/internal/platform/server"
	"imagine/internal/platform/storage"
	"imagine/internal/services"
	"imagine/internal/web/handlers"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "imagine",
		Short:        "Photo sharing API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		// Cobra prints the error
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}

			db, err := database.NewConnection(ctx, cfg.DatabaseURL, poolConfig(cfg))
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close() //nolint:errcheck // Process is exiting

			applied, err := database.RunMigrations(ctx, db)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info(ctx).Strs("applied", applied).Msg("Migrations complete")
			return nil
		},
	}
}

// bootstrap loads .env and the configuration and builds the logger
func bootstrap() (*config.Config, *observability.Logger, error) {
	envErr := godotenv.Load()

	obsConfig := observability.LoadConfig()
	logger := observability.NewLogger(obsConfig)
	if envErr != nil {
		logger.Debug(context.Background()).Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger, nil
}

func poolConfig(cfg *config.Config) database.PoolConfig {
	return database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
}

func serve(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(logger.OTELErrorHandler()))
	provider, err := observability.NewProvider(ctx, observability.LoadConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx).Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	db, err := database.NewConnection(ctx, cfg.DatabaseURL, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	applied, err := database.RunMigrations(ctx, db)
	if err != nil {
		_ = db.Close() //nolint:errcheck // Connection cleanup in error path
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info(ctx).Strs("applied", applied).Msg("Applied database migrations")
	}

	storageClient, err := storage.NewMinIOClient(ctx, cfg.Storage)
	if err != nil {
		_ = db.Close() //nolint:errcheck // Connection cleanup in error path
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	cacheClient, err := cache.NewRedisClient(cfg.Cache)
	switch {
	case errors.Is(err, cache.ErrCacheDisabled):
		cacheClient = nil
	case err != nil:
		// Reads fall back to the database
		logger.Warn(ctx).Err(err).Msg("Cache unavailable, continuing without it")
		cacheClient = nil
	}

	container, err := services.NewContainer(cfg, db, storageClient, cacheClient, logger)
	if err != nil {
		_ = db.Close() //nolint:errcheck // Connection cleanup in error path
		return fmt.Errorf("failed to initialize services container: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error(context.Background()).Err(err).Msg("Failed to release resources")
		}
	}()

	httpMetrics, err := observability.NewHTTPMetrics(observability.GetMeter())
	if err != nil {
		return fmt.Errorf("failed to create http metrics: %w", err)
	}

	handler := handlers.NewWithContainer(container,
		handlers.WithTelemetry(observability.GetTracer(), httpMetrics),
	)

	srv := server.New(cfg.Host, cfg.Port, handler.Routes(), cfg.Server)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx).Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
		logger.Info(ctx).Msg("Server shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info(ctx).Msg("Server exited")
	return nil
}
