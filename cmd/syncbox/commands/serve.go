package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/syncbox/internal/api"
	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/internal/channel"
	"github.com/marmos91/syncbox/internal/logger"
	"github.com/marmos91/syncbox/pkg/config"
	"github.com/marmos91/syncbox/pkg/store"
	"github.com/marmos91/syncbox/pkg/version"
)

// cleanupInterval is how often the background janitor reaps expired
// tombstones. Listings also trigger reaping lazily; the janitor covers
// idle deployments.
const cleanupInterval = 6 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the syncbox server",
	Long: `Start the syncbox server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/syncbox/config.yaml.

Examples:
  # Start with defaults (SQLite, port 8080)
  syncbox serve

  # Start with custom config file
  syncbox serve --config /etc/syncbox/config.yaml

  # Start with environment variable overrides
  PORT=3000 LOG_LEVEL=DEBUG syncbox serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("starting syncbox", "version", version.Version)

	db, err := store.New(cfg.Database.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	if cfg.Auth.AdminAPIKey == "" {
		logger.Warn("no admin API key configured; admin endpoints are disabled")
	}

	validator := auth.NewValidator(db, cfg.Auth.AdminAPIKey)
	gateway := channel.NewGateway(db, validator, cfg.Server.CORSOrigins)

	router := api.NewRouter(api.RouterConfig{
		Store:          db,
		Validator:      validator,
		Gateway:        gateway,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	server := api.NewServer(api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		runJanitor(ctx, db)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("syncbox stopped")
	return nil
}

// runJanitor periodically deletes tombstones whose TTL has passed.
func runJanitor(ctx context.Context, db store.Store) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reapCtx, cancel := context.WithTimeout(ctx, time.Minute)
			n, err := db.CleanupExpired(reapCtx)
			cancel()
			if err != nil {
				logger.Warn("tombstone cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("expired tombstones removed", "count", n)
			}
		}
	}
}
