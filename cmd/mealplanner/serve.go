package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/jkaninda/mealplanner/internal/config"
	"github.com/jkaninda/mealplanner/internal/gateway/httpapi"
	"github.com/jkaninda/mealplanner/internal/observability"
	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recipe HTTP API",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `mealplanner --config path` and `mealplanner serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to config file")
		cmd.Flags().StringVar(&listenAddr, "listen", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runServe resolves dependencies once, then serves HTTP until SIGINT/SIGTERM.
func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	logger := newLogger(cfg.Logging)

	logger.Info("starting mealplanner",
		slog.String("version", version),
		slog.String("storage_driver", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observability.
	obs, err := observability.New(&cfg.Observability, observability.ServiceInfo{
		Version:       version,
		StorageDriver: cfg.Storage.Driver,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	}()

	var awsCfg aws.Config
	if needsAWS(cfg) {
		if awsCfg, err = loadAWSConfig(ctx, cfg); err != nil {
			return err
		}
	}

	// Storage.
	store, err := initStore(ctx, cfg, awsCfg, obs.MetricsOrNil(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	if cfg.Storage.AutoMigrate || store.Driver() == storage.DriverSQLite {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		logger.Debug("storage migrated", slog.String("driver", store.Driver()))
	}

	recipes := observability.NewInstrumentedRepository[recipe.Recipe](store.Recipes(), store.Driver(), "recipe", obs)

	// Readiness and the scheduled dependency probe.
	if cfg.Observability.Health.IncludeStorage {
		obs.Health.AddCheck("storage", store.Ping)
	}
	prober, err := observability.NewDependencyProber(cfg.Observability.Health.ProbeSchedule, obs.Health, obs.MetricsOrNil(), logger)
	if err != nil {
		return err
	}
	cancelProbe := prober.Start(ctx)
	defer cancelProbe()

	gw := httpapi.NewGateway(gatewayConfig(cfg, obs), recipes, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- gw.Start(ctx)
	}()

	// Wait for signal or gateway error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
			return err
		}
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("stopping gateway", slog.String("error", err.Error()))
	}
	return nil
}

func gatewayConfig(cfg *config.Config, obs *observability.Observability) httpapi.Config {
	gc := httpapi.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		EnableDocs:     cfg.Server.EnableDocs,
		Version:        version,
		MaxRequestSize: cfg.Server.MaxBodyBytes,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutS) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutS) * time.Second,
		HealthChecker:  obs.Health,
		Metrics:        obs.MetricsOrNil(),
		MetricsPath:    cfg.Observability.Metrics.Path,
	}
	if m := obs.MetricsOrNil(); m != nil {
		gc.MetricsRegistry = m.Registry
	}
	if ts := obs.TracerOrNil(); ts != nil {
		gc.Tracer = ts.Tracer()
	}
	return gc
}
