package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/mealplanner/internal/config"
	"github.com/jkaninda/mealplanner/internal/credentials"
	"github.com/jkaninda/mealplanner/internal/observability"
	"github.com/jkaninda/mealplanner/internal/secretstore"
	"github.com/jkaninda/mealplanner/internal/storage"
	ddbstore "github.com/jkaninda/mealplanner/internal/storage/dynamodb"
	pgstore "github.com/jkaninda/mealplanner/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/mealplanner/internal/storage/sqlite"
)

// configPath is shared by every command that reads the config file.
var configPath string

func loadConfig() (*config.Config, error) {
	return config.Load(goutils.Env("MEALPLANNER_CONFIG", configPath))
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *config.Config) bool {
	return cfg.Storage.Driver == storage.DriverDynamoDB || cfg.Credentials.SecretStore == secretstore.BackendAWS
}

// loadAWSConfig loads the default AWS credential and region chain.
// The configured region, when set, wins over the environment.
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Storage.DynamoDB.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Storage.DynamoDB.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// resolveCredentials runs the credential chain once. The secret fetch is
// bounded by credentials.secret_timeout_s; a failed fetch or a backend with
// missing settings is absorbed by the chain and surfaces only in the report.
// Only an unknown backend name is an error.
func resolveCredentials(ctx context.Context, cfg *config.Config, awsCfg aws.Config, metrics *observability.MetricsCollector, logger *slog.Logger) (credentials.Credentials, *credentials.Report, error) {
	fetcher, err := secretstore.New(cfg.Credentials.SecretStore, awsCfg, secretstore.VaultConfig(cfg.Credentials.Vault))
	switch {
	case errors.Is(err, secretstore.ErrNotConfigured):
		// Incomplete backend settings leave the chain without a secret store.
		logger.Warn("secret store disabled",
			slog.String("backend", cfg.Credentials.SecretStore),
			slog.String("error", err.Error()),
		)
		fetcher = nil
	case err != nil:
		return credentials.Credentials{}, nil, fmt.Errorf("initializing secret store: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Credentials.SecretTimeout())
	defer cancel()

	creds, report := credentials.Resolve(fetchCtx, credentials.ResolverOptions{
		Fetcher:  fetcher,
		SecretID: cfg.Credentials.SecretID,
		EnvNames: credentials.EnvironmentNames(cfg.Credentials.EnvNames),
		Defaults: credentials.Defaults(cfg.Credentials.Defaults),
		Logger:   logger,
	})
	for _, f := range credentials.Fields {
		if k, ok := report.Source(f); ok {
			metrics.RecordCredentialSource(f.String(), k.String())
		}
	}
	return creds, report, nil
}

// postgresDSN renders the connection URL and appends the configured query parameters.
func postgresDSN(creds credentials.Credentials, params string) (string, error) {
	dsn, err := creds.ConnectionString(credentials.DefaultScheme)
	if err != nil {
		return "", err
	}
	if params = strings.TrimPrefix(params, "?"); params != "" {
		dsn += "?" + params
	}
	return dsn, nil
}

// initStore creates the configured storage backend.
func initStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, metrics *observability.MetricsCollector, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case storage.DriverPostgres:
		return initPostgresStore(ctx, cfg, awsCfg, metrics, logger)
	case storage.DriverSQLite:
		return initSQLiteStore(cfg, logger)
	case storage.DriverDynamoDB:
		return initDynamoDBStore(cfg, awsCfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

func initPostgresStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, metrics *observability.MetricsCollector, logger *slog.Logger) (storage.Store, error) {
	creds, _, err := resolveCredentials(ctx, cfg, awsCfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	dsn, err := postgresDSN(creds, cfg.Storage.Postgres.Params)
	if err != nil {
		return nil, fmt.Errorf("building postgres connection string: %w", err)
	}

	pg := cfg.Storage.Postgres
	pgDB, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             dsn,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime(),
		AcquireTimeout:  pg.AcquireTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	return pgstore.NewStore(pgDB), nil
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	store, err := sqlitestore.Open(sqlitestore.Config{
		Path:        cfg.Storage.SQLite.Path,
		JournalMode: cfg.Storage.SQLite.JournalMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	return store, nil
}

func initDynamoDBStore(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) storage.Store {
	ddbCfg := ddbstore.Config{
		TableName: cfg.Storage.DynamoDB.TableName,
		Endpoint:  cfg.Storage.DynamoDB.Endpoint,
	}
	return ddbstore.NewStore(ddbstore.NewClient(awsCfg, ddbCfg), ddbCfg, logger)
}
