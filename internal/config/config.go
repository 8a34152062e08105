// Package config handles loading and validating meal planner configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// DefaultConfigPath is read when no path is given. Its absence is not an error.
const DefaultConfigPath = "mealplanner.yaml"

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	Credentials   CredentialsConfig   `json:"credentials" yaml:"credentials"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr       string `json:"listen_addr" yaml:"listen_addr" env:"MEALPLANNER_LISTEN_ADDR"` // Default: ":8080"
	EnableDocs       bool   `json:"enable_docs" yaml:"enable_docs" env:"MEALPLANNER_ENABLE_DOCS"`
	ReadTimeoutS     int    `json:"read_timeout_s" yaml:"read_timeout_s"`         // Default: 15
	WriteTimeoutS    int    `json:"write_timeout_s" yaml:"write_timeout_s"`       // Default: 15
	ShutdownTimeoutS int    `json:"shutdown_timeout_s" yaml:"shutdown_timeout_s"` // Default: 10
	MaxBodyBytes     int64  `json:"max_body_bytes" yaml:"max_body_bytes"`         // Default: 1 MB
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	Driver      string                `json:"driver" yaml:"driver" env:"MEALPLANNER_STORAGE_DRIVER"` // "dynamodb" (default), "postgres" or "sqlite".
	AutoMigrate bool                  `json:"auto_migrate" yaml:"auto_migrate" env:"MEALPLANNER_AUTO_MIGRATE"`
	Postgres    PostgresStorageConfig `json:"postgres" yaml:"postgres"`
	SQLite      SQLiteStorageConfig   `json:"sqlite" yaml:"sqlite"`
	DynamoDB    DynamoDBStorageConfig `json:"dynamodb" yaml:"dynamodb"`
}

// PostgresStorageConfig holds PostgreSQL pool settings. The connection
// parameters themselves come from the credentials chain.
type PostgresStorageConfig struct {
	Params           string `json:"params" yaml:"params" env:"MEALPLANNER_POSTGRES_PARAMS"` // Appended to the URL query, e.g. "sslmode=disable".
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`                   // Default: 5
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`                   // Default: 2
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"`         // Default: 1800 (30 min)
	AcquireTimeoutS  int    `json:"acquire_timeout_s" yaml:"acquire_timeout_s"`             // Default: 3
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path" yaml:"path" env:"MEALPLANNER_SQLITE_PATH"` // Default: "data/mealplanner.db"
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`              // "wal" (default), "delete", "truncate", etc.
}

// DynamoDBStorageConfig holds DynamoDB settings.
type DynamoDBStorageConfig struct {
	TableName string `json:"table_name" yaml:"table_name" env:"RECIPE_TABLE_NAME"` // Default: "recipes"
	Region    string `json:"region" yaml:"region" env:"AWS_REGION"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" env:"DYNAMODB_ENDPOINT"` // e.g. DynamoDB Local.
}

// CredentialsConfig configures the database credentials chain.
type CredentialsConfig struct {
	SecretStore    string             `json:"secret_store" yaml:"secret_store" env:"MEALPLANNER_SECRET_STORE"` // "aws", "vault" or "none" (default).
	SecretID       string             `json:"secret_id" yaml:"secret_id" env:"SECRET_ID"`
	SecretTimeoutS int                `json:"secret_timeout_s" yaml:"secret_timeout_s"` // Default: 10
	Vault          VaultConfig        `json:"vault" yaml:"vault"`
	EnvNames       EnvNamesConfig     `json:"env_names" yaml:"env_names"`
	Defaults       CredentialDefaults `json:"defaults" yaml:"defaults"`
}

// VaultConfig configures the HashiCorp Vault secret store.
type VaultConfig struct {
	Address       string `json:"address" yaml:"address"`
	Token         string `json:"token" yaml:"token"`
	Namespace     string `json:"namespace" yaml:"namespace"`
	TimeoutS      int    `json:"timeout_s" yaml:"timeout_s"`
	TLSSkipVerify bool   `json:"tls_skip_verify" yaml:"tls_skip_verify"`
}

// EnvNamesConfig overrides the environment variables read by the chain.
// Empty entries keep the DB_* defaults.
type EnvNamesConfig struct {
	Database string `json:"database" yaml:"database"`
	Host     string `json:"host" yaml:"host"`
	Password string `json:"password" yaml:"password"`
	Port     string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
}

// CredentialDefaults overrides the last-resort credential values.
// Empty entries keep the built-in defaults.
type CredentialDefaults struct {
	Database string `json:"database" yaml:"database"`
	Host     string `json:"host" yaml:"host"`
	Password string `json:"password" yaml:"password"`
	Port     string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
}

// ObservabilityConfig configures metrics, tracing and health checks.
type ObservabilityConfig struct {
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Health  HealthConfig  `json:"health" yaml:"health"`
	Anomaly AnomalyConfig `json:"anomaly" yaml:"anomaly"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"MEALPLANNER_METRICS_ENABLED"` // Default: true
	Path    string `json:"path" yaml:"path"`                                        // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" env:"MEALPLANNER_TRACING_ENABLED"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"` // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`                                  // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`  // Default: "mealplanner"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`                            // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`                                  // Skip TLS for dev
}

// HealthConfig configures dependency health checks for readiness probes.
type HealthConfig struct {
	IncludeStorage bool   `json:"include_storage" yaml:"include_storage"` // Default: true
	ProbeSchedule  string `json:"probe_schedule" yaml:"probe_schedule"`   // Cron spec. Default: "@every 30s". "off" disables.
}

// AnomalyConfig configures threshold-based detection of storage error bursts.
type AnomalyConfig struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	ErrorRateThreshold float64 `json:"error_rate_threshold" yaml:"error_rate_threshold"` // e.g. 0.5 = 50% errors
	WindowSeconds      int     `json:"window_seconds" yaml:"window_seconds"`             // Default: 300
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"MEALPLANNER_LOG_LEVEL"`    // debug, info (default), warn, error
	Format string `json:"format" yaml:"format" env:"MEALPLANNER_LOG_FORMAT"` // json (default) or text
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:       ":8080",
			ReadTimeoutS:     15,
			WriteTimeoutS:    15,
			ShutdownTimeoutS: 10,
			MaxBodyBytes:     1 << 20,
		},
		Storage: StorageConfig{
			Driver: "dynamodb",
			Postgres: PostgresStorageConfig{
				MaxOpenConns:     5,
				MaxIdleConns:     2,
				ConnMaxLifetimeS: 1800,
				AcquireTimeoutS:  3,
			},
			SQLite: SQLiteStorageConfig{
				Path:        filepath.Join("data", "mealplanner.db"),
				JournalMode: "wal",
			},
			DynamoDB: DynamoDBStorageConfig{TableName: "recipes"},
		},
		Credentials: CredentialsConfig{
			SecretStore:    "none",
			SecretTimeoutS: 10,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			Tracing: TracingConfig{Protocol: "grpc", ServiceName: "mealplanner", SampleRate: 1.0},
			Health:  HealthConfig{IncludeStorage: true, ProbeSchedule: "@every 30s"},
			Anomaly: AnomalyConfig{ErrorRateThreshold: 0.5, WindowSeconds: 300},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads an optional JSON or YAML config file over Default, applies
// environment overrides and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything else for JSON.
// An empty path, or a missing file at DefaultConfigPath, yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
		// Optional.
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	default:
		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	}

	// Environment variables take precedence over config values.
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// SecretTimeout bounds the one-time secret store fetch at startup.
func (c *CredentialsConfig) SecretTimeout() time.Duration {
	if c.SecretTimeoutS > 0 {
		return time.Duration(c.SecretTimeoutS) * time.Second
	}
	return 10 * time.Second
}

// AcquireTimeout bounds connection acquisition and each repository call.
func (p *PostgresStorageConfig) AcquireTimeout() time.Duration {
	if p.AcquireTimeoutS > 0 {
		return time.Duration(p.AcquireTimeoutS) * time.Second
	}
	return 3 * time.Second
}

// ConnMaxLifetime returns the pool connection lifetime.
func (p *PostgresStorageConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(p.ConnMaxLifetimeS) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (s *ServerConfig) ShutdownTimeout() time.Duration {
	if s.ShutdownTimeoutS > 0 {
		return time.Duration(s.ShutdownTimeoutS) * time.Second
	}
	return 10 * time.Second
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	// Storage driver validation.
	switch c.Storage.Driver {
	case "dynamodb", "postgres", "sqlite":
		// valid
	default:
		return fmt.Errorf("storage.driver %q is not supported (use dynamodb, postgres or sqlite)", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required for the sqlite driver")
	}
	if c.Storage.Driver == "dynamodb" && c.Storage.DynamoDB.TableName == "" {
		return fmt.Errorf("storage.dynamodb.table_name is required for the dynamodb driver")
	}
	if c.Storage.Postgres.MaxOpenConns < 0 || c.Storage.Postgres.AcquireTimeoutS < 0 {
		return fmt.Errorf("storage.postgres pool settings must not be negative")
	}
	switch c.Credentials.SecretStore {
	case "", "none", "aws", "vault":
		// valid
	default:
		return fmt.Errorf("credentials.secret_store %q is not supported (use aws, vault or none)", c.Credentials.SecretStore)
	}
	if c.Credentials.SecretTimeoutS < 0 {
		return fmt.Errorf("credentials.secret_timeout_s must not be negative")
	}
	switch c.Observability.Tracing.Protocol {
	case "", "grpc", "http":
		// valid
	default:
		return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", c.Observability.Tracing.Protocol)
	}
	if c.Observability.Tracing.Enabled && c.Observability.Tracing.Endpoint == "" {
		return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
