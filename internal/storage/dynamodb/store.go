package dynamodb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

// DefaultTableName is used when no recipe table is configured.
const DefaultTableName = "recipes"

// Config holds DynamoDB settings.
type Config struct {
	TableName string // Default: "recipes"
	Endpoint  string // Optional override, e.g. DynamoDB Local.
}

func (c Config) tableName() string {
	if c.TableName != "" {
		return c.TableName
	}
	return DefaultTableName
}

// Store implements storage.Store on DynamoDB. The client is stateless, so the
// store holds no connection of its own.
type Store struct {
	recipes *Table[recipe.Recipe]
	logger  *slog.Logger
}

// NewClient builds a DynamoDB client from the shared AWS config.
func NewClient(awsCfg aws.Config, cfg Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

// NewStore binds the recipe table on client.
func NewStore(client API, cfg Config, logger *slog.Logger) *Store {
	s := &Store{
		recipes: NewTable[recipe.Recipe](client, cfg.tableName()),
		logger:  logger,
	}
	logger.Info("dynamodb store configured",
		slog.String("table", cfg.tableName()),
		slog.String("endpoint", cfg.Endpoint),
	)
	return s
}

func (s *Store) Recipes() storage.Repository[recipe.Recipe] { return s.recipes }

// Migrate verifies the recipe table exists and is active. Tables are
// provisioned outside the service.
func (s *Store) Migrate(ctx context.Context) error {
	status, err := s.recipes.Describe(ctx)
	if err != nil {
		return err
	}
	if status != types.TableStatusActive {
		s.logger.Warn("dynamodb table not active",
			slog.String("table", s.recipes.Name()),
			slog.String("status", string(status)),
		)
	}
	return nil
}

// Ping describes the recipe table.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.recipes.Describe(ctx); err != nil {
		return fmt.Errorf("dynamodb ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Driver() string { return storage.DriverDynamoDB }
