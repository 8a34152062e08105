// Package storage defines the persistence port shared by every backend.
// Three backends are provided: DynamoDB (default), PostgreSQL, and SQLite (local/dev).
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jkaninda/mealplanner/internal/recipe"
)

// Error taxonomy. Adapters wrap the backend cause with %w on one of these,
// so callers classify with errors.Is and still see the original error.
var (
	// ErrNotFound: the entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a constraint or serialization conflict.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the backend is unreachable, throttled or out of capacity.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInternal: any other backend failure.
	ErrInternal = errors.New("storage internal error")
)

// Repository is the CRUD port for entities of type T keyed by UUID.
// Implementations must be safe for concurrent use.
type Repository[T any] interface {
	// GetAll returns every entity. Order is unspecified.
	GetAll(ctx context.Context) ([]T, error)

	// FindByID returns the entity or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)

	// Save inserts or replaces the entity. It returns the prior value when the
	// backend reports one, or nil when the entity was created.
	Save(ctx context.Context, entity *T) (*T, error)

	// DeleteByID removes the entity atomically. ErrNotFound if it did not exist
	// at deletion time.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Store owns one backend connection and exposes its repositories.
type Store interface {
	Recipes() Repository[recipe.Recipe]

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Driver returns the storage driver name.
	Driver() string
}

// Driver names.
const (
	DriverDynamoDB = "dynamodb"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultDriver is the default storage driver.
const DefaultDriver = DriverDynamoDB

// NeedsCredentials reports whether driver connects with the resolved
// database credentials.
func NeedsCredentials(driver string) bool {
	return driver == DriverPostgres
}
