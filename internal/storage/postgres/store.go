package postgres

import (
	"context"

	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	pgDB    *DB
	recipes *RecipeRepository
}

// NewStore wraps an existing DB as a Store.
func NewStore(pgDB *DB) *Store {
	return &Store{
		pgDB:    pgDB,
		recipes: NewRecipeRepository(pgDB.GormDB(), pgDB.Timeout()),
	}
}

func (s *Store) Recipes() storage.Repository[recipe.Recipe] { return s.recipes }

// Migrate creates the recipe table. It is only called when auto-migration is enabled.
func (s *Store) Migrate(ctx context.Context) error {
	return AutoMigrate(ctx, s.pgDB.GormDB())
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pgDB.Ping(ctx)
}

func (s *Store) Close() error {
	return s.pgDB.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

// DB returns the underlying connection wrapper.
func (s *Store) DB() *DB {
	return s.pgDB
}
