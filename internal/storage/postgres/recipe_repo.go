package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

// RecipeRepository implements storage.Repository[recipe.Recipe] with GORM.
// It is shared by the PostgreSQL and SQLite stores.
type RecipeRepository struct {
	db       *gorm.DB
	timeout  time.Duration
	lockRows bool
}

var _ storage.Repository[recipe.Recipe] = (*RecipeRepository)(nil)

// NewRecipeRepository creates a RecipeRepository. A positive timeout bounds
// every call. Row locks are taken on dialects that support SELECT ... FOR UPDATE.
func NewRecipeRepository(db *gorm.DB, timeout time.Duration) *RecipeRepository {
	return &RecipeRepository{
		db:       db,
		timeout:  timeout,
		lockRows: db.Dialector.Name() != "sqlite",
	}
}

func (r *RecipeRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// GetAll returns every recipe, oldest first.
func (r *RecipeRepository) GetAll(ctx context.Context) ([]recipe.Recipe, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var models []RecipeModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, translate(fmt.Errorf("listing recipes: %w", err))
	}
	recipes := make([]recipe.Recipe, len(models))
	for i := range models {
		recipes[i] = *toRecipeDomain(&models[i])
	}
	return recipes, nil
}

// FindByID retrieves a recipe by ID.
func (r *RecipeRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var model RecipeModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(fmt.Errorf("getting recipe %s: %w", id, err))
	}
	return toRecipeDomain(&model), nil
}

// Save upserts the recipe in one transaction and returns the row it replaced.
// The prior row is read under FOR UPDATE so concurrent saves of the same id
// each observe the value they overwrote.
func (r *RecipeRepository) Save(ctx context.Context, rec *recipe.Recipe) (*recipe.Recipe, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var prior *recipe.Recipe
	model := toRecipeModel(rec)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if r.lockRows {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var existing RecipeModel
		res := q.Where("id = ?", model.ID).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			prior = toRecipeDomain(&existing)
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return nil, translate(fmt.Errorf("saving recipe %s: %w", rec.ID, err))
	}
	return prior, nil
}

// DeleteByID removes the recipe with a single DELETE.
func (r *RecipeRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Delete(&RecipeModel{}, "id = ?", id)
	if result.Error != nil {
		return translate(fmt.Errorf("deleting recipe %s: %w", id, result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: recipe %s", storage.ErrNotFound, id)
	}
	return nil
}
