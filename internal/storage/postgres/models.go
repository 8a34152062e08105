package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/mealplanner/internal/recipe"
)

// RecipeModel maps to the "recipes" table.
type RecipeModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RecipeModel) TableName() string { return "recipes" }

func toRecipeModel(r *recipe.Recipe) RecipeModel {
	return RecipeModel{ID: r.ID, Name: r.Name}
}

func toRecipeDomain(m *RecipeModel) *recipe.Recipe {
	return &recipe.Recipe{ID: m.ID, Name: m.Name}
}
