// Package recipe defines the recipe entity and the request models used to create,
// replace and patch it.
package recipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalid is returned when a request fails validation.
var ErrInvalid = errors.New("invalid recipe")

// Recipe is the single persisted entity. The id is stored as its hyphenated string form.
type Recipe struct {
	ID   uuid.UUID `json:"id" dynamodbav:"id"`
	Name string    `json:"name" dynamodbav:"name"`
}

// CreateRecipe is the body of POST /recipes. The id is generated by the server.
type CreateRecipe struct {
	Name string `json:"name"`
}

// PutRecipe is the body of PUT /recipes: a full replace or insert with a client id.
type PutRecipe struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PatchRecipe is the body of PATCH /recipes/{id}. Nil fields are left unchanged.
type PatchRecipe struct {
	Name *string `json:"name"`
}

// Validate checks a create request.
func (c CreateRecipe) Validate() error {
	return validateName(c.Name)
}

// Validate checks a put request.
func (p PutRecipe) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	return validateName(p.Name)
}

// Validate checks a patch request. An empty patch is valid.
func (p PatchRecipe) Validate() error {
	if p.Name != nil {
		return validateName(*p.Name)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalid)
	}
	return nil
}

// New builds a recipe from a create request.
func New(id uuid.UUID, req CreateRecipe) Recipe {
	return Recipe{ID: id, Name: req.Name}
}

// FromPut builds a recipe from a put request.
func FromPut(req PutRecipe) Recipe {
	return Recipe{ID: req.ID, Name: req.Name}
}

// Apply returns a copy of r with the patch's present fields applied.
func (r Recipe) Apply(p PatchRecipe) Recipe {
	if p.Name != nil {
		r.Name = *p.Name
	}
	return r
}
