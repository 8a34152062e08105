package httpapi

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

func (g *Gateway) handleRecipeList(c *okapi.Context) error {
	items, err := g.recipes.GetAll(c.Context())
	if err != nil {
		return g.storageError(c, "list recipes", err)
	}
	if items == nil {
		items = []recipe.Recipe{}
	}
	return c.OK(items)
}

func (g *Gateway) handleRecipeCreate(c *okapi.Context) error {
	var req recipe.CreateRecipe
	if err := bindJSON(c, &req); err != nil {
		return bindError(c, err)
	}
	if err := req.Validate(); err != nil {
		return abort(c, http.StatusBadRequest, err.Error())
	}

	rec := recipe.New(uuid.New(), req)
	if _, err := g.recipes.Save(c.Context(), &rec); err != nil {
		return g.storageError(c, "create recipe", err)
	}

	g.logger.Info("recipe created", slog.String("recipe_id", rec.ID.String()))
	return c.JSON(http.StatusCreated, rec)
}

func (g *Gateway) handleRecipePut(c *okapi.Context) error {
	var req recipe.PutRecipe
	if err := bindJSON(c, &req); err != nil {
		return bindError(c, err)
	}
	if err := req.Validate(); err != nil {
		return abort(c, http.StatusBadRequest, err.Error())
	}

	rec := recipe.FromPut(req)
	prior, err := g.recipes.Save(c.Context(), &rec)
	if err != nil {
		return g.storageError(c, "put recipe", err)
	}
	if prior == nil {
		return c.JSON(http.StatusCreated, rec)
	}
	return c.OK(rec)
}

func (g *Gateway) handleRecipeGet(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return abort(c, http.StatusBadRequest, "invalid recipe ID")
	}

	rec, err := g.recipes.FindByID(c.Context(), id)
	if err != nil {
		return g.storageError(c, "get recipe", err)
	}
	return c.OK(rec)
}

func (g *Gateway) handleRecipePatch(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return abort(c, http.StatusBadRequest, "invalid recipe ID")
	}

	var req recipe.PatchRecipe
	if err := bindJSON(c, &req); err != nil {
		return bindError(c, err)
	}
	if err := req.Validate(); err != nil {
		return abort(c, http.StatusBadRequest, err.Error())
	}

	current, err := g.recipes.FindByID(c.Context(), id)
	if err != nil {
		return g.storageError(c, "get recipe", err)
	}

	updated := current.Apply(req)
	if _, err := g.recipes.Save(c.Context(), &updated); err != nil {
		return g.storageError(c, "update recipe", err)
	}
	return c.OK(updated)
}

func (g *Gateway) handleRecipeDelete(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return abort(c, http.StatusBadRequest, "invalid recipe ID")
	}

	if err := g.recipes.DeleteByID(c.Context(), id); err != nil {
		return g.storageError(c, "delete recipe", err)
	}

	g.logger.Info("recipe deleted", slog.String("recipe_id", id.String()))
	c.Response().WriteHeader(http.StatusNoContent)
	return nil
}

// --- Helpers ---

// storageError maps storage errors to HTTP responses. Only unexpected
// failures are logged; the cause is not exposed to the caller.
func (g *Gateway) storageError(c *okapi.Context, op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return abort(c, http.StatusNotFound, "recipe not found")
	case errors.Is(err, storage.ErrConflict):
		return abort(c, http.StatusConflict, "recipe was modified concurrently")
	case errors.Is(err, storage.ErrUnavailable):
		g.logger.Warn(op+" failed", slog.String("error", err.Error()))
		return abort(c, http.StatusServiceUnavailable, "storage unavailable")
	default:
		g.logger.Error(op+" failed", slog.String("error", err.Error()))
		return abort(c, http.StatusInternalServerError, "internal error")
	}
}

var errUnsupportedMediaType = errors.New("unsupported media type")

// bindJSON decodes a JSON request body into v and returns any decode error.
func bindJSON(c *okapi.Context, v any) error {
	mt, _, err := mime.ParseMediaType(c.Request().Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return errUnsupportedMediaType
	}
	return c.BindJSON(v)
}

func bindError(c *okapi.Context, err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errUnsupportedMediaType):
		return abort(c, http.StatusUnsupportedMediaType, "content type must be application/json")
	case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
		return abort(c, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		return abort(c, http.StatusBadRequest, "invalid request body")
	}
}

func abort(c *okapi.Context, code int, msg string) error {
	return c.JSON(code, ErrorBody{Error: msg})
}
