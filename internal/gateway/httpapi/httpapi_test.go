package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/mealplanner/internal/observability"
	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

type memRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]recipe.Recipe
	err   error
}

func newMemRepository() *memRepository {
	return &memRepository{items: make(map[uuid.UUID]recipe.Recipe)}
}

func (m *memRepository) GetAll(ctx context.Context) ([]recipe.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []recipe.Recipe
	for _, r := range m.items {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepository) FindByID(ctx context.Context, id uuid.UUID) (*recipe.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("recipe %s: %w", id, storage.ErrNotFound)
	}
	return &r, nil
}

func (m *memRepository) Save(ctx context.Context, r *recipe.Recipe) (*recipe.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	prior, ok := m.items[r.ID]
	m.items[r.ID] = *r
	if !ok {
		return nil, nil
	}
	return &prior, nil
}

func (m *memRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("recipe %s: %w", id, storage.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg Config) (*Gateway, *memRepository) {
	t.Helper()
	repo := newMemRepository()
	return NewGateway(cfg, repo, discardLogger()), repo
}

func do(t *testing.T, g *Gateway, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestPing(t *testing.T) {
	g, _ := newTestGateway(t, Config{})
	for _, path := range []string{"/ping", "/recipes/ping"} {
		rec := do(t, g, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: code = %d, want 200", path, rec.Code)
		}
		if got := decode[PingResponse](t, rec); got.Msg != "Pong" {
			t.Errorf("GET %s: msg = %q, want Pong", path, got.Msg)
		}
	}
}

func TestCreateRecipe(t *testing.T) {
	g, repo := newTestGateway(t, Config{})

	rec := do(t, g, http.MethodPost, "/recipes", `{"name":"Jollof rice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	created := decode[recipe.Recipe](t, rec)
	if created.ID == uuid.Nil {
		t.Fatal("expected a generated id")
	}
	if created.Name != "Jollof rice" {
		t.Errorf("Name = %q", created.Name)
	}
	if _, ok := repo.items[created.ID]; !ok {
		t.Error("recipe was not stored")
	}

	// The created recipe is readable by id.
	rec = do(t, g, http.MethodGet, "/recipes/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET code = %d, want 200", rec.Code)
	}
	if got := decode[recipe.Recipe](t, rec); got != created {
		t.Errorf("GET = %+v, want %+v", got, created)
	}
}

func TestCreateRecipe_BadRequests(t *testing.T) {
	g, repo := newTestGateway(t, Config{})

	rec := do(t, g, http.MethodPost, "/recipes", `{"name":""}`)
	if body := decode[ErrorBody](t, rec); body.Error != "invalid recipe: name must not be blank" {
		t.Errorf("validation error = %q", body.Error)
	}

	tests := []struct {
		name string
		body string
	}{
		{"blank name", `{"name":"   "}`},
		{"missing name", `{}`},
		{"malformed json", `{"name":`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, g, http.MethodPost, "/recipes", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, want 400", rec.Code)
			}
			if body := decode[ErrorBody](t, rec); body.Error == "" || strings.Contains(body.Error, "\n") {
				t.Errorf("error message = %q, want a single line", body.Error)
			}
		})
	}
	if len(repo.items) != 0 {
		t.Errorf("stored %d recipes from bad requests", len(repo.items))
	}
}

func TestCreateRecipe_BodyTooLarge(t *testing.T) {
	g, repo := newTestGateway(t, Config{MaxRequestSize: 32})
	body := `{"name":"` + strings.Repeat("a", 128) + `"}`

	rec := do(t, g, http.MethodPost, "/recipes", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}

	// Without a declared length the limit is enforced while decoding.
	req := httptest.NewRequest(http.MethodPost, "/recipes", io.MultiReader(strings.NewReader(body)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("streamed body: code = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}

	if len(repo.items) != 0 {
		t.Error("oversized body should not be stored")
	}
}

func TestCreateRecipe_RequiresJSON(t *testing.T) {
	g, repo := newTestGateway(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(`{"name":"Soup"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("code = %d, want 415", rec.Code)
	}
	if len(repo.items) != 0 {
		t.Error("non-JSON body should not be stored")
	}

	// Parameters on the media type are accepted.
	req = httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(`{"name":"Soup"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("charset param: code = %d, want 201", rec.Code)
	}
}

func TestListRecipes(t *testing.T) {
	g, repo := newTestGateway(t, Config{})

	rec := do(t, g, http.MethodGet, "/recipes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty list body = %s, want []", got)
	}

	for _, name := range []string{"Pho", "Ramen"} {
		r := recipe.Recipe{ID: uuid.New(), Name: name}
		repo.items[r.ID] = r
	}
	rec = do(t, g, http.MethodGet, "/recipes", "")
	if got := decode[[]recipe.Recipe](t, rec); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestGetRecipe_Errors(t *testing.T) {
	g, _ := newTestGateway(t, Config{})

	rec := do(t, g, http.MethodGet, "/recipes/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d, want 400", rec.Code)
	}

	rec = do(t, g, http.MethodGet, "/recipes/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: code = %d, want 404", rec.Code)
	}
	if body := decode[ErrorBody](t, rec); body.Error != "recipe not found" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestPutRecipe_CreateThenReplace(t *testing.T) {
	g, repo := newTestGateway(t, Config{})
	id := uuid.New()

	rec := do(t, g, http.MethodPut, "/recipes", fmt.Sprintf(`{"id":%q,"name":"Tagine"}`, id))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first PUT code = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, g, http.MethodPut, "/recipes", fmt.Sprintf(`{"id":%q,"name":"Lamb tagine"}`, id))
	if rec.Code != http.StatusOK {
		t.Fatalf("second PUT code = %d, want 200", rec.Code)
	}
	if got := decode[recipe.Recipe](t, rec); got.Name != "Lamb tagine" {
		t.Errorf("Name = %q", got.Name)
	}
	if repo.items[id].Name != "Lamb tagine" {
		t.Errorf("stored name = %q", repo.items[id].Name)
	}

	rec = do(t, g, http.MethodPut, "/recipes", `{"name":"No id"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT without id: code = %d, want 400", rec.Code)
	}
}

func TestPatchRecipe(t *testing.T) {
	g, repo := newTestGateway(t, Config{})
	r := recipe.Recipe{ID: uuid.New(), Name: "Pad thai"}
	repo.items[r.ID] = r
	path := "/recipes/" + r.ID.String()

	rec := do(t, g, http.MethodPatch, path, `{"name":"Pad see ew"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got := decode[recipe.Recipe](t, rec); got.Name != "Pad see ew" || got.ID != r.ID {
		t.Errorf("patched = %+v", got)
	}

	// An empty patch leaves the recipe unchanged.
	rec = do(t, g, http.MethodPatch, path, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty patch code = %d, want 200", rec.Code)
	}
	if repo.items[r.ID].Name != "Pad see ew" {
		t.Errorf("stored name = %q", repo.items[r.ID].Name)
	}

	if rec := do(t, g, http.MethodPatch, path, `{"name":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: code = %d, want 400", rec.Code)
	}
	if rec := do(t, g, http.MethodPatch, "/recipes/"+uuid.NewString(), `{"name":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: code = %d, want 404", rec.Code)
	}
	if rec := do(t, g, http.MethodPatch, "/recipes/nope", `{"name":"x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d, want 400", rec.Code)
	}

	// A malformed body is rejected rather than applied as an empty patch.
	rec = do(t, g, http.MethodPatch, path, `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: code = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
	if body := decode[ErrorBody](t, rec); body.Error != "invalid request body" {
		t.Errorf("malformed body: error = %q", body.Error)
	}
	if repo.items[r.ID].Name != "Pad see ew" {
		t.Errorf("stored name after malformed patch = %q", repo.items[r.ID].Name)
	}
}

func TestPatchRecipe_BodyTooLarge(t *testing.T) {
	g, repo := newTestGateway(t, Config{MaxRequestSize: 32})
	r := recipe.Recipe{ID: uuid.New(), Name: "Pad thai"}
	repo.items[r.ID] = r

	rec := do(t, g, http.MethodPatch, "/recipes/"+r.ID.String(), `{"name":"`+strings.Repeat("b", 128)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}
	if repo.items[r.ID].Name != "Pad thai" {
		t.Errorf("stored name = %q, want unchanged", repo.items[r.ID].Name)
	}
}

func TestDeleteRecipe(t *testing.T) {
	g, repo := newTestGateway(t, Config{})
	r := recipe.Recipe{ID: uuid.New(), Name: "Borscht"}
	repo.items[r.ID] = r
	path := "/recipes/" + r.ID.String()

	rec := do(t, g, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("204 body = %q, want empty", rec.Body.String())
	}

	if rec := do(t, g, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete: code = %d, want 404", rec.Code)
	}
	if rec := do(t, g, http.MethodDelete, path, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: code = %d, want 404", rec.Code)
	}
	if rec := do(t, g, http.MethodDelete, "/recipes/123", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d, want 400", rec.Code)
	}
}

func TestStorageErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("throttled: %w", storage.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("serialization failure: %w", storage.ErrConflict), http.StatusConflict},
		{fmt.Errorf("boom: %w", storage.ErrInternal), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			g, repo := newTestGateway(t, Config{})
			repo.err = tc.err

			rec := do(t, g, http.MethodGet, "/recipes", "")
			if rec.Code != tc.want {
				t.Fatalf("GET code = %d, want %d", rec.Code, tc.want)
			}
			body := decode[ErrorBody](t, rec)
			if strings.Contains(body.Error, tc.err.Error()) {
				t.Errorf("backend error leaked to caller: %q", body.Error)
			}

			rec = do(t, g, http.MethodPost, "/recipes", `{"name":"Soup"}`)
			if rec.Code != tc.want {
				t.Errorf("POST code = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	health := observability.NewHealthChecker(nil)
	var down bool
	health.AddCheck("storage", func(ctx context.Context) error {
		if down {
			return errors.New("connection refused")
		}
		return nil
	})
	g, _ := newTestGateway(t, Config{HealthChecker: health})

	if rec := do(t, g, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz code = %d, want 200", rec.Code)
	}
	if rec := do(t, g, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz code = %d, want 200", rec.Code)
	}

	down = true
	rec := do(t, g, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded readyz code = %d, want 503", rec.Code)
	}
	status := decode[observability.HealthStatus](t, rec)
	if status.Checks["storage"].Status != "fail" {
		t.Errorf("storage check = %+v", status.Checks["storage"])
	}
	// Liveness does not follow dependencies.
	if rec := do(t, g, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz code = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetricsCollector()
	g, _ := newTestGateway(t, Config{MetricsRegistry: metrics.Registry, MetricsPath: "/internal/metrics"})

	rec := do(t, g, http.MethodGet, "/internal/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mealplanner_active_requests") {
		t.Error("expected mealplanner metrics in exposition")
	}
}
