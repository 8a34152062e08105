// Package httpapi implements the HTTP API gateway for the meal planner.
//
// Routes:
//   - GET /ping, GET /recipes/ping: liveness pong
//   - GET, POST, PUT /recipes: list, create, upsert
//   - GET, PATCH, DELETE /recipes/{id}: read, partial update, delete
//   - GET /healthz, /readyz and the Prometheus metrics path
//
// Storage errors are mapped onto status codes: not found 404, conflict 409,
// unavailable 503, anything else 500. Request bodies are size limited.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/mealplanner/internal/observability"
	"github.com/jkaninda/mealplanner/internal/recipe"
	"github.com/jkaninda/mealplanner/internal/storage"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	Version        string // Reported in the OpenAPI document.
	MaxRequestSize int64  // Maximum request body in bytes. 0 = 1 MB default.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config  Config
	recipes storage.Repository[recipe.Recipe]
	logger  *slog.Logger
	server  *http.Server
	okapi   *okapi.Okapi
}

// NewGateway creates an HTTP API gateway serving recipes from repo.
// Routes are registered immediately, so Handler is usable before Start.
func NewGateway(cfg Config, repo storage.Repository[recipe.Recipe], logger *slog.Logger) *Gateway {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = defaultMaxRequestSize
	}
	g := &Gateway{
		config:  cfg,
		recipes: repo,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(cfg.MaxRequestSize)),
	}
	g.server = &http.Server{
		Addr:              cfg.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       orDefault(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      orDefault(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       120 * time.Second,
	}
	g.routes()
	return g
}

func (g *Gateway) routes() {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	g.okapi.Get("/ping", g.handlePing,
		okapi.DocSummary("Ping the service"),
		okapi.DocTags("Health"),
		okapi.DocResponse(PingResponse{}),
	)
	g.okapi.Get("/recipes/ping", g.handlePing,
		okapi.DocSummary("Ping the recipe API"),
		okapi.DocTags("Recipes"),
		okapi.DocResponse(PingResponse{}),
	)

	g.okapi.Get("/recipes", g.handleRecipeList,
		okapi.DocSummary("List all recipes"),
		okapi.DocTags("Recipes"),
		okapi.DocResponse([]recipe.Recipe{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)
	g.okapi.Post("/recipes", g.limitBody(g.handleRecipeCreate),
		okapi.DocSummary("Create a recipe"),
		okapi.DocTags("Recipes"),
		okapi.DocRequestBody(recipe.CreateRecipe{}),
		okapi.DocResponse(http.StatusCreated, recipe.Recipe{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.okapi.Put("/recipes", g.limitBody(g.handleRecipePut),
		okapi.DocSummary("Create or replace a recipe with a client-chosen id"),
		okapi.DocTags("Recipes"),
		okapi.DocRequestBody(recipe.PutRecipe{}),
		okapi.DocResponse(recipe.Recipe{}),
		okapi.DocResponse(http.StatusCreated, recipe.Recipe{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.okapi.Get("/recipes/{id}", g.handleRecipeGet,
		okapi.DocSummary("Get a recipe by ID"),
		okapi.DocTags("Recipes"),
		okapi.DocPathParam("id", "string", "Recipe ID (UUID)"),
		okapi.DocResponse(recipe.Recipe{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.okapi.Patch("/recipes/{id}", g.limitBody(g.handleRecipePatch),
		okapi.DocSummary("Update fields of a recipe"),
		okapi.DocTags("Recipes"),
		okapi.DocPathParam("id", "string", "Recipe ID (UUID)"),
		okapi.DocRequestBody(recipe.PatchRecipe{}),
		okapi.DocResponse(recipe.Recipe{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.okapi.Delete("/recipes/{id}", g.handleRecipeDelete,
		okapi.DocSummary("Delete a recipe"),
		okapi.DocTags("Recipes"),
		okapi.DocPathParam("id", "string", "Recipe ID (UUID)"),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	// Observability endpoints.
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.okapi.WithOpenAPIDocs(
			okapi.OpenAPI{
				Title:   "Meal Planner",
				Version: g.config.Version,
			},
		)
	}
}

// Handler returns the routed handler.
func (g *Gateway) Handler() http.Handler {
	return g.okapi
}

// Start launches the HTTP server and blocks until it exits.
func (g *Gateway) Start(ctx context.Context) error {
	g.logger.InfoContext(ctx, "http api gateway starting", slog.String("addr", g.config.ListenAddr))

	err := g.okapi.StartServer(g.server)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	g.logger.InfoContext(ctx, "http api gateway stopping")
	return g.server.Shutdown(ctx)
}

// PingResponse is the JSON response for the ping endpoints.
type PingResponse struct {
	Msg string `json:"msg"`
}

func (g *Gateway) handlePing(c *okapi.Context) error {
	return c.OK(PingResponse{Msg: "Pong"})
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if !status.OK() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// limitBody caps the request body at the configured size. A declared
// Content-Length over the limit is rejected before the handler runs.
func (g *Gateway) limitBody(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		r := c.Request()
		if r.ContentLength > g.config.MaxRequestSize {
			return abort(c, http.StatusRequestEntityTooLarge, "request body too large")
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(nil, r.Body, g.config.MaxRequestSize)
		}
		return next(c)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
