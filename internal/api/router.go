package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/aboglioli/configd/internal/api/handlers"
	"github.com/aboglioli/configd/internal/api/middleware"
)

// RouterConfig holds the knobs NewRouter uses to assemble the global
// middleware chain; route-specific business dependencies live on Handlers
// itself.
type RouterConfig struct {
	EnableRateLimit   bool
	EnableCompression bool
	EnableCORS        bool
	EnableMetrics     bool

	RateLimitPerMinute int
	RateLimitBurst     int

	CORSConfig middleware.CORSConfig

	Logger *slog.Logger
}

// DefaultRouterConfig returns a sensible configuration for production use.
func DefaultRouterConfig(logger *slog.Logger) RouterConfig {
	return RouterConfig{
		EnableRateLimit:    true,
		EnableCompression:  true,
		EnableCORS:         true,
		EnableMetrics:      true,
		RateLimitPerMinute: 100,
		RateLimitBurst:     20,
		CORSConfig:         middleware.DefaultCORSConfig(),
		Logger:             logger,
	}
}

// NewRouter wires configd's HTTP surface: schema and config
// CRUD under /schemas, a validate dry-run, and ambient /health and /docs
// routes, behind the shared middleware stack.
//
// The middleware stack is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Security headers (always)
//  4. Metrics (if enabled)
//  5. CORS (if enabled)
//  6. Compression (if enabled)
//  7. Rate limiting (if enabled)
//  8. Request validation (always)
//
// @title configd API
// @version 1.0.0
// @description Centralized configuration registry: schemas, configs and their validation.
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /
// @schemes http https
func NewRouter(h *handlers.Handlers, config RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(config.Logger))
	router.Use(middleware.SecurityHeadersMiddleware)

	if config.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
	}
	if config.EnableCORS {
		router.Use(middleware.CORSMiddleware(config.CORSConfig))
	}
	if config.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}
	if config.EnableRateLimit {
		router.Use(middleware.RateLimitMiddleware(config.RateLimitPerMinute, config.RateLimitBurst))
	}

	router.Use(middleware.ValidationMiddleware)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	schemas := router.PathPrefix("/schemas").Subrouter()
	schemas.HandleFunc("", h.CreateSchema).Methods(http.MethodPost)
	schemas.HandleFunc("", h.ListSchemas).Methods(http.MethodGet)
	schemas.HandleFunc("/{schema_id}", h.GetSchema).Methods(http.MethodGet)
	schemas.HandleFunc("/{schema_id}", h.UpdateSchema).Methods(http.MethodPut)
	schemas.HandleFunc("/{schema_id}", h.DeleteSchema).Methods(http.MethodDelete)
	schemas.HandleFunc("/{schema_id}/validate", h.ValidateConfig).Methods(http.MethodPost)

	schemas.HandleFunc("/{schema_id}/configs", h.CreateConfig).Methods(http.MethodPost)
	schemas.HandleFunc("/{schema_id}/configs/{config_id}", h.GetConfig).Methods(http.MethodGet)
	schemas.HandleFunc("/{schema_id}/configs/{config_id}", h.UpdateConfig).Methods(http.MethodPut)
	schemas.HandleFunc("/{schema_id}/configs/{config_id}", h.DeleteConfig).Methods(http.MethodDelete)
	schemas.HandleFunc("/{schema_id}/configs/{config_id}/password", h.SetConfigPassword).Methods(http.MethodPost)
	schemas.HandleFunc("/{schema_id}/configs/{config_id}/password", h.DeleteConfigPassword).Methods(http.MethodDelete)

	router.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)

	return router
}
