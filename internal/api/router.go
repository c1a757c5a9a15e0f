// Package api wires the HTTP surface of the sync server: the file and
// admin endpoints, the health and metrics endpoints and the websocket
// channel, behind a shared chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/syncbox/internal/api/handlers"
	"github.com/marmos91/syncbox/internal/api/middleware"
	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/internal/channel"
	"github.com/marmos91/syncbox/pkg/store"
)

// RouterConfig carries the collaborators of the HTTP surface.
type RouterConfig struct {
	Store          store.Store
	Validator      *auth.Validator
	Gateway        *channel.Gateway
	AllowedOrigins []string
}

// NewRouter builds the route tree. The websocket endpoint sits outside
// the request timeout group: connections outlive any sane timeout.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(cfg.Store)
	r.Get("/health", health.Get)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/socket", cfg.Gateway.HandleSocket)

	files := handlers.NewFilesHandler(cfg.Store, cfg.Gateway.Hub())
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Use(middleware.Authenticate(cfg.Validator))
		r.Use(middleware.RequireStoreKey())

		r.Get("/files", files.Get)
		r.Post("/files", files.Create)
		r.Put("/files", files.Upsert)
		r.Patch("/files", files.Rename)
		r.Delete("/files", files.Delete)
		r.Delete("/files/all", files.DeleteAll)
	})

	stores := handlers.NewStoresHandler(cfg.Store)
	keys := handlers.NewAPIKeysHandler(cfg.Store)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Use(middleware.Authenticate(cfg.Validator))
		r.Use(middleware.RequireAdmin())

		r.Get("/stores", stores.List)
		r.Post("/stores", stores.Create)
		r.Get("/stores/{id}", stores.Get)
		r.Delete("/stores/{id}", stores.Delete)

		r.Get("/stores/{id}/keys", keys.List)
		r.Post("/stores/{id}/keys", keys.Create)
		r.Delete("/keys/{id}", keys.Revoke)
	})

	return r
}
