// Package httpapi implements the HTTP Surface (component G): the chi
// router, its middleware stack, and the /query, /health, /ready handlers.
//
// Grounded on the teacher's chi-based frontend router
// (frontend/internal/router/router.go) for middleware ordering
// (StripSlashes, Compress, then route groups) and on
// shared/middleware/metrics for the Prometheus HTTP middleware.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/postgate/postgate/internal/httpmw"
	"github.com/postgate/postgate/internal/metrics"
)

// NewRouter builds the gateway's HTTP surface. finder resolves bearer
// secrets to policies for the Auth Middleware.
func NewRouter(h *Handler, finder httpmw.TokenFinder) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.StripSlashes)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Group(func(authed chi.Router) {
		authed.Use(httpmw.RequireToken(finder))
		authed.With(chimw.Timeout(60 * time.Second)).Post("/query", h.Query)
	})

	r.NotFound(writePlainStatus(http.StatusNotFound, "not found"))
	r.MethodNotAllowed(writePlainStatus(http.StatusMethodNotAllowed, "method not allowed"))

	return r
}

// writePlainStatus handles the two routing-level failures that sit outside
// the gateway's coded error taxonomy (§7 only covers /query failures).
func writePlainStatus(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, message, status)
	}
}
