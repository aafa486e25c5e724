package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalpress/signalpress/internal/api/handlers"
	"github.com/signalpress/signalpress/internal/api/middleware"
	"github.com/signalpress/signalpress/internal/config"
	"github.com/signalpress/signalpress/internal/eventbus"
)

// NewRouter builds the HTTP router: global middleware, health/ready/
// version/metrics, the sync-job and validation/cache API, and the
// job-event WebSocket stream.
func NewRouter(cfg *config.Config, h *handlers.Handlers, bus *eventbus.Bus, authChain middleware.AuthChain) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Correlation)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)

	if authChain != nil {
		r.Use(middleware.Auth(authChain))
	}

	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/version", h.Version)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sync-jobs", func(r chi.Router) {
			r.Post("/", h.SubmitSyncJob)
			r.Get("/", h.ListSyncJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSyncJob)
				r.Post("/cancel", h.CancelSyncJob)
				r.Post("/retry", h.RetrySyncJob)
			})
		})

		r.Post("/validate", h.ValidateContent)

		r.Route("/cache", func(r chi.Router) {
			r.Post("/invalidate", h.InvalidateCache)
			r.Get("/stats", h.GetCacheStats)
		})
	})

	if bus != nil {
		r.Get("/api/v1/events/{jobID}", func(w http.ResponseWriter, r *http.Request) {
			bus.ServeWS(w, r, chi.URLParam(r, "jobID"))
		})
		r.Get("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
			bus.ServeWS(w, r, "")
		})
	}

	return r
}

// parseCORSOrigins reads allowed CORS origins from the environment.
// Default: wildcard (open access, no credentials).
func parseCORSOrigins() []string {
	originsEnv := os.Getenv("SIGNALPRESS_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}

	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
